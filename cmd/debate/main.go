package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/debate_hub/internal/config"
	"github.com/mroshb/debate_hub/internal/database"
	"github.com/mroshb/debate_hub/internal/events"
	"github.com/mroshb/debate_hub/internal/handlers"
	"github.com/mroshb/debate_hub/internal/middleware"
	"github.com/mroshb/debate_hub/internal/repositories"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/mroshb/debate_hub/pkg/logger"
	"github.com/mroshb/debate_hub/telegram"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init(logger.Options{})
		logger.Fatal("Failed to load config", err)
	}

	logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Development: cfg.AppEnv == "development",
		Service:     cfg.ServiceName,
	})
	defer logger.Sync()

	logger.Info("Starting debate session service...")
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	rdb, err := store.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", err)
	}
	defer rdb.Close()

	bus, err := events.Connect(ctx, cfg.NATSURL, cfg.ServiceName, cfg.NATSQueueGroup)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", err)
	}
	defer bus.Close()

	debateRepo := repositories.NewDebateRepository(db)
	hub := handlers.NewHub()
	writer := session.NewCompositeStatusWriter(store.NewConnectivityStore(rdb, cfg.GetConnectivityTTL()), debateRepo)
	tracker := session.NewParticipantTracker(writer, cfg.GetConnectivityDebounce())
	manager := session.NewManager(store.NewSessionStore(rdb), tracker, debateRepo, bus, hub, session.Options{
		TurnDuration: cfg.GetTurnDuration(),
		PauseTimeout: cfg.GetPauseTimeout(),
	})
	go manager.Run(ctx)

	if err := session.RegisterConsumers(bus, manager); err != nil {
		logger.Fatal("Failed to register consumers", err)
	}

	if cfg.BotToken != "" {
		ops, err := telegram.NewNotifier(cfg.BotToken, cfg.AdminChatID, "", cfg.AppEnv == "development")
		if err != nil {
			logger.Warn("Ops feed disabled", "error", err)
		} else if err := ops.Register(bus.Group(telegram.QueueGroup)); err != nil {
			logger.Warn("Ops feed disabled", "error", err)
		}
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerUser, cfg.RateLimitPerIP, time.Minute)
	defer rateLimiter.Stop()

	h := &handlers.HandlerManager{
		Config:      cfg,
		Sessions:    manager,
		Results:     debateRepo,
		Hub:         hub,
		RateLimiter: rateLimiter,
	}
	app := handlers.NewApp("debate", cfg.AppEnv == "development")
	h.RegisterDebateRoutes(app)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Fatal("HTTP server failed", err)
		}
	}()
	logger.Info("Debate service started", "port", cfg.AppPort, "env", cfg.AppEnv)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	hub.Close()
	stop()
	manager.Close()
	logger.Info("Debate service stopped")
}
