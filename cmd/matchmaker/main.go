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
	"github.com/mroshb/debate_hub/internal/matchmaking"
	"github.com/mroshb/debate_hub/internal/middleware"
	"github.com/mroshb/debate_hub/internal/repositories"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/mroshb/debate_hub/pkg/logger"
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

	logger.Info("Starting matchmaking service...")
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
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

	queue := store.NewQueueStore(rdb)
	markers := store.NewMarkers(rdb)
	matchRepo := repositories.NewMatchRepository(db)

	worker := matchmaking.NewWorker(queue, markers, store.NewLocker(rdb), bus, matchRepo, matchmaking.WorkerConfig{
		Interval:        cfg.GetMatchInterval(),
		MatchedTTL:      cfg.GetMatchCooldown(),
		EventTTL:        cfg.GetMatchEventTTL(),
		DurationMinutes: cfg.MatchDurationMinutes,
	})
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerUser, cfg.RateLimitPerIP, time.Minute)
	defer rateLimiter.Stop()

	h := &handlers.HandlerManager{
		Config:      cfg,
		Matchmaker:  matchmaking.NewMatchmaker(queue, markers),
		Matches:     matchRepo,
		RateLimiter: rateLimiter,
	}
	app := handlers.NewApp("matchmaking", cfg.AppEnv == "development")
	h.RegisterMatchmakingRoutes(app)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Fatal("HTTP server failed", err)
		}
	}()
	logger.Info("Matchmaking service started", "port", cfg.AppPort, "env", cfg.AppEnv)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	stop()
	<-done
	logger.Info("Matchmaking service stopped")
}
