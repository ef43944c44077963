package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Telegram ops feed, optional
	BotToken    string
	AdminChatID int64

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS
	NATSURL        string
	NATSQueueGroup string

	// Security
	JWTSecret string

	// Application
	AppEnv      string
	AppPort     string
	LogLevel    string
	ServiceName string

	// Rate Limiting
	RateLimitPerUser int
	RateLimitPerIP   int

	// Matchmaking
	MatchIntervalMs      int
	MatchCooldownSecs    int
	MatchEventTTLSecs    int
	MatchDurationMinutes int

	// Debate sessions
	TurnDurationSecs       int
	PauseTimeoutMinutes    int
	ConnectivityDebounceMs int
	ConnectivityTTLSecs    int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		BotToken:   getEnv("BOT_TOKEN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "debate"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "debate_hub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		NATSURL:        getEnv("NATS_URL", "nats://localhost:4222"),
		NATSQueueGroup: getEnv("NATS_QUEUE_GROUP", "debate-service"),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),

		AppEnv:      getEnv("APP_ENV", "development"),
		AppPort:     getEnv("APP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "debate"),

		RateLimitPerUser: getEnvInt("RATE_LIMIT_PER_USER", 20),
		RateLimitPerIP:   getEnvInt("RATE_LIMIT_PER_IP", 100),

		MatchIntervalMs:      getEnvInt("MATCH_INTERVAL_MS", 5000),
		MatchCooldownSecs:    getEnvInt("MATCH_COOLDOWN_SECONDS", 30),
		MatchEventTTLSecs:    getEnvInt("MATCH_EVENT_TTL_SECONDS", 10),
		MatchDurationMinutes: getEnvInt("MATCH_DURATION_MINUTES", 10),

		TurnDurationSecs:       getEnvInt("TURN_DURATION_SECONDS", 60),
		PauseTimeoutMinutes:    getEnvInt("PAUSE_TIMEOUT_MINUTES", 3),
		ConnectivityDebounceMs: getEnvInt("CONNECTIVITY_DEBOUNCE_MS", 3000),
		ConnectivityTTLSecs:    getEnvInt("CONNECTIVITY_TTL_SECONDS", 30),
	}

	adminChatStr := getEnv("ADMIN_CHAT_ID", "")
	if adminChatStr != "" {
		id, err := strconv.ParseInt(adminChatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
		}
		cfg.AdminChatID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if c.MatchIntervalMs <= 0 {
		return fmt.Errorf("MATCH_INTERVAL_MS must be positive")
	}
	if c.TurnDurationSecs <= 0 {
		return fmt.Errorf("TURN_DURATION_SECONDS must be positive")
	}
	if c.BotToken != "" && c.AdminChatID == 0 {
		return fmt.Errorf("ADMIN_CHAT_ID is required when BOT_TOKEN is set")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}
	if c.RedisPassword == "" {
		return fmt.Errorf("REDIS_PASSWORD must be set in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetMatchInterval() time.Duration {
	return time.Duration(c.MatchIntervalMs) * time.Millisecond
}

func (c *Config) GetMatchCooldown() time.Duration {
	return time.Duration(c.MatchCooldownSecs) * time.Second
}

func (c *Config) GetMatchEventTTL() time.Duration {
	return time.Duration(c.MatchEventTTLSecs) * time.Second
}

func (c *Config) GetTurnDuration() time.Duration {
	return time.Duration(c.TurnDurationSecs) * time.Second
}

func (c *Config) GetPauseTimeout() time.Duration {
	return time.Duration(c.PauseTimeoutMinutes) * time.Minute
}

func (c *Config) GetConnectivityDebounce() time.Duration {
	return time.Duration(c.ConnectivityDebounceMs) * time.Millisecond
}

func (c *Config) GetConnectivityTTL() time.Duration {
	return time.Duration(c.ConnectivityTTLSecs) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
