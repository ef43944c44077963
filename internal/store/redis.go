// Package store holds the Redis-backed shared state: the matchmaking queue,
// lease locks, short-lived markers, session snapshots and connectivity records.
package store

import (
	"context"
	"fmt"

	"github.com/mroshb/debate_hub/internal/config"
	"github.com/mroshb/debate_hub/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Key names shared by both services.
const (
	QueueKey           = "matchmaking:queue"
	MatchLockKey       = "matchmaking:lock"
	matchedPrefix      = "matched:"
	matchEventPrefix   = "match-event:"
	sessionPrefix      = "debate:session:"
	connectivityPrefix = "debate:connectivity:"
	maxTxRetries       = 50
)

func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connected", "addr", cfg.RedisAddr)
	return client, nil
}
