package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"parley/chat-service/config"
)

// NewRedisClient connects to Redis using the configured URL. The client backs
// the presence mirror; the realtime core itself never blocks on it.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.DB = cfg.RedisDB

	client := redis.NewClient(opt)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
