package datalayer

import (
	"context"
	"fmt"

	"github.com/glizzus/livesfx/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClientFromEnv connects to the server named by the REDIS_*
// variables and checks that it answers.
func NewRedisClientFromEnv(ctx context.Context) (*redis.Client, error) {
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load redis config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
