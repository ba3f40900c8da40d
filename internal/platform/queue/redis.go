package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"tle_arena/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

// Options builds client options from the loaded config.
func Options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func ConnectRedis(ctx context.Context) error {
	RDB = redis.NewClient(Options(config.AppConfig))

	if _, err := RDB.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("could not connect to Redis: %w", err)
	}
	slog.Info("Successfully connected to Redis", "addr", config.AppConfig.RedisAddr)
	return nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		slog.Info("Redis connection closed")
	}
}

// Ping reports whether the shared client can reach Redis.
func Ping(ctx context.Context) error {
	if RDB == nil {
		return fmt.Errorf("redis client not connected")
	}
	return RDB.Ping(ctx).Err()
}
