package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediatrack/internal/config"
	"mediatrack/internal/logging"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// InitRedis connects the package client. With an empty address the cache stays
// disabled and every helper below is a no-op.
func InitRedis(cfg *config.Config) error {
	if cfg.RedisAddr == "" {
		logging.Component("redis").Info().Msg("REDIS_ADDR empty, catalog cache disabled")
		return nil
	}

	c := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("redis ping: %w", err)
	}

	client = c
	logging.Component("redis").Info().Str("addr", cfg.RedisAddr).Msg("connected")
	return nil
}

// Enabled reports whether InitRedis connected a client.
func Enabled() bool {
	return client != nil
}

// GetJSON reads key and, when present, decodes it into dest.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}

	val, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON encodes value and stores it under key with the given TTL.
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if client == nil {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// JSON exposes the package helpers as a value for callers that take a cache
// interface.
type JSON struct{}

func (JSON) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	return GetJSON(ctx, key, dest)
}

func (JSON) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return SetJSON(ctx, key, value, ttl)
}
