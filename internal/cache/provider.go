package cache

// Package cache provides short-lived key/value storage for order submission idempotency.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider defines the interface for idempotency key storage.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetIfAbsent stores value only when key is missing or expired and
	// reports whether it did.
	SetIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
	// KeyPrefix namespaces redis keys when several deployments share one server.
	KeyPrefix string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

func IdempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, strings.TrimSpace(key))
}
