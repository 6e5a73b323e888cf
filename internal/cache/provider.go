package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miradorstack/climate-econometrics/internal/config"
)

// Provider stores encoded diagnostic reports by key.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Backend names accepted by cache.backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Open builds the provider selected by cfg. Caching disabled yields NoopProvider.
// A Redis backend that cannot be reached returns NoopProvider together with the error
// so callers may choose to continue uncached.
func Open(ctx context.Context, cfg config.CacheConfig) (Provider, error) {
	if !cfg.Enabled {
		return NoopProvider{}, nil
	}
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryProvider(cfg.MaxEntries), nil
	case BackendRedis, "":
		provider, err := NewRedisProvider(ctx, RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err != nil {
			return NoopProvider{}, err
		}
		return provider, nil
	default:
		return NoopProvider{}, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NoopProvider never stores anything.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
