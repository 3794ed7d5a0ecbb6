package cache

import (
	"context"
	"time"
)

// LayeredCache fronts Redis with an in-process LRU. Reads hit memory
// first; writes go through to Redis so replicas stay consistent.
type LayeredCache struct {
	mem *MemoryCache
	rds *RedisCache
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*layeredSettings)

type layeredSettings struct {
	memoryMaxSize int
}

// WithLayeredMemorySize caps the L1 entry count.
func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *layeredSettings) { c.memoryMaxSize = size }
}

// NewLayeredCache creates the two-level cache over an existing Redis
// connection.
func NewLayeredCache(rds *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &layeredSettings{memoryMaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem: NewMemoryCache(WithMemoryMaxSize(cfg.memoryMaxSize)),
		rds: rds,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.rds.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, expiration)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.rds.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, dest, 0)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.rds.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.rds.Exists(ctx, keys...)
}

// Locks live only in Redis so they hold across replicas.

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.rds.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.rds.Unlock(ctx, key)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.rds.Close()
}
