package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
	lastUsed  time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is an in-process Service with LRU eviction at capacity and
// a background sweep for expired entries.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	sweep   *time.Ticker
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemorySettings{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: cfg.MaxSize,
		sweep:   time.NewTicker(cfg.CleanupInterval),
	}
	go mc.sweepExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	now := time.Now()
	if expiration <= 0 {
		expiration = 7 * 24 * time.Hour
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}
	mc.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: now.Add(expiration),
		lastUsed:  now,
	}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[key]
	if !ok || entry.expired(now) {
		delete(mc.entries, key)
		return ErrCacheMiss
	}
	entry.lastUsed = now

	switch d := dest.(type) {
	case *string:
		if s, ok := entry.value.(string); ok {
			*d = s
			return nil
		}
	case *interface{}:
		*d = entry.value
		return nil
	}

	// Struct dests take a JSON round-trip so behavior matches the Redis
	// implementation.
	raw, err := json.Marshal(entry.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
		return false, nil
	}
	mc.entries[key] = &memoryEntry{value: "locked", expiresAt: now.Add(ttl), lastUsed: now}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// evictOldest drops the least recently used entry. Caller holds mu.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range mc.entries {
		if oldestKey == "" || entry.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastUsed
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) sweepExpired() {
	for range mc.sweep.C {
		now := time.Now()
		mc.mu.Lock()
		for key, entry := range mc.entries {
			if entry.expired(now) {
				delete(mc.entries, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the sweep ticker.
func (mc *MemoryCache) Close() error {
	if mc.sweep != nil {
		mc.sweep.Stop()
	}
	return nil
}
