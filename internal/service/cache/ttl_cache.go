package cache

import (
	"sync"
	"time"
)

type item struct {
	val      any
	deadline time.Time
}

func (it item) live(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// TTLCache is an in-process BytesCache for single-replica deployments.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]item)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !it.live(now) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return it.val, true
}

func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	it := item{val: v}
	if ttl > 0 {
		it.deadline = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}
