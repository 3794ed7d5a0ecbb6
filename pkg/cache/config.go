package cache

import "time"

// RedisOption configures the Redis cache.
type RedisOption func(*RedisSettings)

// RedisSettings holds connection and pool settings.
type RedisSettings struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithRedisHost sets the Redis host.
func WithRedisHost(host string) RedisOption {
	return func(c *RedisSettings) { c.Host = host }
}

// WithRedisPort sets the Redis port.
func WithRedisPort(port int) RedisOption {
	return func(c *RedisSettings) { c.Port = port }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(c *RedisSettings) { c.Password = password }
}

// WithRedisDB selects the Redis database.
func WithRedisDB(db int) RedisOption {
	return func(c *RedisSettings) { c.DB = db }
}

// WithRedisPool tunes the connection pool.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisSettings) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix sets the key namespace.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisSettings) { c.Prefix = prefix }
}

// MemoryOption configures the in-process cache.
type MemoryOption func(*MemorySettings)

// MemorySettings holds in-process cache settings.
type MemorySettings struct {
	MaxSize         int
	CleanupInterval time.Duration
}

// WithMemoryMaxSize caps the number of entries before LRU eviction.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemorySettings) { c.MaxSize = size }
}

// WithMemoryCleanup sets how often expired entries are swept.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemorySettings) { c.CleanupInterval = interval }
}
