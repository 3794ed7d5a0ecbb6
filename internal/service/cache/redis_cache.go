package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// RedisCache is a BytesCache over a shared Redis connection so cached
// responses are visible to every replica.
type RedisCache struct {
	cli    *redis.Client
	prefix string
}

func NewRedisCache(cli *redis.Client) *RedisCache {
	return &RedisCache{cli: cli, prefix: "quantshield:response:"}
}

func (r *RedisCache) GetBytes(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	b, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	return r.cli.Set(ctx, r.prefix+key, value, ttl).Err()
}
