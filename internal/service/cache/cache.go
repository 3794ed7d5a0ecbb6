package cache

import "time"

// BytesCache stores serialized responses with a TTL. Handlers use it to
// short-circuit repeated reads of slow-changing data.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
