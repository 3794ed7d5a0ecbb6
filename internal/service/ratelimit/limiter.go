package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	capacity float64
	rate     float64
	last     time.Time
}

// take refills the bucket for the elapsed time and consumes one token if
// available.
func (b *bucket) take(now time.Time) bool {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter is a per-key token bucket. Keys are created on first use with
// the capacity and refill rate passed to Allow.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether one token can be consumed for key. refillPerSec
// is the steady-state request rate, capacity the burst allowance.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, rate: refillPerSec, last: now}
		l.buckets[key] = b
	}
	return b.take(now)
}
