package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryCacheSetGet(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))

	var got string
	require.NoError(t, mc.Get(ctx, "k", &got))
	require.Equal(t, "v", got)
}

func TestMemoryCacheGetStructDest(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := payload{Name: "alpha", Score: 0.93}
	require.NoError(t, mc.Set(ctx, "k", &in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "k", &out))
	require.Equal(t, in, out)
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var got string
	err := mc.Get(context.Background(), "missing", &got)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiration(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	var got string
	require.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	var got string
	require.ErrorIs(t, mc.Get(ctx, "a", &got), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "c", &got))
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGenerateKey(t *testing.T) {
	require.Equal(t, "predict:abc", GenerateKey("predict", "abc"))
	require.Equal(t, "panel:10:5", GenerateKeyWithParams("panel", 10, 5))
}
