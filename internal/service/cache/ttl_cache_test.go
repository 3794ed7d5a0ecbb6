package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 0)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 10*time.Millisecond)

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestTTLCacheBytes(t *testing.T) {
	c := NewTTLCache()
	require.NoError(t, c.SetBytes("k", []byte("payload"), 0))

	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), b)

	_, ok, err = c.GetBytes("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTTLCacheBytesTypeMismatch(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", 42, 0)

	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	require.False(t, ok)
}
