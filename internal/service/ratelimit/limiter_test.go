package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterConsumesBucket(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("k", 3, 0))
	}
	require.False(t, l.Allow("k", 3, 0))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()
	require.True(t, l.Allow("a", 1, 0))
	require.False(t, l.Allow("a", 1, 0))
	require.True(t, l.Allow("b", 1, 0))
}

func TestLimiterRefills(t *testing.T) {
	l := New()
	require.True(t, l.Allow("k", 1, 100))
	require.False(t, l.Allow("k", 1, 100))

	time.Sleep(20 * time.Millisecond)
	require.True(t, l.Allow("k", 1, 100))
}
