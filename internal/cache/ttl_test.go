package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewTTLCacheWithNow[string, int](func() time.Time { return now })

	cache.Set("a", 1, time.Minute)

	got, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, got)

	now = now.Add(time.Minute + time.Second)
	_, ok = cache.Get("a")
	require.False(t, ok)
	require.Zero(t, cache.Len())
}

func TestTTLCacheSetEvictsStaleEntries(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewTTLCacheWithNow[string, int](func() time.Time { return now })

	cache.Set("stale", 1, time.Second)
	now = now.Add(time.Minute)
	cache.Set("fresh", 2, time.Minute)

	require.Equal(t, 1, cache.Len())
	_, ok := cache.Get("stale")
	require.False(t, ok)
}

func TestTTLCacheDeleteAndOverwrite(t *testing.T) {
	cache := NewTTLCache[string, string]()

	cache.Set("k", "v1", time.Minute)
	cache.Set("k", "v2", time.Minute)

	got, ok := cache.Get("k")
	require.True(t, ok)
	require.Equal(t, "v2", got)

	cache.Delete("k")
	_, ok = cache.Get("k")
	require.False(t, ok)
}

func TestTTLCacheIgnoresNonPositiveTTL(t *testing.T) {
	cache := NewTTLCache[string, int]()

	cache.Set("k", 1, 0)
	_, ok := cache.Get("k")
	require.False(t, ok)
}
