package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSetDelete(t *testing.T) {
	c := NewMemory(0)

	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Set("key", []byte("value"), time.Minute)
	value, ok := c.Get("key")
	require.True(t, ok)
	require.Equal(t, []byte("value"), value)

	c.Delete("key")
	_, ok = c.Get("key")
	require.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory(0)
	c.Set("key", []byte("value"), -time.Second) // already expired

	_, ok := c.Get("key")
	require.False(t, ok)
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemory(0)
	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Clear()

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestMemoryCacheJanitorEvictsExpiredEntries(t *testing.T) {
	mc := NewMemory(10 * time.Millisecond).(*memoryCache)
	defer mc.Close()

	mc.Set("key", []byte("value"), time.Millisecond)
	require.Eventually(t, func() bool {
		mc.mu.RLock()
		_, found := mc.entries["key"]
		mc.mu.RUnlock()
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestNoOpCache(t *testing.T) {
	c := NoOp()
	c.Set("key", []byte("value"), time.Minute)

	_, ok := c.Get("key")
	require.False(t, ok)

	c.Delete("key")
	c.Clear()
	require.NoError(t, c.Close())
}

func TestMemoryCacheCloseIsIdempotent(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
