package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBadgerCacheGetSetDelete(t *testing.T) {
	c, err := NewBadger(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

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

func TestBadgerCacheClear(t *testing.T) {
	c, err := NewBadger(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", []byte("1"), time.Minute)
	c.Clear()

	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestBadgerCacheNoTTLPersists(t *testing.T) {
	c, err := NewBadger(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	c.Set("key", []byte("value"), 0)
	value, ok := c.Get("key")
	require.True(t, ok)
	require.Equal(t, []byte("value"), value)
}
