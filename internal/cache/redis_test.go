package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheGetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedis(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
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

func TestRedisCacheClear(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedis(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", []byte("1"), time.Minute)
	c.Clear()

	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestNewRedisFailsOnBadAddr(t *testing.T) {
	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	require.Error(t, err)
}
