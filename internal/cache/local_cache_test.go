package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache(t *testing.T) {
	t.Run("过期后读取失效", func(t *testing.T) {
		c := NewLocalCache(0, time.Minute)
		current := time.Now()
		c.now = func() time.Time { return current }

		c.Set("k", "v", 0)
		v, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "v", v)

		current = current.Add(2 * time.Minute)
		_, ok = c.Get("k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("容量满时淘汰最早过期的条目", func(t *testing.T) {
		c := NewLocalCache(2, time.Minute)
		c.Set("short", 1, time.Second)
		c.Set("long", 2, time.Hour)
		c.Set("new", 3, time.Hour)

		assert.Equal(t, 2, c.Len())
		_, ok := c.Get("short")
		assert.False(t, ok)
		_, ok = c.Get("long")
		assert.True(t, ok)
	})

	t.Run("覆盖已有键不触发淘汰", func(t *testing.T) {
		c := NewLocalCache(1, time.Minute)
		c.Set("k", 1, 0)
		c.Set("k", 2, 0)
		v, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("清理循环随 ctx 退出", func(t *testing.T) {
		c := NewLocalCache(0, time.Millisecond)
		c.Set("k", 1, time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- c.Run(ctx, 5*time.Millisecond) }()

		assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestSessionRevocations(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRevocations(NewLocalCache(100, time.Hour))

	revoked, err := r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "abc", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	// 已过期的会话无需记录
	require.NoError(t, r.Revoke(ctx, "old", time.Now().Add(-time.Minute)))
	revoked, _ = r.IsRevoked(ctx, "old")
	assert.False(t, revoked)
}
