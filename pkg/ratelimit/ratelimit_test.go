package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestLimiter_BurstThenReject(t *testing.T) {
	_, rdb := newMiniRedis(t)
	l := New(rdb, "test", 6, 2)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}
	ok, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys have their own bucket
	ok, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_Refills(t *testing.T) {
	_, rdb := newMiniRedis(t)
	l := New(rdb, "test", 60, 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	now = now.Add(1100 * time.Millisecond)
	ok, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_DisabledAlwaysAllows(t *testing.T) {
	l := New(nil, "", 0, 0)
	ok, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)

	var nilLimiter *Limiter
	ok, err = nilLimiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_RedisDownReturnsError(t *testing.T) {
	s, rdb := newMiniRedis(t)
	l := New(rdb, "test", 60, 1)
	s.Close()
	_, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
}
