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

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	_, client := setupTestRedis(t)
	rl := NewWithClient(client, 3, time.Minute).(*redisRateLimiter)

	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "140.82.115.10")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i)
	}

	ok, err := rl.Allow(ctx, "140.82.115.10")
	require.NoError(t, err)
	assert.False(t, ok, "fourth request in window is limited")

	ok, err = rl.Allow(ctx, "192.30.252.1")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	clock = clock.Add(time.Minute + time.Second)
	ok, err = rl.Allow(ctx, "140.82.115.10")
	require.NoError(t, err)
	assert.True(t, ok, "window slides")
}

func TestRedisRateLimiter_SetsExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	rl := NewWithClient(client, 5, 30*time.Second)

	_, err := rl.Allow(context.Background(), "k")
	require.NoError(t, err)

	assert.True(t, mr.Exists("ratelimit:webhook:k"))
	assert.Equal(t, 30*time.Second, mr.TTL("ratelimit:webhook:k"))
}

func TestRedisRateLimiter_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	rl := NewWithClient(client, 5, time.Minute)
	mr.Close()

	ok, err := rl.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)

	rl, err := NewRedisRateLimiter(context.Background(), "redis://"+mr.Addr()+"/0", 1, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, rl.Close())

	_, err = NewRedisRateLimiter(context.Background(), "::not a url", 1, time.Minute)
	assert.Error(t, err)
}

func TestNoOpRateLimiter(t *testing.T) {
	var rl RateLimiter = NoOpRateLimiter{}
	for i := 0; i < 100; i++ {
		ok, err := rl.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, rl.Close())
}
