package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/promptbattle/internal/config"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisLocker(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	l := NewRedisLocker(rdb)

	release, ok, err := l.Acquire(ctx, "judge:room-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "judge:room-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	release()
	_, ok, err = l.Acquire(ctx, "judge:room-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = l.Acquire(ctx, "judge:room-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken")
}

func TestRedisLockerStaleRelease(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	l := NewRedisLocker(rdb)

	release, ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the first holder's release must not free the new holder's lock
	release()
	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	now := time.Now()
	l.clock = func() time.Time { return now }

	release, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok)

	release()
	release2, ok, _ := l.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok, "expired lock can be taken")
	release2()
	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok, "stale release is ignored")
}

func TestLeaderboardCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	lb := NewLeaderboard(rdb, time.Minute)

	_, ok, err := lb.Get(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	profiles := []models.Profile{{ID: "a", Username: "alice", Wins: 3}, {ID: "b", Username: "bob", Wins: 1}}
	require.NoError(t, lb.Set(ctx, 10, profiles))

	got, ok, err := lb.Get(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, 3, got[0].Wins)

	_, ok, _ = lb.Get(ctx, 5)
	assert.False(t, ok, "limits are cached separately")

	require.NoError(t, lb.Invalidate(ctx))
	_, ok, _ = lb.Get(ctx, 10)
	assert.False(t, ok)

	require.NoError(t, lb.Set(ctx, 10, profiles))
	mr.FastForward(2 * time.Minute)
	_, ok, _ = lb.Get(ctx, 10)
	assert.False(t, ok, "entries expire")
}

func TestRateLimiter(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	rl := NewRateLimiter(rdb, 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are counted separately")

	mr.FastForward(2 * time.Minute)
	ok, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "window resets")
}
