package slotlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, "test"), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()
	key := Key("pro-1", "", "2026-03-02", "10:00")

	release, ok, err := locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("test:pro-1:-:2026-03-02:10:00"))

	_, ok, err = locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	require.False(t, mr.Exists("test:pro-1:-:2026-03-02:10:00"))

	_, ok, err = locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLockExpires(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStaleReleaseKeepsNewHolder(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	staleRelease, ok, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	staleRelease()
	require.True(t, mr.Exists("test:k"), "stale holder must not delete the new lock")
}
