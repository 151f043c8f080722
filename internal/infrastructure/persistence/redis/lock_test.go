package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestLocker_TryLock(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	release, ok, err := locker.TryLock(ctx, "sweeper", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("lock:sweeper"))

	// 锁被持有时再次获取失败
	_, ok, err = locker.TryLock(ctx, "sweeper", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("lock:sweeper"))

	_, ok, err = locker.TryLock(ctx, "sweeper", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ExpiredLockNotReleasedByOldOwner(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	release, ok, err := locker.TryLock(ctx, "sweeper", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// 锁过期后被其他实例获取
	mr.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "sweeper", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// 旧持有者的释放不影响新锁
	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("lock:sweeper"))
}
