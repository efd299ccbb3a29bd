package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	repo := NewTokenRepository(rdb, time.Minute)

	_, err = repo.GetUserToken(ctx, 7)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, repo.AddUserToken(ctx, 7, "tok"))
	got, err := repo.GetUserToken(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	mr.FastForward(50 * time.Second)
	require.NoError(t, repo.ExtendUserToken(ctx, 7))
	mr.FastForward(50 * time.Second)
	_, err = repo.GetUserToken(ctx, 7)
	assert.NoError(t, err, "extend should push expiry forward")

	require.NoError(t, repo.DeleteUserToken(ctx, 7))
	_, err = repo.GetUserToken(ctx, 7)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestLikeCountCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	cache := NewLikeCacheRepository(rdb)

	_, ok, err := cache.GetLikeCountCached(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetLikeCount(ctx, 1, 5))
	v, ok, err := cache.GetLikeCountCached(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 5, v)

	require.NoError(t, cache.DeleteCount(ctx, 1))
	_, ok, err = cache.GetLikeCountCached(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDistLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	lock := &DistLock{RDB: rdb}

	got, err := lock.Acquire(ctx, 9, "a")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = lock.Acquire(ctx, 9, "b")
	require.NoError(t, err)
	assert.False(t, got)

	// 其他持有者不能释放
	require.NoError(t, lock.Release(ctx, 9, "b"))
	assert.True(t, mr.Exists(lockKey(9)))

	require.NoError(t, lock.Release(ctx, 9, "a"))
	assert.False(t, mr.Exists(lockKey(9)))
}
