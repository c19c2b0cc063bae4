package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisKV(client)
}

func exerciseKV(t *testing.T, kv KV) {
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "k", "v1", time.Minute))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	ok, err := kv.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = kv.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Del(ctx, "k", "lock"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	ok, err = kv.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := kv.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = kv.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	got, err = kv.Get(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	require.NoError(t, kv.Set(ctx, "text", "abc", time.Minute))
	_, err = kv.Incr(ctx, "text")
	assert.Error(t, err)
}

func TestRedisKV(t *testing.T) {
	_, kv := setupTestRedis(t)
	exerciseKV(t, kv)
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestRedisKV_TTLExpires(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryKV_TTLExpires(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	ok, err := kv.SetNX(ctx, "lock", "1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)

	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	ok, err = kv.SetNX(ctx, "lock", "1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
