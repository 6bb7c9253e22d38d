package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/dropzone-client/securestore"
	"github.com/jrsteele09/dropzone-client/securestore/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := redisstore.New(rdb, "device-1")

	_, ok, err := s.Get(ctx, securestore.KeyAuthToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, securestore.KeyAuthToken, "tok"))
	require.True(t, mr.Exists("device-1:auth_token"))

	v, ok, err := s.Get(ctx, securestore.KeyAuthToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", v)

	require.NoError(t, s.Remove(ctx, securestore.KeyAuthToken))
	require.NoError(t, s.Remove(ctx, securestore.KeyAuthToken))
	require.False(t, mr.Exists("device-1:auth_token"))
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := redisstore.New(rdb, "device-1", redisstore.WithTTL(time.Minute))

	require.NoError(t, s.Set(ctx, securestore.KeyRefreshToken, "r"))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, securestore.KeyRefreshToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ErrorWhenServerDown(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s := redisstore.New(rdb, "device-1")
	mr.Close()

	_, _, err = s.Get(ctx, securestore.KeyUserData)
	require.Error(t, err)
}
