package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client, mr
}

func TestDedup_SetIfAbsent(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewDedup(client)
	ctx := context.Background()

	ok, err := d.SetIfAbsent(ctx, "webhook-event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "first write should win")

	ok, err = d.SetIfAbsent(ctx, "webhook-event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second write should lose")

	assert.Equal(t, time.Hour, mr.TTL("webhook-event:evt_1"))
}

func TestDedup_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewDedup(client)
	ctx := context.Background()

	ok, err := d.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = d.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "key should be claimable again after the TTL")
}

func TestDedup_Forget(t *testing.T) {
	client, _ := setupTestRedis(t)
	d := NewDedup(client)
	ctx := context.Background()

	_, err := d.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, d.Forget(ctx, "k"))

	ok, err := d.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDedup_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	client, _ := setupTestRedis(t)
	d := NewDedup(client)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.SetIfAbsent(ctx, "race", time.Minute)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestDedup_NilClient(t *testing.T) {
	d := NewDedup(nil)
	_, err := d.SetIfAbsent(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrNoClient)
	assert.ErrorIs(t, d.Forget(context.Background(), "k"), ErrNoClient)
}

func TestDedup_StoreDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	d := NewDedup(client)
	mr.Close()

	_, err = d.SetIfAbsent(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
