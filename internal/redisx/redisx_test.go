package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheRoundTripAndMiss(t *testing.T) {
	mr, rdb := newTestClient(t)
	c := NewCache(rdb)
	ctx := context.Background()

	var out map[string]string
	ok, err := c.GetJSON(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, OrderStatusKey("o1"), map[string]string{"status": "pending"}, time.Minute))
	assert.True(t, mr.Exists("order_status:o1"))

	ok, err = c.GetJSON(ctx, OrderStatusKey("o1"), &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pending", out["status"])

	mr.FastForward(2 * time.Minute)
	ok, err = c.GetJSON(ctx, OrderStatusKey("o1"), &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheDel(t *testing.T) {
	mr, rdb := newTestClient(t)
	c := NewCache(rdb)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", 1, 0))
	require.NoError(t, c.Del(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestCacheRejectsCorruptValue(t *testing.T) {
	mr, rdb := newTestClient(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var out map[string]string
	_, err := NewCache(rdb).GetJSON(context.Background(), "k", &out)
	assert.Error(t, err)
}

func TestLeaseIsExclusiveUntilReleased(t *testing.T) {
	_, rdb := newTestClient(t)
	l := NewLeaser(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "o1", "job-a:1"))
	assert.ErrorIs(t, l.Acquire(ctx, "o1", "job-b:1"), ErrLeaseHeld)

	// A foreign token cannot release someone else's lease.
	require.NoError(t, l.Release(ctx, "o1", "job-b:1"))
	assert.ErrorIs(t, l.Acquire(ctx, "o1", "job-b:1"), ErrLeaseHeld)

	require.NoError(t, l.Release(ctx, "o1", "job-a:1"))
	assert.NoError(t, l.Acquire(ctx, "o1", "job-b:1"))
}

func TestLeaseExpires(t *testing.T) {
	mr, rdb := newTestClient(t)
	l := NewLeaser(rdb, time.Second)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "o1", "job-a:1"))
	mr.FastForward(2 * time.Second)
	assert.NoError(t, l.Acquire(ctx, "o1", "job-b:1"))

	v, err := mr.Get(OrderLeaseKey("o1"))
	require.NoError(t, err)
	assert.Equal(t, "job-b:1", v)
}
