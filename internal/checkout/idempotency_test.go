package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisIdempotency(t *testing.T) (*RedisIdempotency, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisIdempotency(rdb, "test"), mr
}

func TestRedisIdempotency_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisIdempotency(t)

	cached, err := store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.True(t, mr.Exists("test:k"))

	_, err = store.Begin(ctx, "k", "fp")
	assert.ErrorIs(t, err, ErrRequestInProgress)

	require.NoError(t, store.Complete(ctx, "k", Checkout{OrderID: "order_1", AmountMinor: 850}, time.Minute))
	cached, err = store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "order_1", cached.OrderID)

	_, err = store.Begin(ctx, "k", "other")
	assert.ErrorIs(t, err, ErrIdempotencyKeyReused)

	mr.FastForward(2 * time.Minute)
	cached, err = store.Begin(ctx, "k", "other")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisIdempotency_AbortReleasesKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisIdempotency(t)

	_, err := store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	require.NoError(t, store.Abort(ctx, "k"))
	cached, err := store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisIdempotency_ProcessingClaimExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisIdempotency(t)

	_, err := store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	mr.FastForward(processingTTL + time.Second)
	cached, err := store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestMemoryIdempotency(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	store := NewMemoryIdempotency(clk.Now)

	cached, err := store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	assert.Nil(t, cached)
	_, err = store.Begin(ctx, "k", "fp")
	assert.ErrorIs(t, err, ErrRequestInProgress)

	require.NoError(t, store.Complete(ctx, "k", Checkout{OrderID: "order_1"}, time.Minute))
	cached, err = store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	assert.Equal(t, "order_1", cached.OrderID)

	clk.Advance(2 * time.Minute)
	cached, err = store.Begin(ctx, "k", "fp")
	require.NoError(t, err)
	assert.Nil(t, cached)

	assert.Error(t, store.Complete(ctx, "missing", Checkout{}, time.Minute))
}

func TestStartWithRedisIdempotency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	store, _ := newRedisIdempotency(t)
	h.svc.idem = store

	req := StartRequest{UserID: 7, ShowID: 1, Seats: []string{"A1"}, IdempotencyKey: "retry-1"}
	first, err := h.svc.Start(ctx, req)
	require.NoError(t, err)
	second, err := h.svc.Start(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.HoldExpiresAt.Unix(), second.HoldExpiresAt.Unix())
	assert.Equal(t, 1, h.gateway.createCalls())
}
