package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

func TestSweeper_ReleasesExpiredHolds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clk := newFakeClock()
	svc := NewService(store, DefaultLayout, WithClock(clk.Now), WithHoldTTL(time.Minute))

	_, err := svc.ReserveForPayment(ctx, 3, []string{"B5"}, "alice")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	sw := NewSweeper(svc, 5*time.Millisecond, nil)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sw.Run(runCtx) }()

	assert.Eventually(t, func() bool {
		slots, err := store.Slots(ctx, 3, []string{"B5"})
		return err == nil && len(slots) == 1 && slots[0].State == model.SeatFree
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
