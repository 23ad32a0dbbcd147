package reservation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically returns expired holds to FREE so abandoned
// checkouts do not starve seats in the stored map.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

// NewSweeper builds a Sweeper; a non-positive interval defaults to 30s.
func NewSweeper(svc *Service, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run sweeps until ctx is cancelled.  Sweep errors are logged, never
// fatal; the next tick retries.
func (w *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.svc.ReleaseExpiredHolds(ctx)
	if err != nil {
		w.log.Warn("hold sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("expired holds released", zap.Int("seats", n))
	}
}
