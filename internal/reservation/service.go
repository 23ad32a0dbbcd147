// Package reservation owns the seat map state machine of a show:
// FREE -> HELD -> COMMITTED.  All seat map writes go through Service,
// which serializes mutation per show and relies on the Store's atomic
// conditional writes so two overlapping seat sets can never both win.
package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// DefaultHoldTTL bounds how long an unpaid checkout keeps its seats.
const DefaultHoldTTL = 10 * time.Minute

// Service evaluates and transitions seats of a show's seat map.
type Service struct {
	store   Store
	layout  Layout
	holdTTL time.Duration
	now     func() time.Time
	log     *zap.Logger

	locks       sync.Map // showID -> *sync.Mutex
	provisioned sync.Map // showID -> struct{}
}

// Option customizes a Service.
type Option func(*Service)

// WithHoldTTL overrides DefaultHoldTTL.
func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService builds a Service over store.  It panics on a nil store
// since nothing can work without one.
func NewService(store Store, layout Layout, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to reservation.NewService")
	}
	s := &Service{
		store:   store,
		layout:  layout,
		holdTTL: DefaultHoldTTL,
		now:     func() time.Time { return time.Now().UTC() },
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HoldTTL returns the configured hold duration.
func (s *Service) HoldTTL() time.Duration { return s.holdTTL }

// Normalize validates a requested seat set against the layout.
func (s *Service) Normalize(seats []string) ([]string, error) {
	return s.layout.normalize(seats)
}

func (s *Service) lock(showID uint64) func() {
	v, _ := s.locks.LoadOrStore(showID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ensure provisions the seat map of a show the first time it is touched.
func (s *Service) ensure(ctx context.Context, showID uint64) error {
	if _, ok := s.provisioned.Load(showID); ok {
		return nil
	}
	if err := s.store.EnsureSeats(ctx, showID, s.layout.Labels()); err != nil {
		return fmt.Errorf("provision seat map of show %d: %w", showID, err)
	}
	s.provisioned.Store(showID, struct{}{})
	return nil
}

// CheckAvailability returns the requested seats that are not currently
// free.  It is a preview only and confers no lock.
func (s *Service) CheckAvailability(ctx context.Context, showID uint64, seats []string) ([]string, error) {
	labels, err := s.layout.normalize(seats)
	if err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, showID); err != nil {
		return nil, err
	}
	slots, err := s.store.Slots(ctx, showID, labels)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	return unavailable(labels, slots, "", s.now()), nil
}

// ReserveForPayment holds seats for holder for the hold TTL.  It fails
// with a *model.SeatConflictError when any seat is not free; in that case
// no seat changes state.
func (s *Service) ReserveForPayment(ctx context.Context, showID uint64, seats []string, holder string) (model.Hold, error) {
	if holder == "" {
		return model.Hold{}, fmt.Errorf("empty holder: %w", model.ErrInvalidState)
	}
	labels, err := s.layout.normalize(seats)
	if err != nil {
		return model.Hold{}, err
	}
	if err := s.ensure(ctx, showID); err != nil {
		return model.Hold{}, err
	}

	unlock := s.lock(showID)
	defer unlock()

	now := s.now()
	until := now.Add(s.holdTTL)
	ok, err := s.store.Hold(ctx, showID, labels, holder, now, until)
	if err != nil {
		return model.Hold{}, fmt.Errorf("hold seats: %w", err)
	}
	if !ok {
		slots, err := s.store.Slots(ctx, showID, labels)
		if err != nil {
			return model.Hold{}, fmt.Errorf("load seats: %w", err)
		}
		taken := unavailable(labels, slots, holder, now)
		if len(taken) == 0 {
			// lost a race against another process between write and read
			taken = labels
		}
		return model.Hold{}, &model.SeatConflictError{Seats: taken}
	}
	s.log.Debug("seats held",
		zap.Uint64("show_id", showID),
		zap.Strings("seats", labels),
		zap.String("holder", holder),
		zap.Time("expires_at", until))
	return model.Hold{ShowID: showID, Seats: labels, Holder: holder, ExpiresAt: until}, nil
}

// Commit permanently occupies seats previously held by holder.  It fails
// with model.ErrInvalidState when any seat is no longer held by holder.
// Repeating a commit with the same bookingRef is a no-op success.
func (s *Service) Commit(ctx context.Context, showID uint64, seats []string, holder, bookingRef string) error {
	labels, err := s.layout.normalize(seats)
	if err != nil {
		return err
	}
	if holder == "" || bookingRef == "" {
		return fmt.Errorf("empty holder or booking ref: %w", model.ErrInvalidState)
	}
	if err := s.ensure(ctx, showID); err != nil {
		return err
	}

	unlock := s.lock(showID)
	defer unlock()

	ok, err := s.store.Commit(ctx, showID, labels, holder, bookingRef, s.now())
	if err != nil {
		return fmt.Errorf("commit seats: %w", err)
	}
	if !ok {
		return fmt.Errorf("seats %v of show %d no longer held: %w", labels, showID, model.ErrInvalidState)
	}
	return nil
}

// Release frees every seat of the show held by holder.
func (s *Service) Release(ctx context.Context, showID uint64, holder string) (int, error) {
	unlock := s.lock(showID)
	defer unlock()

	n, err := s.store.Release(ctx, showID, holder)
	if err != nil {
		return 0, fmt.Errorf("release holds: %w", err)
	}
	return n, nil
}

// ReleaseExpiredHolds returns expired holds of every show to FREE.
// Reads already treat expired holds as free, so this only keeps the
// stored map tidy.
func (s *Service) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	n, err := s.store.ReleaseExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	return n, nil
}

// OccupiedSeats lists committed seats only.  Held seats are not exposed
// so another customer's checkout does not leak.
func (s *Service) OccupiedSeats(ctx context.Context, showID uint64) ([]string, error) {
	if err := s.ensure(ctx, showID); err != nil {
		return nil, err
	}
	slots, err := s.store.Slots(ctx, showID, nil)
	if err != nil {
		return nil, fmt.Errorf("load seat map: %w", err)
	}
	out := make([]string, 0)
	for _, sl := range slots {
		if sl.State == model.SeatCommitted {
			out = append(out, sl.Label)
		}
	}
	return out, nil
}

// unavailable returns labels, in request order, whose slot is neither
// free nor held by holder.  Labels without a stored slot are free.
func unavailable(labels []string, slots []model.SeatSlot, holder string, now time.Time) []string {
	byLabel := make(map[string]model.SeatSlot, len(slots))
	for _, sl := range slots {
		byLabel[sl.Label] = sl
	}
	out := make([]string, 0)
	for _, l := range labels {
		sl, ok := byLabel[l]
		if !ok {
			continue
		}
		switch sl.EffectiveState(now) {
		case model.SeatFree:
		case model.SeatHeld:
			if holder == "" || sl.Holder != holder {
				out = append(out, l)
			}
		default:
			out = append(out, l)
		}
	}
	return out
}
