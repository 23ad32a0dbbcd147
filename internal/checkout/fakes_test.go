package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/payment"
	"github.com/iliyamo/cinema-seat-checkout/internal/pricing"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
	"github.com/iliyamo/cinema-seat-checkout/internal/reservation"
)

const testSecret = "test_key_secret"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeShows struct {
	mu    sync.Mutex
	shows map[uint64]model.Show
}

func (f *fakeShows) GetByID(_ context.Context, id uint64) (model.Show, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shows[id]
	if !ok {
		return model.Show{}, model.ErrShowNotFound
	}
	return s, nil
}

func (f *fakeShows) put(s model.Show) {
	f.mu.Lock()
	f.shows[s.ID] = s
	f.mu.Unlock()
}

type fakeMembers struct {
	mu sync.Mutex
	m  map[uint64]model.Membership
}

func (f *fakeMembers) Get(_ context.Context, userID uint64) (model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.m[userID]; ok {
		return m, nil
	}
	return model.Membership{UserID: userID, Tier: model.TierNone}, nil
}

func (f *fakeMembers) set(userID uint64, tier model.Tier, until time.Time) {
	f.mu.Lock()
	f.m[userID] = model.Membership{UserID: userID, Tier: tier, ExpiresAt: &until}
	f.mu.Unlock()
}

type memLedger struct {
	mu          sync.Mutex
	nextID      uint64
	byPayment   map[string]model.Booking
	unfulfilled []model.UnfulfilledPayment
	createErr   error
	failCreates int // fail this many creates with createErr, 0 means always
}

func (l *memLedger) Create(_ context.Context, b *model.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		err := l.createErr
		if l.failCreates > 0 {
			l.failCreates--
			if l.failCreates == 0 {
				l.createErr = nil
			}
		}
		return err
	}
	if _, ok := l.byPayment[b.PaymentID]; ok {
		return fmt.Errorf("duplicate payment %s", b.PaymentID)
	}
	l.nextID++
	b.ID = l.nextID
	b.CreatedAt = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	l.byPayment[b.PaymentID] = *b
	return nil
}

func (l *memLedger) GetByPaymentID(_ context.Context, paymentID string) (model.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.byPayment[paymentID]
	if !ok {
		return model.Booking{}, model.ErrBookingNotFound
	}
	return b, nil
}

func (l *memLedger) RecordUnfulfilled(_ context.Context, u *model.UnfulfilledPayment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u.ID = uint64(len(l.unfulfilled) + 1)
	l.unfulfilled = append(l.unfulfilled, *u)
	return nil
}

func (l *memLedger) bookings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byPayment)
}

// flakyStore fails the first failCommits commits with a driver error.
type flakyStore struct {
	*reservation.MemoryStore
	mu          sync.Mutex
	failCommits int
}

func (f *flakyStore) Commit(ctx context.Context, showID uint64, labels []string, holder, bookingRef string, now time.Time) (bool, error) {
	f.mu.Lock()
	fail := f.failCommits > 0
	if fail {
		f.failCommits--
	}
	f.mu.Unlock()
	if fail {
		return false, errors.New("driver: bad connection")
	}
	return f.MemoryStore.Commit(ctx, showID, labels, holder, bookingRef, now)
}

type fakeGateway struct {
	mu      sync.Mutex
	seq     int
	orders  map[string]payment.Order
	fail    error
	creates int
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	if g.fail != nil {
		return payment.Order{}, g.fail
	}
	g.seq++
	o := payment.Order{
		ID:          fmt.Sprintf("order_%d", g.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, id string) (payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return payment.Order{}, fmt.Errorf("order %s: %w", id, model.ErrGatewayUnavailable)
	}
	return o, nil
}

func (g *fakeGateway) createCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates
}

type recPublisher struct {
	mu          sync.Mutex
	confirmed   []queue.BookingConfirmedEvent
	unfulfilled []queue.PaymentUnfulfilledEvent
}

func (p *recPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, ev)
	return nil
}

func (p *recPublisher) PublishPaymentUnfulfilled(_ context.Context, ev queue.PaymentUnfulfilledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unfulfilled = append(p.unfulfilled, ev)
	return nil
}

type harness struct {
	svc     *Service
	seats   *reservation.Service
	clock   *fakeClock
	shows   *fakeShows
	members *fakeMembers
	ledger  *memLedger
	gateway *fakeGateway
	pub     *recPublisher
}

var showStart = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, reservation.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, store reservation.Store) *harness {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	seats := reservation.NewService(store, reservation.DefaultLayout,
		reservation.WithClock(clk.Now), reservation.WithHoldTTL(10*time.Minute))
	engine, err := pricing.NewEngine(pricing.TierTable{model.TierSilver: 10, model.TierGold: 15})
	require.NoError(t, err)

	h := &harness{
		seats:   seats,
		clock:   clk,
		shows:   &fakeShows{shows: map[uint64]model.Show{}},
		members: &fakeMembers{m: map[uint64]model.Membership{}},
		ledger:  &memLedger{byPayment: map[string]model.Booking{}},
		gateway: &fakeGateway{orders: map[string]payment.Order{}},
		pub:     &recPublisher{},
	}
	h.shows.put(model.Show{ID: 1, MovieID: "tt2543164", MovieTitle: "Arrival", StartsAt: showStart, BasePriceMinor: 500, Status: model.ShowScheduled})

	h.svc = NewService(Deps{
		Seats:       seats,
		Pricing:     engine,
		Gateway:     h.gateway,
		Verifier:    payment.NewVerifier(testSecret),
		Shows:       h.shows,
		Memberships: h.members,
		Ledger:      h.ledger,
		Publisher:   h.pub,
	},
		WithClock(clk.Now),
		WithKeyID("rzp_test_key"),
		WithRefGenerator(func(paymentID string) string { return "BK-" + paymentID }),
	)
	return h
}

// pay simulates the gateway callback for an order.
func pay(orderID, paymentID string) FinalizeRequest {
	return FinalizeRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: payment.Signature(orderID, paymentID, testSecret),
	}
}

// paymentLockEntries reports how many payment ids have a lock entry.
func (s *Service) paymentLockEntries() int {
	s.payMu.Lock()
	defer s.payMu.Unlock()
	return len(s.payLocks)
}
