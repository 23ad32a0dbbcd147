// Package checkout binds a seat hold to a gateway payment.  Start holds
// seats, prices them and opens a remote order; Finalize authenticates the
// gateway callback, recomputes the amount from trusted state, commits the
// seats and writes the booking.  Client-supplied amounts are never used.
package checkout

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/payment"
	"github.com/iliyamo/cinema-seat-checkout/internal/pricing"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
	"github.com/iliyamo/cinema-seat-checkout/internal/reservation"
)

// ShowReader loads shows from the catalog.
type ShowReader interface {
	GetByID(ctx context.Context, id uint64) (model.Show, error)
}

// MembershipReader loads the stored membership of a user.
type MembershipReader interface {
	Get(ctx context.Context, userID uint64) (model.Membership, error)
}

// Ledger persists bookings and reconciliation records.
type Ledger interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByPaymentID(ctx context.Context, paymentID string) (model.Booking, error)
	RecordUnfulfilled(ctx context.Context, u *model.UnfulfilledPayment) error
}

// Publisher emits checkout events.  Failures never fail a checkout.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
	PublishPaymentUnfulfilled(ctx context.Context, ev queue.PaymentUnfulfilledEvent) error
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Seats       *reservation.Service
	Pricing     *pricing.Engine
	Gateway     payment.OrderGateway
	Verifier    *payment.Verifier
	Shows       ShowReader
	Memberships MembershipReader
	Ledger      Ledger
	Publisher   Publisher        // optional
	Idempotency IdempotencyStore // optional, defaults to process memory
}

// Service orchestrates checkouts.
type Service struct {
	seats    *reservation.Service
	pricing  *pricing.Engine
	gateway  payment.OrderGateway
	verifier *payment.Verifier
	shows    ShowReader
	members  MembershipReader
	ledger   Ledger
	pub      Publisher
	idem     IdempotencyStore

	currency string
	keyID    string
	idemTTL  time.Duration
	now      func() time.Time
	newRef   func(paymentID string) string
	log      *zap.Logger

	payMu    sync.Mutex
	payLocks map[string]*paymentLock
}

type paymentLock struct {
	mu   sync.Mutex
	refs int
}

// refNamespace scopes booking references derived from payment ids.
var refNamespace = uuid.MustParse("6f1d3c1e-8a4b-4f57-9a61-2f0c7b5e9d42")

// BookingRef derives the booking reference of a payment.  It is stable, so
// a retried callback commits seats under the reference it used before.
func BookingRef(paymentID string) string {
	return uuid.NewSHA1(refNamespace, []byte(paymentID)).String()
}

// Option customizes a Service.
type Option func(*Service)

// WithCurrency sets the ISO currency of every order (default INR).
func WithCurrency(c string) Option { return func(s *Service) { s.currency = c } }

// WithKeyID sets the public gateway key returned to the browser checkout.
func WithKeyID(id string) Option { return func(s *Service) { s.keyID = id } }

// WithIdempotencyTTL sets how long a completed start is replayed.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idemTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRefGenerator replaces BookingRef.  f must return the same reference
// for the same payment id.
func WithRefGenerator(f func(paymentID string) string) Option {
	return func(s *Service) {
		if f != nil {
			s.newRef = f
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

// NewService wires a Service.  Seats, Pricing, Gateway, Verifier, Shows,
// Memberships and Ledger are required.
func NewService(d Deps, opts ...Option) *Service {
	if d.Seats == nil || d.Pricing == nil || d.Gateway == nil || d.Verifier == nil ||
		d.Shows == nil || d.Memberships == nil || d.Ledger == nil {
		panic("checkout: missing dependency")
	}
	s := &Service{
		seats:    d.Seats,
		pricing:  d.Pricing,
		gateway:  d.Gateway,
		verifier: d.Verifier,
		shows:    d.Shows,
		members:  d.Memberships,
		ledger:   d.Ledger,
		pub:      d.Publisher,
		idem:     d.Idempotency,
		currency: "INR",
		idemTTL:  15 * time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
		newRef:   BookingRef,
		log:      zap.NewNop(),
		payLocks: make(map[string]*paymentLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idem == nil {
		s.idem = NewMemoryIdempotency(s.now)
	}
	s.log = s.log.Named("checkout")
	return s
}

// HolderFor is the seat-hold owner reference of a user.  Finalize can
// only commit seats the paying user holds.
func HolderFor(userID uint64) string {
	return "user:" + strconv.FormatUint(userID, 10)
}

// tier returns the live effective tier of the user.
func (s *Service) tier(ctx context.Context, userID uint64, now time.Time) (model.Tier, error) {
	m, err := s.members.Get(ctx, userID)
	if err != nil {
		return model.TierNone, err
	}
	return m.EffectiveTier(now), nil
}

// lockPayment serializes callbacks of one payment.  The entry is dropped
// when its last holder or waiter leaves.
func (s *Service) lockPayment(paymentID string) func() {
	s.payMu.Lock()
	l, ok := s.payLocks[paymentID]
	if !ok {
		l = &paymentLock{}
		s.payLocks[paymentID] = l
	}
	l.refs++
	s.payMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.payMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.payLocks, paymentID)
		}
		s.payMu.Unlock()
	}
}

// detached gives best-effort side effects their own deadline so they
// still run when the request context is cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}
