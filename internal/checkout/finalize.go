package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
)

// FinalizeRequest is the gateway callback relayed by the browser together
// with the seats of the checkout.
type FinalizeRequest struct {
	UserID       uint64
	ShowID       uint64
	Seats        []string
	OrderID      string
	PaymentID    string
	Signature    string
	ClientAmount int64
}

// Finalize turns a verified payment into a booking.
//
// A bad signature fails with model.ErrPaymentVerificationFailed and
// changes nothing.  A payment id that already produced a booking returns
// that booking.  Otherwise the show and the user's live membership are
// reloaded, the total is recomputed and compared with what the gateway
// order charged, the held seats are committed and the booking is written.
// When the payment cannot be turned into a booking a reconciliation
// record is written and the error wraps model.ErrBookingUnfulfilled.
// Transient store or ledger failures wrap model.ErrTemporary instead and
// flag nothing; the same callback can be retried.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (model.Booking, error) {
	if !s.verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		s.log.Warn("payment signature rejected, possible tampering",
			zap.Uint64("user_id", req.UserID),
			zap.Uint64("show_id", req.ShowID),
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID))
		return model.Booking{}, model.ErrPaymentVerificationFailed
	}

	unlock := s.lockPayment(req.PaymentID)
	defer unlock()

	if b, ok, err := s.existing(ctx, req); ok || err != nil {
		return b, err
	}

	seats, err := s.seats.Normalize(req.Seats)
	if err != nil {
		return model.Booking{}, err
	}
	now := s.now()
	show, err := s.shows.GetByID(ctx, req.ShowID)
	if err != nil {
		if errors.Is(err, model.ErrShowNotFound) {
			return model.Booking{}, s.unfulfilled(ctx, req, seats, 0, err)
		}
		return model.Booking{}, err
	}
	tier, err := s.tier(ctx, req.UserID, now)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load membership: %w", err)
	}
	quote, err := s.pricing.Compute(show.BasePriceMinor, int64(len(seats)), tier)
	if err != nil {
		return model.Booking{}, fmt.Errorf("price show %d: %w", show.ID, err)
	}
	if req.ClientAmount != 0 && req.ClientAmount != quote.Total {
		s.log.Warn("client amount ignored",
			zap.Uint64("user_id", req.UserID),
			zap.String("payment_id", req.PaymentID),
			zap.Int64("client_amount", req.ClientAmount),
			zap.Int64("server_amount", quote.Total))
	}

	order, err := s.gateway.FetchOrder(ctx, req.OrderID)
	if err != nil {
		return model.Booking{}, err
	}
	if order.AmountMinor != quote.Total || !strings.EqualFold(order.Currency, s.currency) {
		s.log.Error("paid amount differs from recomputed total",
			zap.String("order_id", order.ID),
			zap.String("payment_id", req.PaymentID),
			zap.Int64("paid", order.AmountMinor),
			zap.String("paid_currency", order.Currency),
			zap.Int64("owed", quote.Total),
			zap.Strings("seats", seats))
		cause := fmt.Errorf("order %s paid %d %s, owed %d %s: %w",
			order.ID, order.AmountMinor, order.Currency, quote.Total, s.currency, model.ErrAmountMismatch)
		return model.Booking{}, s.unfulfilled(ctx, req, seats, order.AmountMinor, cause)
	}

	// The reference is derived from the payment, so a callback retried after
	// a transient failure finds its seats already committed under it.
	ref := s.newRef(req.PaymentID)
	if err := s.seats.Commit(ctx, show.ID, seats, HolderFor(req.UserID), ref); err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			return model.Booking{}, s.unfulfilled(ctx, req, seats, order.AmountMinor, err)
		}
		s.log.Warn("commit seats failed, callback can be retried",
			zap.String("payment_id", req.PaymentID), zap.Error(err))
		return model.Booking{}, fmt.Errorf("%w: %w", model.ErrTemporary, err)
	}

	b := model.Booking{
		Ref:         ref,
		UserID:      req.UserID,
		ShowID:      show.ID,
		Seats:       seats,
		AmountMinor: quote.Total,
		Currency:    s.currency,
		Paid:        true,
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
	}
	if err := s.ledger.Create(ctx, &b); err != nil {
		if prev, ok, _ := s.existing(ctx, req); ok {
			return prev, nil
		}
		if errors.Is(err, model.ErrInvalidState) {
			return model.Booking{}, s.unfulfilled(ctx, req, seats, order.AmountMinor, fmt.Errorf("write booking: %w", err))
		}
		// Seats stay committed under ref until the retried callback writes
		// the booking.
		s.log.Warn("write booking failed, callback can be retried",
			zap.String("payment_id", req.PaymentID), zap.String("ref", ref), zap.Error(err))
		return model.Booking{}, fmt.Errorf("%w: write booking: %w", model.ErrTemporary, err)
	}

	s.log.Info("booking confirmed",
		zap.Uint64("booking_id", b.ID),
		zap.String("ref", b.Ref),
		zap.Uint64("user_id", b.UserID),
		zap.Uint64("show_id", b.ShowID),
		zap.Strings("seats", b.Seats),
		zap.Int64("amount", b.AmountMinor))

	if s.pub != nil {
		dctx, cancel := detached(ctx)
		defer cancel()
		ev := queue.BookingConfirmedEvent{
			BookingID:   b.ID,
			BookingRef:  b.Ref,
			UserID:      b.UserID,
			ShowID:      b.ShowID,
			MovieTitle:  show.MovieTitle,
			StartsAt:    show.StartsAt.UTC().Format(time.RFC3339),
			Seats:       b.Seats,
			AmountMinor: b.AmountMinor,
			Currency:    b.Currency,
			PaymentID:   b.PaymentID,
			ConfirmedAt: s.now().Format(time.RFC3339),
		}
		if err := s.pub.PublishBookingConfirmed(dctx, ev); err != nil {
			s.log.Warn("publish booking.confirmed failed", zap.String("ref", b.Ref), zap.Error(err))
		}
	}
	return b, nil
}

// existing looks up a booking already written for the payment.  A booking
// that belongs to a different user is a replayed callback and is rejected.
func (s *Service) existing(ctx context.Context, req FinalizeRequest) (model.Booking, bool, error) {
	b, err := s.ledger.GetByPaymentID(ctx, req.PaymentID)
	if errors.Is(err, model.ErrBookingNotFound) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, fmt.Errorf("look up payment %s: %w", req.PaymentID, err)
	}
	if b.UserID != req.UserID || b.OrderID != req.OrderID {
		s.log.Warn("payment replayed by another user or order",
			zap.String("payment_id", req.PaymentID),
			zap.Uint64("user_id", req.UserID),
			zap.Uint64("booking_user_id", b.UserID))
		return model.Booking{}, false, model.ErrPaymentVerificationFailed
	}
	s.log.Info("duplicate payment callback", zap.String("payment_id", req.PaymentID), zap.String("ref", b.Ref))
	return b, true, nil
}

// unfulfilled records a captured payment that produced no booking and
// returns an error wrapping both model.ErrBookingUnfulfilled and cause.
func (s *Service) unfulfilled(ctx context.Context, req FinalizeRequest, seats []string, paid int64, cause error) error {
	u := model.UnfulfilledPayment{
		UserID:      req.UserID,
		ShowID:      req.ShowID,
		Seats:       seats,
		AmountMinor: paid,
		Currency:    s.currency,
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
		Reason:      truncate(cause.Error(), 255),
		CreatedAt:   s.now(),
	}
	fields := []zap.Field{
		zap.Uint64("user_id", u.UserID),
		zap.Uint64("show_id", u.ShowID),
		zap.Strings("seats", u.Seats),
		zap.Int64("paid", u.AmountMinor),
		zap.String("order_id", u.OrderID),
		zap.String("payment_id", u.PaymentID),
		zap.Error(cause),
	}
	s.log.Error("payment captured but booking not fulfilled", fields...)

	dctx, cancel := detached(ctx)
	defer cancel()
	if err := s.ledger.RecordUnfulfilled(dctx, &u); err != nil {
		s.log.Error("record unfulfilled payment failed", append(fields, zap.NamedError("record_error", err))...)
	}
	if s.pub != nil {
		ev := queue.PaymentUnfulfilledEvent{
			UserID:      u.UserID,
			ShowID:      u.ShowID,
			Seats:       u.Seats,
			AmountMinor: u.AmountMinor,
			Currency:    u.Currency,
			OrderID:     u.OrderID,
			PaymentID:   u.PaymentID,
			Reason:      u.Reason,
			RecordedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := s.pub.PublishPaymentUnfulfilled(dctx, ev); err != nil {
			s.log.Warn("publish payment.unfulfilled failed", zap.String("payment_id", u.PaymentID), zap.Error(err))
		}
	}
	return fmt.Errorf("%w: %w", model.ErrBookingUnfulfilled, cause)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
