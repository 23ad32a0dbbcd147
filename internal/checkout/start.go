package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/payment"
)

// StartRequest opens a checkout.  ClientAmount is what the browser
// believes the total is; it is logged when it disagrees and otherwise
// ignored.
type StartRequest struct {
	UserID         uint64
	ShowID         uint64
	Seats          []string
	ClientAmount   int64
	IdempotencyKey string
}

// Checkout is what the browser needs to open the gateway widget.
type Checkout struct {
	OrderID       string     `json:"order_id"`
	KeyID         string     `json:"key_id"`
	AmountMinor   int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Subtotal      int64      `json:"subtotal"`
	Discount      int64      `json:"discount"`
	Tier          model.Tier `json:"tier"`
	ShowID        uint64     `json:"show_id"`
	Seats         []string   `json:"seats"`
	Receipt       string     `json:"receipt"`
	HoldExpiresAt time.Time  `json:"hold_expires_at"`
}

// Start holds the seats for the user, prices them and opens a remote order
// for the server-computed total.  When the gateway fails the hold is
// released and the error wraps model.ErrGatewayUnavailable.  A repeated
// start with the same idempotency key returns the first result for as long
// as that result's hold lasts.
func (s *Service) Start(ctx context.Context, req StartRequest) (Checkout, error) {
	seats, err := s.seats.Normalize(req.Seats)
	if err != nil {
		return Checkout{}, err
	}

	key := ""
	if k := strings.TrimSpace(req.IdempotencyKey); k != "" {
		key = "checkout:" + strconv.FormatUint(req.UserID, 10) + ":" + k
		cached, err := s.idem.Begin(ctx, key, fingerprint(req.UserID, req.ShowID, seats))
		if err != nil {
			return Checkout{}, err
		}
		if cached != nil {
			return s.replay(ctx, req.UserID, *cached)
		}
	}

	co, err := s.start(ctx, req, seats)
	if key != "" {
		dctx, cancel := detached(ctx)
		ttl := s.idemTTL
		if left := co.HoldExpiresAt.Sub(s.now()); left < ttl {
			ttl = left
		}
		if err != nil || ttl <= 0 {
			if aerr := s.idem.Abort(dctx, key); aerr != nil {
				s.log.Warn("idempotency abort failed", zap.Error(aerr))
			}
		} else if cerr := s.idem.Complete(dctx, key, co, ttl); cerr != nil {
			s.log.Warn("idempotency complete failed", zap.Error(cerr))
		}
		cancel()
	}
	return co, err
}

// replay returns a cached start only while its seats can still be held by
// the user.  The hold may have been released in the meantime; re-holding
// refreshes it, and seats taken by someone else fail with a conflict.
func (s *Service) replay(ctx context.Context, userID uint64, co Checkout) (Checkout, error) {
	hold, err := s.seats.ReserveForPayment(ctx, co.ShowID, co.Seats, HolderFor(userID))
	if err != nil {
		return Checkout{}, err
	}
	co.HoldExpiresAt = hold.ExpiresAt
	s.log.Info("checkout start replayed", zap.String("order_id", co.OrderID), zap.Uint64("user_id", userID))
	return co, nil
}

func (s *Service) start(ctx context.Context, req StartRequest, seats []string) (Checkout, error) {
	now := s.now()
	show, err := s.shows.GetByID(ctx, req.ShowID)
	if err != nil {
		return Checkout{}, err
	}
	if !show.Bookable(now) {
		return Checkout{}, fmt.Errorf("show %d: %w", show.ID, model.ErrShowClosed)
	}
	tier, err := s.tier(ctx, req.UserID, now)
	if err != nil {
		return Checkout{}, fmt.Errorf("load membership: %w", err)
	}
	quote, err := s.pricing.Compute(show.BasePriceMinor, int64(len(seats)), tier)
	if err != nil {
		return Checkout{}, fmt.Errorf("price show %d: %w", show.ID, err)
	}
	if req.ClientAmount != 0 && req.ClientAmount != quote.Total {
		s.log.Warn("client amount ignored",
			zap.Uint64("user_id", req.UserID),
			zap.Uint64("show_id", show.ID),
			zap.Int64("client_amount", req.ClientAmount),
			zap.Int64("server_amount", quote.Total))
	}

	holder := HolderFor(req.UserID)
	hold, err := s.seats.ReserveForPayment(ctx, show.ID, seats, holder)
	if err != nil {
		return Checkout{}, err
	}

	receipt := uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		AmountMinor: quote.Total,
		Currency:    s.currency,
		Receipt:     receipt,
	})
	if err != nil {
		if errors.Is(err, model.ErrAmountMismatch) {
			s.log.Error("gateway order amount differs from server total",
				zap.Uint64("show_id", show.ID), zap.Int64("amount", quote.Total), zap.Error(err))
		} else {
			s.log.Warn("create order failed", zap.Uint64("show_id", show.ID), zap.Error(err))
		}
		dctx, cancel := detached(ctx)
		if _, rerr := s.seats.Release(dctx, show.ID, holder); rerr != nil {
			s.log.Warn("release hold after gateway failure", zap.Error(rerr))
		}
		cancel()
		return Checkout{}, err
	}

	s.log.Info("checkout started",
		zap.Uint64("user_id", req.UserID),
		zap.Uint64("show_id", show.ID),
		zap.Strings("seats", hold.Seats),
		zap.String("order_id", order.ID),
		zap.Int64("amount", quote.Total),
		zap.String("tier", string(tier)))

	return Checkout{
		OrderID:       order.ID,
		KeyID:         s.keyID,
		AmountMinor:   quote.Total,
		Currency:      s.currency,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		Tier:          tier,
		ShowID:        show.ID,
		Seats:         hold.Seats,
		Receipt:       receipt,
		HoldExpiresAt: hold.ExpiresAt,
	}, nil
}

func fingerprint(userID, showID uint64, seats []string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s", userID, showID, strings.Join(seats, ","))))
	return hex.EncodeToString(sum[:])
}
