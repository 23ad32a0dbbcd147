// Package pricing computes what a customer owes for a seat set.  The
// engine is pure: the same inputs always give the same Quote, which is
// what lets checkout recompute the amount from trusted state when the
// payment callback arrives.
package pricing

import (
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

var (
	ErrInvalidPrice     = errors.New("base price must be positive")
	ErrInvalidSeatCount = errors.New("seat count must be positive")
	ErrUnknownTier      = errors.New("unknown membership tier")
	ErrInvalidPercent   = errors.New("discount percent must be within 0..100")
)

// Quote is the price breakdown in minor currency units.
type Quote struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// TierTable maps each tier to its discount percentage.  It is the only
// place discount rates live.
type TierTable map[model.Tier]int64

// Engine prices seat sets against a fixed TierTable.
type Engine struct {
	tiers TierTable
}

// NewEngine validates the table and copies it so later mutation of the
// caller's map cannot change prices.  TierNone is always present at 0%.
func NewEngine(tiers TierTable) (*Engine, error) {
	t := make(TierTable, len(tiers)+1)
	t[model.TierNone] = 0
	for tier, pct := range tiers {
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("%s: %w", tier, ErrInvalidPercent)
		}
		t[tier] = pct
	}
	return &Engine{tiers: t}, nil
}

// DiscountPercent returns the configured percentage for tier.
func (e *Engine) DiscountPercent(tier model.Tier) (int64, bool) {
	pct, ok := e.tiers[tier]
	return pct, ok
}

// Compute returns subtotal, discount and total.  The discount is rounded
// half up exactly once.
func (e *Engine) Compute(basePrice, seatCount int64, tier model.Tier) (Quote, error) {
	if basePrice <= 0 {
		return Quote{}, ErrInvalidPrice
	}
	if seatCount <= 0 {
		return Quote{}, ErrInvalidSeatCount
	}
	pct, ok := e.tiers[tier]
	if !ok {
		return Quote{}, fmt.Errorf("%q: %w", tier, ErrUnknownTier)
	}
	subtotal := basePrice * seatCount
	discount := (subtotal*pct + 50) / 100
	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	return Quote{Subtotal: subtotal, Discount: discount, Total: total}, nil
}
