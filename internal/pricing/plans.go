package pricing

import "github.com/iliyamo/cinema-seat-checkout/internal/model"

// Plan is a purchasable membership plan as shown to customers.
type Plan struct {
	Tier            model.Tier `json:"tier"`
	Name            string     `json:"name"`
	PriceMinor      int64      `json:"price"`
	DurationMonths  int        `json:"duration_months"`
	DiscountPercent int64      `json:"discount_percent"`
}

var catalog = []Plan{
	{Tier: model.TierSilver, Name: "Silver", PriceMinor: 19900, DurationMonths: 1},
	{Tier: model.TierGold, Name: "Gold", PriceMinor: 49900, DurationMonths: 2},
}

// Plans lists the membership plans with discounts taken from the
// engine's table, so the advertised rate is the rate charged.
func (e *Engine) Plans() []Plan {
	out := make([]Plan, 0, len(catalog))
	for _, p := range catalog {
		p.DiscountPercent, _ = e.DiscountPercent(p.Tier)
		out = append(out, p)
	}
	return out
}
