package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/pricing"
)

// MembershipReader is implemented by *repository.MembershipRepo.
type MembershipReader interface {
	Get(ctx context.Context, userID uint64) (model.Membership, error)
}

// MembershipHandler serves the plan listing and the caller's status.
type MembershipHandler struct {
	Pricing *pricing.Engine
	Members MembershipReader
	Now     func() time.Time
	Log     *zap.Logger
}

func NewMembershipHandler(engine *pricing.Engine, members MembershipReader, log *zap.Logger) *MembershipHandler {
	if engine == nil || members == nil {
		panic("nil dependency passed to NewMembershipHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MembershipHandler{
		Pricing: engine,
		Members: members,
		Now:     func() time.Time { return time.Now().UTC() },
		Log:     log,
	}
}

// Plans handles GET /v1/membership/plans.  The response is public and
// identical for every caller, so the router puts it behind the cache.
func (h *MembershipHandler) Plans(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"plans": h.Pricing.Plans()})
}

// Status handles GET /v1/membership/status.  Expiry is evaluated now; a
// tier left behind after membership_end reads as NONE.
func (h *MembershipHandler) Status(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	m, err := h.Members.Get(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	tier := m.EffectiveTier(h.Now())
	pct, _ := h.Pricing.DiscountPercent(tier)
	resp := echo.Map{
		"is_member":        tier != model.TierNone,
		"tier":             tier,
		"discount_percent": pct,
	}
	if tier != model.TierNone {
		resp["starts_at"] = m.StartsAt
		resp["expires_at"] = m.ExpiresAt
	}
	return c.JSON(http.StatusOK, resp)
}
