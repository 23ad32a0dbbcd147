package model

import (
	"strings"
	"time"
)

// Tier is a membership level granting a fixed percentage discount.
type Tier string

const (
	TierNone   Tier = "NONE"
	TierSilver Tier = "SILVER"
	TierGold   Tier = "GOLD"
)

// ParseTier normalizes a stored tier name.  Unknown or empty values map
// to TierNone.
func ParseTier(s string) Tier {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierSilver:
		return TierSilver
	case TierGold:
		return TierGold
	}
	return TierNone
}

// Membership is the read-only membership record supplied by the identity
// collaborator.  A stale Tier may remain stored after ExpiresAt; callers
// must use EffectiveTier.
type Membership struct {
	UserID    uint64     // users.id
	Tier      Tier       // users.membership_type
	StartsAt  *time.Time // users.membership_start (nullable)
	ExpiresAt *time.Time // users.membership_end (nullable)
}

// EffectiveTier evaluates expiry at read time.
func (m Membership) EffectiveTier(now time.Time) Tier {
	if m.Tier == "" || m.Tier == TierNone {
		return TierNone
	}
	if m.ExpiresAt == nil || now.After(*m.ExpiresAt) {
		return TierNone
	}
	if m.StartsAt != nil && now.Before(*m.StartsAt) {
		return TierNone
	}
	return m.Tier
}
