package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// MembershipRepo reads membership columns of the users table.  The
// identity collaborator owns those rows; nothing here writes them.
type MembershipRepo struct{ DB *sql.DB }

func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{DB: db} }

// Get returns the stored membership of a user.  Unknown users and users
// without a membership yield TierNone.  Expiry is not applied here; use
// model.Membership.EffectiveTier.
func (r *MembershipRepo) Get(ctx context.Context, userID uint64) (model.Membership, error) {
	var (
		tier       sql.NullString
		start, end sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT membership_type, membership_start, membership_end FROM users WHERE id=? LIMIT 1",
		userID).Scan(&tier, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Membership{UserID: userID, Tier: model.TierNone}, nil
	}
	if err != nil {
		return model.Membership{}, err
	}
	m := model.Membership{UserID: userID, Tier: model.ParseTier(tier.String)}
	if start.Valid {
		t := start.Time.UTC()
		m.StartsAt = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		m.ExpiresAt = &t
	}
	return m, nil
}
