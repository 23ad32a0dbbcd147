// Package repository contains the MySQL data access of the checkout core.
// The shows table belongs to the catalog collaborator and is read-only
// here; show_seats, bookings and unfulfilled_payments are owned by this
// service.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// ShowRepo reads shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// GetByID retrieves a show by its ID.  It returns model.ErrShowNotFound
// if there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (model.Show, error) {
	const q = `SELECT id, movie_id, movie_title, starts_at, base_price_minor, status FROM shows WHERE id = ?`
	var s model.Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.MovieID, &s.MovieTitle, &s.StartsAt, &s.BasePriceMinor, &s.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Show{}, model.ErrShowNotFound
		}
		return model.Show{}, err
	}
	s.StartsAt = s.StartsAt.UTC()
	return s, nil
}
