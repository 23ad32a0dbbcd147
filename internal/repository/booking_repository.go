package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// BookingRepo is the booking ledger.  Bookings are written once and never
// updated.  Each booked seat also gets a booking_seats row whose unique
// key on (show_id, seat_label) makes a double booking impossible even if
// the seat map were bypassed.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, ref, user_id, show_id, seats, amount_minor, currency, paid, order_id, payment_id, created_at`

// Create inserts the booking and its seats in one transaction and fills
// in ID and CreatedAt.  A replayed payment id yields ErrDuplicatePayment
// and a seat already booked yields ErrSeatAlreadyBooked; in both cases
// nothing is written.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if len(b.Seats) == 0 {
		return model.ErrNoSeats
	}
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings (ref, user_id, show_id, seats, amount_minor, currency, paid, order_id, payment_id)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, b.Ref, b.UserID, b.ShowID, string(seats), b.AmountMinor, b.Currency, b.Paid, b.OrderID, b.PaymentID)
	if err != nil {
		return mapBookingErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	query := `INSERT INTO booking_seats (booking_id, show_id, seat_label) VALUES `
	args := make([]interface{}, 0, len(b.Seats)*3)
	for i, s := range b.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, b.ID, b.ShowID, s)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return mapBookingErr(err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM bookings WHERE id = ?`, b.ID).Scan(&b.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.CreatedAt = b.CreatedAt.UTC()
	return nil
}

// GetByPaymentID returns the booking recorded for a gateway payment.
func (r *BookingRepo) GetByPaymentID(ctx context.Context, paymentID string) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_id = ?`, paymentID)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, model.ErrBookingNotFound
	}
	return b, err
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TicketForUser loads a paid booking of the user with show details for
// ticket rendering.  Bookings of other users are reported as not found.
func (r *BookingRepo) TicketForUser(ctx context.Context, bookingID, userID uint64) (model.Ticket, error) {
	const q = `SELECT b.id, b.ref, b.user_id, b.show_id, b.seats, b.amount_minor, b.currency, b.paid,
	                  b.order_id, b.payment_id, b.created_at, s.movie_title, s.starts_at
	           FROM bookings b
	           JOIN shows s ON s.id = b.show_id
	           WHERE b.id = ? AND b.user_id = ? AND b.paid = TRUE`
	var (
		t     model.Ticket
		seats string
	)
	err := r.db.QueryRowContext(ctx, q, bookingID, userID).Scan(
		&t.ID, &t.Ref, &t.UserID, &t.ShowID, &seats, &t.AmountMinor, &t.Currency, &t.Paid,
		&t.OrderID, &t.PaymentID, &t.CreatedAt, &t.MovieTitle, &t.StartsAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, model.ErrBookingNotFound
	}
	if err != nil {
		return model.Ticket{}, err
	}
	if err := json.Unmarshal([]byte(seats), &t.Seats); err != nil {
		return model.Ticket{}, fmt.Errorf("decode seats of booking %d: %w", t.ID, err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.StartsAt = t.StartsAt.UTC()
	return t, nil
}

// RecordUnfulfilled flags a captured payment that produced no booking.
// Recording the same payment twice keeps the first row and updates the
// reason.
func (r *BookingRepo) RecordUnfulfilled(ctx context.Context, u *model.UnfulfilledPayment) error {
	seats, err := json.Marshal(u.Seats)
	if err != nil {
		return err
	}
	const q = `INSERT INTO unfulfilled_payments (user_id, show_id, seats, amount_minor, currency, order_id, payment_id, reason)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE reason = VALUES(reason)`
	res, err := r.db.ExecContext(ctx, q, u.UserID, u.ShowID, string(seats), u.AmountMinor, u.Currency, u.OrderID, u.PaymentID, u.Reason)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		u.ID = uint64(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b     model.Booking
		seats string
	)
	if err := row.Scan(&b.ID, &b.Ref, &b.UserID, &b.ShowID, &seats, &b.AmountMinor, &b.Currency, &b.Paid, &b.OrderID, &b.PaymentID, &b.CreatedAt); err != nil {
		return model.Booking{}, err
	}
	if err := json.Unmarshal([]byte(seats), &b.Seats); err != nil {
		return model.Booking{}, fmt.Errorf("decode seats of booking %d: %w", b.ID, err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func mapBookingErr(err error) error {
	key, ok := duplicateKey(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(key, "uq_bookings_payment"):
		return ErrDuplicatePayment
	case strings.Contains(key, "uq_booking_seats_seat"):
		return ErrSeatAlreadyBooked
	}
	return err
}
