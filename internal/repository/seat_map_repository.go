package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// SeatMapRepo persists show seat maps in the show_seats table and
// implements reservation.Store.  Every transition is a single
// conditional UPDATE over the whole seat set inside a transaction; the
// transaction commits only when the number of matched rows equals the
// size of the set, so overlapping requests can never both succeed.
//
// The DSN must set clientFoundRows=true so RowsAffected counts matched
// rows rather than changed rows (see database.Open).
type SeatMapRepo struct {
	db *sql.DB
}

// NewSeatMapRepo returns a SeatMapRepo bound to db.
func NewSeatMapRepo(db *sql.DB) *SeatMapRepo { return &SeatMapRepo{db: db} }

// EnsureSeats inserts FREE rows for labels, ignoring rows that exist.
func (r *SeatMapRepo) EnsureSeats(ctx context.Context, showID uint64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO show_seats (show_id, seat_label, state) VALUES `
	args := make([]interface{}, 0, len(labels)*2)
	for i, l := range labels {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, 'FREE')"
		args = append(args, showID, l)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// Slots loads the rows for labels, or every row of the show when labels
// is empty, ordered by label.
func (r *SeatMapRepo) Slots(ctx context.Context, showID uint64, labels []string) ([]model.SeatSlot, error) {
	q := `SELECT show_id, seat_label, state, holder, hold_expires_at, booking_ref
	      FROM show_seats WHERE show_id = ?`
	args := []interface{}{showID}
	if len(labels) > 0 {
		q += ` AND seat_label IN (` + placeholders(len(labels)) + `)`
		args = appendLabels(args, labels)
	}
	q += ` ORDER BY seat_label`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatSlot
	for rows.Next() {
		var (
			s       model.SeatSlot
			state   string
			holder  sql.NullString
			expires sql.NullTime
			ref     sql.NullString
		)
		if err := rows.Scan(&s.ShowID, &s.Label, &state, &holder, &expires, &ref); err != nil {
			return nil, err
		}
		s.State = model.SeatState(state)
		s.Holder = holder.String
		s.BookingRef = ref.String
		if expires.Valid {
			t := expires.Time.UTC()
			s.HoldExpiresAt = &t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Hold marks every label HELD by holder until the given time when each
// is FREE, expired, or already held by holder.
func (r *SeatMapRepo) Hold(ctx context.Context, showID uint64, labels []string, holder string, now, until time.Time) (bool, error) {
	q := `UPDATE show_seats
	      SET state = 'HELD', holder = ?, hold_expires_at = ?, booking_ref = NULL
	      WHERE show_id = ? AND seat_label IN (` + placeholders(len(labels)) + `)
	        AND (state = 'FREE' OR (state = 'HELD' AND (hold_expires_at <= ? OR holder = ?)))`
	args := []interface{}{holder, until.UTC(), showID}
	args = appendLabels(args, labels)
	args = append(args, now.UTC(), holder)
	return r.conditionalUpdate(ctx, q, args, len(labels))
}

// Commit moves every label from an unexpired hold of holder to COMMITTED.
// Seats already committed under bookingRef count as matched, so a retried
// commit for the same booking succeeds.
func (r *SeatMapRepo) Commit(ctx context.Context, showID uint64, labels []string, holder, bookingRef string, now time.Time) (bool, error) {
	q := `UPDATE show_seats
	      SET state = 'COMMITTED', holder = NULL, hold_expires_at = NULL, booking_ref = ?
	      WHERE show_id = ? AND seat_label IN (` + placeholders(len(labels)) + `)
	        AND ((state = 'HELD' AND holder = ? AND hold_expires_at > ?)
	          OR (state = 'COMMITTED' AND booking_ref = ?))`
	args := []interface{}{bookingRef, showID}
	args = appendLabels(args, labels)
	args = append(args, holder, now.UTC(), bookingRef)
	return r.conditionalUpdate(ctx, q, args, len(labels))
}

// Release frees every seat of the show held by holder.
func (r *SeatMapRepo) Release(ctx context.Context, showID uint64, holder string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE show_seats SET state = 'FREE', holder = NULL, hold_expires_at = NULL
		 WHERE show_id = ? AND state = 'HELD' AND holder = ?`,
		showID, holder)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReleaseExpired frees every hold that ended at or before now.
func (r *SeatMapRepo) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE show_seats SET state = 'FREE', holder = NULL, hold_expires_at = NULL
		 WHERE state = 'HELD' AND hold_expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// conditionalUpdate runs q in a transaction and commits only when want
// rows matched.
func (r *SeatMapRepo) conditionalUpdate(ctx context.Context, q string, args []interface{}, want int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if int(n) != want {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func appendLabels(args []interface{}, labels []string) []interface{} {
	for _, l := range labels {
		args = append(args, l)
	}
	return args
}
