package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// ErrDuplicatePayment is returned when a booking for the same gateway
// payment id already exists.  Callers treat it as a replayed callback.
var ErrDuplicatePayment = errors.New("payment already recorded")

// ErrSeatAlreadyBooked is returned when the booking_seats unique key on
// (show_id, seat_label) rejects an insert.  It is the database-level
// guard behind the seat map's conditional writes, and it matches
// model.ErrInvalidState since retrying cannot succeed.
var ErrSeatAlreadyBooked = fmt.Errorf("seat already booked: %w", model.ErrInvalidState)

const mysqlDuplicateEntry = 1062

// duplicateKey reports whether err is a MySQL duplicate-entry error and
// returns the violated key name.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// message: Duplicate entry 'x' for key 'bookings.uq_bookings_payment'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		return strings.TrimSuffix(msg[i+len("for key '"):], "'"), true
	}
	return "", true
}
