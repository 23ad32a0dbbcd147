package model

import (
	"errors"
	"strings"
)

// Error kinds shared by the reservation, payment and checkout layers.
// Handlers translate them into distinct HTTP responses so that clients
// can tell "pick different seats" apart from "payment didn't go through".
var (
	// ErrSeatConflict: one or more requested seats are not free.
	ErrSeatConflict = errors.New("seat conflict")
	// ErrInvalidState: a hold expired or was consumed before commit.
	ErrInvalidState = errors.New("invalid seat state")
	// ErrGatewayUnavailable: the remote payment service failed.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentVerificationFailed: callback signature mismatch. Terminal
	// for the payment attempt.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	// ErrAmountMismatch indicates a programming defect: the gateway holds
	// an amount different from the server-computed total.
	ErrAmountMismatch = errors.New("amount mismatch")
	// ErrBookingUnfulfilled: the payment succeeded but seats could not be
	// committed; a reconciliation record was written.
	ErrBookingUnfulfilled = errors.New("payment captured but booking could not be fulfilled")
	// ErrTemporary: a store or ledger call failed transiently.  The
	// callback can be retried and nothing was flagged for refund.
	ErrTemporary = errors.New("temporary failure, retry the request")

	ErrShowNotFound    = errors.New("show not found")
	ErrShowClosed      = errors.New("show is not open for booking")
	ErrBookingNotFound = errors.New("booking not found")
	ErrNoSeats         = errors.New("no seats requested")
	ErrTooManySeats    = errors.New("too many seats requested")
	ErrUnknownSeat     = errors.New("unknown seat")
	ErrDuplicateSeat   = errors.New("duplicate seat")
)

// SeatConflictError lists the seats that blocked a hold.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return "seat conflict: " + strings.Join(e.Seats, ",")
}

func (e *SeatConflictError) Unwrap() error { return ErrSeatConflict }
