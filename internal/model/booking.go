package model

import "time"

// Booking is a finalized, paid reservation.  It is created exactly once
// per verified payment and never updated afterwards.
//
// Fields:
//
//	ID          – primary key identifier.
//	Ref         – public booking reference stamped on committed seats.
//	UserID      – customer who paid.
//	ShowID      – show being attended.
//	Seats       – seat labels in the order they were requested.
//	AmountMinor – server-recomputed total in minor units.
//	Currency    – ISO currency code of the charge.
//	Paid        – always true for bookings written by the ledger.
//	OrderID     – remote gateway order id.
//	PaymentID   – remote gateway payment id (unique).
//	CreatedAt   – creation timestamp.
type Booking struct {
	ID          uint64    `json:"id"`
	Ref         string    `json:"ref"`
	UserID      uint64    `json:"user_id"`
	ShowID      uint64    `json:"show_id"`
	Seats       []string  `json:"seats"`
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Paid        bool      `json:"paid"`
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ticket is the denormalized view of a paid booking handed to the
// ticket rendering collaborator.
type Ticket struct {
	Booking
	MovieTitle string    `json:"movie_title"`
	StartsAt   time.Time `json:"starts_at"`
}

// UnfulfilledPayment records a verified payment whose seats could not be
// committed.  These rows are flagged for manual reconciliation so that a
// captured amount is never silently dropped.
type UnfulfilledPayment struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	ShowID      uint64    `json:"show_id"`
	Seats       []string  `json:"seats"`
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
