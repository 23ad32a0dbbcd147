package model

import "time"

// SeatState is the tagged availability state of one seat of one show.
type SeatState string

const (
	SeatFree      SeatState = "FREE"
	SeatHeld      SeatState = "HELD"
	SeatCommitted SeatState = "COMMITTED"
)

// MaxSeatsPerBooking caps the size of one seat set.
const MaxSeatsPerBooking = 5

// SeatSlot is one row of a show's seat map.  Labels such as "A1" are
// opaque and scoped to the show.  Holder and HoldExpiresAt are set only
// while the seat is HELD; BookingRef only once it is COMMITTED.
//
// Fields:
//
//	ShowID        – show owning the seat map.
//	Label         – seat identifier within the show.
//	State         – FREE, HELD or COMMITTED.
//	Holder        – opaque reference of the checkout holding the seat.
//	HoldExpiresAt – end of the hold; a HELD slot past it counts as FREE.
//	BookingRef    – booking that permanently occupies the seat.
type SeatSlot struct {
	ShowID        uint64     // show_seats.show_id
	Label         string     // show_seats.seat_label
	State         SeatState  // show_seats.state
	Holder        string     // show_seats.holder
	HoldExpiresAt *time.Time // show_seats.hold_expires_at (nullable)
	BookingRef    string     // show_seats.booking_ref
}

// EffectiveState folds lazy hold expiry into the stored state.
func (s SeatSlot) EffectiveState(now time.Time) SeatState {
	if s.State == SeatHeld && (s.HoldExpiresAt == nil || !now.Before(*s.HoldExpiresAt)) {
		return SeatFree
	}
	return s.State
}

// HeldBy reports whether the slot is an unexpired hold of holder.
func (s SeatSlot) HeldBy(holder string, now time.Time) bool {
	return s.EffectiveState(now) == SeatHeld && s.Holder == holder
}

// Hold describes a successful seat hold returned to callers.
type Hold struct {
	ShowID    uint64
	Seats     []string
	Holder    string
	ExpiresAt time.Time
}
