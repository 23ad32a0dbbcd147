package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// Store is the persistence contract for show seat maps.  Hold and Commit
// must each apply to the whole seat set in one atomic conditional write:
// either every seat transitions or none does.
type Store interface {
	// EnsureSeats creates FREE rows for any label not yet present.
	EnsureSeats(ctx context.Context, showID uint64, labels []string) error
	// Slots returns the stored slots for labels, or the whole map when
	// labels is empty.
	Slots(ctx context.Context, showID uint64, labels []string) ([]model.SeatSlot, error)
	// Hold moves every label to HELD by holder until the given time.  A
	// seat is eligible when FREE, when its hold expired at now, or when it
	// is already held by the same holder.  When any label is ineligible
	// nothing changes and ok is false.
	Hold(ctx context.Context, showID uint64, labels []string, holder string, now, until time.Time) (ok bool, err error)
	// Commit moves every label from an unexpired HELD-by-holder state to
	// COMMITTED with bookingRef.  Labels already COMMITTED with the same
	// bookingRef also match.  When any label drifted nothing changes and
	// ok is false.
	Commit(ctx context.Context, showID uint64, labels []string, holder, bookingRef string, now time.Time) (ok bool, err error)
	// Release frees every seat of the show held by holder.
	Release(ctx context.Context, showID uint64, holder string) (int, error)
	// ReleaseExpired frees every HELD seat whose hold ended at or before now.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}
