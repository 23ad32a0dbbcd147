package reservation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// Layout describes the seat grid every show uses: one letter per row and
// PerRow numbered seats, giving labels like "A1" .. "J9".
type Layout struct {
	Rows   string
	PerRow int
}

// DefaultLayout is ten rows of nine seats.
var DefaultLayout = Layout{Rows: "ABCDEFGHIJ", PerRow: 9}

// Labels enumerates every seat label row by row.
func (l Layout) Labels() []string {
	out := make([]string, 0, len(l.Rows)*l.PerRow)
	for _, r := range l.Rows {
		for n := 1; n <= l.PerRow; n++ {
			out = append(out, string(r)+strconv.Itoa(n))
		}
	}
	return out
}

// Contains reports whether label names a seat of the layout.
func (l Layout) Contains(label string) bool {
	if len(label) < 2 || !strings.ContainsRune(l.Rows, rune(label[0])) {
		return false
	}
	n, err := strconv.Atoi(label[1:])
	if err != nil || label[1] == '0' {
		return false
	}
	return n >= 1 && n <= l.PerRow
}

// normalize trims labels and validates the seat set: non-empty, at most
// MaxSeatsPerBooking, no duplicates, every label inside the layout.  The
// request order is preserved.
func (l Layout) normalize(seats []string) ([]string, error) {
	if len(seats) == 0 {
		return nil, model.ErrNoSeats
	}
	if len(seats) > model.MaxSeatsPerBooking {
		return nil, fmt.Errorf("%d seats, max %d: %w", len(seats), model.MaxSeatsPerBooking, model.ErrTooManySeats)
	}
	out := make([]string, 0, len(seats))
	seen := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		s = strings.TrimSpace(s)
		if !l.Contains(s) {
			return nil, fmt.Errorf("%q: %w", s, model.ErrUnknownSeat)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%q: %w", s, model.ErrDuplicateSeat)
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
