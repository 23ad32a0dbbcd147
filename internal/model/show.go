package model

import "time"

// Show statuses as stored in shows.status.
const (
	ShowScheduled = "SCHEDULED"
	ShowCancelled = "CANCELLED"
	ShowFinished  = "FINISHED"
)

// Show represents a scheduled screening of a movie.  The seat map of a
// show is kept separately in show_seats (see SeatSlot) and is only ever
// written by the reservation service.
//
// Fields:
//
//	ID             – primary key identifier.
//	MovieID        – reference to the movie in the external catalog.
//	MovieTitle     – denormalized title used on tickets and events.
//	StartsAt       – when the show begins.
//	BasePriceMinor – ticket price per seat in minor currency units.
//	Status         – SCHEDULED, CANCELLED or FINISHED.
type Show struct {
	ID             uint64    // shows.id
	MovieID        string    // shows.movie_id
	MovieTitle     string    // shows.movie_title
	StartsAt       time.Time // shows.starts_at
	BasePriceMinor int64     // shows.base_price_minor
	Status         string    // shows.status
}

// Bookable reports whether seats can still be sold for the show at now.
func (s Show) Bookable(now time.Time) bool {
	return s.Status == ShowScheduled && now.Before(s.StartsAt)
}
