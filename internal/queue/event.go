// Package queue defines the events exchanged over RabbitMQ together with
// the publisher used by checkout and the audit consumer.
package queue

const (
    // BookingConfirmedQueue carries BookingConfirmedEvent messages.
    BookingConfirmedQueue = "booking.confirmed"
    // PaymentUnfulfilledQueue carries PaymentUnfulfilledEvent messages for
    // the reconciliation team.
    PaymentUnfulfilledQueue = "payment.unfulfilled"
)

// BookingConfirmedEvent is published when a paid booking is persisted.
// It contains enough information for downstream consumers (ticket
// rendering, notifications, analytics) without querying the database.
type BookingConfirmedEvent struct {
    BookingID   uint64   `json:"booking_id"`
    BookingRef  string   `json:"booking_ref"`
    UserID      uint64   `json:"user_id"`
    ShowID      uint64   `json:"show_id"`
    MovieTitle  string   `json:"movie_title"`
    StartsAt    string   `json:"starts_at"`
    Seats       []string `json:"seats"`
    AmountMinor int64    `json:"amount"`
    Currency    string   `json:"currency"`
    PaymentID   string   `json:"payment_id"`
    ConfirmedAt string   `json:"confirmed_at"`
}

// PaymentUnfulfilledEvent is published when a verified payment could not
// be turned into a booking.  The captured amount must be refunded or the
// seats assigned by hand.
type PaymentUnfulfilledEvent struct {
    UserID      uint64   `json:"user_id"`
    ShowID      uint64   `json:"show_id"`
    Seats       []string `json:"seats"`
    AmountMinor int64    `json:"amount"`
    Currency    string   `json:"currency"`
    OrderID     string   `json:"order_id"`
    PaymentID   string   `json:"payment_id"`
    Reason      string   `json:"reason"`
    RecordedAt  string   `json:"recorded_at"`
}
