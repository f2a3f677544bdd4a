// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// BookingCreatedEvent is published after a booking saga fully commits. It
// carries enough information for downstream consumers to log or notify
// without querying the primary database.
type BookingCreatedEvent struct {
	BookingIDs  []uint64 `json:"booking_ids"`
	EventID     uint64   `json:"event_id"`
	EventName   string   `json:"event_name"`
	StartsAt    string   `json:"starts_at"`
	UserID      uint64   `json:"user_id"`
	SeatNumbers []uint32 `json:"seat_numbers,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// BookingCancelledEvent is published after a cancellation's authoritative
// status write commits.
type BookingCancelledEvent struct {
	BookingID   uint64  `json:"booking_id"`
	EventID     uint64  `json:"event_id"`
	UserID      uint64  `json:"user_id"`
	SeatNumber  *uint32 `json:"seat_number,omitempty"`
	CancelledAt string  `json:"cancelled_at"`
}
