package model

import "time"

// Booking statuses. A booking transitions BOOKED -> CANCELLED exactly once
// and is never deleted; cancellation is idempotent.
const (
	BookingStatusBooked    = "BOOKED"
	BookingStatusCancelled = "CANCELLED"
)

// Booking records one reserved seat (or one unit of general admission) for
// a user on an event. Related entities are referenced by id only; callers
// load user/event data explicitly when they need it.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event being booked.
//  UserID     – user who owns the booking.
//  Status     – BOOKED or CANCELLED.
//  SeatNumber – 1-based seat number; nil for general-admission bookings.
//  CreatedAt  – creation timestamp.
type Booking struct {
	ID         uint64    `json:"id"`                    // bookings.id
	EventID    uint64    `json:"event_id"`              // bookings.event_id
	UserID     uint64    `json:"user_id"`               // bookings.user_id
	Status     string    `json:"status"`                // bookings.status
	SeatNumber *uint32   `json:"seat_number,omitempty"` // bookings.seat_number (nullable)
	CreatedAt  time.Time `json:"created_at"`            // bookings.created_at
}

// BookingDetail extends a booking with joined event and user information
// for customer-facing listings.
type BookingDetail struct {
	Booking
	EventName     string    `json:"event_name"`
	EventStartsAt time.Time `json:"event_starts_at"`
	UserEmail     string    `json:"user_email"`
}
