package model

import "time"

// Event represents a bookable event. Capacity is fixed at creation time;
// BookedSeats is mutated only through the capacity ledger's conditional
// updates and satisfies 0 <= BookedSeats <= Capacity between operations.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – display name of the event.
//  Capacity    – maximum number of seats that can be booked.
//  BookedSeats – seats currently reserved by BOOKED bookings.
//  StartsAt    – when the event begins; bookings close at this instant.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
	ID          uint64    `json:"id"`           // events.id
	Name        string    `json:"name"`         // events.name
	Capacity    uint32    `json:"capacity"`     // events.capacity
	BookedSeats uint32    `json:"booked_seats"` // events.booked_seats
	StartsAt    time.Time `json:"starts_at"`    // events.starts_at
	CreatedAt   time.Time `json:"created_at"`   // events.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // events.updated_at
}

// FreeSeats returns the remaining capacity, floored at zero.
func (e Event) FreeSeats() uint32 {
	if e.BookedSeats >= e.Capacity {
		return 0
	}
	return e.Capacity - e.BookedSeats
}
