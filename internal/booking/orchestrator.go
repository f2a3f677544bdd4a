// Package booking implements the reservation saga that keeps the Redis
// seat bitmap, the relational capacity counter and the durable booking
// rows consistent without a cross-store transaction. Steps run in a fixed
// order — bitmap, ledger, rows — and any failure unwinds the already
// acquired resources in strict reverse order before the error is returned.
package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/avidast/ticketd/internal/model"
	"github.com/avidast/ticketd/internal/repository"
)

// SeatMap is the slice of the seat bitmap store the saga depends on.
type SeatMap interface {
	AcquireAll(ctx context.Context, eventID uint64, seats []uint32) (bool, error)
	Release(ctx context.Context, eventID uint64, seat uint32) error
}

// CapacityLedger is the bounded booked-seats counter.
type CapacityLedger interface {
	Reserve(ctx context.Context, eventID uint64, count uint32, maxRetries int) (model.Event, error)
	Release(ctx context.Context, eventID uint64, count uint32) (model.Event, error)
}

// BookingStore persists booking rows; CreateBatch is all-or-nothing.
type BookingStore interface {
	CreateBatch(ctx context.Context, bookings []model.Booking) ([]model.Booking, error)
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, status string) error
}

// EventStore looks up event capacity and start time during validation.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// UserStore answers the user-existence check during validation.
type UserStore interface {
	Exists(ctx context.Context, id uint64) (bool, error)
}

// Orchestrator drives the create/cancel booking sagas over its injected
// stores. It imposes no serialization of its own: the per-seat SETBIT race
// and the ledger's conditional UPDATE decide every contest, so any number
// of sagas may run concurrently. A user may book the same event more than
// once; only seat uniqueness and capacity bound what they can hold.
type Orchestrator struct {
	seats    SeatMap
	ledger   CapacityLedger
	bookings BookingStore
	events   EventStore
	users    UserStore

	// maxReserveRetries bounds the ledger's own conditional-update retry
	// loop. The saga as a whole is never retried internally.
	maxReserveRetries int

	now func() time.Time
}

// NewOrchestrator constructs an Orchestrator. All stores must be non-nil.
func NewOrchestrator(seats SeatMap, ledger CapacityLedger, bookings BookingStore, events EventStore, users UserStore, maxReserveRetries int) *Orchestrator {
	if seats == nil || ledger == nil || bookings == nil || events == nil || users == nil {
		panic("nil store passed to booking.NewOrchestrator")
	}
	return &Orchestrator{
		seats:             seats,
		ledger:            ledger,
		bookings:          bookings,
		events:            events,
		users:             users,
		maxReserveRetries: maxReserveRetries,
		now:               time.Now,
	}
}

// CreateBooking reserves the given seats (or one general-admission unit
// when seatNumbers is empty) for the user on the event. On success every
// persisted row is returned; on any failure all intermediate side effects
// have been compensated before the error reaches the caller, so partial
// success is never observable.
//
// Acquisition order is bitmap first (cheapest to undo), ledger second,
// durable rows last; compensation releases in reverse.
func (o *Orchestrator) CreateBooking(ctx context.Context, userID, eventID uint64, seatNumbers []uint32) ([]model.Booking, error) {
	ev, err := o.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ok, err := o.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if !ev.StartsAt.After(o.now().UTC()) {
		return nil, fmt.Errorf("%w: event %d already started", repository.ErrInvalidState, eventID)
	}

	if len(seatNumbers) == 0 {
		return o.createGeneralAdmission(ctx, userID, ev)
	}
	return o.createSeated(ctx, userID, ev, seatNumbers)
}

func (o *Orchestrator) createSeated(ctx context.Context, userID uint64, ev model.Event, seatNumbers []uint32) ([]model.Booking, error) {
	seen := make(map[uint32]struct{}, len(seatNumbers))
	for _, s := range seatNumbers {
		if s < 1 || s > ev.Capacity {
			return nil, fmt.Errorf("%w: seat %d outside 1..%d", repository.ErrInvalidArgument, s, ev.Capacity)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%w: seat %d requested twice", repository.ErrInvalidArgument, s)
		}
		seen[s] = struct{}{}
	}

	acquired, err := o.seats.AcquireAll(ctx, ev.ID, seatNumbers)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// Nothing was mutated, no compensation needed.
		return nil, repository.ErrSeatConflict
	}

	if _, err := o.ledger.Reserve(ctx, ev.ID, uint32(len(seatNumbers)), o.maxReserveRetries); err != nil {
		o.releaseSeats(ctx, ev.ID, seatNumbers)
		return nil, err
	}

	rows := make([]model.Booking, 0, len(seatNumbers))
	for _, s := range seatNumbers {
		seat := s
		rows = append(rows, model.Booking{
			EventID:    ev.ID,
			UserID:     userID,
			Status:     model.BookingStatusBooked,
			SeatNumber: &seat,
		})
	}
	created, err := o.bookings.CreateBatch(ctx, rows)
	if err != nil {
		// Unwind in reverse acquisition order: seats, then capacity.
		o.releaseSeats(ctx, ev.ID, seatNumbers)
		if _, rerr := o.ledger.Release(ctx, ev.ID, uint32(len(seatNumbers))); rerr != nil {
			log.Printf("booking: compensation failed releasing %d units on event %d: %v", len(seatNumbers), ev.ID, rerr)
		}
		return nil, err
	}
	return created, nil
}

func (o *Orchestrator) createGeneralAdmission(ctx context.Context, userID uint64, ev model.Event) ([]model.Booking, error) {
	if _, err := o.ledger.Reserve(ctx, ev.ID, 1, o.maxReserveRetries); err != nil {
		return nil, err
	}
	created, err := o.bookings.CreateBatch(ctx, []model.Booking{{
		EventID: ev.ID,
		UserID:  userID,
		Status:  model.BookingStatusBooked,
	}})
	if err != nil {
		if _, rerr := o.ledger.Release(ctx, ev.ID, 1); rerr != nil {
			log.Printf("booking: compensation failed releasing 1 unit on event %d: %v", ev.ID, rerr)
		}
		return nil, err
	}
	return created, nil
}

// CancelBooking marks the booking CANCELLED and releases its resources.
// The status write is authoritative: once it commits, the ledger and
// bitmap releases are best-effort and a failure there is logged for
// out-of-band retry, never answered by un-cancelling the booking.
// Cancelling an already-cancelled booking returns it unchanged.
func (o *Orchestrator) CancelBooking(ctx context.Context, bookingID, requesterID uint64, requesterIsAdmin bool) (model.Booking, error) {
	b, err := o.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != requesterID && !requesterIsAdmin {
		return model.Booking{}, repository.ErrForbidden
	}
	if b.Status == model.BookingStatusCancelled {
		return b, nil
	}

	if err := o.bookings.UpdateStatus(ctx, b.ID, model.BookingStatusCancelled); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatusCancelled

	if _, err := o.ledger.Release(ctx, b.EventID, 1); err != nil {
		log.Printf("booking: release of 1 unit on event %d after cancelling booking %d failed: %v", b.EventID, b.ID, err)
	}
	if b.SeatNumber != nil {
		if err := o.seats.Release(ctx, b.EventID, *b.SeatNumber); err != nil {
			log.Printf("booking: release of seat %d on event %d after cancelling booking %d failed: %v", *b.SeatNumber, b.EventID, b.ID, err)
		}
	}
	return b, nil
}

func (o *Orchestrator) releaseSeats(ctx context.Context, eventID uint64, seats []uint32) {
	for _, s := range seats {
		if err := o.seats.Release(ctx, eventID, s); err != nil {
			log.Printf("booking: compensation failed releasing seat %d on event %d: %v", s, eventID, err)
		}
	}
}
