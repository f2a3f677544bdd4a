package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avidast/ticketd/internal/model"
	"github.com/avidast/ticketd/internal/retry"
)

// reserveBackoffStep is the base delay between retries of the conditional
// reserve update; attempt n waits n * 20ms.
const reserveBackoffStep = 20 * time.Millisecond

// CapacityLedger maintains events.booked_seats as a race-free counter
// bounded by events.capacity. Every mutation is a single conditional
// UPDATE whose WHERE clause references the current column value, so two
// racing reservations can never both pass the capacity check.
type CapacityLedger struct{ DB *sql.DB }

func NewCapacityLedger(db *sql.DB) *CapacityLedger { return &CapacityLedger{DB: db} }

// Reserve atomically applies booked_seats += count iff the result stays
// within capacity, and returns the updated event. When the conditional
// update matches no row the event is re-read to classify the cause:
// missing event -> ErrEventNotFound, insufficient capacity ->
// ErrNotEnoughCapacity (not retried), anything else is assumed to be a
// racing writer and retried with linear backoff up to maxRetries extra
// attempts. Exhausting the budget returns ErrConcurrencyExhausted.
func (l *CapacityLedger) Reserve(ctx context.Context, eventID uint64, count uint32, maxRetries int) (model.Event, error) {
	if count == 0 {
		return model.Event{}, fmt.Errorf("%w: reserve count must be > 0", ErrInvalidArgument)
	}
	var ev model.Event
	err := retry.Do(ctx, maxRetries+1, retry.Linear(reserveBackoffStep), func() (bool, error) {
		res, err := l.DB.ExecContext(ctx,
			`UPDATE events
			    SET booked_seats = booked_seats + ?
			  WHERE id = ? AND booked_seats + ? <= capacity`,
			count, eventID, count)
		if err != nil {
			return true, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return true, err
		}
		if n == 1 {
			ev, err = l.readEvent(ctx, eventID)
			return true, err
		}
		// Predicate matched nothing: re-read to tell a missing event and
		// a full event apart from a lost race.
		cur, err := l.readEvent(ctx, eventID)
		if err != nil {
			return true, err
		}
		if uint64(cur.BookedSeats)+uint64(count) > uint64(cur.Capacity) {
			return true, fmt.Errorf("%w: event %d has %d of %d seats booked",
				ErrNotEnoughCapacity, eventID, cur.BookedSeats, cur.Capacity)
		}
		return false, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return model.Event{}, fmt.Errorf("%w: event %d", ErrConcurrencyExhausted, eventID)
	}
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// Release atomically applies booked_seats = max(booked_seats - count, 0)
// and returns the updated event. Releasing more than is reserved floors at
// zero instead of erroring, so compensations and cancellations can always
// run. ErrEventNotFound is returned only when the event row is absent.
func (l *CapacityLedger) Release(ctx context.Context, eventID uint64, count uint32) (model.Event, error) {
	if count == 0 {
		return model.Event{}, fmt.Errorf("%w: release count must be > 0", ErrInvalidArgument)
	}
	_, err := l.DB.ExecContext(ctx,
		`UPDATE events
		    SET booked_seats = GREATEST(CAST(booked_seats AS SIGNED) - ?, 0)
		  WHERE id = ?`,
		count, eventID)
	if err != nil {
		return model.Event{}, err
	}
	// RowsAffected is 0 both for a missing row and for a no-op update of an
	// already-zero counter, so existence is settled by the read-back.
	return l.readEvent(ctx, eventID)
}

func (l *CapacityLedger) readEvent(ctx context.Context, eventID uint64) (model.Event, error) {
	var e model.Event
	err := l.DB.QueryRowContext(ctx,
		`SELECT id, name, capacity, booked_seats, starts_at, created_at, updated_at
		   FROM events WHERE id = ? LIMIT 1`, eventID).
		Scan(&e.ID, &e.Name, &e.Capacity, &e.BookedSeats, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return e, err
}
