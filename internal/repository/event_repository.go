package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avidast/ticketd/internal/model"
)

// EventRepo provides CRUD access to the events table. The booked_seats
// counter is deliberately absent from every write here: it is owned by
// CapacityLedger and only changes through its conditional updates.
type EventRepo struct{ DB *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

const eventColumns = "id, name, capacity, booked_seats, starts_at, created_at, updated_at"

func scanEvent(row *sql.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Capacity, &e.BookedSeats, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return e, err
}

// Create inserts a new event with zero booked seats and returns the full row.
func (r *EventRepo) Create(ctx context.Context, name string, capacity uint32, startsAt time.Time) (model.Event, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO events (name, capacity, booked_seats, starts_at) VALUES (?,?,0,?)",
		name, capacity, startsAt.UTC())
	if err != nil {
		return model.Event{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an event by id, ErrEventNotFound when absent.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id=? LIMIT 1", id)
	return scanEvent(row)
}

// List returns events ordered by start time ascending.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY starts_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Capacity, &e.BookedSeats, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Delete removes an event. Events with bookings are protected by the
// bookings foreign key; the database rejects the delete in that case.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM events WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
