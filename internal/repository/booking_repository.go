package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avidast/ticketd/internal/model"
)

// BookingRepo provides access to the bookings table. A functional unique
// index over (event_id, seat_number) for BOOKED rows backs the guarantee
// that no two active bookings of one event share a seat; losing that race
// surfaces as ErrPersistenceConflict.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

// CreateBatch inserts every booking row inside one transaction: either all
// rows commit or none do, so a multi-seat booking is never observable half
// written. The returned slice carries the generated ids and timestamps.
func (r *BookingRepo) CreateBatch(ctx context.Context, bookings []model.Booking) ([]model.Booking, error) {
	if len(bookings) == 0 {
		return []model.Booking{}, nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC().Truncate(time.Second)
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		b.CreatedAt = now
		res, err := tx.ExecContext(ctx,
			"INSERT INTO bookings (event_id, user_id, status, seat_number, created_at) VALUES (?,?,?,?,?)",
			b.EventID, b.UserID, b.Status, b.SeatNumber, b.CreatedAt)
		if err != nil {
			if isDuplicateKey(err) {
				return nil, ErrPersistenceConflict
			}
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		b.ID = uint64(id)
		out = append(out, b)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return out, nil
}

// GetByID fetches a single booking row, ErrBookingNotFound when absent.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	var b model.Booking
	var seat sql.NullInt64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, event_id, user_id, status, seat_number, created_at FROM bookings WHERE id=? LIMIT 1",
		id).Scan(&b.ID, &b.EventID, &b.UserID, &b.Status, &seat, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	if seat.Valid {
		n := uint32(seat.Int64)
		b.SeatNumber = &n
	}
	return b, nil
}

// UpdateStatus sets the status column of one booking.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE bookings SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// 0 affected rows also happens when the status already matches, so
	// verify existence before reporting not found.
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListByUser returns the user's bookings with joined event details, newest
// first. An empty slice is returned when the user has none.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	const q = `SELECT b.id, b.event_id, b.user_id, b.status, b.seat_number, b.created_at,
	                  e.name, e.starts_at, u.email
	             FROM bookings b
	             JOIN events e ON e.id = b.event_id
	             JOIN users  u ON u.id = b.user_id
	            WHERE b.user_id = ?
	            ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]model.BookingDetail, 0)
	for rows.Next() {
		var d model.BookingDetail
		var seat sql.NullInt64
		if err := rows.Scan(&d.ID, &d.EventID, &d.UserID, &d.Status, &seat, &d.CreatedAt,
			&d.EventName, &d.EventStartsAt, &d.UserEmail); err != nil {
			return nil, err
		}
		if seat.Valid {
			n := uint32(seat.Int64)
			d.SeatNumber = &n
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// GetDetail fetches one booking with joined event details.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (model.BookingDetail, error) {
	const q = `SELECT b.id, b.event_id, b.user_id, b.status, b.seat_number, b.created_at,
	                  e.name, e.starts_at, u.email
	             FROM bookings b
	             JOIN events e ON e.id = b.event_id
	             JOIN users  u ON u.id = b.user_id
	            WHERE b.id = ?`
	var d model.BookingDetail
	var seat sql.NullInt64
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.EventID, &d.UserID, &d.Status, &seat,
		&d.CreatedAt, &d.EventName, &d.EventStartsAt, &d.UserEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingDetail{}, ErrBookingNotFound
	}
	if err != nil {
		return model.BookingDetail{}, err
	}
	if seat.Valid {
		n := uint32(seat.Int64)
		d.SeatNumber = &n
	}
	return d, nil
}
