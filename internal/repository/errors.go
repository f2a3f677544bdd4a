// Package repository defines the persistence layer and the sentinel error
// taxonomy shared across it. Lower-level components return the narrowest
// applicable sentinel; the booking orchestrator maps and enriches them, and
// handlers translate them into HTTP status codes with errors.Is.
package repository

import "errors"

// ErrInvalidArgument is returned for structurally invalid input, such as a
// seat number below 1 or a non-positive reservation count. Handlers should
// translate this into an HTTP 400 response.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrUserNotFound is returned when the referenced user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrBookingNotFound is returned when the referenced booking does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInvalidState is returned when an operation is valid in form but not in
// the entity's current state, e.g. booking an event whose start time has
// already passed.
var ErrInvalidState = errors.New("invalid state")

// ErrSeatConflict is returned when at least one requested seat is already
// taken. The losing caller may retry with different seats.
var ErrSeatConflict = errors.New("seat already taken")

// ErrNotEnoughCapacity is returned when a reservation would push
// booked_seats past the event's capacity. It is never retried internally.
var ErrNotEnoughCapacity = errors.New("not enough capacity")

// ErrConcurrencyExhausted is returned when the ledger's conditional update
// kept losing races and the bounded retry budget ran out.
var ErrConcurrencyExhausted = errors.New("concurrent update retries exhausted")

// ErrForbidden is returned when the requester is neither the owner of the
// resource nor an admin. Handlers should translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrPersistenceConflict is returned when the durable booking write loses a
// uniqueness race. The orchestrator compensates before propagating it.
var ErrPersistenceConflict = errors.New("persistence conflict")

// ErrEmailExists is returned when registering with an email that is taken.
var ErrEmailExists = errors.New("email already exists")
