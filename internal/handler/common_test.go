package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/avidast/ticketd/internal/repository"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", repository.ErrInvalidArgument, http.StatusBadRequest},
		{"event not found", repository.ErrEventNotFound, http.StatusNotFound},
		{"user not found", repository.ErrUserNotFound, http.StatusNotFound},
		{"booking not found", repository.ErrBookingNotFound, http.StatusNotFound},
		{"invalid state", repository.ErrInvalidState, http.StatusConflict},
		{"seat conflict", repository.ErrSeatConflict, http.StatusConflict},
		{"not enough capacity", repository.ErrNotEnoughCapacity, http.StatusConflict},
		{"persistence conflict", repository.ErrPersistenceConflict, http.StatusConflict},
		{"concurrency exhausted", repository.ErrConcurrencyExhausted, http.StatusServiceUnavailable},
		{"forbidden", repository.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext()
			if err := writeError(c, tt.err); err != nil {
				t.Fatalf("writeError returned %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWriteErrorMapsWrappedErrors(t *testing.T) {
	c, rec := newTestContext()
	wrapped := errors.Join(errors.New("context"), repository.ErrSeatConflict)
	if err := writeError(c, wrapped); err != nil {
		t.Fatalf("writeError returned %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestGetUserID(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  uint64
		ok    bool
	}{
		{"float64 from jwt", float64(7), 7, true},
		{"uint64", uint64(9), 9, true},
		{"string", "12", 12, true},
		{"garbage string", "abc", 0, false},
		{"missing", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			if tt.value != nil {
				c.Set("user_id", tt.value)
			}
			got, err := getUserID(c)
			if tt.ok && (err != nil || got != tt.want) {
				t.Fatalf("got (%d, %v), want (%d, nil)", got, err, tt.want)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
