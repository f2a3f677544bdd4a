package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avidast/ticketd/internal/booking"
	"github.com/avidast/ticketd/internal/model"
	"github.com/avidast/ticketd/internal/queue"
	"github.com/avidast/ticketd/internal/repository"
	queue_publisher "github.com/avidast/ticketd/internal/service"
)

// BookingHandler exposes the booking saga over HTTP. All mutation goes
// through the orchestrator; the repositories are used only for read-side
// listings and for enriching queue payloads.
type BookingHandler struct {
	Orchestrator *booking.Orchestrator
	Bookings     *repository.BookingRepo
	Events       *repository.EventRepo
}

func NewBookingHandler(orc *booking.Orchestrator, bookings *repository.BookingRepo, events *repository.EventRepo) *BookingHandler {
	if orc == nil || bookings == nil || events == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Orchestrator: orc, Bookings: bookings, Events: events}
}

// Create handles POST /v1/events/:id/bookings. The body may carry
// "seat_numbers" for seated bookings; an empty or absent list books one
// general-admission unit. The response contains every created row or no
// row at all — partial success is never returned.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		SeatNumbers []uint32 `json:"seat_numbers"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	created, err := h.Orchestrator.CreateBooking(ctx, userID, eventID, body.SeatNumbers)
	if err != nil {
		return writeError(c, err)
	}

	// Post-commit notification; failures are logged by the publisher and
	// never affect the booking.
	if ev, evErr := h.Events.GetByID(ctx, eventID); evErr == nil {
		_ = queue_publisher.PublishBookingCreated(ctx, bookingCreatedEvent(ev, created))
	}
	return c.JSON(http.StatusCreated, echo.Map{"bookings": created})
}

// Cancel handles DELETE /v1/bookings/:id. Owners may cancel their own
// bookings, admins anyone's. Cancelling twice returns 200 with the
// unchanged booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Orchestrator.CancelBooking(ctx, bookingID, userID, isAdmin(c))
	if err != nil {
		return writeError(c, err)
	}
	_ = queue_publisher.PublishBookingCancelled(ctx, queue.BookingCancelledEvent{
		BookingID:   b.ID,
		EventID:     b.EventID,
		UserID:      b.UserID,
		SeatNumber:  b.SeatNumber,
		CancelledAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}

// Get handles GET /v1/bookings/:id. Non-admins only see their own rows;
// someone else's booking answers 404 rather than confirming it exists.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	d, err := h.Bookings.GetDetail(c.Request().Context(), bookingID)
	if err != nil {
		return writeError(c, err)
	}
	if d.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": d})
}

func bookingCreatedEvent(ev model.Event, created []model.Booking) queue.BookingCreatedEvent {
	out := queue.BookingCreatedEvent{
		EventID:   ev.ID,
		EventName: ev.Name,
		StartsAt:  ev.StartsAt.Format(time.RFC3339),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, b := range created {
		out.BookingIDs = append(out.BookingIDs, b.ID)
		out.UserID = b.UserID
		if b.SeatNumber != nil {
			out.SeatNumbers = append(out.SeatNumbers, *b.SeatNumber)
		}
	}
	return out
}
