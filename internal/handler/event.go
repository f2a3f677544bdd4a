package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avidast/ticketd/internal/repository"
	"github.com/avidast/ticketd/internal/seatmap"
)

// EventHandler exposes event CRUD plus the derived seat availability view.
// Creation and deletion are admin-only; browsing is public.
type EventHandler struct {
	Events  *repository.EventRepo
	SeatMap *seatmap.Store
}

func NewEventHandler(events *repository.EventRepo, seats *seatmap.Store) *EventHandler {
	if events == nil || seats == nil {
		panic("nil dependency passed to NewEventHandler")
	}
	return &EventHandler{Events: events, SeatMap: seats}
}

// Create handles POST /v1/admin/events.
func (h *EventHandler) Create(c echo.Context) error {
	var body struct {
		Name     string    `json:"name"`
		Capacity uint32    `json:"capacity"`
		StartsAt time.Time `json:"starts_at"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if body.StartsAt.IsZero() || !body.StartsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	}
	ev, err := h.Events.Create(c.Request().Context(), body.Name, body.Capacity, body.StartsAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create event"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"event": ev})
}

// List handles GET /v1/events.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.Events.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load events"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := eventIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev})
}

// Seats handles GET /v1/events/:id/seats. It reports which seats are taken
// in seat order along with the free-seat count, read straight from the
// bitmap so the view reflects the latest committed acquisitions.
func (h *EventHandler) Seats(c echo.Context) error {
	id, err := eventIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	taken, err := h.SeatMap.Availability(ctx, ev.ID, ev.Capacity)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read seat map"})
	}
	free, err := h.SeatMap.CountFree(ctx, ev.ID, ev.Capacity)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read seat map"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"capacity": ev.Capacity,
		"taken":    taken,
		"free":     free,
	})
}

// Delete handles DELETE /v1/admin/events/:id.
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := eventIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Events.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CleanupSeats handles POST /v1/admin/events/:id/seatmap/cleanup. It drops
// the event's entire bitmap once the event is over. The operation is
// idempotent; deciding when to call it belongs to an external scheduler.
func (h *EventHandler) CleanupSeats(c echo.Context) error {
	id, err := eventIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	if ev.StartsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "event has not started yet"})
	}
	if err := h.SeatMap.Cleanup(ctx, ev.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cleanup seat map"})
	}
	return c.NoContent(http.StatusNoContent)
}

func eventIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, repository.ErrInvalidArgument
	}
	return id, nil
}
