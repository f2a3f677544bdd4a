package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avidast/ticketd/internal/model"
	"github.com/avidast/ticketd/internal/repository"
)

// getUserID extracts the user_id claim from echo.Context and converts it
// to uint64. JWT numeric claims arrive as float64, but the other shapes
// are handled too so tests can seed the context directly.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the authenticated requester carries the ADMIN role.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

// writeError maps the repository error taxonomy onto HTTP responses. Every
// handler funnels non-nil errors from the domain layer through here so the
// mapping stays in one place.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event already started"})
	case errors.Is(err, repository.ErrSeatConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "one or more seats are already taken"})
	case errors.Is(err, repository.ErrNotEnoughCapacity):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough capacity"})
	case errors.Is(err, repository.ErrPersistenceConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking conflict, please retry"})
	case errors.Is(err, repository.ErrConcurrencyExhausted):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "event is busy, please retry"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
