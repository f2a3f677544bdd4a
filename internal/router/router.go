// Package router registers the HTTP routes for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/avidast/ticketd/internal/handler"
	"github.com/avidast/ticketd/internal/middleware"
	"github.com/avidast/ticketd/internal/model"
)

// Register wires every route group onto the Echo instance. Public routes
// carry no middleware; /v1 routes require a valid access token; /v1/admin
// routes additionally require the ADMIN role.
func Register(e *echo.Echo, a *handler.AuthHandler, ev *handler.EventHandler, b *handler.BookingHandler, jwtSecret string) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated: account creation, login and event browsing.
	e.POST("/v1/auth/register", a.Register)
	e.POST("/v1/auth/login", a.Login)
	e.GET("/v1/events", ev.List)
	e.GET("/v1/events/:id", ev.Get)
	e.GET("/v1/events/:id/seats", ev.Seats)

	// Authenticated surface.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	auth.GET("/me", a.Me)
	auth.POST("/events/:id/bookings", b.Create)
	auth.DELETE("/bookings/:id", b.Cancel)
	auth.GET("/bookings/:id", b.Get)
	auth.GET("/my-bookings", b.ListMine)

	// Admin-only maintenance.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/events", ev.Create)
	admin.DELETE("/events/:id", ev.Delete)
	admin.POST("/events/:id/seatmap/cleanup", ev.CleanupSeats)
}
