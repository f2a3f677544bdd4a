package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avidast/ticketd/internal/booking"
	"github.com/avidast/ticketd/internal/config"
	"github.com/avidast/ticketd/internal/database"
	"github.com/avidast/ticketd/internal/handler"
	"github.com/avidast/ticketd/internal/queue"
	"github.com/avidast/ticketd/internal/repository"
	"github.com/avidast/ticketd/internal/router"
	"github.com/avidast/ticketd/internal/seatmap"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	users := repository.NewUserRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	ledger := repository.NewCapacityLedger(db)
	seats := seatmap.NewStore(rdb)

	orc := booking.NewOrchestrator(seats, ledger, bookings, events, users, cfg.ReserveMaxRetries)

	authHandler := handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost)
	eventHandler := handler.NewEventHandler(events, seats)
	bookingHandler := handler.NewBookingHandler(orc, bookings, events)

	e := echo.New()
	router.Register(e, authHandler, eventHandler, bookingHandler, cfg.JWTSecret)

	// Background consumer appending booking events to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
