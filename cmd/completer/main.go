package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/config"
	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/lock"
	"github.com/IlyushaZ/court-booking/pkg/service"
)

var cfg = config.New()

// this should run by cron every few minutes. Completing is idempotent,
// so overlapping runs are harmless: the loser gets InvalidTransition and skips the reservation.
func main() {
	t0 := time.Now()
	cfg.SetupLogger()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("### Can't load time zone: %v", err)
	}
	clock := service.RealClock{Location: loc}

	db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
	if err != nil {
		log.Fatalf("### Can't init database: %v", err)
	}
	defer closeDB()

	store, err := database.NewPostgresStore(db)
	if err != nil {
		log.Fatalf("### Can't init store: %v", err)
	}

	var reservation service.Reservation = &service.ReservationGeneric{
		Store:       store,
		Locker:      lock.NewKeyedMutex(),
		Clock:       clock,
		LockTimeout: cfg.LockTimeout,
	}
	reservation = &service.ReservationLogging{Reservation: reservation}

	completer := &service.Completer{
		Store:       store,
		Reservation: reservation,
		Clock:       clock,
		BatchSize:   cfg.CompleteBatchSize,
	}

	completed, err := completer.Run(context.Background())
	if err != nil {
		log.Fatalf("### Can't complete reservations: %v", err)
	}

	slog.Info("reservations completed", slog.Int("count", completed), slog.String("elapsed", time.Since(t0).String()))
}
