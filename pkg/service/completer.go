package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

// Completer moves confirmed reservations whose interval has elapsed to completed.
// It is driven by an external scheduler, one Run per tick.
type Completer struct {
	Store       database.Store
	Reservation Reservation
	Clock       Clock
	BatchSize   int
}

// Run completes up to BatchSize elapsed reservations and returns how many were completed.
// A reservation that fails to complete is logged and skipped, the next run will pick it up again.
func (c *Completer) Run(ctx context.Context) (int, error) {
	now := c.Clock.Now()

	candidates, err := c.Store.Elapsed(ctx, model.DateOf(now), c.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("can't get elapsed reservations: %w", err)
	}

	var completed int
	for _, r := range candidates {
		if now.Before(r.EndsAt(now.Location())) {
			continue // today's reservation still in progress
		}

		if _, err := c.Reservation.Complete(ctx, r.ID); err != nil {
			if errors.Is(err, model.ErrInvalidTransition) {
				continue // cancelled in the meantime
			}

			slog.Error("can't complete reservation", slog.String("id", r.ID), slog.Any("error", err))
			continue
		}

		completed++
	}

	return completed, nil
}
