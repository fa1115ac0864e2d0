package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IlyushaZ/court-booking/pkg/limiter"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

var ErrLimitExceeded = errors.New("requester exceeded the limit of reservation attempts")

// ReservationLimiting is a wrapper over Reservation service
// which makes sure that a requester makes no more than Limiter.Limit create attempts per hour.
// Every attempt that reached the engine counts, successful or not.
//
// If failed to check limits, the behavior depends on FailOpen flag. If set, current request is allowed.
// Otherwise, an error will be returned.
type ReservationLimiting struct {
	Reservation

	Limiter  *limiter.Limiter
	FailOpen bool
}

func (rl *ReservationLimiting) Create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	exceeded, err := rl.Limiter.LimitExceeded(ctx, req.Requester)
	if err != nil {
		if !rl.FailOpen {
			return model.Reservation{}, fmt.Errorf("can't check if limit exceeded: %w", err)
		}

		slog.Error("can't check if limit exceeded", slog.Any("error", err))
	}

	if exceeded {
		return model.Reservation{}, ErrLimitExceeded
	}

	r, err := rl.Reservation.Create(ctx, req)

	if _, incErr := rl.Limiter.Increment(ctx, req.Requester); incErr != nil {
		slog.Error("can't increment requester's counter", slog.Any("error", incErr))
	}

	return r, err
}
