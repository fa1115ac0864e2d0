package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

// ReservationLogging logs every state-changing call. Business rejections are expected traffic
// and go to debug, everything else is logged as an error.
type ReservationLogging struct {
	Reservation
}

func (rl *ReservationLogging) Create(ctx context.Context, req CreateRequest) (r model.Reservation, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("court_id", req.CourtID),
			slog.String("requester", req.Requester),
			slog.String("interval", req.Interval.String()),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			logFailure(log, "failed to create reservation", err)
		} else {
			log.Debug("reservation created", slog.String("id", r.ID), slog.String("price", r.Price.StringFixed(2)))
		}
	}(time.Now())

	return rl.Reservation.Create(ctx, req)
}

func (rl *ReservationLogging) Cancel(ctx context.Context, id, requester string) (r model.Reservation, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("id", id),
			slog.String("requester", requester),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			logFailure(log, "failed to cancel reservation", err)
		} else {
			log.Debug("reservation cancelled")
		}
	}(time.Now())

	return rl.Reservation.Cancel(ctx, id, requester)
}

func (rl *ReservationLogging) Complete(ctx context.Context, id string) (r model.Reservation, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("id", id),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			logFailure(log, "failed to complete reservation", err)
		} else {
			log.Debug("reservation completed")
		}
	}(time.Now())

	return rl.Reservation.Complete(ctx, id)
}

func logFailure(log *slog.Logger, msg string, err error) {
	if model.IsRejection(err) {
		log.Debug(msg, slog.String("code", model.Code(err)), slog.Any("error", err))
		return
	}

	log.Error(msg, slog.String("code", model.Code(err)), slog.Any("error", err))
}
