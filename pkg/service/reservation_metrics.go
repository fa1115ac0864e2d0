package service

import (
	"context"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/metrics"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

type ReservationMetrics struct {
	Reservation
}

func (rm *ReservationMetrics) Create(ctx context.Context, req CreateRequest) (r model.Reservation, err error) {
	defer observe("create", time.Now(), &err)
	return rm.Reservation.Create(ctx, req)
}

func (rm *ReservationMetrics) Cancel(ctx context.Context, id, requester string) (r model.Reservation, err error) {
	defer observe("cancel", time.Now(), &err)
	return rm.Reservation.Cancel(ctx, id, requester)
}

func (rm *ReservationMetrics) Complete(ctx context.Context, id string) (r model.Reservation, err error) {
	defer observe("complete", time.Now(), &err)
	return rm.Reservation.Complete(ctx, id)
}

func observe(op string, t0 time.Time, err *error) {
	code := "ok"
	if *err != nil {
		code = model.Code(*err)
	}

	metrics.OperationTotal.WithLabelValues(op, code).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(t0).Seconds())
}
