package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

const tracerName = "github.com/IlyushaZ/court-booking/pkg/service"

type ReservationTracing struct {
	Reservation
}

func (rt *ReservationTracing) Create(ctx context.Context, req CreateRequest) (r model.Reservation, err error) {
	ctx, span := startSpan(ctx, "reservation.create",
		attribute.String("court.id", req.CourtID),
		attribute.String("interval", req.Interval.String()),
	)
	defer func() { endSpan(span, err) }()

	r, err = rt.Reservation.Create(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.String("reservation.id", r.ID))
	}
	return r, err
}

func (rt *ReservationTracing) Cancel(ctx context.Context, id, requester string) (r model.Reservation, err error) {
	ctx, span := startSpan(ctx, "reservation.cancel", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	return rt.Reservation.Cancel(ctx, id, requester)
}

func (rt *ReservationTracing) Complete(ctx context.Context, id string) (r model.Reservation, err error) {
	ctx, span := startSpan(ctx, "reservation.complete", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	return rt.Reservation.Complete(ctx, id)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.code", model.Code(err)))
		if !model.IsRejection(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
