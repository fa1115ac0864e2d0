package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IlyushaZ/court-booking/pkg/metrics"
	"github.com/IlyushaZ/court-booking/pkg/server/handler"
	"github.com/IlyushaZ/court-booking/pkg/server/middleware"
	"github.com/IlyushaZ/court-booking/pkg/service"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second // creates may wait for the court's lock
)

func New(addr string, reservationSvc service.Reservation, availabilitySvc service.Availability) (*http.Server, error) {
	return &http.Server{
		Addr:         addr,
		Handler:      NewHandler(reservationSvc, availabilitySvc),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, nil
}

func NewHandler(reservationSvc service.Reservation, availabilitySvc service.Availability) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /reservations", handler.ReservationCreate(reservationSvc))
	mux.Handle("GET /reservations", handler.ReservationListPage(reservationSvc))
	mux.Handle("GET /reservations/{id}", handler.ReservationGet(reservationSvc))
	mux.Handle("POST /reservations/{id}/cancel", handler.ReservationCancel(reservationSvc))

	mux.Handle("GET /courts/{id}/availability", handler.CourtAvailability(availabilitySvc))
	mux.Handle("GET /courts/{id}/free", handler.CourtFree(availabilitySvc))

	mux.Handle("GET /metrics", promhttp.Handler())

	chain := middleware.Chain{
		middleware.Log,
		middleware.Recovery,
		middleware.Trace,
		metrics.Middleware,
	}

	return chain.Then(mux)
}
