package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventKind string

// Event kinds double as routing keys when published to the broker.
const (
	EventReservationCreated   EventKind = "reservation.created"
	EventReservationCancelled EventKind = "reservation.cancelled"
	EventReservationCompleted EventKind = "reservation.completed"
)

// Event is a domain event stored in the outbox in the same transaction as the state change
// that produced it, and delivered at least once afterwards.
type Event struct {
	Base
	Kind        EventKind       `json:"kind"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"-"`
}

type ReservationCreated struct {
	ReservationID string          `json:"reservation_id"`
	CourtID       string          `json:"court_id"`
	Requester     string          `json:"requester"`
	Interval      Interval        `json:"interval"`
	Price         decimal.Decimal `json:"price"`
}

func (rc ReservationCreated) MarshalJSON() ([]byte, error) {
	type plain ReservationCreated
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(rc), rc.Price.StringFixed(2)})
}

type ReservationCancelled struct {
	ReservationID string `json:"reservation_id"`
}

type ReservationCompleted struct {
	ReservationID string `json:"reservation_id"`
}

func NewEvent(kind EventKind, aggregateID string, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("can't marshal %s payload: %w", kind, err)
	}

	return Event{
		Base:        Base{ID: uuid.NewString(), CreatedAt: now},
		Kind:        kind,
		AggregateID: aggregateID,
		Payload:     raw,
	}, nil
}

// EventFor builds the event announcing r's current status.
func EventFor(r Reservation, now time.Time) (Event, error) {
	switch r.Status {
	case StatusConfirmed:
		return NewEvent(EventReservationCreated, r.ID, ReservationCreated{
			ReservationID: r.ID,
			CourtID:       r.CourtID,
			Requester:     r.Requester,
			Interval:      r.Interval,
			Price:         r.Price,
		}, now)
	case StatusCancelled:
		return NewEvent(EventReservationCancelled, r.ID, ReservationCancelled{ReservationID: r.ID}, now)
	case StatusCompleted:
		return NewEvent(EventReservationCompleted, r.ID, ReservationCompleted{ReservationID: r.ID}, now)
	default:
		return Event{}, fmt.Errorf("no event for status %q", r.Status)
	}
}
