package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Reservation struct {
	Base
	CourtID     string          `json:"court_id"`
	Requester   string          `json:"requester"`
	Interval    Interval        `json:"interval"`
	Status      Status          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// MarshalJSON renders the price with cents.
func (r Reservation) MarshalJSON() ([]byte, error) {
	type plain Reservation
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(r), r.Price.StringFixed(2)})
}

// Holds reports whether r currently claims its interval.
func (r Reservation) Holds() bool {
	return r.Status == StatusConfirmed
}

// EndsAt returns the instant the reserved interval ends, interpreted in loc.
func (r Reservation) EndsAt(loc *time.Location) time.Time {
	return r.Interval.Date.At(r.Interval.End, loc)
}

// Cancel moves a confirmed reservation to cancelled. It is allowed any time before
// the interval ends.
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status != StatusConfirmed {
		return fmt.Errorf("%w: can't cancel %s reservation", ErrInvalidTransition, r.Status)
	}

	if !now.Before(r.EndsAt(now.Location())) {
		return fmt.Errorf("%w: reservation has already ended", ErrInvalidTransition)
	}

	r.Status = StatusCancelled
	r.CancelledAt = &now

	return nil
}

// Complete moves a confirmed reservation to completed once its interval has elapsed.
func (r *Reservation) Complete(now time.Time) error {
	if r.Status != StatusConfirmed {
		return fmt.Errorf("%w: can't complete %s reservation", ErrInvalidTransition, r.Status)
	}

	if now.Before(r.EndsAt(now.Location())) {
		return fmt.Errorf("%w: reservation has not ended yet", ErrInvalidTransition)
	}

	r.Status = StatusCompleted
	r.CompletedAt = &now

	return nil
}
