package model

import (
	"github.com/shopspring/decimal"
)

// Court is a bookable resource. It is owned by the catalog and read-only here.
type Court struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	OperatingStart TimeOfDay       `json:"operating_start"`
	OperatingEnd   TimeOfDay       `json:"operating_end"`
	BaseRate       decimal.Decimal `json:"base_rate"` // per hour
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// Window returns the court's operating window on date.
func (c Court) Window(date Date) Interval {
	return Interval{Date: date, Start: c.OperatingStart, End: c.OperatingEnd}
}

// BlockedInterval is an administrator-imposed unavailability (maintenance, private events).
type BlockedInterval struct {
	Base
	CourtID   string   `json:"court_id"`
	Interval  Interval `json:"interval"`
	Reason    string   `json:"reason"`
	CreatedBy string   `json:"created_by"`
}

// AvailabilityOverride replaces the default "open within the operating window"
// assumption for an interval of a specific date.
type AvailabilityOverride struct {
	Base
	CourtID     string   `json:"court_id"`
	Interval    Interval `json:"interval"`
	IsAvailable bool     `json:"is_available"`
}

// DayFacts holds everything the availability ledger needs to know about one court on one date.
type DayFacts struct {
	Reservations []Reservation
	Blocks       []BlockedInterval
	Overrides    []AvailabilityOverride
}
