// Package ledger answers availability questions from the facts known about
// one court on one date. It never mutates the facts it is given.
package ledger

import (
	"fmt"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

const DefaultBucket = 60 * time.Minute

// Bucket is a fixed-length part of the operating window.
type Bucket struct {
	model.Interval
	Free bool `json:"free"`
}

// Check returns nil if iv can be reserved on court, or the reason it can't.
// Reasons are checked in a fixed order: operating window, blocks, schedule overrides, reservations.
func Check(court model.Court, facts model.DayFacts, iv model.Interval) error {
	if !model.Within(iv, court.Window(iv.Date)) {
		return fmt.Errorf("%w: %s not within %s-%s", model.ErrOutsideOperatingWindow, iv, court.OperatingStart, court.OperatingEnd)
	}

	for _, b := range facts.Blocks {
		if model.Overlaps(b.Interval, iv) {
			return fmt.Errorf("%w: %s", model.ErrBlocked, b.Reason)
		}
	}

	for _, o := range facts.Overrides {
		if !o.IsAvailable && model.Overlaps(o.Interval, iv) {
			return model.ErrOverrideUnavailable
		}
	}

	for _, r := range facts.Reservations {
		if r.Holds() && model.Overlaps(r.Interval, iv) {
			return model.ErrAlreadyBooked
		}
	}

	return nil
}

func IsFree(court model.Court, facts model.DayFacts, iv model.Interval) bool {
	return Check(court, facts, iv) == nil
}

// Buckets splits court's operating window on date into consecutive buckets of the given length,
// starting at the opening time. A trailing bucket shorter than length is dropped.
func Buckets(court model.Court, facts model.DayFacts, date model.Date, length time.Duration) ([]Bucket, error) {
	step := model.TimeOfDay(length / time.Minute)
	if step <= 0 || length%time.Minute != 0 {
		return nil, fmt.Errorf("%w: bucket length %s must be a positive whole number of minutes", model.ErrInvalidInterval, length)
	}

	var out []Bucket
	for start := court.OperatingStart; start+step <= court.OperatingEnd; start += step {
		iv := model.Interval{Date: date, Start: start, End: start + step}
		out = append(out, Bucket{Interval: iv, Free: IsFree(court, facts, iv)})
	}

	return out, nil
}

// FreeOnly keeps the free buckets.
func FreeOnly(bs []Bucket) []Bucket {
	out := make([]Bucket, 0, len(bs))
	for _, b := range bs {
		if b.Free {
			out = append(out, b)
		}
	}
	return out
}
