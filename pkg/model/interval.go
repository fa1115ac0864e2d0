package model

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04"

	MinutesPerDay = 24 * 60
)

// TimeOfDay is a wall-clock time counted in minutes from midnight.
// MinutesPerDay itself is a legal value and means the end of the day.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if s == "24:00" {
		return MinutesPerDay, nil
	}

	t, err := time.Parse(TimeOfDayLayout, s)
	if err != nil {
		return 0, fmt.Errorf("can't parse time of day %q: %w", s, err)
	}

	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}

	*t = v
	return nil
}

// Date is a calendar day. The zero hour in UTC is used as canonical form,
// so two Dates are equal iff they denote the same day.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("can't parse date %q: %w", s, err)
	}

	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}

	*d = v
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("can't parse date %s: expected JSON string", b)
	}

	return d.UnmarshalText(b[1 : len(b)-1])
}

func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// At returns the instant of tod on d in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).Add(time.Duration(tod) * time.Minute)
}

// Interval is a half-open [Start, End) range of a single day.
type Interval struct {
	Date  Date      `json:"date"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewInterval builds an interval and checks that start < end.
func NewInterval(date Date, start, end TimeOfDay) (Interval, error) {
	iv := Interval{Date: date, Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}

	return iv, nil
}

func (iv Interval) Validate() error {
	if !iv.Start.Valid() || !iv.End.Valid() {
		return fmt.Errorf("%w: %s is out of day bounds", ErrInvalidInterval, iv)
	}

	if iv.Start >= iv.End {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidInterval, iv.Start, iv.End)
	}

	return nil
}

func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.Minutes()) * time.Minute
}

func (iv Interval) String() string {
	return iv.Date.String() + " [" + iv.Start.String() + "," + iv.End.String() + ")"
}

// Overlaps reports whether a and b share at least one instant.
// Intervals on different dates never overlap and touching endpoints do not count.
func Overlaps(a, b Interval) bool {
	if !a.Date.Equal(b.Date) {
		return false
	}

	return a.Start < b.End && b.Start < a.End
}

// Within reports whether inner lies entirely inside outer.
func Within(inner, outer Interval) bool {
	return outer.Start <= inner.Start && inner.End <= outer.End
}
