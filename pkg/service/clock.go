package service

import "time"

type Clock interface {
	Now() time.Time
}

// RealClock reports wall-clock time in the facility's time zone,
// so that "today" and interval ends are evaluated where the courts are.
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
