package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

var day = model.NewDate(2025, time.May, 10)

func hm(s string) model.TimeOfDay {
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func iv(start, end string) model.Interval {
	return model.Interval{Date: day, Start: hm(start), End: hm(end)}
}

func court() model.Court {
	return model.Court{
		ID:             "c1",
		OperatingStart: hm("06:00"),
		OperatingEnd:   hm("22:00"),
		BaseRate:       decimal.NewFromInt(200),
	}
}

func reservation(start, end string, status model.Status) model.Reservation {
	return model.Reservation{CourtID: "c1", Interval: iv(start, end), Status: status}
}

func TestCheck(t *testing.T) {
	facts := model.DayFacts{
		Reservations: []model.Reservation{
			reservation("10:00", "11:00", model.StatusConfirmed),
			reservation("12:00", "13:00", model.StatusCancelled),
			reservation("07:00", "08:00", model.StatusCompleted),
		},
		Blocks: []model.BlockedInterval{
			{CourtID: "c1", Interval: iv("15:00", "16:00"), Reason: "maintenance"},
		},
		Overrides: []model.AvailabilityOverride{
			{CourtID: "c1", Interval: iv("18:00", "19:00"), IsAvailable: false},
			{CourtID: "c1", Interval: iv("19:00", "20:00"), IsAvailable: true},
		},
	}

	tests := []struct {
		name string
		iv   model.Interval
		want error
	}{
		{"free", iv("08:00", "09:00"), nil},
		{"touches reservation from the left", iv("09:00", "10:00"), nil},
		{"touches reservation from the right", iv("11:00", "12:00"), nil},
		{"overlaps reservation", iv("10:30", "11:30"), model.ErrAlreadyBooked},
		{"one minute into reservation", iv("09:00", "10:01"), model.ErrAlreadyBooked},
		{"over cancelled reservation", iv("12:00", "13:00"), nil},
		{"over completed reservation", iv("07:00", "08:00"), nil},
		{"blocked", iv("15:30", "16:30"), model.ErrBlocked},
		{"override unavailable", iv("18:30", "19:00"), model.ErrOverrideUnavailable},
		{"override available", iv("19:00", "20:00"), nil},
		{"before opening", iv("05:00", "06:30"), model.ErrOutsideOperatingWindow},
		{"after closing", iv("21:30", "22:30"), model.ErrOutsideOperatingWindow},
		{"whole window", iv("06:00", "22:00"), model.ErrBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(court(), facts, tt.iv)
			if tt.want == nil {
				assert.NoError(t, err)
				assert.True(t, IsFree(court(), facts, tt.iv))
				return
			}

			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, model.ErrSlotUnavailable))
			assert.False(t, IsFree(court(), facts, tt.iv))
		})
	}
}

func TestCheck_ReasonOrder(t *testing.T) {
	facts := model.DayFacts{
		Reservations: []model.Reservation{reservation("10:00", "11:00", model.StatusConfirmed)},
		Blocks:       []model.BlockedInterval{{Interval: iv("10:00", "11:00")}},
		Overrides:    []model.AvailabilityOverride{{Interval: iv("10:00", "11:00")}},
	}

	assert.True(t, errors.Is(Check(court(), facts, iv("10:00", "11:00")), model.ErrBlocked))

	facts.Blocks = nil
	assert.True(t, errors.Is(Check(court(), facts, iv("10:00", "11:00")), model.ErrOverrideUnavailable))

	facts.Overrides = nil
	assert.True(t, errors.Is(Check(court(), facts, iv("10:00", "11:00")), model.ErrAlreadyBooked))

	assert.True(t, errors.Is(Check(court(), facts, iv("21:00", "23:00")), model.ErrOutsideOperatingWindow))
}

func TestBuckets(t *testing.T) {
	facts := model.DayFacts{
		Reservations: []model.Reservation{reservation("10:00", "11:00", model.StatusConfirmed)},
		Blocks:       []model.BlockedInterval{{Interval: iv("15:00", "16:00")}},
	}

	buckets, err := Buckets(court(), facts, day, DefaultBucket)
	require.NoError(t, err)
	require.Len(t, buckets, 16)

	assert.Equal(t, iv("06:00", "07:00"), buckets[0].Interval)
	assert.Equal(t, iv("21:00", "22:00"), buckets[15].Interval)

	taken := map[model.TimeOfDay]bool{}
	for _, b := range buckets {
		if !b.Free {
			taken[b.Start] = true
		}
	}
	assert.Equal(t, map[model.TimeOfDay]bool{hm("10:00"): true, hm("15:00"): true}, taken)

	assert.Len(t, FreeOnly(buckets), 14)
}

func TestBuckets_TrailingPartialDropped(t *testing.T) {
	c := court()
	c.OperatingEnd = hm("08:30")

	buckets, err := Buckets(c, model.DayFacts{}, day, 45*time.Minute)
	require.NoError(t, err)

	// 06:00-06:45, 06:45-07:30, 07:30-08:15, and 08:15-08:30 is too short
	require.Len(t, buckets, 3)
	assert.Equal(t, iv("07:30", "08:15"), buckets[2].Interval)
}

func TestBuckets_Idempotent(t *testing.T) {
	facts := model.DayFacts{Reservations: []model.Reservation{reservation("10:00", "11:30", model.StatusConfirmed)}}

	first, err := Buckets(court(), facts, day, 30*time.Minute)
	require.NoError(t, err)
	second, err := Buckets(court(), facts, day, 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, facts.Reservations, 1)
}

func TestBuckets_InvalidLength(t *testing.T) {
	for _, length := range []time.Duration{0, -time.Hour, 90 * time.Second} {
		_, err := Buckets(court(), model.DayFacts{}, day, length)
		assert.True(t, errors.Is(err, model.ErrInvalidInterval), length.String())
	}
}
