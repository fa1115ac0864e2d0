package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmed() Reservation {
	return Reservation{
		Base:      Base{ID: "r1"},
		CourtID:   "c1",
		Requester: "u1",
		Interval:  Interval{Date: NewDate(2025, time.May, 10), Start: hm("10:00"), End: hm("11:00")},
		Status:    StatusConfirmed,
		Price:     decimal.RequireFromString("200.00"),
	}
}

func TestReservation_Cancel(t *testing.T) {
	before := time.Date(2025, time.May, 10, 10, 30, 0, 0, time.UTC)

	r := confirmed()
	require.NoError(t, r.Cancel(before))
	assert.Equal(t, StatusCancelled, r.Status)
	require.NotNil(t, r.CancelledAt)
	assert.Equal(t, before, *r.CancelledAt)
	assert.False(t, r.Holds())

	t.Run("cancelling twice is rejected and changes nothing", func(t *testing.T) {
		snapshot := r
		err := r.Cancel(before.Add(time.Minute))
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Equal(t, snapshot, r)
	})

	t.Run("ended", func(t *testing.T) {
		r := confirmed()
		err := r.Cancel(time.Date(2025, time.May, 10, 11, 0, 0, 0, time.UTC))
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Equal(t, StatusConfirmed, r.Status)
	})

	t.Run("completed", func(t *testing.T) {
		r := confirmed()
		r.Status = StatusCompleted
		assert.True(t, errors.Is(r.Cancel(before), ErrInvalidTransition))
	})
}

func TestReservation_Complete(t *testing.T) {
	r := confirmed()

	err := r.Complete(time.Date(2025, time.May, 10, 10, 59, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StatusConfirmed, r.Status)

	end := time.Date(2025, time.May, 10, 11, 0, 0, 0, time.UTC)
	require.NoError(t, r.Complete(end))
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, end, *r.CompletedAt)
	assert.True(t, r.Status.Terminal())

	assert.True(t, errors.Is(r.Complete(end), ErrInvalidTransition))

	cancelled := confirmed()
	cancelled.Status = StatusCancelled
	assert.True(t, errors.Is(cancelled.Complete(end), ErrInvalidTransition))
}

func TestReservation_EndsAtUsesLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	r := confirmed()

	// 10:30 in Moscow is 07:30 UTC, the 10:00-11:00 reservation there has not ended
	now := time.Date(2025, time.May, 10, 7, 30, 0, 0, time.UTC).In(msk)
	assert.True(t, now.Before(r.EndsAt(now.Location())))
	assert.NoError(t, r.Cancel(now))
}

func TestEventFor(t *testing.T) {
	now := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	r := confirmed()

	e, err := EventFor(r, now)
	require.NoError(t, err)
	assert.Equal(t, EventReservationCreated, e.Kind)
	assert.Equal(t, r.ID, e.AggregateID)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.CreatedAt)
	assert.JSONEq(t, `{
		"reservation_id": "r1",
		"court_id": "c1",
		"requester": "u1",
		"interval": {"date": "2025-05-10", "start": "10:00", "end": "11:00"},
		"price": "200.00"
	}`, string(e.Payload))

	require.NoError(t, r.Cancel(now))
	e, err = EventFor(r, now)
	require.NoError(t, err)
	assert.Equal(t, EventReservationCancelled, e.Kind)

	var payload ReservationCancelled
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, "r1", payload.ReservationID)

	_, err = EventFor(Reservation{Status: "unknown"}, now)
	assert.Error(t, err)
}

func TestReservationJSON_PriceHasCents(t *testing.T) {
	r := confirmed()
	r.Price = decimal.NewFromInt(200)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Equal(t, "200.00", fields["price"])
	assert.Equal(t, "r1", fields["id"])
	assert.Equal(t, "confirmed", fields["status"])

	r.Price = decimal.RequireFromString("33.333")
	b, err = json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":"33.33"`)

	var back Reservation
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "33.33", back.Price.StringFixed(2))
	assert.Equal(t, r.Interval.Start, back.Interval.Start)
}
