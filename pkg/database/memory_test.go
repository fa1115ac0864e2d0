package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

var (
	day = model.NewDate(2025, time.May, 10)
	now = time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
)

func newStore(t *testing.T) *MemoryStore {
	t.Helper()

	ms := NewMemoryStore()
	require.NoError(t, ms.PutCourt(context.Background(), model.Court{
		ID:             "c1",
		OperatingStart: model.NewTimeOfDay(6, 0),
		OperatingEnd:   model.NewTimeOfDay(22, 0),
		BaseRate:       decimal.NewFromInt(200),
	}))

	return ms
}

func newReservation(id, requester string, startH int, createdAt time.Time) model.Reservation {
	return model.Reservation{
		Base:      model.Base{ID: id, CreatedAt: createdAt},
		CourtID:   "c1",
		Requester: requester,
		Interval:  model.Interval{Date: day, Start: model.NewTimeOfDay(startH, 0), End: model.NewTimeOfDay(startH+1, 0)},
		Status:    model.StatusConfirmed,
		Price:     decimal.NewFromInt(200),
	}
}

func TestMemoryStore_CourtNotFound(t *testing.T) {
	ms := newStore(t)

	_, err := ms.Court(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = ms.Reservation(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_PutReplacesSameID(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()
	iv := func(h int) model.Interval {
		return model.Interval{Date: day, Start: model.NewTimeOfDay(h, 0), End: model.NewTimeOfDay(h+1, 0)}
	}

	require.NoError(t, ms.PutBlock(ctx, model.BlockedInterval{Base: model.Base{ID: "b1"}, CourtID: "c1", Interval: iv(8)}))
	require.NoError(t, ms.PutBlock(ctx, model.BlockedInterval{Base: model.Base{ID: "b1"}, CourtID: "c1", Interval: iv(9)}))
	require.NoError(t, ms.PutBlock(ctx, model.BlockedInterval{Base: model.Base{ID: "b2"}, CourtID: "c1", Interval: iv(12)}))
	require.NoError(t, ms.PutAvailabilityOverride(ctx, model.AvailabilityOverride{Base: model.Base{ID: "o1"}, CourtID: "c1", Interval: iv(14)}))
	require.NoError(t, ms.PutAvailabilityOverride(ctx, model.AvailabilityOverride{Base: model.Base{ID: "o1"}, CourtID: "c1", Interval: iv(15)}))

	facts, err := ms.DayFacts(ctx, "c1", day)
	require.NoError(t, err)
	require.Len(t, facts.Blocks, 2)
	assert.Equal(t, iv(9), facts.Blocks[0].Interval)
	require.Len(t, facts.Overrides, 1)
	assert.Equal(t, iv(15), facts.Overrides[0].Interval)
}

func TestMemoryStore_TxCommit(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()
	r := newReservation("r1", "u1", 10, now)

	err := ms.WithTx(ctx, time.Second, func(tx Tx) error {
		_, err := tx.LockCourt(ctx, "c1")
		require.NoError(t, err)

		require.NoError(t, tx.InsertReservation(ctx, r))

		// the tx sees its own writes, nobody else does yet
		facts, err := tx.DayFacts(ctx, "c1", day)
		require.NoError(t, err)
		assert.Len(t, facts.Reservations, 1)

		facts, err = ms.DayFacts(ctx, "c1", day)
		require.NoError(t, err)
		assert.Empty(t, facts.Reservations)

		e, err := model.EventFor(r, now)
		require.NoError(t, err)
		return tx.AppendEvent(ctx, e)
	})
	require.NoError(t, err)

	got, err := ms.Reservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	facts, err := ms.DayFacts(ctx, "c1", day)
	require.NoError(t, err)
	assert.Len(t, facts.Reservations, 1)

	events := ms.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventReservationCreated, events[0].Kind)
}

func TestMemoryStore_TxRollback(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := ms.WithTx(ctx, time.Second, func(tx Tx) error {
		require.NoError(t, tx.InsertReservation(ctx, newReservation("r1", "u1", 10, now)))
		require.NoError(t, tx.AppendEvent(ctx, model.Event{Base: model.Base{ID: "e1"}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = ms.Reservation(ctx, "r1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, ms.Events())

	// locks are released after rollback
	require.NoError(t, ms.WithTx(ctx, 10*time.Millisecond, func(tx Tx) error {
		_, err := tx.LockCourt(ctx, "c1")
		return err
	}))
}

func TestMemoryStore_LockCourtBusy(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- ms.WithTx(ctx, time.Second, func(tx Tx) error {
			if _, err := tx.LockCourt(ctx, "c1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked

	err := ms.WithTx(ctx, 20*time.Millisecond, func(tx Tx) error {
		_, err := tx.LockCourt(ctx, "c1")
		return err
	})
	assert.True(t, errors.Is(err, model.ErrBusy), "got %v", err)

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryStore_LockCourtZeroTimeoutIsBounded(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- ms.WithTx(ctx, time.Second, func(tx Tx) error {
			if _, err := tx.LockCourt(ctx, "c1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked

	start := time.Now()
	err := ms.WithTx(ctx, 0, func(tx Tx) error {
		_, err := tx.LockCourt(ctx, "c1")
		return err
	})
	assert.True(t, errors.Is(err, model.ErrBusy), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), DefaultLockTimeout)

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()

	require.NoError(t, ms.WithTx(ctx, time.Second, func(tx Tx) error {
		return tx.InsertReservation(ctx, newReservation("r1", "u1", 10, now))
	}))

	require.NoError(t, ms.WithTx(ctx, time.Second, func(tx Tx) error {
		r, err := tx.Reservation(ctx, "r1")
		require.NoError(t, err)
		require.NoError(t, r.Cancel(now))

		// reading the same row twice within a tx does not deadlock
		_, err = tx.Reservation(ctx, "r1")
		require.NoError(t, err)

		return tx.UpdateReservationStatus(ctx, r)
	}))

	r, err := ms.Reservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, r.Status)

	facts, err := ms.DayFacts(ctx, "c1", day)
	require.NoError(t, err)
	require.Len(t, facts.Reservations, 1)
	assert.False(t, facts.Reservations[0].Holds())
}

func TestMemoryStore_ReservationsByRequester(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()

	require.NoError(t, ms.WithTx(ctx, time.Second, func(tx Tx) error {
		for i, id := range []string{"r1", "r2", "r3"} {
			if err := tx.InsertReservation(ctx, newReservation(id, "u1", 8+i, now.Add(time.Duration(i)*time.Minute))); err != nil {
				return err
			}
		}
		return tx.InsertReservation(ctx, newReservation("other", "u2", 15, now))
	}))

	page, total, err := ms.ReservationsByRequester(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "r3", page[0].ID, "newest first")
	assert.Equal(t, "r2", page[1].ID)

	page, _, err = ms.ReservationsByRequester(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r1", page[0].ID)

	page, total, err = ms.ReservationsByRequester(ctx, "u1", 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
}

func TestMemoryStore_Elapsed(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()

	later := newReservation("later", "u1", 15, now)
	later.Interval.Date = model.NewDate(2025, time.May, 11)

	cancelled := newReservation("cancelled", "u1", 12, now)
	cancelled.Status = model.StatusCancelled

	require.NoError(t, ms.WithTx(ctx, time.Second, func(tx Tx) error {
		for _, r := range []model.Reservation{newReservation("r11", "u1", 11, now), newReservation("r9", "u1", 9, now), later, cancelled} {
			if err := tx.InsertReservation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := ms.Elapsed(ctx, day, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r9", got[0].ID)
	assert.Equal(t, "r11", got[1].ID)

	got, err = ms.Elapsed(ctx, day, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore_Outbox(t *testing.T) {
	ms := newStore(t)
	ctx := context.Background()

	require.NoError(t, ms.WithTx(ctx, time.Second, func(tx Tx) error {
		for _, id := range []string{"e1", "e2", "e3"} {
			if err := tx.AppendEvent(ctx, model.Event{Base: model.Base{ID: id, CreatedAt: now}}); err != nil {
				return err
			}
		}
		return nil
	}))

	claimed, err := ms.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "e1", claimed[0].ID)
	assert.Equal(t, "e2", claimed[1].ID)

	// claimed events are not handed out twice
	rest, err := ms.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "e3", rest[0].ID)

	require.NoError(t, ms.MarkDispatched(ctx, "e1", "e3"))
	require.NoError(t, ms.MarkFailed(ctx, "e2", errors.New("broker down")))

	retry, err := ms.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, "e2", retry[0].ID)
	assert.Equal(t, 1, retry[0].Attempts)

	assert.True(t, errors.Is(ms.MarkFailed(ctx, "nope", errors.New("x")), ErrNotFound))
}
