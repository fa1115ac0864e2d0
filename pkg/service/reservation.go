package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/ledger"
	"github.com/IlyushaZ/court-booking/pkg/lock"
	"github.com/IlyushaZ/court-booking/pkg/model"
	"github.com/IlyushaZ/court-booking/pkg/pricing"
)

const (
	DefaultPageNum  = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Reservation interface {
	Create(ctx context.Context, req CreateRequest) (model.Reservation, error)
	Cancel(ctx context.Context, id, requester string) (model.Reservation, error)
	Complete(ctx context.Context, id string) (model.Reservation, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	ListByRequester(ctx context.Context, requester string, pageNum, pageSize int) ([]model.Reservation, int, error)
}

type CreateRequest struct {
	CourtID   string         `json:"court_id"`
	Interval  model.Interval `json:"interval"`
	Requester string         `json:"-"`
}

// CancelGuard lets the caller impose its own cancellation policy, e.g. a cutoff window.
// Returned errors are reported as ErrInvalidTransition.
type CancelGuard func(r model.Reservation, requester string, now time.Time) error

// CommitHook is called after a state change has been committed.
type CommitHook func(ctx context.Context, r model.Reservation)

// ReservationGeneric represents an implementation of Reservation interface containing core logics
// which can be wrapped in other implementations contained in reservation_*.go.
//
// Creates on the same court are serialized twice: by Locker, which keeps contenders off the database,
// and by the court's row lock taken inside the transaction, which is what actually makes
// the availability check and the insert atomic.
type ReservationGeneric struct {
	Store       database.Store
	Locker      lock.Locker
	Clock       Clock
	LockTimeout time.Duration
	CancelGuard CancelGuard
	AfterCommit []CommitHook
}

func (rg *ReservationGeneric) Create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	iv := req.Interval
	if err := iv.Validate(); err != nil {
		return model.Reservation{}, err
	}

	if today := model.DateOf(rg.Clock.Now()); iv.Date.Before(today) {
		return model.Reservation{}, fmt.Errorf("%w: %s is before %s", model.ErrPastDate, iv.Date, today)
	}

	if _, err := rg.Store.Court(ctx, req.CourtID); err != nil {
		return model.Reservation{}, courtError(req.CourtID, err)
	}

	unlock, err := rg.lockCourt(ctx, req.CourtID)
	if err != nil {
		return model.Reservation{}, err
	}

	var r model.Reservation
	err = rg.Store.WithTx(ctx, rg.LockTimeout, func(tx database.Tx) error {
		court, err := tx.LockCourt(ctx, req.CourtID)
		if err != nil {
			return courtError(req.CourtID, err)
		}

		facts, err := tx.DayFacts(ctx, court.ID, iv.Date)
		if err != nil {
			return fmt.Errorf("can't read facts of %s: %w", iv.Date, err)
		}

		if err := ledger.Check(court, facts, iv); err != nil {
			return err
		}

		overrides, err := tx.PriceOverrides(ctx, court.ID, iv.Date)
		if err != nil {
			return fmt.Errorf("can't read price overrides: %w", err)
		}

		now := rg.Clock.Now()
		r = model.Reservation{
			Base:      model.Base{ID: uuid.NewString(), CreatedAt: now},
			CourtID:   court.ID,
			Requester: req.Requester,
			Interval:  iv,
			Status:    model.StatusConfirmed,
			Price:     pricing.Resolve(court, overrides, iv, now),
		}

		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}

		return appendEvent(ctx, tx, r, now)
	})
	unlock()

	if err != nil {
		return model.Reservation{}, txError(err)
	}

	rg.afterCommit(ctx, r)
	return r, nil
}

func (rg *ReservationGeneric) Cancel(ctx context.Context, id, requester string) (model.Reservation, error) {
	return rg.transition(ctx, id, func(r *model.Reservation, now time.Time) error {
		if rg.CancelGuard != nil {
			if err := rg.CancelGuard(*r, requester, now); err != nil {
				if !errors.Is(err, model.ErrInvalidTransition) {
					err = fmt.Errorf("%w: %w", model.ErrInvalidTransition, err)
				}
				return err
			}
		}

		return r.Cancel(now)
	})
}

func (rg *ReservationGeneric) Complete(ctx context.Context, id string) (model.Reservation, error) {
	return rg.transition(ctx, id, func(r *model.Reservation, now time.Time) error {
		return r.Complete(now)
	})
}

// transition applies change to the reservation while holding its row lock
// and records the resulting event in the same transaction.
func (rg *ReservationGeneric) transition(ctx context.Context, id string, change func(*model.Reservation, time.Time) error) (model.Reservation, error) {
	var r model.Reservation
	err := rg.Store.WithTx(ctx, rg.LockTimeout, func(tx database.Tx) error {
		var err error
		r, err = tx.Reservation(ctx, id)
		if err != nil {
			return reservationError(id, err)
		}

		now := rg.Clock.Now()
		if err := change(&r, now); err != nil {
			return err
		}

		if err := tx.UpdateReservationStatus(ctx, r); err != nil {
			return err
		}

		return appendEvent(ctx, tx, r, now)
	})
	if err != nil {
		return model.Reservation{}, txError(err)
	}

	rg.afterCommit(ctx, r)
	return r, nil
}

func (rg *ReservationGeneric) Get(ctx context.Context, id string) (model.Reservation, error) {
	r, err := rg.Store.Reservation(ctx, id)
	if err != nil {
		return model.Reservation{}, txError(reservationError(id, err))
	}
	return r, nil
}

func (rg *ReservationGeneric) ListByRequester(ctx context.Context, requester string, pageNum, pageSize int) ([]model.Reservation, int, error) {
	pageNum, pageSize = normalizePage(pageNum, pageSize)

	rs, total, err := rg.Store.ReservationsByRequester(ctx, requester, pageNum, pageSize)
	if err != nil {
		return nil, 0, txError(err)
	}
	return rs, total, nil
}

func (rg *ReservationGeneric) lockCourt(ctx context.Context, courtID string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, database.BoundLockTimeout(rg.LockTimeout))
	defer cancel()

	unlock, err := rg.Locker.Lock(ctx, courtID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, fmt.Errorf("%w: %w", model.ErrBusy, err)
		}
		return nil, fmt.Errorf("%w: can't lock court: %w", model.ErrStorageFailure, err)
	}

	return unlock, nil
}

func (rg *ReservationGeneric) afterCommit(ctx context.Context, r model.Reservation) {
	for _, hook := range rg.AfterCommit {
		hook(ctx, r)
	}
}

func appendEvent(ctx context.Context, tx database.Tx, r model.Reservation, now time.Time) error {
	e, err := model.EventFor(r, now)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, e)
}

func courtError(id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %q", model.ErrResourceNotFound, id)
	}
	return err
}

func reservationError(id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %q", model.ErrReservationNotFound, id)
	}
	return err
}

// txError leaves business rejections and contention as they are
// and reports everything else as a storage failure.
func txError(err error) error {
	if model.IsRejection(err) || errors.Is(err, model.ErrBusy) || errors.Is(err, model.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrStorageFailure, err)
}

func normalizePage(num, size int) (int, int) {
	if num < 1 {
		num = DefaultPageNum
	}

	switch {
	case size < 1:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	return num, size
}
