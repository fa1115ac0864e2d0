package service

import (
	"context"
	"fmt"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/ledger"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

// Availability answers display-time questions. Answers are read without any lock
// and may be stale by the time a reservation is attempted.
type Availability interface {
	IsFree(ctx context.Context, courtID string, iv model.Interval) (bool, error)
	// FreeBuckets enumerates the date's buckets of the given length, each marked free or taken.
	FreeBuckets(ctx context.Context, courtID string, date model.Date, length time.Duration) ([]ledger.Bucket, error)
}

type AvailabilityGeneric struct {
	Store database.Store
}

func (ag *AvailabilityGeneric) IsFree(ctx context.Context, courtID string, iv model.Interval) (bool, error) {
	if err := iv.Validate(); err != nil {
		return false, err
	}

	court, facts, err := ag.load(ctx, courtID, iv.Date)
	if err != nil {
		return false, err
	}

	return ledger.IsFree(court, facts, iv), nil
}

func (ag *AvailabilityGeneric) FreeBuckets(ctx context.Context, courtID string, date model.Date, length time.Duration) ([]ledger.Bucket, error) {
	court, facts, err := ag.load(ctx, courtID, date)
	if err != nil {
		return nil, err
	}

	return ledger.Buckets(court, facts, date, length)
}

func (ag *AvailabilityGeneric) load(ctx context.Context, courtID string, date model.Date) (model.Court, model.DayFacts, error) {
	court, err := ag.Store.Court(ctx, courtID)
	if err != nil {
		return model.Court{}, model.DayFacts{}, txError(courtError(courtID, err))
	}

	facts, err := ag.Store.DayFacts(ctx, courtID, date)
	if err != nil {
		return model.Court{}, model.DayFacts{}, txError(fmt.Errorf("can't read facts of %s: %w", date, err))
	}

	return court, facts, nil
}
