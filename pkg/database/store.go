package database

import (
	"context"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

// Tx is a unit of work over the fact store. Writes made through a Tx become
// visible to others all at once when the transaction commits, or not at all.
type Tx interface {
	// LockCourt returns the court, holding an exclusive lock on it until the transaction ends.
	LockCourt(ctx context.Context, courtID string) (model.Court, error)
	DayFacts(ctx context.Context, courtID string, date model.Date) (model.DayFacts, error)
	PriceOverrides(ctx context.Context, courtID string, date model.Date) ([]model.PriceOverride, error)

	// Reservation returns the reservation, locked for update until the transaction ends.
	Reservation(ctx context.Context, id string) (model.Reservation, error)
	InsertReservation(ctx context.Context, r model.Reservation) error
	UpdateReservationStatus(ctx context.Context, r model.Reservation) error

	AppendEvent(ctx context.Context, e model.Event) error
}

type TxFunc func(Tx) error

// DefaultLockTimeout replaces non-positive lock timeouts, so waiting for a lock is always bounded.
const DefaultLockTimeout = 3 * time.Second

func BoundLockTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultLockTimeout
	}
	return d
}

// Store is the authoritative fact store: the court catalog (read-only here),
// reservations, blocks and overrides.
type Store interface {
	Court(ctx context.Context, id string) (model.Court, error)
	DayFacts(ctx context.Context, courtID string, date model.Date) (model.DayFacts, error)
	Reservation(ctx context.Context, id string) (model.Reservation, error)
	ReservationsByRequester(ctx context.Context, requester string, num, size int) ([]model.Reservation, int, error)
	// Elapsed returns confirmed reservations of dates up to and including date, oldest first.
	Elapsed(ctx context.Context, date model.Date, limit int) ([]model.Reservation, error)

	// WithTx runs fn in a transaction which is committed if fn returns nil and rolled back otherwise.
	// lockTimeout bounds the time LockCourt may wait for a lock held by someone else,
	// DefaultLockTimeout is used when it is not positive.
	WithTx(ctx context.Context, lockTimeout time.Duration, fn TxFunc) error
}

// Outbox is the queue of domain events waiting to be published.
type Outbox interface {
	// Pending claims up to limit undelivered events, oldest first.
	Pending(ctx context.Context, limit int) ([]model.Event, error)
	MarkDispatched(ctx context.Context, ids ...string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

// Admin holds catalog and facility management writes. They belong to external
// collaborators and bypass the reservation engine. Each write replaces the record with the same id.
type Admin interface {
	PutCourt(ctx context.Context, c model.Court) error
	PutBlock(ctx context.Context, b model.BlockedInterval) error
	PutAvailabilityOverride(ctx context.Context, o model.AvailabilityOverride) error
	PutPriceOverride(ctx context.Context, po model.PriceOverride) error
}
