package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/lock"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

// MemoryStore keeps all facts in process memory. It is used for single-node
// setups without Postgres and in tests.
//
// Row locks taken by LockCourt and Tx.Reservation are emulated with a KeyedMutex and are held
// until the transaction ends, like "select ... for update" would be.
type MemoryStore struct {
	mu sync.RWMutex

	courts       map[string]model.Court
	reservations map[string]model.Reservation
	byDay        map[dayKey][]string // reservation ids
	blocks       map[dayKey][]model.BlockedInterval
	overrides    map[dayKey][]model.AvailabilityOverride
	prices       map[string][]model.PriceOverride // by court id
	events       []*memEvent

	rowLocks *lock.KeyedMutex
}

type dayKey struct {
	courtID string
	date    string
}

func keyOf(courtID string, date model.Date) dayKey {
	return dayKey{courtID, date.String()}
}

type memEvent struct {
	model.Event
	claimed    bool
	dispatched bool
	lastError  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courts:       make(map[string]model.Court),
		reservations: make(map[string]model.Reservation),
		byDay:        make(map[dayKey][]string),
		blocks:       make(map[dayKey][]model.BlockedInterval),
		overrides:    make(map[dayKey][]model.AvailabilityOverride),
		prices:       make(map[string][]model.PriceOverride),
		rowLocks:     lock.NewKeyedMutex(),
	}
}

func (ms *MemoryStore) PutCourt(_ context.Context, c model.Court) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.courts[c.ID] = c
	return nil
}

func (ms *MemoryStore) PutBlock(_ context.Context, b model.BlockedInterval) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	k := keyOf(b.CourtID, b.Interval.Date)
	ms.blocks[k] = putByID(ms.blocks[k], b, b.ID, func(b model.BlockedInterval) string { return b.ID })
	return nil
}

func (ms *MemoryStore) PutAvailabilityOverride(_ context.Context, o model.AvailabilityOverride) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	k := keyOf(o.CourtID, o.Interval.Date)
	ms.overrides[k] = putByID(ms.overrides[k], o, o.ID, func(o model.AvailabilityOverride) string { return o.ID })
	return nil
}

func (ms *MemoryStore) PutPriceOverride(_ context.Context, po model.PriceOverride) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.prices[po.CourtID] = putByID(ms.prices[po.CourtID], po, po.ID, func(po model.PriceOverride) string { return po.ID })
	return nil
}

func putByID[T any](list []T, v T, id string, idOf func(T) string) []T {
	for i := range list {
		if idOf(list[i]) == id {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func (ms *MemoryStore) Court(_ context.Context, id string) (model.Court, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	c, ok := ms.courts[id]
	if !ok {
		return model.Court{}, fmt.Errorf("court %q: %w", id, ErrNotFound)
	}
	return c, nil
}

func (ms *MemoryStore) DayFacts(_ context.Context, courtID string, date model.Date) (model.DayFacts, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.dayFactsLocked(courtID, date), nil
}

func (ms *MemoryStore) dayFactsLocked(courtID string, date model.Date) model.DayFacts {
	k := keyOf(courtID, date)

	facts := model.DayFacts{
		Blocks:    slices.Clone(ms.blocks[k]),
		Overrides: slices.Clone(ms.overrides[k]),
	}
	for _, id := range ms.byDay[k] {
		facts.Reservations = append(facts.Reservations, ms.reservations[id])
	}

	return facts
}

func (ms *MemoryStore) Reservation(_ context.Context, id string) (model.Reservation, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	r, ok := ms.reservations[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("reservation %q: %w", id, ErrNotFound)
	}
	return r, nil
}

func (ms *MemoryStore) ReservationsByRequester(_ context.Context, requester string, num, size int) ([]model.Reservation, int, error) {
	ms.mu.RLock()
	var all []model.Reservation
	for _, r := range ms.reservations {
		if r.Requester == requester {
			all = append(all, r)
		}
	}
	ms.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	offset := (num - 1) * size
	if offset < 0 || offset >= len(all) {
		return []model.Reservation{}, len(all), nil
	}

	end := min(offset+size, len(all))
	return all[offset:end], len(all), nil
}

func (ms *MemoryStore) Elapsed(_ context.Context, date model.Date, limit int) ([]model.Reservation, error) {
	ms.mu.RLock()
	var out []model.Reservation
	for _, r := range ms.reservations {
		if r.Holds() && !date.Before(r.Interval.Date) {
			out = append(out, r)
		}
	}
	ms.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Interval, out[j].Interval
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.End < b.End
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (ms *MemoryStore) WithTx(_ context.Context, lockTimeout time.Duration, fn TxFunc) error {
	tx := &memTx{
		store:       ms,
		lockTimeout: BoundLockTimeout(lockTimeout),
		updated:     make(map[string]model.Reservation),
	}
	defer tx.releaseLocks()

	if err := fn(tx); err != nil {
		return err
	}

	return ms.commit(tx)
}

func (ms *MemoryStore) commit(tx *memTx) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, r := range tx.inserted {
		if _, ok := ms.reservations[r.ID]; ok {
			return fmt.Errorf("can't commit tx: reservation %q already exists", r.ID)
		}
	}

	for _, r := range tx.inserted {
		ms.reservations[r.ID] = r
		k := keyOf(r.CourtID, r.Interval.Date)
		ms.byDay[k] = append(ms.byDay[k], r.ID)
	}

	for id, r := range tx.updated {
		ms.reservations[id] = r
	}

	for _, e := range tx.events {
		ms.events = append(ms.events, &memEvent{Event: e})
	}

	return nil
}

type memTx struct {
	store       *MemoryStore
	lockTimeout time.Duration
	unlocks     []func()
	held        map[string]bool

	inserted []model.Reservation
	updated  map[string]model.Reservation
	events   []model.Event
}

func (tx *memTx) rowLock(ctx context.Context, key string) error {
	if tx.held[key] {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, tx.lockTimeout)
	defer cancel()

	unlock, err := tx.store.rowLocks.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return fmt.Errorf("%w: %w", model.ErrBusy, err)
		}
		return err
	}

	if tx.held == nil {
		tx.held = make(map[string]bool)
	}
	tx.held[key] = true
	tx.unlocks = append(tx.unlocks, unlock)

	return nil
}

func (tx *memTx) releaseLocks() {
	for i := len(tx.unlocks) - 1; i >= 0; i-- {
		tx.unlocks[i]()
	}
}

func (tx *memTx) LockCourt(ctx context.Context, courtID string) (model.Court, error) {
	if err := tx.rowLock(ctx, "court:"+courtID); err != nil {
		return model.Court{}, err
	}

	return tx.store.Court(ctx, courtID)
}

func (tx *memTx) DayFacts(_ context.Context, courtID string, date model.Date) (model.DayFacts, error) {
	tx.store.mu.RLock()
	facts := tx.store.dayFactsLocked(courtID, date)
	tx.store.mu.RUnlock()

	for i, r := range facts.Reservations {
		if u, ok := tx.updated[r.ID]; ok {
			facts.Reservations[i] = u
		}
	}

	for _, r := range tx.inserted {
		if r.CourtID == courtID && r.Interval.Date.Equal(date) {
			facts.Reservations = append(facts.Reservations, r)
		}
	}

	return facts, nil
}

func (tx *memTx) PriceOverrides(_ context.Context, courtID string, date model.Date) ([]model.PriceOverride, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	var out []model.PriceOverride
	for _, po := range tx.store.prices[courtID] {
		if po.Date == nil || po.Date.Equal(date) {
			out = append(out, po)
		}
	}
	return out, nil
}

func (tx *memTx) Reservation(ctx context.Context, id string) (model.Reservation, error) {
	if err := tx.rowLock(ctx, "reservation:"+id); err != nil {
		return model.Reservation{}, err
	}

	if r, ok := tx.updated[id]; ok {
		return r, nil
	}

	for _, r := range tx.inserted {
		if r.ID == id {
			return r, nil
		}
	}

	return tx.store.Reservation(ctx, id)
}

func (tx *memTx) InsertReservation(_ context.Context, r model.Reservation) error {
	tx.inserted = append(tx.inserted, r)
	return nil
}

func (tx *memTx) UpdateReservationStatus(_ context.Context, r model.Reservation) error {
	for i := range tx.inserted {
		if tx.inserted[i].ID == r.ID {
			tx.inserted[i] = r
			return nil
		}
	}

	tx.updated[r.ID] = r
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, e model.Event) error {
	tx.events = append(tx.events, e)
	return nil
}

func (ms *MemoryStore) Pending(_ context.Context, limit int) ([]model.Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var out []model.Event
	for _, e := range ms.events {
		if len(out) >= limit {
			break
		}
		if e.dispatched || e.claimed {
			continue
		}

		e.claimed = true
		out = append(out, e.Event)
	}

	return out, nil
}

func (ms *MemoryStore) MarkDispatched(_ context.Context, ids ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, e := range ms.events {
		if slices.Contains(ids, e.ID) {
			e.dispatched = true
			e.claimed = false
		}
	}
	return nil
}

func (ms *MemoryStore) MarkFailed(_ context.Context, id string, cause error) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, e := range ms.events {
		if e.ID == id {
			e.claimed = false
			e.Attempts++
			e.lastError = cause.Error()
			return nil
		}
	}
	return fmt.Errorf("event %q: %w", id, ErrNotFound)
}

// Events returns every event ever appended, in order. Used by tests and diagnostics.
func (ms *MemoryStore) Events() []model.Event {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]model.Event, 0, len(ms.events))
	for _, e := range ms.events {
		out = append(out, e.Event)
	}
	return out
}
