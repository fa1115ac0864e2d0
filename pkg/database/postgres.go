package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

// PostgresStore is the Store, Outbox and Admin backed by Postgres.
// Row locks are real "select ... for update" locks bounded by lock_timeout.
type PostgresStore struct {
	db    *sql.DB
	stmts map[string]*sql.Stmt

	// ClaimTTL is how long an event returned by Pending stays invisible to other dispatchers.
	ClaimTTL time.Duration
}

const defaultClaimTTL = 30 * time.Second

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	ps := &PostgresStore{
		db:       db,
		stmts:    make(map[string]*sql.Stmt),
		ClaimTTL: defaultClaimTTL,
	}

	for _, s := range pgStmts {
		prepared, err := db.Prepare(s.query)
		if err != nil {
			return nil, fmt.Errorf("can't prepare query '%s': %w", s.name, err)
		}

		ps.stmts[s.name] = prepared
	}

	return ps, nil
}

type preparedStmt struct {
	name  string
	query string
}

const reservationColumns = `id, court_id, requester, date, start_min, end_min, status, price, created_at, cancelled_at, completed_at`

var (
	pgStmts = []preparedStmt{
		{
			name: "court",
			query: `
				select id, name, operating_start, operating_end, base_rate, metadata
				from courts
				where id = $1
			`,
		},
		{
			name: "reservations_of_day",
			query: `
				select ` + reservationColumns + `
				from reservations
				where court_id = $1 and date = $2
			`,
		},
		{
			name: "blocks_of_day",
			query: `
				select id, court_id, date, start_min, end_min, reason, created_by, created_at
				from blocked_intervals
				where court_id = $1 and date = $2
			`,
		},
		{
			name: "overrides_of_day",
			query: `
				select id, court_id, date, start_min, end_min, is_available, created_at
				from availability_overrides
				where court_id = $1 and date = $2
			`,
		},
		{
			name: "price_overrides",
			query: `
				select id, court_id, date, adjusted_price, reason, expires_at, created_at
				from price_overrides
				where court_id = $1 and (date is null or date = $2)
			`,
		},
		{
			name: "reservation",
			query: `
				select ` + reservationColumns + `
				from reservations
				where id = $1
			`,
		},
		{
			name: "insert_reservation",
			query: `
				insert into reservations (` + reservationColumns + `)
				values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`,
		},
		{
			name: "update_reservation_status",
			query: `
				update reservations
				set status = $2, cancelled_at = $3, completed_at = $4
				where id = $1
			`,
		},
		{
			name: "insert_event",
			query: `
				insert into outbox_events (id, kind, aggregate_id, payload, created_at)
				values ($1, $2, $3, $4, $5)
			`,
		},
	}
)

type queryer interface {
	QueryRowContext(ctx context.Context, args ...any) *sql.Row
	QueryContext(ctx context.Context, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
}

func (ps *PostgresStore) Court(ctx context.Context, id string) (model.Court, error) {
	return scanCourt(ps.stmts["court"].QueryRowContext(ctx, id))
}

func (ps *PostgresStore) DayFacts(ctx context.Context, courtID string, date model.Date) (model.DayFacts, error) {
	return ps.dayFacts(ctx, ps.stmt, courtID, date)
}

func (ps *PostgresStore) Reservation(ctx context.Context, id string) (model.Reservation, error) {
	r, err := scanReservation(ps.stmts["reservation"].QueryRowContext(ctx, id))
	if err != nil {
		return model.Reservation{}, fmt.Errorf("can't get reservation %q: %w", id, mapError(err))
	}
	return r, nil
}

func (ps *PostgresStore) ReservationsByRequester(ctx context.Context, requester string, num, size int) ([]model.Reservation, int, error) {
	q := `
		select count(*) from reservations where requester = $1
	`
	var total int
	if err := ps.db.QueryRowContext(ctx, q, requester).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("can't count reservations: %w", err)
	}

	offset := (num - 1) * size
	q = `
		select ` + reservationColumns + `
		from reservations
		where requester = $1
		order by created_at desc
		limit $2 offset $3
	`
	rows, err := ps.db.QueryContext(ctx, q, requester, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("can't query reservations: %w", err)
	}

	rs, err := collectReservations(rows)
	if err != nil {
		return nil, 0, err
	}

	return rs, total, nil
}

func (ps *PostgresStore) Elapsed(ctx context.Context, date model.Date, limit int) ([]model.Reservation, error) {
	q := `
		select ` + reservationColumns + `
		from reservations
		where status = 'confirmed' and date <= $1
		order by date, end_min
		limit $2
	`
	rows, err := ps.db.QueryContext(ctx, q, date.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("can't query elapsed reservations: %w", err)
	}

	return collectReservations(rows)
}

func (ps *PostgresStore) WithTx(ctx context.Context, lockTimeout time.Duration, fn TxFunc) error {
	return WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		q := `select set_config('lock_timeout', $1, true)`
		if _, err := tx.ExecContext(ctx, q, fmt.Sprintf("%dms", BoundLockTimeout(lockTimeout).Milliseconds())); err != nil {
			return fmt.Errorf("can't set lock timeout: %w", err)
		}

		return fn(&pgTx{ps: ps, tx: tx})
	})
}

func (ps *PostgresStore) stmt(_ context.Context, name string) queryer {
	return ps.stmts[name]
}

type stmtFunc func(ctx context.Context, name string) queryer

func (ps *PostgresStore) dayFacts(ctx context.Context, stmt stmtFunc, courtID string, date model.Date) (model.DayFacts, error) {
	var facts model.DayFacts

	rows, err := stmt(ctx, "reservations_of_day").QueryContext(ctx, courtID, date.String())
	if err != nil {
		return facts, fmt.Errorf("can't query reservations: %w", err)
	}
	if facts.Reservations, err = collectReservations(rows); err != nil {
		return facts, err
	}

	rows, err = stmt(ctx, "blocks_of_day").QueryContext(ctx, courtID, date.String())
	if err != nil {
		return facts, fmt.Errorf("can't query blocks: %w", err)
	}
	if facts.Blocks, err = collectBlocks(rows); err != nil {
		return facts, err
	}

	rows, err = stmt(ctx, "overrides_of_day").QueryContext(ctx, courtID, date.String())
	if err != nil {
		return facts, fmt.Errorf("can't query availability overrides: %w", err)
	}
	if facts.Overrides, err = collectOverrides(rows); err != nil {
		return facts, err
	}

	return facts, nil
}

type pgTx struct {
	ps *PostgresStore
	tx *sql.Tx
}

func (t *pgTx) stmt(ctx context.Context, name string) queryer {
	return t.tx.StmtContext(ctx, t.ps.stmts[name])
}

func (t *pgTx) LockCourt(ctx context.Context, courtID string) (model.Court, error) {
	q := `
		select id, name, operating_start, operating_end, base_rate, metadata
		from courts
		where id = $1
		for update
	`
	c, err := scanCourt(t.tx.QueryRowContext(ctx, q, courtID))
	if err != nil {
		return model.Court{}, fmt.Errorf("can't lock court %q: %w", courtID, err)
	}
	return c, nil
}

func (t *pgTx) DayFacts(ctx context.Context, courtID string, date model.Date) (model.DayFacts, error) {
	return t.ps.dayFacts(ctx, t.stmt, courtID, date)
}

func (t *pgTx) PriceOverrides(ctx context.Context, courtID string, date model.Date) ([]model.PriceOverride, error) {
	rows, err := t.stmt(ctx, "price_overrides").QueryContext(ctx, courtID, date.String())
	if err != nil {
		return nil, fmt.Errorf("can't query price overrides: %w", err)
	}
	defer rows.Close()

	var out []model.PriceOverride
	for rows.Next() {
		var (
			po      model.PriceOverride
			date    sql.NullTime
			expires sql.NullTime
		)
		if err := rows.Scan(&po.ID, &po.CourtID, &date, &po.AdjustedPrice, &po.Reason, &expires, &po.CreatedAt); err != nil {
			return nil, fmt.Errorf("can't scan price override: %w", err)
		}

		if date.Valid {
			d := model.DateOf(date.Time)
			po.Date = &d
		}
		po.ExpiresAt = timePtr(expires)

		out = append(out, po)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over price overrides: %w", err)
	}

	return out, nil
}

func (t *pgTx) Reservation(ctx context.Context, id string) (model.Reservation, error) {
	q := `
		select ` + reservationColumns + `
		from reservations
		where id = $1
		for update
	`
	r, err := scanReservation(t.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Reservation{}, fmt.Errorf("can't lock reservation %q: %w", id, mapError(err))
	}
	return r, nil
}

func (t *pgTx) InsertReservation(ctx context.Context, r model.Reservation) error {
	_, err := t.stmt(ctx, "insert_reservation").ExecContext(ctx,
		r.ID, r.CourtID, r.Requester, r.Interval.Date.String(), int(r.Interval.Start), int(r.Interval.End),
		string(r.Status), r.Price, r.CreatedAt, nullTime(r.CancelledAt), nullTime(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("can't insert reservation: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) UpdateReservationStatus(ctx context.Context, r model.Reservation) error {
	res, err := t.stmt(ctx, "update_reservation_status").ExecContext(ctx,
		r.ID, string(r.Status), nullTime(r.CancelledAt), nullTime(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("can't update reservation's status: %w", mapError(err))
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("reservation %q: %w", r.ID, ErrNotFound)
	}

	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e model.Event) error {
	_, err := t.stmt(ctx, "insert_event").ExecContext(ctx, e.ID, string(e.Kind), e.AggregateID, []byte(e.Payload), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("can't append %s event: %w", e.Kind, mapError(err))
	}
	return nil
}

func (ps *PostgresStore) Pending(ctx context.Context, limit int) ([]model.Event, error) {
	now := time.Now()

	q := `
		update outbox_events
		set locked_until = $1
		where id in (
			select id
			from outbox_events
			where dispatched_at is null
			  and (locked_until is null or locked_until < $2)
			order by created_at
			limit $3
			for update skip locked
		)
		returning id, kind, aggregate_id, payload, created_at, attempts
	`
	rows, err := ps.db.QueryContext(ctx, q, now.Add(ps.ClaimTTL), now, limit)
	if err != nil {
		return nil, fmt.Errorf("can't claim pending events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0, limit)
	for rows.Next() {
		var (
			e       model.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.AggregateID, &payload, &e.CreatedAt, &e.Attempts); err != nil {
			return nil, fmt.Errorf("can't scan event: %w", err)
		}
		e.Payload = payload

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over events: %w", err)
	}

	// "returning" doesn't keep the subquery's order
	sortByCreation(events)

	return events, nil
}

func (ps *PostgresStore) MarkDispatched(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	q := `
		update outbox_events
		set dispatched_at = now(), locked_until = null
		where id = any($1)
	`
	if _, err := ps.db.ExecContext(ctx, q, ids); err != nil {
		return fmt.Errorf("can't mark events as dispatched: %w", err)
	}
	return nil
}

func (ps *PostgresStore) MarkFailed(ctx context.Context, id string, cause error) error {
	q := `
		update outbox_events
		set attempts = attempts + 1, last_error = $2, locked_until = null
		where id = $1
	`
	if _, err := ps.db.ExecContext(ctx, q, id, cause.Error()); err != nil {
		return fmt.Errorf("can't mark event as failed: %w", err)
	}
	return nil
}

func (ps *PostgresStore) PutCourt(ctx context.Context, c model.Court) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("can't marshal court metadata: %w", err)
	}
	if c.Metadata == nil {
		meta = []byte("{}")
	}

	q := `
		insert into courts (id, name, operating_start, operating_end, base_rate, metadata)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do update
		set name = excluded.name,
			operating_start = excluded.operating_start,
			operating_end = excluded.operating_end,
			base_rate = excluded.base_rate,
			metadata = excluded.metadata
	`
	if _, err := ps.db.ExecContext(ctx, q, c.ID, c.Name, int(c.OperatingStart), int(c.OperatingEnd), c.BaseRate, meta); err != nil {
		return fmt.Errorf("can't upsert court: %w", err)
	}
	return nil
}

func (ps *PostgresStore) PutBlock(ctx context.Context, b model.BlockedInterval) error {
	q := `
		insert into blocked_intervals (id, court_id, date, start_min, end_min, reason, created_by, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		on conflict (id) do update
		set date = excluded.date,
			start_min = excluded.start_min,
			end_min = excluded.end_min,
			reason = excluded.reason,
			created_by = excluded.created_by
	`
	iv := b.Interval
	if _, err := ps.db.ExecContext(ctx, q, b.ID, b.CourtID, iv.Date.String(), int(iv.Start), int(iv.End), b.Reason, b.CreatedBy, b.CreatedAt); err != nil {
		return fmt.Errorf("can't upsert blocked interval: %w", err)
	}
	return nil
}

func (ps *PostgresStore) PutAvailabilityOverride(ctx context.Context, o model.AvailabilityOverride) error {
	q := `
		insert into availability_overrides (id, court_id, date, start_min, end_min, is_available, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (id) do update
		set date = excluded.date,
			start_min = excluded.start_min,
			end_min = excluded.end_min,
			is_available = excluded.is_available
	`
	iv := o.Interval
	if _, err := ps.db.ExecContext(ctx, q, o.ID, o.CourtID, iv.Date.String(), int(iv.Start), int(iv.End), o.IsAvailable, o.CreatedAt); err != nil {
		return fmt.Errorf("can't upsert availability override: %w", err)
	}
	return nil
}

func (ps *PostgresStore) PutPriceOverride(ctx context.Context, po model.PriceOverride) error {
	var date sql.NullString
	if po.Date != nil {
		date = sql.NullString{String: po.Date.String(), Valid: true}
	}

	q := `
		insert into price_overrides (id, court_id, date, adjusted_price, reason, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (id) do update
		set date = excluded.date,
			adjusted_price = excluded.adjusted_price,
			reason = excluded.reason,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`
	if _, err := ps.db.ExecContext(ctx, q, po.ID, po.CourtID, date, po.AdjustedPrice, po.Reason, nullTime(po.ExpiresAt), po.CreatedAt); err != nil {
		return fmt.Errorf("can't upsert price override: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourt(row scanner) (model.Court, error) {
	var (
		c    model.Court
		meta []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.OperatingStart, &c.OperatingEnd, &c.BaseRate, &meta); err != nil {
		return model.Court{}, mapError(err)
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return model.Court{}, fmt.Errorf("can't unmarshal court metadata: %w", err)
		}
	}

	return c, nil
}

func scanReservation(row scanner) (model.Reservation, error) {
	var (
		r                      model.Reservation
		date                   time.Time
		cancelledAt, completed sql.NullTime
	)

	err := row.Scan(
		&r.ID, &r.CourtID, &r.Requester, &date, &r.Interval.Start, &r.Interval.End,
		&r.Status, &r.Price, &r.CreatedAt, &cancelledAt, &completed,
	)
	if err != nil {
		return model.Reservation{}, err
	}

	r.Interval.Date = model.DateOf(date)
	r.CancelledAt = timePtr(cancelledAt)
	r.CompletedAt = timePtr(completed)

	return r, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()

	var rs []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan reservation: %w", err)
		}
		rs = append(rs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over reservations: %w", err)
	}

	return rs, nil
}

func collectBlocks(rows *sql.Rows) ([]model.BlockedInterval, error) {
	defer rows.Close()

	var bs []model.BlockedInterval
	for rows.Next() {
		var (
			b    model.BlockedInterval
			date time.Time
		)
		err := rows.Scan(&b.ID, &b.CourtID, &date, &b.Interval.Start, &b.Interval.End, &b.Reason, &b.CreatedBy, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("can't scan blocked interval: %w", err)
		}
		b.Interval.Date = model.DateOf(date)

		bs = append(bs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over blocked intervals: %w", err)
	}

	return bs, nil
}

func collectOverrides(rows *sql.Rows) ([]model.AvailabilityOverride, error) {
	defer rows.Close()

	var ovs []model.AvailabilityOverride
	for rows.Next() {
		var (
			o    model.AvailabilityOverride
			date time.Time
		)
		err := rows.Scan(&o.ID, &o.CourtID, &date, &o.Interval.Start, &o.Interval.End, &o.IsAvailable, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("can't scan availability override: %w", err)
		}
		o.Interval.Date = model.DateOf(date)

		ovs = append(ovs, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over availability overrides: %w", err)
	}

	return ovs, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func sortByCreation(events []model.Event) {
	slices.SortFunc(events, func(a, b model.Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
