package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/metrics"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100

	publishTimeout = 5 * time.Second
)

// Dispatcher drains the outbox into Publisher. It polls every Interval and
// also right after Wake is called. Delivery is at least once: an event whose
// publishing failed stays in the outbox and is retried on the next round.
type Dispatcher struct {
	Outbox    database.Outbox
	Publisher Publisher
	Interval  time.Duration
	BatchSize int

	wake chan struct{}
}

func NewDispatcher(outbox database.Outbox, pub Publisher, interval time.Duration, batchSize int) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Dispatcher{
		Outbox:    outbox,
		Publisher: pub,
		Interval:  interval,
		BatchSize: batchSize,
		wake:      make(chan struct{}, 1),
	}
}

// Wake asks for a dispatch round without waiting for it.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Notify has the CommitHook signature so the dispatcher can be woken by the engine.
func (d *Dispatcher) Notify(context.Context, model.Reservation) {
	d.Wake()
}

// Run dispatches until ctx is done. One last round is made on exit to flush what was committed.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			d.Flush(flushCtx)
			cancel()
			return nil

		case <-ticker.C:
		case <-d.wake:
		}

		d.Flush(ctx)
	}
}

// Flush dispatches pending events until the outbox has no more of them or a round fails entirely.
func (d *Dispatcher) Flush(ctx context.Context) {
	for {
		sent, total := d.dispatchBatch(ctx)
		if total < d.BatchSize || sent == 0 {
			return
		}
	}
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) (sent, total int) {
	events, err := d.Outbox.Pending(ctx, d.BatchSize)
	if err != nil {
		slog.Error("can't get pending events", slog.Any("error", err))
		return 0, 0
	}

	dispatched := make([]string, 0, len(events))
	for _, e := range events {
		if err := d.publish(ctx, e); err != nil {
			slog.Error("can't publish event",
				slog.String("id", e.ID),
				slog.String("kind", string(e.Kind)),
				slog.Int("attempts", e.Attempts+1),
				slog.Any("error", err),
			)
			metrics.EventsPublished.WithLabelValues(string(e.Kind), "failed").Inc()

			if err := d.Outbox.MarkFailed(ctx, e.ID, err); err != nil {
				slog.Error("can't mark event as failed", slog.String("id", e.ID), slog.Any("error", err))
			}
			continue
		}

		metrics.EventsPublished.WithLabelValues(string(e.Kind), "ok").Inc()
		dispatched = append(dispatched, e.ID)
	}

	if err := d.Outbox.MarkDispatched(ctx, dispatched...); err != nil {
		// the events will be published once again
		slog.Error("can't mark events as dispatched", slog.Any("error", err))
		return 0, len(events)
	}

	return len(dispatched), len(events)
}

func (d *Dispatcher) publish(ctx context.Context, e model.Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return d.Publisher.Publish(ctx, e)
}
