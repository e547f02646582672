package reward

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/logger"
	"github.com/julianstephens/habitrun/internal/models"
)

// Outbox is the queue of committed completion events.
type Outbox interface {
	PendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.CompletionEvent, error)
	MarkEventDispatched(ctx context.Context, eventID string, at time.Time) error
	MarkEventFailed(ctx context.Context, eventID, reason string) error
}

// Handler consumes one event. *Notifier satisfies it.
type Handler interface {
	OnHabitCompleted(ctx context.Context, ev models.CompletionEvent) error
}

type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Interval:    constants.DefaultDispatchInterval,
		BatchSize:   constants.DefaultDispatchBatchSize,
		MaxAttempts: constants.DefaultDispatchMaxAttempts,
	}
}

// Dispatcher delivers outbox events to a Handler at least once. Events that
// keep failing are retried until MaxAttempts and then left in the outbox.
type Dispatcher struct {
	outbox  Outbox
	handler Handler
	cfg     DispatcherConfig
	kick    chan struct{}
	now     func() time.Time
	log     *log.Logger
}

func NewDispatcher(outbox Outbox, handler Handler, cfg DispatcherConfig) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Dispatcher{
		outbox:  outbox,
		handler: handler,
		cfg:     cfg,
		kick:    make(chan struct{}, 1),
		now:     time.Now,
		log:     logger.Component("dispatcher"),
	}
}

// Kick asks Run to drain now instead of waiting for the next tick. It never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run drains the outbox on every tick and kick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("Dispatch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.kick:
		}
	}
}

// DispatchPending delivers pending events until the outbox has nothing left
// that is due, and returns how many were delivered.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	delivered := 0
	failed := make(map[string]bool)

	for {
		events, err := d.outbox.PendingEvents(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts)
		if err != nil {
			return delivered, err
		}

		progressed := false
		for _, ev := range events {
			if failed[ev.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return delivered, err
			}
			progressed = true

			if err := d.handler.OnHabitCompleted(ctx, ev); err != nil {
				failed[ev.ID] = true
				d.log.Warn("Event delivery failed", "event", ev.ID, "attempt", ev.Attempts+1, "error", err)
				if markErr := d.outbox.MarkEventFailed(ctx, ev.ID, err.Error()); markErr != nil {
					return delivered, markErr
				}
				continue
			}
			if err := d.outbox.MarkEventDispatched(ctx, ev.ID, d.now()); err != nil {
				return delivered, err
			}
			delivered++
		}

		// A short batch means the outbox is drained; events that failed in
		// this pass wait for the next one.
		if !progressed || len(events) < d.cfg.BatchSize {
			return delivered, nil
		}
	}
}
