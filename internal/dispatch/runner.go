// Package dispatch contains the single consumer that owns the day window,
// drains the event queue in arrival order, and writes score records.
package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tallybot/tally/internal/domain/daywindow"
	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/pkg/logger"
	"github.com/tallybot/tally/pkg/metrics"
)

// Queue defines how the runner receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Event
}

// Store defines the persistence operations the runner needs.
type Store interface {
	SaveSuccess(ctx context.Context, userID string, dayFirst, userFirst bool) (model.ScoreRecord, error)
	SaveFailure(ctx context.Context, userID string) (model.ScoreRecord, error)
}

// Runner is the sole state-mutating consumer. It owns the day window; no
// other goroutine touches it, which makes the bonus computation race-free
// without locks.
type Runner struct {
	queue  Queue
	store  Store
	window *daywindow.Window
	now    func() time.Time

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Snapshot state readable from other goroutines (for /stats).
	processed  atomic.Int64
	dropped    atomic.Int64
	windowEnd  atomic.Int64
	registered atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithClock sets the time source used for window rollovers.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewRunner creates the dispatcher. The window passed in must not be
// shared with any other component.
func NewRunner(queue Queue, store Store, window *daywindow.Window, opts ...Option) *Runner {
	r := &Runner{
		queue:    queue,
		store:    store,
		window:   window,
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("dispatch"),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.windowEnd.Store(window.End().UnixNano())

	return r
}

// Run drains the queue until ctx is cancelled, Shutdown is called, or the
// queue closes. Events are processed strictly in arrival order.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	events := r.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := r.process(ctx, event); err != nil {
				r.logger.Error(ctx, "event dropped after persistence failure",
					logger.String("user_id", event.UserID),
					logger.String("kind", event.Kind.String()),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the runner and waits for the loop to exit.
func (r *Runner) Shutdown(ctx context.Context) error {
	close(r.shutdown)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown timed out: %w", ctx.Err())
	}
}

// process applies the day-cycle rules to one event and persists the outcome.
// A persistence failure drops the event: the queue has already advanced past
// it, so the trade-off is at-most-once, never a retry.
func (r *Runner) process(ctx context.Context, event model.Event) error {
	now := r.now()
	if rolls := r.window.RollForward(now); rolls > 0 {
		for i := 0; i < rolls; i++ {
			metrics.RecordDayRollover()
		}
		metrics.UpdateRegisteredToday(0)
		r.logger.Info(ctx, "day window rolled",
			logger.Int("windows_stepped", rolls),
			logger.Time("window_end", r.window.End()),
		)
	}
	r.windowEnd.Store(r.window.End().UnixNano())

	switch event.Kind {
	case model.Qualifying:
		dayFirst := r.window.FirstOfWindow()
		userFirst := !r.window.Registered(event.UserID)
		r.window.Register(event.UserID)
		r.registered.Store(int64(r.window.RegisteredCount()))
		metrics.UpdateRegisteredToday(r.window.RegisteredCount())

		record, err := r.store.SaveSuccess(ctx, event.UserID, dayFirst, userFirst)
		if err != nil {
			r.dropped.Add(1)
			metrics.RecordEventDropped()
			metrics.RecordErrorByComponent("dispatch", "store_write")
			return fmt.Errorf("persist check-in for %s: %w", event.UserID, err)
		}

		metrics.RecordEventProcessed()
		metrics.RecordPointsAwarded(record.Value())
		if dayFirst {
			metrics.RecordBonusAward("day_first")
		}
		if userFirst {
			metrics.RecordBonusAward("user_first")
		}
		r.processed.Add(1)

		r.logger.Debug(ctx, "check-in scored",
			logger.String("user_id", event.UserID),
			logger.Bool("day_first", dayFirst),
			logger.Bool("user_first", userFirst),
			logger.Int("value", record.Value()),
		)

	case model.NonQualifying:
		if _, err := r.store.SaveFailure(ctx, event.UserID); err != nil {
			r.dropped.Add(1)
			metrics.RecordEventDropped()
			metrics.RecordErrorByComponent("dispatch", "store_write")
			return fmt.Errorf("persist failed attempt for %s: %w", event.UserID, err)
		}
		metrics.RecordEventProcessed()
		r.processed.Add(1)
	}

	return nil
}

// Processed returns how many events have been persisted.
func (r *Runner) Processed() int64 {
	return r.processed.Load()
}

// Dropped returns how many events were dropped on persistence failure.
func (r *Runner) Dropped() int64 {
	return r.dropped.Load()
}

// WindowEnd returns the current window's expiry as observed after the last
// processed event.
func (r *Runner) WindowEnd() time.Time {
	return time.Unix(0, r.windowEnd.Load())
}

// RegisteredToday returns the registered-user count after the last
// processed event.
func (r *Runner) RegisteredToday() int64 {
	return r.registered.Load()
}
