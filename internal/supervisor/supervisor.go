// Package supervisor keeps the two chat-facing goroutines alive: the stream
// connection that produces events and the leaderboard listener. Both retry
// forever with a fixed delay.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tallybot/tally/internal/adapters/chat"
	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/pkg/logger"
	"github.com/tallybot/tally/pkg/metrics"
)

const defaultRetryDelay = 10 * time.Second

// EventSink receives inbound events from the stream connection. The
// in-memory queue satisfies this.
type EventSink interface {
	Enqueue(ctx context.Context, e model.Event) bool
}

// Supervisor owns the reconnect policy for the stream producer and the
// listener surface.
type Supervisor struct {
	connector  chat.Connector
	handoff    *Handoff
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        logger.Logger

	streamReconnects   atomic.Int64
	listenerReconnects atomic.Int64
}

// New creates a supervisor over the given connector. Metadata from the first
// successful connect is published through handoff.
func New(connector chat.Connector, handoff *Handoff, opts ...Option) *Supervisor {
	s := &Supervisor{
		connector:  connector,
		handoff:    handoff,
		retryDelay: defaultRetryDelay,
		sleep:      sleepCtx,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("supervisor")
	}

	return s
}

// RunStream maintains the upstream connection, pumping events into sink.
// It returns only when ctx is cancelled.
func (s *Supervisor) RunStream(ctx context.Context, sink EventSink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, meta, err := s.connector.Connect(ctx)
		if err != nil {
			s.log.Warn(ctx, "stream connect failed",
				logger.Error(err),
				logger.Duration("retry_in", s.retryDelay))
			metrics.RecordStreamReconnect()
			s.streamReconnects.Add(1)

			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return err
			}
			continue
		}

		s.handoff.Put(meta)
		s.log.Info(ctx, "stream connected",
			logger.Int("directory_size", len(meta.Directory)))

		runErr := conn.Run(ctx, func(e model.Event) {
			if !sink.Enqueue(ctx, e) {
				s.log.Warn(ctx, "event queue full, dropping event",
					logger.String("user_id", e.UserID))
				metrics.RecordEventDropped()
			}
		})
		_ = conn.Close()

		if err := ctx.Err(); err != nil {
			return err
		}

		s.log.Warn(ctx, "stream connection lost",
			logger.Error(runErr),
			logger.Duration("retry_in", s.retryDelay))
		metrics.RecordStreamReconnect()
		s.streamReconnects.Add(1)

		if err := s.sleep(ctx, s.retryDelay); err != nil {
			return err
		}
	}
}

// RunListener waits for the connection metadata and then runs serve,
// restarting it after the retry delay whenever it fails. It returns only
// when ctx is cancelled.
func (s *Supervisor) RunListener(ctx context.Context, serve func(ctx context.Context, meta model.Metadata) error) error {
	meta, err := s.handoff.Get(ctx)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		serveErr := serve(ctx, meta)
		if err := ctx.Err(); err != nil {
			return err
		}

		s.log.Warn(ctx, "listener stopped",
			logger.Error(serveErr),
			logger.Duration("retry_in", s.retryDelay))
		metrics.RecordListenerRetry()
		s.listenerReconnects.Add(1)

		if err := s.sleep(ctx, s.retryDelay); err != nil {
			return err
		}
	}
}

// StreamReconnects reports how many times the stream connection was retried.
func (s *Supervisor) StreamReconnects() int64 {
	return s.streamReconnects.Load()
}

// ListenerReconnects reports how many times the listener was restarted.
func (s *Supervisor) ListenerReconnects() int64 {
	return s.listenerReconnects.Load()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
