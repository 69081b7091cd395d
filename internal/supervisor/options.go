package supervisor

import (
	"context"
	"time"

	"github.com/tallybot/tally/pkg/logger"
)

// Option configures the supervisor.
type Option func(*Supervisor)

// WithRetryDelay overrides the fixed delay between reconnect attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithSleep replaces the delay function. Tests inject this to observe
// reconnect counts without waiting in real time.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Supervisor) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Supervisor) {
		s.log = log
	}
}
