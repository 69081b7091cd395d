package daywindow

import (
	"math/rand"
	"time"
)

// Option applies a configuration option to the Window.
type Option func(*Window)

// WithDayLength sets the nominal window length.
func WithDayLength(d time.Duration) Option {
	return func(w *Window) {
		if d > 0 {
			w.dayLength = d
		}
	}
}

// WithMaxJitter sets the upper bound (exclusive) of the random extension
// added to each window. Zero disables jitter.
func WithMaxJitter(d time.Duration) Option {
	return func(w *Window) {
		if d >= 0 {
			w.maxJitter = d
		}
	}
}

// WithRand sets the random source used to draw jitter.
func WithRand(rng *rand.Rand) Option {
	return func(w *Window) {
		if rng != nil {
			w.rng = rng
		}
	}
}
