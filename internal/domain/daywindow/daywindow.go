// Package daywindow tracks the current scoring day and which users have
// already checked in within it.
//
// A Window is owned and mutated by exactly one goroutine (the dispatcher).
// There is no expiry timer: every read is preceded by RollForward, which
// lazily replaces an ended window. That keeps the structure lock-free.
package daywindow

import (
	"math/rand"
	"time"
)

// Default window configuration constants.
const (
	defaultDayLength = 24 * time.Hour
	defaultMaxJitter = 15 * time.Minute
)

// Window is the current scoring period.
type Window struct {
	start      time.Time
	end        time.Time
	registered map[string]struct{}

	dayLength time.Duration
	maxJitter time.Duration
	rng       *rand.Rand
}

// New creates a window opening at now.
func New(now time.Time, opts ...Option) *Window {
	w := &Window{
		dayLength:  defaultDayLength,
		maxJitter:  defaultMaxJitter,
		registered: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // jitter is not security sensitive
	}

	w.start = now
	w.end = now.Add(w.dayLength + w.jitter())

	return w
}

// jitter draws a random extension from [0, maxJitter). The jitter keeps the
// reset instant unpredictable so users cannot camp the boundary; it never
// shortens the day below its nominal length.
func (w *Window) jitter() time.Duration {
	if w.maxJitter <= 0 {
		return 0
	}
	return time.Duration(w.rng.Int63n(int64(w.maxJitter)))
}

// HasEnded reports whether the window has expired at the given instant.
func (w *Window) HasEnded(now time.Time) bool {
	return !now.Before(w.end)
}

// RollForward replaces the window until it covers now, anchoring each new
// window at the previous end so idle gaps do not drift the boundary.
// The registered set is cleared exactly when a new window opens.
// Returns the number of windows stepped over (zero if still open).
func (w *Window) RollForward(now time.Time) int {
	rolls := 0
	for w.HasEnded(now) {
		w.start = w.end
		w.end = w.start.Add(w.dayLength + w.jitter())
		rolls++
	}
	if rolls > 0 {
		w.registered = make(map[string]struct{})
	}
	return rolls
}

// FirstOfWindow reports whether no user has registered in this window yet.
func (w *Window) FirstOfWindow() bool {
	return len(w.registered) == 0
}

// Registered reports whether the user already registered in this window.
func (w *Window) Registered(userID string) bool {
	_, ok := w.registered[userID]
	return ok
}

// Register marks the user as registered for this window. Idempotent.
func (w *Window) Register(userID string) {
	w.registered[userID] = struct{}{}
}

// RegisteredCount returns how many users registered in this window.
func (w *Window) RegisteredCount() int {
	return len(w.registered)
}

// Start returns the window's opening instant.
func (w *Window) Start() time.Time {
	return w.start
}

// End returns the window's expiry instant.
func (w *Window) End() time.Time {
	return w.end
}
