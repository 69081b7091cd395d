package store

import (
	"context"
	"sync"
	"time"

	"github.com/tallybot/tally/internal/domain/model"
)

// Memory implements Store with a mutex-guarded slice. It backs tests and
// the "memory" store mode for local runs.
type Memory struct {
	mu      sync.RWMutex
	records []model.ScoreRecord
	closed  bool
	now     func() time.Time

	// failWith, when set, makes every operation return that error.
	failWith error
}

// MemoryOption applies a configuration option to the Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock sets the time source used to stamp new records.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailWith makes every subsequent operation return err. Pass nil to heal.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SaveSuccess appends a successful record for a qualifying event.
func (m *Memory) SaveSuccess(_ context.Context, userID string, dayFirst, userFirst bool) (model.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.usable(); err != nil {
		return model.ScoreRecord{}, err
	}

	record := model.NewSuccess(userID, dayFirst, userFirst, m.now())
	m.records = append(m.records, record)
	return record, nil
}

// SaveFailure appends a failed record for a non-qualifying event.
func (m *Memory) SaveFailure(_ context.Context, userID string) (model.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.usable(); err != nil {
		return model.ScoreRecord{}, err
	}

	record := model.NewFailure(userID, m.now())
	m.records = append(m.records, record)
	return record, nil
}

// LoadAll returns a copy of the full record history in insertion order.
func (m *Memory) LoadAll(_ context.Context) ([]model.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.usable(); err != nil {
		return nil, err
	}

	out := make([]model.ScoreRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Close marks the store closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) usable() error {
	if m.closed {
		return ErrClosed
	}
	if m.failWith != nil {
		return m.failWith
	}
	return nil
}
