package supervisor

import (
	"context"
	"sync"

	"github.com/tallybot/tally/internal/domain/model"
)

// Handoff carries the connection metadata from the stream goroutine to the
// listener goroutine. The first Put wins; later Puts are no-ops. Get blocks
// until a value is available and caches it for subsequent calls.
type Handoff struct {
	ch   chan model.Metadata
	once sync.Once

	mu    sync.Mutex
	meta  model.Metadata
	ready bool
}

// NewHandoff returns an empty handoff.
func NewHandoff() *Handoff {
	return &Handoff{ch: make(chan model.Metadata, 1)}
}

// Put delivers the metadata. Only the first call has any effect, so a
// supervisor reconnecting after a drop never disturbs the listener.
func (h *Handoff) Put(meta model.Metadata) {
	h.once.Do(func() {
		h.ch <- meta
	})
}

// Get returns the delivered metadata, blocking until Put has run or ctx is
// cancelled.
func (h *Handoff) Get(ctx context.Context) (model.Metadata, error) {
	h.mu.Lock()
	if h.ready {
		meta := h.meta
		h.mu.Unlock()
		return meta, nil
	}
	h.mu.Unlock()

	select {
	case meta := <-h.ch:
		h.mu.Lock()
		h.meta = meta
		h.ready = true
		h.mu.Unlock()
		return meta, nil
	case <-ctx.Done():
		return model.Metadata{}, ctx.Err()
	}
}
