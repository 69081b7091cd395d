// Package store persists score records. Records are append-only: the core
// issues inserts and full-history reads, never updates or deletes.
package store

import (
	"context"

	"github.com/tallybot/tally/internal/domain/model"
)

// Store provides append and full-history access to score records.
// Implementations must be safe for concurrent use: the dispatcher writes
// while request handlers read.
type Store interface {
	// SaveSuccess appends a successful record for a qualifying event.
	SaveSuccess(ctx context.Context, userID string, dayFirst, userFirst bool) (model.ScoreRecord, error)

	// SaveFailure appends a failed record for a non-qualifying event.
	SaveFailure(ctx context.Context, userID string) (model.ScoreRecord, error)

	// LoadAll returns the full record history in insertion order.
	LoadAll(ctx context.Context) ([]model.ScoreRecord, error)

	// Close releases the underlying connections.
	Close() error
}
