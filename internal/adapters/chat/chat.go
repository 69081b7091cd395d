// Package chat adapts the chat platform: the streaming connection that
// produces check-in events and the outbound message sender.
package chat

import (
	"context"

	"github.com/tallybot/tally/internal/domain/model"
)

// Connector establishes the upstream streaming connection. Connect blocks
// until the platform has delivered its connection metadata (user directory
// and resolved channel ids) or fails.
type Connector interface {
	Connect(ctx context.Context) (Conn, model.Metadata, error)
}

// Conn is a live streaming connection.
type Conn interface {
	// Run blocks, invoking sink for each inbound event until the
	// connection drops or ctx is cancelled.
	Run(ctx context.Context, sink func(model.Event)) error

	// Close tears down the connection.
	Close() error
}

// Sender posts a message to a channel. Sends are best effort: failures are
// logged by callers and never fatal.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}
