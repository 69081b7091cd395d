package chat

import "errors"

// Sentinel kinds for chat adapter errors.
var (
	ErrNoHello          = errors.New("no hello frame on connect")
	ErrChannelNotFound  = errors.New("channel not found by name")
	ErrMissingUser      = errors.New("message has no user id")
	ErrConnectionClosed = errors.New("connection closed")
)
