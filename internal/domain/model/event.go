// Package model contains domain models passed between layers.
package model

// EventKind discriminates inbound events by scoring eligibility.
type EventKind int

const (
	// Qualifying marks an event that is eligible for scoring.
	Qualifying EventKind = iota
	// NonQualifying marks any other event from the watched channel.
	NonQualifying
)

func (k EventKind) String() string {
	switch k {
	case Qualifying:
		return "qualifying"
	case NonQualifying:
		return "non_qualifying"
	default:
		return "unknown"
	}
}

// Event is an inbound check-in attempt produced by the stream.
// Events are transient; the dispatcher translates each one into a ScoreRecord.
type Event struct {
	Kind   EventKind
	UserID string
}
