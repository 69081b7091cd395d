package model

import (
	"time"

	"github.com/google/uuid"
)

// Point values for a successful check-in.
const (
	BasePointValue      = 1
	DayFirstPointValue  = 1
	UserFirstPointValue = 1
)

// ScoreRecord is the persisted outcome of a processed event.
// Records are immutable once stored; DayFirst and UserFirst are meaningful
// only when Successful is true.
type ScoreRecord struct {
	ID         uuid.UUID
	TS         time.Time
	UserID     string
	Successful bool
	DayFirst   bool
	UserFirst  bool
}

// NewSuccess builds a successful record for a qualifying event.
func NewSuccess(userID string, dayFirst, userFirst bool, ts time.Time) ScoreRecord {
	return ScoreRecord{
		ID:         uuid.New(),
		TS:         ts,
		UserID:     userID,
		Successful: true,
		DayFirst:   dayFirst,
		UserFirst:  userFirst,
	}
}

// NewFailure builds a failed record for a non-qualifying event.
func NewFailure(userID string, ts time.Time) ScoreRecord {
	return ScoreRecord{
		ID:         uuid.New(),
		TS:         ts,
		UserID:     userID,
		Successful: false,
	}
}

// Value returns the points this record contributes to its user's total.
// Failed records contribute nothing.
func (r ScoreRecord) Value() int {
	if !r.Successful {
		return 0
	}
	points := BasePointValue
	if r.DayFirst {
		points += DayFirstPointValue
	}
	if r.UserFirst {
		points += UserFirstPointValue
	}
	return points
}

// Metadata is the one-time connection metadata delivered by the chat
// platform on connect: the display-name directory and the resolved
// channel ids the bot operates on.
type Metadata struct {
	// Directory maps user id to display name.
	Directory map[string]string

	// QualifyingChannelID is the channel watched for check-ins.
	QualifyingChannelID string

	// ReportChannelID is the channel scoreboards are posted to.
	ReportChannelID string
}
