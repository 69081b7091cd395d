// Package scoreboard aggregates score records into a ranked, formatted
// leaderboard. All functions are pure.
package scoreboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tallybot/tally/internal/domain/model"
)

// Placeholder is returned when no successful records exist yet.
const Placeholder = "No scores yet!"

// unknownName renders for user ids missing from the directory.
const unknownName = "Unknown"

// Entry is one ranked leaderboard row.
type Entry struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// Totals groups successful records by user and sums their point values,
// ordered by score descending. Ties break on user id ascending so output
// is reproducible regardless of map iteration order.
func Totals(records []model.ScoreRecord) []Entry {
	scores := make(map[string]int)
	for _, r := range records {
		if !r.Successful {
			continue
		}
		scores[r.UserID] += r.Value()
	}

	entries := make([]Entry, 0, len(scores))
	for userID, score := range scores {
		entries = append(entries, Entry{UserID: userID, Score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})

	return entries
}

// Format renders entries as display-name/score lines joined by newlines.
// An empty leaderboard renders the fixed placeholder instead of an empty
// string.
func Format(entries []Entry, directory map[string]string) string {
	if len(entries) == 0 {
		return Placeholder
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name, ok := directory[e.UserID]
		if !ok || name == "" {
			name = unknownName
		}
		lines = append(lines, name+"\t\t"+strconv.Itoa(e.Score))
	}
	return strings.Join(lines, "\n")
}

// Render is the full aggregation pipeline: history in, formatted text out.
func Render(records []model.ScoreRecord, directory map[string]string) string {
	return Format(Totals(records), directory)
}
