// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tallybot/tally/internal/adapters/chat"
	"github.com/tallybot/tally/internal/domain/model"
)

// RecordSource exposes the persisted score history for read paths.
type RecordSource interface {
	LoadAll(ctx context.Context) ([]model.ScoreRecord, error)
}

// Server wires HTTP routes for the leaderboard surface.
type Server struct {
	scoreboardHandler *ScoreboardHandler
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
}

// NewServer creates a new API server with all handlers. sender may be nil
// when no report channel mirroring is wanted.
func NewServer(records RecordSource, sender chat.Sender, meta model.Metadata, statsProvider StatsProvider) *Server {
	return &Server{
		scoreboardHandler: NewScoreboardHandler(records, sender, meta),
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scoreboard", MetricsMiddleware(s.scoreboardHandler.HandleScoreboard, "scoreboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
