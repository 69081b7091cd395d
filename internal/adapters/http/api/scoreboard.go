// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tallybot/tally/internal/adapters/chat"
	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/internal/domain/scoreboard"
	"github.com/tallybot/tally/pkg/logger"
	"github.com/tallybot/tally/pkg/metrics"
)

// mirrorTimeout bounds the best-effort post to the report channel.
const mirrorTimeout = 10 * time.Second

// ScoreboardHandler serves the rendered leaderboard.
type ScoreboardHandler struct {
	records RecordSource
	sender  chat.Sender
	meta    model.Metadata
	log     logger.Logger
}

// NewScoreboardHandler creates a new scoreboard handler.
func NewScoreboardHandler(records RecordSource, sender chat.Sender, meta model.Metadata) *ScoreboardHandler {
	return &ScoreboardHandler{
		records: records,
		sender:  sender,
		meta:    meta,
		log:     logger.Get().Named("api"),
	}
}

// HandleScoreboard handles GET and POST /scoreboard requests. POST matches
// the slash-command shape; the request body is ignored either way.
func (h *ScoreboardHandler) HandleScoreboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.scoreboard"
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	metrics.RecordScoreboardRequest()

	histories, err := h.records.LoadAll(r.Context())
	if err != nil {
		// Never answer with stale or empty data when the read fails.
		h.log.Error(r.Context(), "score history load failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrStoreRead, err))
		return
	}

	board := scoreboard.Render(histories, h.meta.Directory)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(board))

	h.mirror(board)
}

// mirror posts the board to the report channel. Failures are logged and
// never affect the HTTP response.
func (h *ScoreboardHandler) mirror(board string) {
	if h.sender == nil || h.meta.ReportChannelID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := h.sender.Send(ctx, h.meta.ReportChannelID, board); err != nil {
		h.log.Warn(ctx, "scoreboard mirror failed",
			logger.String("channel_id", h.meta.ReportChannelID),
			logger.Error(err))
	}
}
