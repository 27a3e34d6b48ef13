package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thapargpt/thapargpt/internal/session"
)

// historyLimit bounds how many turns one request returns.
const historyLimit = 100

// HistoryHandler serves conversation history.
type HistoryHandler struct {
	sessions *session.Store
	logger   *slog.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(sessions *session.Store, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers history routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/{id}/history", h.history)
}

// HistoryTurn is one exchange in the history response.
type HistoryTurn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is the JSON body for the history endpoint.
type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []HistoryTurn `json:"turns"`
}

func (h *HistoryHandler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session id must be a UUID")
		return
	}

	rows, err := h.sessions.History(r.Context(), id, historyLimit)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown session")
			return
		}
		h.logger.Error("history lookup failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load history")
		return
	}

	turns := make([]HistoryTurn, len(rows))
	for i, row := range rows {
		turns[i] = HistoryTurn{
			User:      row.UserText,
			Assistant: row.AssistantText,
			Language:  row.Language,
			CreatedAt: row.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id.String(), Turns: turns})
}
