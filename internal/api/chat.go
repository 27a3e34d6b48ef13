package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/thapargpt/thapargpt/internal/assistant"
	"github.com/thapargpt/thapargpt/internal/extract"
)

// maxUploadBytes bounds attachment uploads.
const maxUploadBytes = 15 << 20

// Assistant is the part of the pipeline the API needs.
type Assistant interface {
	Chat(ctx context.Context, sessionID uuid.UUID, query string) (assistant.Answer, error)
	ChatWithFile(ctx context.Context, sessionID uuid.UUID, query, name string, data []byte) (assistant.Answer, error)
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	assistant Assistant
	logger    *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(a Assistant, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{assistant: a, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
	mux.HandleFunc("POST /api/chat/file", h.chatFile)
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the JSON body returned by the chat endpoints.
type ChatResponse struct {
	Response   string `json:"response"`
	Language   string `json:"language"`
	SessionID  string `json:"session_id"`
	Degraded   bool   `json:"degraded,omitempty"`
	Translated bool   `json:"translated,omitempty"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	sessionID, ok := parseSessionID(w, req.SessionID)
	if !ok {
		return
	}

	ans, err := h.assistant.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		h.writeAnswerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse(ans, sessionID))
}

func (h *ChatHandler) chatFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart form")
		return
	}

	sessionID, ok := parseSessionID(w, r.FormValue("session_id"))
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "could not read upload")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "attachment exceeds size limit")
		return
	}

	ans, err := h.assistant.ChatWithFile(r.Context(), sessionID,
		r.FormValue("message"), header.Filename, data)
	if err != nil {
		h.writeAnswerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse(ans, sessionID))
}

// writeAnswerError maps pipeline errors to HTTP statuses: input errors
// are 400, transient upstream failures 503, anything else 502.
func (h *ChatHandler) writeAnswerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "empty_query", "message or attachment required")
	case errors.Is(err, extract.ErrUnsupportedAttachment):
		writeError(w, http.StatusBadRequest, "unsupported_attachment", err.Error())
	case assistant.IsRetryable(err):
		h.logger.Warn("chat temporarily unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "try again later")
	default:
		h.logger.Error("chat failed", "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", "could not produce an answer")
	}
}

// parseSessionID validates an optional session ID, minting a fresh one
// when absent. Reports false after writing an error response.
func parseSessionID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.New(), true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func answerResponse(ans assistant.Answer, sessionID uuid.UUID) ChatResponse {
	return ChatResponse{
		Response:   ans.Text,
		Language:   ans.Language.Code(),
		SessionID:  sessionID.String(),
		Degraded:   ans.Degraded,
		Translated: ans.Translated,
	}
}
