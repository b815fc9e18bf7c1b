package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/projecthub/internal/conversation"
	"github.com/ashureev/projecthub/internal/identity"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ChatRequest is the body of POST /chat and of each /ws/chat frame.
type ChatRequest struct {
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.SessionID) != "" && !identity.IsValidSessionID(req.SessionID) {
		Error(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	sessionID := identity.Resolve(r.Context(), req.SessionID)
	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		slog.Warn("Chat rate limit exceeded", "session_id", sessionID, "ip", identity.IPFromRequest(r))
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	slog.Info("Chat request",
		"session_id", sessionID,
		"language", req.Language,
		"message_length", len(req.Text),
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)

	reply, err := h.engine.Handle(r.Context(), conversation.Message{
		SessionID: sessionID,
		Text:      req.Text,
		Language:  req.Language,
		Channel:   "chat_http",
	})
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) {
			Error(w, http.StatusBadRequest, "text is required")
			return
		}
		slog.Error("Chat request failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, reply)
}
