package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/projecthub/internal/conversation"
	"github.com/ashureev/projecthub/internal/identity"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// wsError is written back when a frame cannot be handled.
type wsError struct {
	Error string `json:"error"`
}

// ChatSocket handles GET /ws/chat. Every text frame carries a ChatRequest
// and is answered with one JSON frame, in order.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	connSession := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket chat connection request", "session_id", connSession, "ip", identity.IPFromRequest(r))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", connSession)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", connSession)
		}
	}()
	ws.SetReadLimit(h.maxBodySize)

	ctx := r.Context()
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "session_id", connSession)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", connSession)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := h.writeJSON(ctx, ws, wsError{Error: "text frames only"}); err != nil {
				return
			}
			continue
		}
		if err := h.writeJSON(ctx, ws, h.handleFrame(ctx, data)); err != nil {
			slog.Debug("WebSocket write error", "error", err, "session_id", connSession)
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, data []byte) any {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsError{Error: "invalid message"}
	}
	if strings.TrimSpace(req.SessionID) != "" && !identity.IsValidSessionID(req.SessionID) {
		return wsError{Error: "invalid session_id"}
	}
	if strings.TrimSpace(req.Text) == "" {
		return wsError{Error: "text is required"}
	}

	sessionID := identity.Resolve(ctx, req.SessionID)
	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		return wsError{Error: "rate limit exceeded"}
	}

	reply, err := h.engine.Handle(ctx, conversation.Message{
		SessionID: sessionID,
		Text:      req.Text,
		Language:  req.Language,
		Channel:   "chat_ws",
	})
	if err != nil {
		slog.Error("WebSocket chat failed", "session_id", sessionID, "error", err)
		return wsError{Error: "failed to process message"}
	}
	return reply
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
