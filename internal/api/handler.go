// Package api provides HTTP handlers for the ProjectHub API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/projecthub/internal/conversation"
	"github.com/ashureev/projecthub/internal/store"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// ChatEngine handles one chat message for a session.
type ChatEngine interface {
	Handle(ctx context.Context, msg conversation.Message) (*conversation.Reply, error)
}

// Handler serves the chat and listing endpoints.
type Handler struct {
	engine      ChatEngine
	repo        store.Repository
	limiter     *RateLimiter
	maxBodySize int64
}

// NewHandler creates a Handler. A nil limiter disables rate limiting and a
// non-positive maxBodySize uses 1MB.
func NewHandler(engine ChatEngine, repo store.Repository, limiter *RateLimiter, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{
		engine:      engine,
		repo:        repo,
		limiter:     limiter,
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers the chat and listing routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Get("/ws/chat", h.ChatSocket)
	r.Get("/requirement/list", h.ListRequirements)
	r.Get("/bug/list", h.ListBugs)
	r.Get("/query/list", h.ListQueries)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
