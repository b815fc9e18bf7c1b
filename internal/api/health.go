package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/projecthub/internal/store"
	"github.com/go-chi/chi/v5"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     store.Repository
	sessions Pinger
	timeout  time.Duration
}

// NewHealthHandler creates a health handler. sessions may be nil when the
// session store is in process.
func NewHealthHandler(repo store.Repository, sessions Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{repo: repo, sessions: sessions, timeout: timeout}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "database": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	if h.sessions != nil {
		checks["sessions"] = "ok"
		if err := h.sessions.Ping(ctx); err != nil {
			slog.Error("Health check failed", "dependency", "sessions", "error", err)
			checks["sessions"] = "unreachable"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
