package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/projecthub/internal/domain"
	"github.com/ashureev/projecthub/internal/store"
)

// ListRequirements handles GET /requirement/list.
func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, domain.ItemTypeRequirements)
}

// ListBugs handles GET /bug/list.
func (h *Handler) ListBugs(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, domain.ItemTypeBugs)
}

// ListQueries handles GET /query/list.
func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, domain.ItemTypeQueries)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request, t domain.ItemType) {
	items, err := store.ListItems(r.Context(), h.repo, t)
	if err != nil {
		slog.Error("Failed to list items", "type", t, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list "+string(t))
		return
	}
	JSON(w, http.StatusOK, map[string]any{"items": items})
}
