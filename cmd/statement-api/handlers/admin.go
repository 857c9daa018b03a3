package handlers

import (
	"net/http"

	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/task"
)

// AdminHandler exposes process-wide counters for operators.
type AdminHandler struct {
	logger   *observability.Logger
	store    *history.Store
	registry *task.Manager
	hub      *progress.Hub
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(logger *observability.Logger, store *history.Store, registry *task.Manager, hub *progress.Hub) *AdminHandler {
	return &AdminHandler{
		logger:   logger,
		store:    store,
		registry: registry,
		hub:      hub,
	}
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sessions, items := h.store.Totals()

	writeJSON(w, http.StatusOK, map[string]any{
		"active_sessions":    sessions,
		"history_items":      items,
		"running_tasks":      h.registry.Running(),
		"active_connections": h.hub.ActiveSubscribers(),
	})
}
