package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/task"
)

// ConversionHandler serves the polling fallbacks for clients without a
// WebSocket connection.
type ConversionHandler struct {
	logger   *observability.Logger
	registry *task.Manager
	hub      *progress.Hub
}

// NewConversionHandler creates a conversion status handler.
func NewConversionHandler(logger *observability.Logger, registry *task.Manager, hub *progress.Hub) *ConversionHandler {
	return &ConversionHandler{
		logger:   logger,
		registry: registry,
		hub:      hub,
	}
}

// Status handles GET /api/status/{fileID}. A finished conversion whose
// registry entry is already cleaned up is answered from the progress cache.
func (h *ConversionHandler) Status(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	if info, ok := h.registry.Status(fileID); ok {
		resp := map[string]any{
			"file_id":    fileID,
			"status":     string(info.State),
			"cancelled":  info.Cancelled,
			"started_at": info.StartedAt,
		}
		if evt, ok := h.hub.LastEvent(fileID); ok {
			resp["progress"] = evt.Progress
			resp["message"] = evt.Message
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if evt, ok := h.hub.LastEvent(fileID); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"file_id":  fileID,
			"status":   evt.Status,
			"progress": evt.Progress,
			"message":  evt.Message,
		})
		return
	}

	writeError(w, http.StatusNotFound, "conversion not found", "")
}

// Cancel handles POST /api/cancel/{fileID}.
func (h *ConversionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	if !h.registry.Cancel(fileID) {
		writeError(w, http.StatusNotFound, "no running conversion for this file", "")
		return
	}

	h.logger.Info().Str("file_id", fileID).Msg("Cancellation requested over REST")

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id": fileID,
		"status":  "cancelling",
		"message": "Cancellation requested",
	})
}

// HubStatus handles GET /api/ws/status.
func (h *ConversionHandler) HubStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active_connections": h.hub.ActiveSubscribers(),
		"running_tasks":      h.registry.Running(),
	})
}
