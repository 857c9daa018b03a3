package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/observability"
)

// HistoryHandler serves the per-session conversion ledger.
type HistoryHandler struct {
	logger      *observability.Logger
	store       *history.Store
	previewRows int
}

// NewHistoryHandler creates a history handler. previewRows caps the number of
// rows returned by the data preview endpoint; zero means no cap.
func NewHistoryHandler(logger *observability.Logger, store *history.Store, previewRows int) *HistoryHandler {
	return &HistoryHandler{
		logger:      logger,
		store:       store,
		previewRows: previewRows,
	}
}

// List handles GET /api/history. Only finished conversions are listed.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)

	items := h.store.List(session)
	if items == nil {
		items = []history.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": items,
		"stats":   h.store.SessionStats(session),
	})
}

// Get handles GET /api/history/{fileID}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/history/{fileID}. The generated artifact is
// removed along with the entry.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	fileID := chi.URLParam(r, "fileID")

	if err := h.store.Delete(session, fileID); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "history item not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete history item", err.Error())
		return
	}

	h.logger.WithSession(session).Info().Str("file_id", fileID).Msg("History item deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "History item deleted"})
}

// Stats handles GET /api/history/stats/summary.
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.SessionStats(sessionID(r)))
}

// Redownload handles POST /api/history/{fileID}/redownload. It checks that
// the artifact still exists before the client starts a download.
func (h *HistoryHandler) Redownload(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if item.Status != "completed" || item.ArtifactPath == "" {
		writeError(w, http.StatusConflict, "conversion did not produce a file", "")
		return
	}

	if _, err := os.Stat(item.ArtifactPath); err != nil {
		writeError(w, http.StatusGone, "converted file is no longer available", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ready":              true,
		"download_url":       "/api/download/" + item.FileID,
		"converted_filename": item.ConvertedName,
	})
}

// Data handles GET /api/data/{fileID}. The full converted rows are kept in
// history; the response is capped to the configured preview size while
// row_count still reports the full total.
func (h *HistoryHandler) Data(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if len(item.Preview) == 0 {
		writeError(w, http.StatusNotFound, "no preview data for this conversion", "")
		return
	}

	rows := item.Preview
	if h.previewRows > 0 && len(rows) > h.previewRows {
		rows = rows[:h.previewRows]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":   item.FileID,
		"rows":      rows,
		"row_count": item.RowCount,
	})
}

func (h *HistoryHandler) lookup(w http.ResponseWriter, r *http.Request) (history.Item, bool) {
	session := sessionID(r)
	fileID := chi.URLParam(r, "fileID")

	item, err := h.store.Get(session, fileID)
	if err != nil {
		writeError(w, http.StatusNotFound, "history item not found", "")
		return history.Item{}, false
	}
	return item, true
}
