package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/statement-ai/converter/internal/filestore"
	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/observability"
)

// DownloadHandler streams generated spreadsheets.
type DownloadHandler struct {
	logger *observability.Logger
	store  *history.Store
	files  *filestore.Store
}

// NewDownloadHandler creates a download handler.
func NewDownloadHandler(logger *observability.Logger, store *history.Store, files *filestore.Store) *DownloadHandler {
	return &DownloadHandler{
		logger: logger,
		store:  store,
		files:  files,
	}
}

// Download handles GET /api/download/{fileID}. The session's history item
// supplies the friendly filename; downloads without a matching history entry
// fall back to the artifact registry with a generic name.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	session := sessionID(r)

	path, filename := h.resolve(session, fileID)
	if path == "" {
		writeError(w, http.StatusNotFound, "converted file not found", "")
		return
	}

	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "converted file not found", "")
		return
	}

	h.logger.WithSession(session).Debug().Str("file_id", fileID).Str("filename", filename).Msg("Serving download")

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func (h *DownloadHandler) resolve(session, fileID string) (path, filename string) {
	if item, err := h.store.Get(session, fileID); err == nil {
		if item.Status == "completed" && item.ArtifactPath != "" {
			return item.ArtifactPath, item.ConvertedName
		}
	}

	if p, ok := h.files.Lookup(fileID); ok {
		return p, "bank_statement_" + fileID + ".xlsx"
	}

	return "", ""
}
