package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/statement-ai/converter/internal/filestore"
	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyFixture struct {
	store  *history.Store
	files  *filestore.Store
	router http.Handler
}

func newHistoryFixture(t *testing.T) *historyFixture {
	t.Helper()
	logger := observability.DefaultLogger()
	root := t.TempDir()

	files, err := filestore.NewStore(logger, filestore.Config{
		TempDir:        filepath.Join(root, "uploads"),
		GeneratedDir:   filepath.Join(root, "generated"),
		TempMaxAge:     time.Hour,
		ArtifactMaxAge: time.Hour,
	})
	require.NoError(t, err)

	store := history.NewStore(logger, history.Config{SessionTTL: time.Hour, MaxItems: 50}, files)

	historyHandler := NewHistoryHandler(logger, store, 10)
	downloadHandler := NewDownloadHandler(logger, store, files)

	r := chi.NewRouter()
	r.Get("/api/history", historyHandler.List)
	r.Get("/api/history/stats/summary", historyHandler.Stats)
	r.Get("/api/history/{fileID}", historyHandler.Get)
	r.Delete("/api/history/{fileID}", historyHandler.Delete)
	r.Post("/api/history/{fileID}/redownload", historyHandler.Redownload)
	r.Get("/api/download/{fileID}", downloadHandler.Download)
	r.Get("/api/data/{fileID}", historyHandler.Data)

	return &historyFixture{store: store, files: files, router: r}
}

func (f *historyFixture) do(method, path, session string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *historyFixture) addCompleted(t *testing.T, session, fileID string) string {
	t.Helper()
	path := f.files.GeneratedPath(fileID)
	require.NoError(t, os.WriteFile(path, []byte("xlsx bytes"), 0o644))
	f.files.Register(fileID, path)

	f.store.Add(session, history.Item{
		FileID:         fileID,
		OriginalName:   fileID + ".pdf",
		ConvertedName:  fileID + "_converted.xlsx",
		Status:         "completed",
		ProcessingType: "basic",
		ArtifactPath:   path,
		FileSize:       10,
		RowCount:       2,
		Preview: []map[string]string{
			{"Date": "01/03/24", "Description": "GROCERY", "Amount": "45.67"},
			{"Date": "01/05/24", "Description": "PAYROLL", "Amount": "2,500.00"},
		},
	})
	return path
}

func TestHistoryList(t *testing.T) {
	f := newHistoryFixture(t)
	f.addCompleted(t, "s1", "f1")
	f.store.Add("s1", history.Item{FileID: "f2", Status: "processing"})

	rec := f.do(http.MethodGet, "/api/history", "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	items := body["history"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, float64(10), items[0].(map[string]any)["file_size"])

	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["completed"])
}

func TestHistoryListEmptySession(t *testing.T) {
	f := newHistoryFixture(t)

	rec := f.do(http.MethodGet, "/api/history", "nobody")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["history"])
}

func TestHistoryGetScopedToSession(t *testing.T) {
	f := newHistoryFixture(t)
	f.addCompleted(t, "s1", "f1")

	rec := f.do(http.MethodGet, "/api/history/f1", "s1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/history/f1", "s2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryDeleteRemovesArtifact(t *testing.T) {
	f := newHistoryFixture(t)
	path := f.addCompleted(t, "s1", "f1")

	rec := f.do(http.MethodDelete, "/api/history/f1", "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	rec = f.do(http.MethodDelete, "/api/history/f1", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedownloadReady(t *testing.T) {
	f := newHistoryFixture(t)
	f.addCompleted(t, "s1", "f1")

	rec := f.do(http.MethodPost, "/api/history/f1/redownload", "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, "/api/download/f1", body["download_url"])
}

func TestRedownloadGoneWhenArtifactMissing(t *testing.T) {
	f := newHistoryFixture(t)
	path := f.addCompleted(t, "s1", "f1")
	require.NoError(t, os.Remove(path))

	rec := f.do(http.MethodPost, "/api/history/f1/redownload", "s1")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestDownloadFromHistory(t *testing.T) {
	f := newHistoryFixture(t)
	f.addCompleted(t, "s1", "f1")

	rec := f.do(http.MethodGet, "/api/download/f1", "s1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "f1_converted.xlsx")
	assert.Equal(t, "xlsx bytes", rec.Body.String())
}

func TestDownloadFallsBackToRegistry(t *testing.T) {
	f := newHistoryFixture(t)
	f.addCompleted(t, "s1", "f1")

	// A different session has no history entry but the artifact registry
	// still resolves the file.
	rec := f.do(http.MethodGet, "/api/download/f1", "s2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bank_statement_f1.xlsx")
}

func TestDownloadNotFound(t *testing.T) {
	f := newHistoryFixture(t)

	rec := f.do(http.MethodGet, "/api/download/missing", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDataPreview(t *testing.T) {
	f := newHistoryFixture(t)
	f.addCompleted(t, "s1", "f1")

	rec := f.do(http.MethodGet, "/api/data/f1", "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "GROCERY", first["Description"])
}

func TestDataCapsServedRowsNotStoredRows(t *testing.T) {
	f := newHistoryFixture(t)

	preview := make([]map[string]string, 12)
	for i := range preview {
		preview[i] = map[string]string{"Date": "01/01/24", "Description": "TXN", "Amount": "1.00"}
	}
	f.store.Add("s1", history.Item{
		FileID:   "f1",
		Status:   "completed",
		RowCount: 12,
		Preview:  preview,
	})

	rec := f.do(http.MethodGet, "/api/data/f1", "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Len(t, body["rows"].([]any), 10)
	assert.Equal(t, float64(12), body["row_count"])
}

func TestDataNotFoundWithoutPreview(t *testing.T) {
	f := newHistoryFixture(t)
	f.store.Add("s1", history.Item{FileID: "f1", Status: "failed"})

	rec := f.do(http.MethodGet, "/api/data/f1", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
