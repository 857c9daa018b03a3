package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversionRouter(registry *task.Manager, hub *progress.Hub) http.Handler {
	h := NewConversionHandler(observability.DefaultLogger(), registry, hub)

	r := chi.NewRouter()
	r.Get("/api/status/{fileID}", h.Status)
	r.Post("/api/cancel/{fileID}", h.Cancel)
	r.Get("/api/ws/status", h.HubStatus)
	return r
}

func TestStatusOfRunningTask(t *testing.T) {
	logger := observability.DefaultLogger()
	registry := task.NewManager(logger)
	hub := progress.NewHub(logger)
	router := conversionRouter(registry, hub)

	started := make(chan struct{})
	release := make(chan struct{})
	registry.Start("f1", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	defer close(release)

	hub.BroadcastStatus("f1", progress.StatusExtracting, 20, "Extracting text", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/f1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(20), body["progress"])
}

func TestStatusFallsBackToProgressCache(t *testing.T) {
	logger := observability.DefaultLogger()
	registry := task.NewManager(logger)
	hub := progress.NewHub(logger)
	router := conversionRouter(registry, hub)

	// Registry entry already cleaned up, only the cached event remains.
	hub.BroadcastStatus("f1", progress.StatusCompleted, 100, "Conversion completed", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/f1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(100), body["progress"])
}

func TestStatusNotFound(t *testing.T) {
	logger := observability.DefaultLogger()
	router := conversionRouter(task.NewManager(logger), progress.NewHub(logger))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRunningConversion(t *testing.T) {
	logger := observability.DefaultLogger()
	registry := task.NewManager(logger)
	router := conversionRouter(registry, progress.NewHub(logger))

	started := make(chan struct{})
	registry.Start("f1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cancel/f1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelling", decodeBody(t, rec)["status"])
	assert.True(t, registry.IsCancelled("f1"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, registry.Wait(ctx, "f1"))
}

func TestCancelUnknownConversion(t *testing.T) {
	logger := observability.DefaultLogger()
	router := conversionRouter(task.NewManager(logger), progress.NewHub(logger))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cancel/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHubStatusCounters(t *testing.T) {
	logger := observability.DefaultLogger()
	registry := task.NewManager(logger)
	hub := progress.NewHub(logger)
	router := conversionRouter(registry, hub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ws/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["active_connections"])
	assert.Equal(t, float64(0), body["running_tasks"])
}
