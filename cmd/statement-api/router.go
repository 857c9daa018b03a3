// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/statement-ai/converter/cmd/statement-api/handlers"
	"github.com/statement-ai/converter/cmd/statement-api/middleware"
	"github.com/statement-ai/converter/internal/config"
	"github.com/statement-ai/converter/internal/convert"
	"github.com/statement-ai/converter/internal/filestore"
	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/task"
)

// Dependencies holds the long-lived services the router serves from. They
// are constructed once in main and injected here.
type Dependencies struct {
	Registry  *task.Manager
	Hub       *progress.Hub
	History   *history.Store
	Files     *filestore.Store
	Converter *convert.Converter
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(chimiddleware.Logger) // Use chi's built-in logger
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"statement-converter"}`))
	})

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(logger, deps.Converter, cfg.Storage.MaxUploadBytes)
	conversionHandler := handlers.NewConversionHandler(logger, deps.Registry, deps.Hub)
	wsHandler := handlers.NewWebSocketHandler(logger, deps.Hub, deps.Registry)
	historyHandler := handlers.NewHistoryHandler(logger, deps.History, cfg.History.PreviewRows)
	downloadHandler := handlers.NewDownloadHandler(logger, deps.History, deps.Files)
	adminHandler := handlers.NewAdminHandler(logger, deps.History, deps.Registry, deps.Hub)

	// API routes. The request timeout stays off the WebSocket route, which
	// outlives any sensible deadline.
	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

		r.Post("/upload", uploadHandler.Upload)
		r.Get("/status/{fileID}", conversionHandler.Status)
		r.Post("/cancel/{fileID}", conversionHandler.Cancel)
		r.Get("/ws/status", conversionHandler.HubStatus)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", historyHandler.List)
			r.Get("/stats/summary", historyHandler.Stats)
			r.Get("/{fileID}", historyHandler.Get)
			r.Delete("/{fileID}", historyHandler.Delete)
			r.Post("/{fileID}/redownload", historyHandler.Redownload)
		})

		r.Get("/download/{fileID}", downloadHandler.Download)
		r.Get("/data/{fileID}", historyHandler.Data)
		r.Get("/admin/stats", adminHandler.Stats)
	})

	r.Get("/ws/{fileID}", wsHandler.Serve)

	return r
}
