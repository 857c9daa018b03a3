// Package main provides the statement converter API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/statement-ai/converter/internal/config"
	"github.com/statement-ai/converter/internal/convert"
	"github.com/statement-ai/converter/internal/extract"
	"github.com/statement-ai/converter/internal/filestore"
	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/llm"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/spreadsheet"
	"github.com/statement-ai/converter/internal/task"
)

func main() {
	// Load .env for local development before config reads the environment.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("ai_enabled", cfg.AIEnabled()).
		Msg("Starting statement converter API")

	files, err := filestore.NewStore(logger, filestore.Config{
		TempDir:        cfg.Storage.TempDir,
		GeneratedDir:   cfg.Storage.GeneratedDir,
		TempMaxAge:     cfg.Storage.TempMaxAge,
		ArtifactMaxAge: cfg.Storage.ArtifactMaxAge,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize file store")
	}

	registry := task.NewManager(logger)
	hub := progress.NewHub(logger)
	hist := history.NewStore(logger, history.Config{
		SessionTTL: cfg.History.SessionTTL,
		MaxItems:   cfg.History.MaxItems,
	}, files)

	var ai convert.AIStructurer
	if cfg.AIEnabled() {
		ai = llm.NewClient(logger, llm.Config{
			APIKey:         cfg.AI.APIKey,
			Model:          cfg.AI.Model,
			BaseURL:        cfg.AI.BaseURL,
			MaxRetries:     cfg.AI.MaxRetries,
			RetryDelay:     cfg.AI.RetryDelay,
			RequestTimeout: cfg.AI.RequestTimeout,
		})
	} else {
		logger.Warn().Msg("No API key configured, AI extraction disabled")
	}

	converter := convert.NewConverter(
		logger,
		registry,
		hub,
		hist,
		files,
		extract.NewValidator(cfg.Storage.MaxUploadBytes),
		extract.NewExtractor(),
		ai,
		spreadsheet.NewWriter(logger),
	)

	router := NewRouter(logger, cfg, Dependencies{
		Registry:  registry,
		Hub:       hub,
		History:   hist,
		Files:     files,
		Converter: converter,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Background maintenance: expired sessions and stale files.
	g.Go(func() error {
		hist.Run(gctx, cfg.History.SweepInterval)
		return nil
	})
	g.Go(func() error {
		files.Run(gctx, cfg.Storage.SweepInterval)
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
			return srv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Server stopped")
}
