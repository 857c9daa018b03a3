// Package filestore manages on-disk conversion files: temporary uploads, the
// generated spreadsheets, and a registry mapping file IDs to artifacts for
// downloads that arrive without a session.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/statement-ai/converter/internal/observability"
)

// Config holds directory locations and retention windows.
type Config struct {
	TempDir        string
	GeneratedDir   string
	TempMaxAge     time.Duration
	ArtifactMaxAge time.Duration
}

// Store owns the temp and generated directories.
type Store struct {
	logger *observability.Logger
	cfg    Config

	mu        sync.RWMutex
	artifacts map[string]artifact

	now func() time.Time
}

type artifact struct {
	path       string
	registered time.Time
}

// NewStore creates a file store and ensures its directories exist.
func NewStore(logger *observability.Logger, cfg Config) (*Store, error) {
	for _, dir := range []string{cfg.TempDir, cfg.GeneratedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &Store{
		logger:    logger,
		cfg:       cfg,
		artifacts: make(map[string]artifact),
		now:       time.Now,
	}, nil
}

// SaveTemp writes an uploaded PDF to the temp directory and returns its path.
func (s *Store) SaveTemp(fileID string, data []byte) (string, error) {
	path := filepath.Join(s.cfg.TempDir, fileID+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

// GeneratedPath returns the artifact path for a conversion.
func (s *Store) GeneratedPath(fileID string) string {
	return filepath.Join(s.cfg.GeneratedDir, fileID+".xlsx")
}

// Register records the artifact for fileID so it can be served without a
// session lookup.
func (s *Store) Register(fileID, path string) {
	s.mu.Lock()
	s.artifacts[fileID] = artifact{path: path, registered: s.now()}
	s.mu.Unlock()
}

// Lookup returns the registered artifact path for fileID.
func (s *Store) Lookup(fileID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[fileID]
	if !ok {
		return "", false
	}
	return a.path, true
}

// Delete removes the registered artifact for fileID from disk and from the
// registry.
func (s *Store) Delete(fileID string) {
	s.mu.Lock()
	a, ok := s.artifacts[fileID]
	delete(s.artifacts, fileID)
	s.mu.Unlock()

	if ok {
		s.removeFile(a.path)
	}
}

// Remove deletes a file from disk, ignoring files that are already gone.
// It satisfies history.ArtifactRemover.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// SweepOnce deletes temp and generated files past their retention windows and
// drops stale registry entries. It returns the number of files removed.
func (s *Store) SweepOnce() int {
	now := s.now()
	removed := 0
	removed += s.sweepDir(s.cfg.TempDir, now, s.cfg.TempMaxAge)
	removed += s.sweepDir(s.cfg.GeneratedDir, now, s.cfg.ArtifactMaxAge)

	s.mu.Lock()
	for id, a := range s.artifacts {
		if now.Sub(a.registered) > s.cfg.ArtifactMaxAge {
			delete(s.artifacts, id)
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info().Int("files", removed).Msg("Swept stale conversion files")
	}
	return removed
}

// Run sweeps stale files on the given interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

func (s *Store) sweepDir(dir string, now time.Time, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Msg("Sweep could not read directory")
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) > maxAge {
			s.removeFile(filepath.Join(dir, entry.Name()))
			removed++
		}
	}
	return removed
}

func (s *Store) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove file")
	}
}
