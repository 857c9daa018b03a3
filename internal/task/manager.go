// Package task tracks one cancellable background conversion per file ID.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/statement-ai/converter/internal/observability"
)

// State describes the lifecycle of a tracked task.
type State string

// Task states.
const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Info is a point-in-time snapshot of a tracked task.
type Info struct {
	FileID    string    `json:"file_id"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Cancelled bool      `json:"cancelled"`
	Error     string    `json:"error,omitempty"`
}

type record struct {
	info   Info
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is the registry of running conversions. Each file ID maps to at
// most one task; resubmitting a file ID cancels the previous task first.
type Manager struct {
	logger *observability.Logger

	mu    sync.RWMutex
	tasks map[string]*record
}

// NewManager creates an empty task registry.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
		tasks:  make(map[string]*record),
	}
}

// Start launches fn in a goroutine and registers it under fileID. Any task
// already registered under the same file ID is cancelled and replaced. The
// terminal state is classified from fn's return: context.Canceled or a prior
// Cancel call yields cancelled, any other error yields failed.
func (m *Manager) Start(fileID string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &record{
		info: Info{
			FileID:    fileID,
			State:     StateRunning,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if prev, ok := m.tasks[fileID]; ok && prev.info.State == StateRunning {
		prev.info.Cancelled = true
		prev.cancel()
		m.logger.Warn().Str("file_id", fileID).Msg("Replacing running task, previous task cancelled")
	}
	m.tasks[fileID] = rec
	m.mu.Unlock()

	go func() {
		err := fn(ctx)
		cancel()
		m.finish(fileID, rec, err)
	}()
}

// finish records the terminal state for rec unless it was already replaced
// or cleaned up.
func (m *Manager) finish(fileID string, rec *record, err error) {
	m.mu.Lock()
	switch {
	case rec.info.Cancelled || errors.Is(err, context.Canceled):
		rec.info.State = StateCancelled
	case err != nil:
		rec.info.State = StateFailed
		rec.info.Error = err.Error()
	default:
		rec.info.State = StateCompleted
	}
	info := rec.info
	m.mu.Unlock()
	close(rec.done)

	evt := m.logger.Info()
	if info.State == StateFailed {
		evt = m.logger.Error().Str("error", info.Error)
	}
	evt.Str("file_id", fileID).Str("state", string(info.State)).Msg("Task finished")
}

// Cancel requests cancellation of the task registered under fileID. It
// returns false when no running task exists for that file ID.
func (m *Manager) Cancel(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[fileID]
	if !ok || rec.info.State != StateRunning {
		return false
	}

	rec.info.Cancelled = true
	rec.cancel()
	return true
}

// IsCancelled reports whether cancellation was requested for fileID. The
// conversion pipeline polls this between stages.
func (m *Manager) IsCancelled(fileID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tasks[fileID]
	return ok && rec.info.Cancelled
}

// Status returns a snapshot of the task registered under fileID.
func (m *Manager) Status(fileID string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tasks[fileID]
	if !ok {
		return Info{}, false
	}
	return rec.info, true
}

// Cleanup removes the registry entry for fileID. Safe to call multiple times
// and for unknown file IDs.
func (m *Manager) Cleanup(fileID string) {
	m.mu.Lock()
	delete(m.tasks, fileID)
	m.mu.Unlock()
}

// Running returns the number of tasks still in the running state.
func (m *Manager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.tasks {
		if rec.info.State == StateRunning {
			n++
		}
	}
	return n
}

// Wait blocks until the task registered under fileID finishes or the context
// is done. It returns immediately when no task is registered.
func (m *Manager) Wait(ctx context.Context, fileID string) error {
	m.mu.RLock()
	rec, ok := m.tasks[fileID]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	select {
	case <-rec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
