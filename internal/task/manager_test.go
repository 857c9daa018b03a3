package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/statement-ai/converter/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(observability.DefaultLogger())
}

func waitFor(t *testing.T, m *Manager, fileID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, fileID))
}

func TestStartAndComplete(t *testing.T) {
	m := newTestManager()

	m.Start("f1", func(ctx context.Context) error {
		return nil
	})
	waitFor(t, m, "f1")

	info, ok := m.Status("f1")
	require.True(t, ok)
	assert.Equal(t, StateCompleted, info.State)
	assert.False(t, info.Cancelled)
	assert.Empty(t, info.Error)
}

func TestFailureClassification(t *testing.T) {
	m := newTestManager()

	m.Start("f1", func(ctx context.Context) error {
		return errors.New("extraction blew up")
	})
	waitFor(t, m, "f1")

	info, ok := m.Status("f1")
	require.True(t, ok)
	assert.Equal(t, StateFailed, info.State)
	assert.Equal(t, "extraction blew up", info.Error)
}

func TestCancelRunningTask(t *testing.T) {
	m := newTestManager()
	started := make(chan struct{})

	m.Start("f1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	require.True(t, m.Cancel("f1"))
	assert.True(t, m.IsCancelled("f1"))
	waitFor(t, m, "f1")

	info, ok := m.Status("f1")
	require.True(t, ok)
	assert.Equal(t, StateCancelled, info.State)
}

func TestCancelUnknownTask(t *testing.T) {
	m := newTestManager()

	assert.False(t, m.Cancel("missing"))
	assert.False(t, m.IsCancelled("missing"))
}

func TestCancelFinishedTaskReturnsFalse(t *testing.T) {
	m := newTestManager()

	m.Start("f1", func(ctx context.Context) error { return nil })
	waitFor(t, m, "f1")

	assert.False(t, m.Cancel("f1"))
}

func TestResubmitCancelsPreviousTask(t *testing.T) {
	m := newTestManager()
	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})

	m.Start("f1", func(ctx context.Context) error {
		close(firstStarted)
		<-ctx.Done()
		close(firstCancelled)
		return ctx.Err()
	})
	<-firstStarted

	m.Start("f1", func(ctx context.Context) error { return nil })

	select {
	case <-firstCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("previous task was not cancelled on resubmit")
	}

	waitFor(t, m, "f1")
	info, ok := m.Status("f1")
	require.True(t, ok)
	assert.Equal(t, StateCompleted, info.State)
	assert.False(t, info.Cancelled)
}

func TestCleanupIsIdempotent(t *testing.T) {
	m := newTestManager()

	m.Start("f1", func(ctx context.Context) error { return nil })
	waitFor(t, m, "f1")

	m.Cleanup("f1")
	m.Cleanup("f1")
	m.Cleanup("never-existed")

	_, ok := m.Status("f1")
	assert.False(t, ok)
}

func TestRunningCount(t *testing.T) {
	m := newTestManager()
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	for _, id := range []string{"f1", "f2"} {
		m.Start(id, func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		})
	}
	<-started
	<-started

	assert.Equal(t, 2, m.Running())
	close(release)
	waitFor(t, m, "f1")
	waitFor(t, m, "f2")
	assert.Equal(t, 0, m.Running())
}
