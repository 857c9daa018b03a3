// Package history keeps a per-session ledger of conversions with a bounded
// size and an idle-session TTL. Everything lives in process memory; a
// restart starts with an empty ledger.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/statement-ai/converter/internal/observability"
)

// ErrNotFound indicates the session or item does not exist.
var ErrNotFound = errors.New("history item not found")

// ArtifactRemover deletes a generated artifact from disk when its history
// entry is evicted or deleted.
type ArtifactRemover interface {
	Remove(path string) error
}

// Item is one conversion in a session's history.
type Item struct {
	FileID         string              `json:"file_id"`
	OriginalName   string              `json:"original_filename"`
	ConvertedName  string              `json:"converted_filename,omitempty"`
	Status         string              `json:"status"`
	ProcessingType string              `json:"processing_type"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Error          string              `json:"error_message,omitempty"`
	ArtifactPath   string              `json:"-"`
	FileSize       int64               `json:"file_size,omitempty"`
	RowCount       int                 `json:"row_count,omitempty"`
	Preview        []map[string]string `json:"-"`
}

// Stats summarises a session's history by outcome and processing type.
type Stats struct {
	Total     int `json:"total_conversions"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	AI        int `json:"ai_conversions"`
	Basic     int `json:"basic_conversions"`
}

type session struct {
	items      []*Item // most recent first
	lastAccess time.Time
}

// Config bounds the store.
type Config struct {
	SessionTTL time.Duration
	MaxItems   int
}

// Store holds all session histories.
type Store struct {
	logger  *observability.Logger
	cfg     Config
	remover ArtifactRemover

	mu       sync.RWMutex
	sessions map[string]*session

	// now is swapped in tests to drive TTL expiry.
	now func() time.Time
}

// NewStore creates a history store. remover may be nil when artifact cleanup
// is handled elsewhere.
func NewStore(logger *observability.Logger, cfg Config, remover ArtifactRemover) *Store {
	return &Store{
		logger:   logger,
		cfg:      cfg,
		remover:  remover,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Add records a conversion at the front of the session's history. An item
// with the same file ID replaces the existing entry in place. When the
// session exceeds its cap, the oldest entries are evicted and their
// artifacts removed.
func (s *Store) Add(sessionID string, item Item) {
	now := s.now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID, now)

	for i, existing := range sess.items {
		if existing.FileID == item.FileID {
			sess.items[i] = &item
			return
		}
	}

	sess.items = append([]*Item{&item}, sess.items...)

	for len(sess.items) > s.cfg.MaxItems {
		evicted := sess.items[len(sess.items)-1]
		sess.items = sess.items[:len(sess.items)-1]
		s.removeArtifact(evicted)
		s.logger.Debug().Str("session_id", sessionID).Str("file_id", evicted.FileID).Msg("Evicted history item over cap")
	}
}

// Update applies fn to the item with the given file ID and refreshes its
// updated timestamp. It returns ErrNotFound when the session or item is
// missing or expired.
func (s *Store) Update(sessionID, fileID string, fn func(*Item)) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(sessionID, now)
	if !ok {
		return ErrNotFound
	}

	for _, item := range sess.items {
		if item.FileID == fileID {
			fn(item)
			item.UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}

// Get returns a copy of the item with the given file ID.
func (s *Store) Get(sessionID, fileID string) (Item, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(sessionID, now)
	if !ok {
		return Item{}, ErrNotFound
	}

	for _, item := range sess.items {
		if item.FileID == fileID {
			return *item, nil
		}
	}
	return Item{}, ErrNotFound
}

// List returns the session's finished conversions, most recent first. Items
// still in flight (or cancelled) are not listed.
func (s *Store) List(sessionID string) []Item {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(sessionID, now)
	if !ok {
		return nil
	}

	out := make([]Item, 0, len(sess.items))
	for _, item := range sess.items {
		if item.Status == "completed" || item.Status == "failed" {
			out = append(out, *item)
		}
	}
	return out
}

// Delete removes the item with the given file ID and deletes its artifact.
func (s *Store) Delete(sessionID, fileID string) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(sessionID, now)
	if !ok {
		return ErrNotFound
	}

	for i, item := range sess.items {
		if item.FileID == fileID {
			sess.items = append(sess.items[:i], sess.items[i+1:]...)
			s.removeArtifact(item)
			return nil
		}
	}
	return ErrNotFound
}

// SessionStats summarises the session's finished conversions.
func (s *Store) SessionStats(sessionID string) Stats {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	sess, ok := s.liveSession(sessionID, now)
	if !ok {
		return stats
	}

	for _, item := range sess.items {
		switch item.Status {
		case "completed":
			stats.Completed++
		case "failed":
			stats.Failed++
		default:
			continue
		}
		stats.Total++
		switch item.ProcessingType {
		case "ai":
			stats.AI++
		case "basic":
			stats.Basic++
		}
	}
	return stats
}

// Totals returns the number of live sessions and history items across the
// whole process.
func (s *Store) Totals() (sessions, items int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		sessions++
		items += len(sess.items)
	}
	return sessions, items
}

// SweepOnce drops sessions idle past the TTL and removes their artifacts.
// It returns the number of sessions dropped.
func (s *Store) SweepOnce() int {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccess) <= s.cfg.SessionTTL {
			continue
		}
		for _, item := range sess.items {
			s.removeArtifact(item)
		}
		delete(s.sessions, id)
		dropped++
	}

	if dropped > 0 {
		s.logger.Info().Int("sessions", dropped).Msg("Swept expired history sessions")
	}
	return dropped
}

// Run sweeps expired sessions on the given interval until ctx is done.
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

// session returns the live session for id, creating it when absent. An
// expired session is discarded first so stale items never resurface.
func (s *Store) session(id string, now time.Time) *session {
	if sess, ok := s.liveSession(id, now); ok {
		return sess
	}

	sess := &session{lastAccess: now}
	s.sessions[id] = sess
	return sess
}

// liveSession returns the session for id when it exists and is not expired,
// refreshing its last-access time. Expired sessions are dropped lazily here
// in addition to the periodic sweep.
func (s *Store) liveSession(id string, now time.Time) (*session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	if now.Sub(sess.lastAccess) > s.cfg.SessionTTL {
		for _, item := range sess.items {
			s.removeArtifact(item)
		}
		delete(s.sessions, id)
		return nil, false
	}

	sess.lastAccess = now
	return sess, true
}

func (s *Store) removeArtifact(item *Item) {
	if s.remover == nil || item.ArtifactPath == "" {
		return
	}
	if err := s.remover.Remove(item.ArtifactPath); err != nil {
		s.logger.Warn().Err(err).Str("file_id", item.FileID).Msg("Failed to remove evicted artifact")
	}
}
