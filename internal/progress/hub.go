package progress

import (
	"sync"
	"time"

	"github.com/statement-ai/converter/internal/observability"
)

// Subscriber receives progress events for one conversion. Send must be safe
// to call from the broadcasting goroutine; a non-nil error detaches the
// subscriber.
type Subscriber interface {
	Send(Event) error
}

// Hub routes progress events to at most one live subscriber per file ID and
// caches the most recent event so a subscriber attaching mid-conversion sees
// the current state immediately.
type Hub struct {
	logger *observability.Logger

	mu          sync.RWMutex
	subscribers map[string]Subscriber
	lastEvent   map[string]Event
}

// NewHub creates a progress hub.
func NewHub(logger *observability.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[string]Subscriber),
		lastEvent:   make(map[string]Event),
	}
}

// Attach registers sub as the subscriber for fileID, replacing any previous
// subscriber. If an event was already broadcast for fileID, it is replayed to
// sub so the client does not miss the current state.
func (h *Hub) Attach(fileID string, sub Subscriber) {
	h.mu.Lock()
	last, hasLast := h.lastEvent[fileID]
	h.subscribers[fileID] = sub
	h.mu.Unlock()

	h.logger.Debug().Str("file_id", fileID).Bool("replayed", hasLast).Msg("Progress subscriber attached")

	if hasLast {
		if err := sub.Send(last); err != nil {
			h.logger.Warn().Err(err).Str("file_id", fileID).Msg("Replay to new subscriber failed")
			h.DetachSubscriber(fileID, sub)
		}
	}
}

// Detach removes the subscriber for fileID. The last-event cache is kept so a
// reconnecting client can still catch up.
func (h *Hub) Detach(fileID string) {
	h.mu.Lock()
	delete(h.subscribers, fileID)
	h.mu.Unlock()
}

// DetachSubscriber removes sub only if it is still the registered subscriber
// for fileID. A subscriber that was already replaced is left alone.
func (h *Hub) DetachSubscriber(fileID string, sub Subscriber) {
	h.mu.Lock()
	if current, ok := h.subscribers[fileID]; ok && current == sub {
		delete(h.subscribers, fileID)
	}
	h.mu.Unlock()
}

// Publish caches the event and delivers it to the live subscriber, if any.
// A failed delivery detaches the subscriber; Publish itself never fails so
// the conversion pipeline is insulated from client connection state.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	h.lastEvent[evt.FileID] = evt
	sub, ok := h.subscribers[evt.FileID]
	h.mu.Unlock()

	if !ok {
		return
	}

	if err := sub.Send(evt); err != nil {
		h.logger.Warn().Err(err).Str("file_id", evt.FileID).Str("status", evt.Status).Msg("Progress delivery failed, detaching subscriber")
		h.DetachSubscriber(evt.FileID, sub)
	}
}

// BroadcastStatus builds and publishes a progress event. Progress is clamped
// to the 0-100 range.
func (h *Hub) BroadcastStatus(fileID, status string, pct int, message string, data map[string]any) {
	h.Publish(Event{
		FileID:    fileID,
		Status:    status,
		Progress:  clampProgress(pct),
		Message:   message,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// LastEvent returns the cached event for fileID, if any.
func (h *Hub) LastEvent(fileID string) (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	evt, ok := h.lastEvent[fileID]
	return evt, ok
}

// ClearCache drops the cached event for fileID. Called once a conversion's
// bookkeeping is torn down.
func (h *Hub) ClearCache(fileID string) {
	h.mu.Lock()
	delete(h.lastEvent, fileID)
	h.mu.Unlock()
}

// ActiveSubscribers returns the number of live subscribers.
func (h *Hub) ActiveSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}
