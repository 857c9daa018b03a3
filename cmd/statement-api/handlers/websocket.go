package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/task"
)

// WebSocketHandler streams progress events and accepts control messages for
// one conversion per connection.
type WebSocketHandler struct {
	logger   *observability.Logger
	hub      *progress.Hub
	registry *task.Manager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocket progress handler.
func NewWebSocketHandler(logger *observability.Logger, hub *progress.Hub, registry *task.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		logger:   logger,
		hub:      hub,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is session-scoped, not origin-scoped.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// connSubscriber adapts a websocket connection to the progress.Subscriber
// interface. Writes are serialised; gorilla connections do not allow
// concurrent writers.
type connSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *connSubscriber) Send(evt progress.Event) error {
	return s.writeJSON(evt)
}

func (s *connSubscriber) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// controlMessage is an inbound client message. Anything that does not decode
// into a known type is treated as connection keepalive noise.
type controlMessage struct {
	Type      string `json:"type"`
	Timestamp any    `json:"timestamp,omitempty"`
}

// Serve handles GET /ws/{fileID}. The cached progress event, if any, is
// replayed immediately on attach.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	log := h.logger.WithFile(fileID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := &connSubscriber{conn: conn}
	h.hub.Attach(fileID, sub)
	// Only drop the hub registration if this connection still owns it; a
	// reconnect may have replaced it already.
	defer h.hub.DetachSubscriber(fileID, sub)

	log.Debug().Msg("WebSocket client connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("WebSocket client disconnected")
			return
		}
		h.handleControl(log, fileID, sub, raw)
	}
}

func (h *WebSocketHandler) handleControl(log *observability.Logger, fileID string, sub *connSubscriber, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Not a control message; keep the connection alive.
		return
	}

	switch msg.Type {
	case "ping":
		_ = sub.writeJSON(map[string]any{
			"type":      "pong",
			"timestamp": msg.Timestamp,
		})

	case "status_request":
		if info, ok := h.registry.Status(fileID); ok {
			_ = sub.writeJSON(map[string]any{
				"type":      "status",
				"file_id":   fileID,
				"status":    string(info.State),
				"cancelled": info.Cancelled,
			})
			return
		}
		if evt, ok := h.hub.LastEvent(fileID); ok {
			_ = sub.writeJSON(map[string]any{
				"type":     "status",
				"file_id":  fileID,
				"status":   evt.Status,
				"progress": evt.Progress,
			})
			return
		}
		_ = sub.writeJSON(map[string]any{
			"type":    "not_found",
			"file_id": fileID,
		})

	case "cancel_request":
		if h.registry.Cancel(fileID) {
			log.Info().Msg("Cancellation requested over WebSocket")
			_ = sub.writeJSON(map[string]any{
				"type":    "cancelling",
				"file_id": fileID,
			})
		} else {
			_ = sub.writeJSON(map[string]any{
				"type":    "cancel_failed",
				"file_id": fileID,
				"message": "no running conversion for this file",
			})
		}
	}
}
