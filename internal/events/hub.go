// Package events provides the realtime broadcast channel that delivers
// call-lifecycle and UI-directive events to connected viewer clients.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/carelane/carelane/internal/metrics"
	"github.com/coder/websocket"
)

// Event kinds broadcast to viewers.
const (
	EventShowClinics      = "show_clinics"
	EventShowCalendar     = "show_calendar"
	EventCallStarted      = "call_started"
	EventCallOnHold       = "call_on_hold"
	EventCallResumed      = "call_resumed"
	EventCallEnded        = "call_ended"
	EventTranscriptUpdate = "call_transcript_update"
	EventEmergencyTrigger = "emergency_trigger"
	EventAgentNeedsInput  = "agent_needs_input"
	EventAgentInput       = "agent_input_received"
	EventChatResponse     = "chat_response"
	EventError            = "error"
)

// Sink is the publish surface handlers and services depend on.
type Sink interface {
	Publish(kind string, payload any)
}

// Envelope is the wire format for a broadcast event.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"ts"`
}

const writeTimeout = 5 * time.Second

// Hub fans events out to every currently connected viewer. Delivery is
// at-most-once with no replay; a viewer that connects after an event fired
// will not receive it.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Register adds a viewer connection.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
	slog.Info("Viewer connected", "viewers", len(h.conns))
}

// Unregister removes a viewer connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		slog.Info("Viewer disconnected", "viewers", len(h.conns))
	}
}

// ViewerCount returns the number of currently connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish broadcasts an event to every connected viewer. A connection whose
// write fails is dropped; the event is not retried.
func (h *Hub) Publish(kind string, payload any) {
	data, err := json.Marshal(Envelope{
		Type:      kind,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to marshal event", "kind", kind, "error", err)
		return
	}

	metrics.EventsPublished.WithLabelValues(kind).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		writeErr := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if writeErr != nil {
			slog.Debug("Dropping viewer after write failure", "kind", kind, "error", writeErr)
			_ = conn.Close(websocket.StatusNormalClosure, "write failed")
			delete(h.conns, conn)
		}
	}
}
