package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func dialViewer(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	handler := NewWebSocketHandler(hub, "", true)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })

	// Registration happens on the server goroutine after the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ViewerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.ViewerCount() == 0 {
		t.Fatal("Viewer never registered with hub")
	}
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	conn := dialViewer(t, hub)

	hub.Publish(EventCallStarted, map[string]string{"clinic_name": "City Clinic"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if env.Type != EventCallStarted {
		t.Errorf("Expected type %s, got %s", EventCallStarted, env.Type)
	}
	if env.Timestamp.IsZero() {
		t.Error("Expected timestamp on envelope")
	}
	payload := env.Data.(map[string]any)
	if payload["clinic_name"] != "City Clinic" {
		t.Errorf("Expected payload preserved, got %+v", payload)
	}
}

func TestHubPing(t *testing.T) {
	hub := NewHub()
	conn := dialViewer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read pong: %v", err)
	}
	var msg map[string]string
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode pong: %v", err)
	}
	if msg["type"] != "pong" {
		t.Errorf("Expected pong, got %+v", msg)
	}
}

func TestHubUnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialViewer(t, hub)

	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ViewerCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := hub.ViewerCount(); got != 0 {
		t.Errorf("Expected viewer unregistered after close, got %d", got)
	}
}

func TestHubPublishWithoutViewers(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Publish(EventError, map[string]string{"message": "nobody listening"})
}
