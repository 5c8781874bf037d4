package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/AdamZagri/aibi-server/logger"
)

// dialAndRegister connects a client to the hub and subscribes it to
// messageID, waiting for the registration to land before returning.
func dialAndRegister(t *testing.T, hub *Hub, url, messageID string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	reg, _ := json.Marshal(registration{Type: "register", MessageID: messageID})
	if err := conn.Write(ctx, websocket.MessageText, reg); err != nil {
		t.Fatalf("write register: %v", err)
	}

	// Registration happens on the server's read loop.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("registration never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestHub_NotifyDeliversStatusEvent(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialAndRegister(t, hub, srv.URL, "msg-1")

	hub.Notify("msg-1", "מריץ שאילתה", 120*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, raw, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}

	var ev StatusEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Type != "status" {
		t.Errorf("Type = %q, want %q", ev.Type, "status")
	}
	if ev.MessageID != "msg-1" {
		t.Errorf("MessageID = %q, want %q", ev.MessageID, "msg-1")
	}
	if ev.StatusText != "מריץ שאילתה" {
		t.Errorf("StatusText = %q", ev.StatusText)
	}
	if ev.ElapsedMs != 120 {
		t.Errorf("ElapsedMs = %d, want 120", ev.ElapsedMs)
	}
	// Nil payloads are replaced with a sentinel so clients always get a
	// data field.
	if ev.Data != "NoInfo" {
		t.Errorf("Data = %v, want NoInfo", ev.Data)
	}
}

func TestHub_NotifyUnregisteredIDIsSilent(t *testing.T) {
	hub := NewHub(logger.Nop())

	// Must not panic or block with no subscriber present.
	hub.Notify("nobody-home", "בודק", time.Second, map[string]any{"rows": 3})

	if got := hub.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}
}

func TestHub_DisconnectDropsRegistration(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialAndRegister(t, hub, srv.URL, "msg-2")
	_ = conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("registration survived disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
