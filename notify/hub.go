// Package notify is the push-status side channel: clients open a
// WebSocket, register a message id, and receive advisory status events
// while that message is processed. The pipeline never blocks on delivery
// and events to unregistered ids are dropped.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/AdamZagri/aibi-server/logger"
)

// StatusEvent is one pipeline progress update.
type StatusEvent struct {
	Type       string `json:"type"`
	MessageID  string `json:"messageId"`
	StatusText string `json:"statusText"`
	ElapsedMs  int64  `json:"elapsedMs"`
	Data       any    `json:"data"`
}

// registration is what clients send after connecting.
type registration struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

// Hub maps message ids to their subscriber connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*websocket.Conn
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
		log:     log,
	}
}

// Notify pushes a status event to the subscriber of messageID, if any.
// Send errors drop the registration; they are never surfaced to the
// pipeline.
func (h *Hub) Notify(messageID, statusText string, elapsed time.Duration, data any) {
	h.mu.RLock()
	conn := h.clients[messageID]
	h.mu.RUnlock()
	if conn == nil {
		return
	}

	if data == nil {
		data = "NoInfo"
	}
	payload, err := json.Marshal(StatusEvent{
		Type:       "status",
		MessageID:  messageID,
		StatusText: statusText,
		ElapsedMs:  elapsed.Milliseconds(),
		Data:       data,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		h.log.Debug("status push failed, dropping subscriber", "message_id", messageID, "error", err)
		h.mu.Lock()
		delete(h.clients, messageID)
		h.mu.Unlock()
	}
}

// ServeHTTP upgrades the connection and reads register messages until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}()

	ctx := r.Context()
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			h.dropConn(conn)
			return
		}
		var reg registration
		if err := json.Unmarshal(raw, &reg); err != nil || reg.Type != "register" || reg.MessageID == "" {
			continue
		}
		h.mu.Lock()
		h.clients[reg.MessageID] = conn
		h.mu.Unlock()
		h.log.Debug("status subscriber registered", "message_id", reg.MessageID)
	}
}

// dropConn removes every registration held by conn.
func (h *Hub) dropConn(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if c == conn {
			delete(h.clients, id)
		}
	}
}

// Subscribers reports the current registration count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
