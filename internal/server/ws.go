package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/confirm"
)

const (
	clientBuffer = 32
	writeWait    = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local UI only
	},
}

// Event is one message pushed to websocket clients.
type Event struct {
	Type       string  `json:"type"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence,omitempty"`
	Streak     int     `json:"streak,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Event types.
const (
	EventConfirmed = "confirmed"
	EventReset     = "reset"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans confirmer notifications out to websocket clients. Each
// client has a bounded queue; a client that falls behind is dropped so the
// frame loop never waits on the network.
type EventHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewEventHub creates an EventHub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the hub to c.
func (h *EventHub) Attach(c *confirm.Confirmer) []confirm.Subscription {
	return []confirm.Subscription{
		c.OnConfirmed(func(e confirm.Confirmed) {
			h.Broadcast(Event{Type: EventConfirmed, Class: e.Class, Confidence: e.Confidence, Streak: e.StreakLength})
		}),
		c.OnReset(func(e confirm.Reset) {
			h.Broadcast(Event{Type: EventReset, Class: e.PreviousClass})
		}),
	}
}

// Broadcast queues ev for every connected client without blocking.
func (h *EventHub) Broadcast(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow websocket client", "remote", c.conn.RemoteAddr().String())
			h.remove(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

// remove must be called with mu held.
func (h *EventHub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)

	// Reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.remove(c)
	h.mu.Unlock()
}

func (h *EventHub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
