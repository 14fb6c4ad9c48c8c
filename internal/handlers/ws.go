package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"

	wsWriteTimeout = 5 * time.Second
	// events queued per connection before a slow reader is dropped
	wsSendBuffer = 32
)

type taskEvent struct {
	Event string `json:"event"`
	ID    int64  `json:"id"`
}

// wsClient is one open feed connection. Only its writer goroutine writes to
// conn; the hub closes send when the client is removed.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
}

func (c *wsClient) writeLoop(log *slog.Logger) {
	defer c.conn.Close()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
}

// WSHub fans task change events out to the owner's open connections.
type WSHub struct {
	connections map[string]map[*wsClient]bool
	mutex       sync.Mutex
	log         *slog.Logger
}

func NewWSHub(log *slog.Logger) *WSHub {
	return &WSHub{connections: make(map[string]map[*wsClient]bool), log: log}
}

func (h *WSHub) register(userID string, conn *websocket.Conn) *wsClient {
	client := newWSClient(conn)
	h.add(userID, client)
	go client.writeLoop(h.log)
	return client
}

func (h *WSHub) add(userID string, client *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*wsClient]bool)
	}
	h.connections[userID][client] = true
}

func (h *WSHub) unregister(userID string, client *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(userID, client)
}

func (h *WSHub) removeLocked(userID string, client *wsClient) {
	clients, exists := h.connections[userID]
	if !exists {
		return
	}
	if clients[client] {
		delete(clients, client)
		close(client.send)
	}
	if len(clients) == 0 {
		delete(h.connections, userID)
	}
}

// Broadcast queues event for every connection of userID without waiting on
// the network. A connection whose queue is full is dropped.
func (h *WSHub) Broadcast(userID, event string, taskID int64) {
	if h == nil {
		return
	}
	message, err := json.Marshal(taskEvent{Event: event, ID: taskID})
	if err != nil {
		h.log.Error("failed to marshal task event", "error", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.connections[userID] {
		select {
		case client.send <- message:
		default:
			h.log.Warn("dropping slow websocket connection", "user_id", userID)
			h.removeLocked(userID, client)
			// the writer may be stuck in a write; unblock the read loop too
			_ = client.conn.Close()
		}
	}
}

// Count reports the open connections of userID.
func (h *WSHub) Count(userID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[userID])
}

// Close drops every connection, used on shutdown.
func (h *WSHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for userID, clients := range h.connections {
		for client := range clients {
			close(client.send)
		}
		delete(h.connections, userID)
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, h.AllowedOrigins)
		},
	}
	// Upgrade writes the error response itself
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := h.WSHub.register(userID, conn)
	h.Log.Debug("websocket connected", "user_id", userID)

	// the feed is one-way; reading only detects the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.WSHub.unregister(userID, client)
			h.Log.Debug("websocket disconnected", "user_id", userID, "error", err)
			return
		}
	}
}

// checkOrigin allows requests without an Origin header and, when allowed is
// non-empty, only the listed origins.
func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}
