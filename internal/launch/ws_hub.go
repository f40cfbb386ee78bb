package launch

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notmarket/launch-engine/internal/metrics"
)

// WSMessage is broadcast to all connected clients on trade execution and
// curve graduation.
type WSMessage struct {
	Type      string `json:"type"`
	LaunchID  string `json:"launch_id"`
	Side      string `json:"side,omitempty"`
	Units     uint64 `json:"units,omitempty"`
	Gross     uint64 `json:"gross_native,omitempty"`
	SpotAfter uint64 `json:"spot_after_native,omitempty"`
	UnitsSold uint64 `json:"units_sold,omitempty"`
	Reserve   uint64 `json:"native_reserve,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WSHub manages WebSocket connections and broadcasts launch events.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan WSMessage
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan WSMessage, 256),
	}
}

// Run processes hub events. Call in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(count))
			slog.Debug("websocket client connected", "total", count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(count))
			slog.Debug("websocket client disconnected", "total", count)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("failed to marshal ws message", "error", err)
				continue
			}
			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					// Dead connection, cleaned up via unregister.
					go func(c *websocket.Conn) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected clients. Non-blocking: if
// the buffer is full the message is dropped.
func (h *WSHub) Broadcast(msg WSMessage) {
	msg.Timestamp = time.Now().Unix()
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("ws broadcast buffer full, dropping message", "type", msg.Type)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS upgrades an HTTP connection to WebSocket and registers it with
// the hub.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	h.register <- conn

	// Read pump: drains client frames and detects disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Ping loop keeps the connection alive.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
