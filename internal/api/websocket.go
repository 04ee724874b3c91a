package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/xk2013awa/CodingSnake/internal/game"

	"github.com/gorilla/websocket"
)

// MaxWSConnections caps simultaneous WebSocket clients.
const MaxWSConnections = 500

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The payload is the same public state the HTTP API serves.
		return true
	},
}

// wsMessage frames a round push: kind "delta" carries a DeltaState, kind
// "state" a full MapState the client must rebuild from.
type wsMessage struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// WebSocketHub fans each round out to all connected clients.
type WebSocketHub struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]struct{}
	broadcast chan []byte
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewWebSocketHub creates a hub; Run must be started before use.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte, 64),
		stopChan:  make(chan struct{}),
	}
}

// Run pumps broadcasts to clients until Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			return
		case payload := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					// Writer failed; the read loop will clean the client up.
					continue
				}
				wsMessagesTotal.Inc()
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts the broadcast pump down.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// BroadcastRound serializes a round push and queues it for delivery.
// Wire it to the dispatcher as a round listener; a full backlog drops the
// frame rather than stalling the round transition.
func (h *WebSocketHub) BroadcastRound(state *game.MapState, delta *game.DeltaState) {
	msg := wsMessage{Kind: "state", Data: state}
	if delta != nil {
		msg = wsMessage{Kind: "delta", Data: delta}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal round push: %v", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Printf("websocket backlog full, dropping round %d push", state.Round)
	}
}

// HandleWebSocket upgrades a connection and keeps it registered until the
// peer goes away.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	count := len(h.clients)
	h.mu.RUnlock()
	if count >= MaxWSConnections {
		writeError(w, http.StatusServiceUnavailable, "connection limit reached")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	wsConnectionsActive.Inc()

	// Read loop exists only to detect disconnects; clients send nothing.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			wsConnectionsActive.Dec()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
