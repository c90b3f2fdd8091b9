package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
)

// ProgressMessage represents a progress update sent via WebSocket.
type ProgressMessage struct {
	Type      string                 `json:"type"`      // "progress", "complete", "error"
	Operation string                 `json:"operation"` // always "convert" for now
	RunID     string                 `json:"run_id,omitempty"`
	Stage     string                 `json:"stage"`     // Current pipeline stage
	Progress  int                    `json:"progress"`  // 0-100
	Message   string                 `json:"message"`   // Human-readable status
	Timestamp string                 `json:"timestamp"` // ISO 8601 timestamp
	Data      map[string]interface{} `json:"data,omitempty"`
}

// stageProgress maps pipeline stages to a rough completion percentage.
var stageProgress = map[string]int{
	convert.StageResolve:   5,
	convert.StageRead:      20,
	convert.StageTransform: 50,
	convert.StageWrite:     70,
	convert.StageDone:      100,
}

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains active WebSocket connections and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	// OnClientCount is called from Run with the number of connected
	// clients after each change. Optional.
	OnClientCount func(int)
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles client registration and broadcasting until ctx is done,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.done) })
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.clientsChanged("hub_stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.clientsChanged("client_connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.clientsChanged("client_disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client channel full, disconnect
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers a client, returning false when the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters a client. It does not block once the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) clientsChanged(event string) {
	n := h.ClientCount()
	logging.WebSocketEvent(event, n)
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a progress message to all connected clients. It never
// blocks; messages are dropped when the hub is backed up.
func (h *Hub) Broadcast(msg ProgressMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal progress message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message")
	}
}

// Observe implements convert.Observer, broadcasting every pipeline event.
func (h *Hub) Observe(e convert.Event) {
	msg := ProgressMessage{
		Type:      "progress",
		Operation: "convert",
		RunID:     e.RunID,
		Stage:     e.Stage,
		Progress:  stageProgress[e.Stage],
		Data: map[string]interface{}{
			"from": e.From,
			"to":   e.To,
		},
	}

	switch {
	case e.Failed():
		msg.Type = "error"
		msg.Message = e.Err.Error()
	case e.Stage == convert.StageDone:
		msg.Type = "complete"
		msg.Message = fmt.Sprintf("converted %s to %s", e.From, e.To)
		msg.Data["loss_class"] = string(e.LossClass)
		msg.Data["warnings"] = len(e.Warnings)
		msg.Data["duration_ms"] = e.Duration.Milliseconds()
	default:
		msg.Message = e.Stage
	}

	h.Broadcast(msg)
}
