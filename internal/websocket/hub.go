// Package websocket pushes report lifecycle events to a session's open
// pages. A second browser tab in the same session learns that a new upload
// replaced the current report without polling.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"edalens/internal/infrastructure"
)

// Event types pushed to clients
const (
	TypeConnection    = "connection"
	TypeReportReady   = "report:ready"
	TypeReportCleared = "report:cleared"
)

// sessionMessage targets every client of one session
type sessionMessage struct {
	sessionID string
	payload   []byte
}

// Hub maintains the set of active clients grouped by session and delivers
// report events to the right session's clients
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]struct{}

	broadcast  chan sessionMessage
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	logger *slog.Logger

	totalConnections int64
	messagesSent     int64

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		broadcast:  make(chan sessionMessage, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
	}
}

// Start starts the hub loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			clients := h.sessions[client.sessionID]
			if clients == nil {
				clients = make(map[*Client]struct{})
				h.sessions[client.sessionID] = clients
			}
			clients[client] = struct{}{}
			h.totalConnections++
			count := len(clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("session_id", client.sessionID),
				slog.Int("session_clients", count))

			h.sendTo(client, map[string]interface{}{
				"type":      TypeConnection,
				"data":      map[string]interface{}{"status": "connected", "client_id": client.id},
				"timestamp": time.Now().Format(time.RFC3339),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.sessions[client.sessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.sessions, client.sessionID)
					}
				}
			}
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.String("session_id", client.sessionID),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver sends a message to every client of the target session
func (h *Hub) deliver(msg sessionMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[msg.sessionID]))
	for client := range h.sessions[msg.sessionID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msg.payload:
			h.mu.Lock()
			h.messagesSent++
			h.mu.Unlock()
		default:
			// Slow consumer: drop the client rather than block the hub
			h.mu.Lock()
			if sessionClients, ok := h.sessions[msg.sessionID]; ok {
				if _, ok := sessionClients[client]; ok {
					close(client.send)
					delete(sessionClients, client)
					if len(sessionClients) == 0 {
						delete(h.sessions, msg.sessionID)
					}
				}
			}
			h.mu.Unlock()

			h.logger.Warn("client send buffer full, disconnecting",
				slog.String("client_id", client.id),
				slog.String("session_id", msg.sessionID))
		}
	}
}

// NotifySession pushes an event with payload to every client of a session
func (h *Hub) NotifySession(ctx context.Context, sessionID, eventType string, data interface{}) {
	message := map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		message["trace_id"] = traceID
	}

	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("error", err.Error()),
			slog.String("event_type", eventType))
		return
	}

	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, payload: payload}:
	case <-h.quit:
	}
}

// sendTo queues a message for a single client
func (h *Hub) sendTo(client *Client, message map[string]interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.Warn("failed to queue message, client buffer full",
			slog.String("client_id", client.id))
	}
}

// ClientCount returns the number of connected clients across all sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.sessions {
		count += len(clients)
	}
	return count
}

// SessionClientCount returns the number of clients for one session
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop gracefully stops the hub and closes all client connections
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, clients := range h.sessions {
		for client := range clients {
			close(client.send)
		}
		delete(h.sessions, sessionID)
	}
}
