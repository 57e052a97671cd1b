// Package websocket pushes refresh notifications to connected dashboards.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/metrics"
	"github.com/ppiankov/gdeltwatch/internal/model"
)

// Message types sent to and accepted from clients
const (
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeRefreshCompleted = "refresh_completed"
	MessageTypeRefreshFailed    = "refresh_failed"
)

// Message is the envelope for every websocket frame
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RefreshCompletedData announces a new snapshot
type RefreshCompletedData struct {
	Timestamp         string `json:"timestamp"`
	RefreshedAt       string `json:"refreshed_at"`
	Events            int    `json:"events"`
	ArchivesProcessed int    `json:"archives_processed"`
	ArchivesSkipped   int    `json:"archives_skipped"`
	DurationMs        int64  `json:"duration_ms"`
}

// NewRefreshCompletedData summarizes a snapshot for the notification
func NewRefreshCompletedData(s *model.Snapshot) RefreshCompletedData {
	return RefreshCompletedData{
		RefreshedAt:       s.RefreshedAt.UTC().Format(time.RFC3339),
		Events:            len(s.Events),
		ArchivesProcessed: s.Diagnostics.ArchivesProcessed,
		ArchivesSkipped:   len(s.Diagnostics.Skipped),
		DurationMs:        s.Diagnostics.Duration.Milliseconds(),
	}
}

// RefreshFailedData announces a refresh that kept the previous snapshot
type RefreshFailedData struct {
	Timestamp string `json:"timestamp"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Hub tracks clients and fans broadcasts out to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a hub; call Serve to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Serve runs the hub until ctx is canceled. It satisfies suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			count := h.ClientCount()
			h.closeAllClients()
			logging.Info().Str("component", "websocket-hub").Int("clients_closed", count).Msg("websocket hub stopped")
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnectionsActive.Set(float64(total))
			logging.Debug().Int("total_clients", total).Msg("websocket client connected")

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Register adds a client; it returns false once the hub has stopped
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnectionsActive.Set(float64(total))
	logging.Debug().Int("total_clients", total).Msg("websocket client disconnected")
}

// broadcastToClients delivers in client id order; slow clients whose
// buffers are full are dropped
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			close(client.send)
			delete(h.clients, client)
			logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
		}
	}
	metrics.WSConnectionsActive.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnectionsActive.Set(0)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a message for all clients, dropping it if the queue is full
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastRefreshCompleted announces a new snapshot
func (h *Hub) BroadcastRefreshCompleted(data RefreshCompletedData) {
	if data.Timestamp == "" {
		data.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	h.BroadcastJSON(MessageTypeRefreshCompleted, data)
	logging.Debug().Int("clients", h.ClientCount()).Int("events", data.Events).Msg("broadcast refresh_completed")
}

// BroadcastRefreshFailed announces a failed refresh
func (h *Hub) BroadcastRefreshFailed(code, message string) {
	h.BroadcastJSON(MessageTypeRefreshFailed, RefreshFailedData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Code:      code,
		Message:   message,
	})
}
