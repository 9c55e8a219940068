// Package ws fans chat events out to connected websocket clients.
package ws

import (
	"context"
	"errors"
	"sync"

	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/metrics"
)

var (
	// ErrHubBusy means the hub's inbound queue is full and the event was not accepted
	ErrHubBusy = errors.New("hub broadcast queue full")
	// ErrHubStopped means Run has returned
	ErrHubStopped = errors.New("hub stopped")
)

const broadcastQueueSize = 256

// Hub keeps the set of connected clients and delivers every event to each of
// them at most once. A client that cannot keep up is disconnected rather
// than allowed to stall the others.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logger.Logger
	mu         sync.Mutex
}

// NewHub creates a hub. Call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled. Every
// remaining client has its send channel closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			metrics.WebsocketClients.Inc()
			h.log.Debug("Websocket client registered", "client_id", client.ID, "user_id", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.log.Debug("Websocket client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- payload:
				default:
					h.remove(client)
					metrics.WebsocketDropped.Inc()
					h.log.Warn("Websocket client dropped, send buffer full", "client_id", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	metrics.WebsocketClients.Dec()
}

// Broadcast queues payload for every connected client without blocking
func (h *Hub) Broadcast(payload []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- payload:
		return nil
	default:
		return ErrHubBusy
	}
}

// Register adds client to the hub. It reports false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client from the hub and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
