package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
	// sendBuffer is the per-connection outbound queue length.
	sendBuffer = 256
)

// Hub is the signaling relay: it tracks connected clients and fans out events.
// Delivery is best effort; a full or closed client drops the message.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewHub creates a new signaling hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))
}

// Unregister removes a client and closes its outbound queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Relay routes an inbound event from the originating client according to its policy.
// It returns the policy that was applied.
func (h *Hub) Relay(from *Client, msg WSMessage) Policy {
	policy := PolicyFor(msg.Event)
	switch policy {
	case PolicyOthers:
		h.broadcast(msg, from)
	case PolicyEveryone:
		h.broadcast(msg, nil)
	default:
		h.logger.Debug("ignoring unknown event", zap.String("event", msg.Event), zap.String("client_id", from.ID))
	}
	return policy
}

// Broadcast sends msg to every connected client.
func (h *Hub) Broadcast(msg WSMessage) {
	h.broadcast(msg, nil)
}

// broadcast delivers msg to every client except the given one (nil = nobody excluded).
// The read lock is held while enqueueing so Unregister cannot close a queue mid-send.
func (h *Hub) broadcast(msg WSMessage, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if except != nil && id == except.ID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
			h.logger.Debug("dropping message for slow client", zap.String("client_id", id), zap.String("event", msg.Event))
		}
	}
}
