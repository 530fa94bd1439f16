// Package live fans newly recorded check results out to connected
// browsers over Server-Sent Events and WebSocket.
package live

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/metrics"
	"github.com/fuomag9/kabomba-status/internal/models"
)

// Message types
const (
	TypeConnected = "connected"
	TypeCheck     = "check"
	TypePong      = "pong"
)

// sendBuffer is the per-client queue length; a client that falls this far
// behind is dropped.
const sendBuffer = 64

// Message is the JSON document delivered to live clients
type Message struct {
	Type      string              `json:"type"`
	ClientID  string              `json:"clientId,omitempty"`
	ServiceID string              `json:"serviceId,omitempty"`
	Check     *models.CheckResult `json:"check,omitempty"`
}

// Client is one live subscriber
type Client struct {
	ID   string
	Send chan []byte
}

// Hub maintains active clients and broadcasts messages
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Subscribe registers a new client. The caller must Unsubscribe it.
func (h *Hub) Subscribe() *Client {
	c := &Client{ID: uuid.NewString(), Send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetLiveClients(n)
	logger.WithFields(logrus.Fields{"client_id": c.ID}).Debug("live client connected")
	return c
}

// Unsubscribe removes a client and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.Send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.SetLiveClients(n)
		logger.WithFields(logrus.Fields{"client_id": c.ID}).Debug("live client disconnected")
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a check result to every client. It never blocks: clients
// whose queue is full are disconnected.
func (h *Hub) Broadcast(serviceID string, check *models.CheckResult) {
	data, err := json.Marshal(Message{Type: TypeCheck, ServiceID: serviceID, Check: check})
	if err != nil {
		logger.Log().WithError(err).Error("failed to encode live message")
		return
	}
	h.publish(data)
}

func (h *Hub) publish(data []byte) {
	h.mu.Lock()
	var dropped int
	for c := range h.clients {
		select {
		case c.Send <- data:
		default:
			delete(h.clients, c)
			close(c.Send)
			dropped++
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		metrics.SetLiveClients(n)
		logger.WithFields(logrus.Fields{"dropped": dropped}).Warn("dropped slow live clients")
	}
}

func encode(msg Message) []byte {
	data, _ := json.Marshal(msg)
	return data
}
