// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"comport-service/internal/model"
)

const clientSendBuffer = 256

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	Port        *int            `json:"port,omitempty"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mutex         sync.RWMutex
	subscriptions map[model.EventType]bool
}

// Subscribe adds an event type to the client filter
func (c *Client) Subscribe(eventType model.EventType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[model.EventType]bool)
	}
	c.subscriptions[eventType] = true
}

// Unsubscribe removes an event type from the client filter
func (c *Client) Unsubscribe(eventType model.EventType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.subscriptions, eventType)
}

// Subscriptions returns the subscribed event types. An empty result means
// every event type.
func (c *Client) Subscriptions() []model.EventType {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	types := make([]model.EventType, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		types = append(types, t)
	}
	return types
}

// Wants reports whether the event passes the client's port and type filters
func (c *Client) Wants(event *model.PortEvent) bool {
	if c.Port != nil && *c.Port != event.Port.Number {
		return false
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[event.EventType]
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ConnectionManager manages WebSocket connections. A client's Send channel
// is closed exactly once, on Unregister, and is only written while the
// client is registered.
type ConnectionManager struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[client.ID] = client
}

// Unregister removes the client and closes its send channel
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
}

// UnregisterAll removes every client
func (cm *ConnectionManager) UnregisterAll() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	for id, client := range cm.clients {
		delete(cm.clients, id)
		close(client.Send)
	}
}

// Send queues a message for one client. It returns false when the client is
// gone or its buffer is full.
func (cm *ConnectionManager) Send(client *Client, message []byte) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	if _, ok := cm.clients[client.ID]; !ok {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// Broadcast queues a message for every client accepting the event and
// returns the IDs of clients whose buffer was full
func (cm *ConnectionManager) Broadcast(event *model.PortEvent, message []byte) []string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var full []string
	for _, client := range cm.clients {
		if !client.Wants(event) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			full = append(full, client.ID)
		}
	}
	return full
}

// Count returns the number of connected clients
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.clients)
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}
	for _, client := range cm.clients {
		stats.Clients = append(stats.Clients, client)
	}
	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int       `json:"total_connections"`
	Clients          []*Client `json:"clients"`
}
