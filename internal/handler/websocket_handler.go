// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"comport-service/internal/events"
	"comport-service/internal/lifecycle"
	"comport-service/internal/model"
	"comport-service/internal/service"
	"comport-service/internal/utils"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	snapshotWait   = 5 * time.Second
	maxMessageSize = 4096
)

// WebSocketHandler streams port events to WebSocket clients
type WebSocketHandler struct {
	*lifecycle.Loop

	upgrader    websocket.Upgrader
	connections *ConnectionManager
	bus         *events.Bus
	ports       service.PortReader
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates the handler and starts forwarding bus events.
// An empty allowedOrigins accepts every origin.
func NewWebSocketHandler(bus *events.Bus, ports service.PortReader, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
		connections: NewConnectionManager(),
		bus:         bus,
		ports:       ports,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}

	sub := bus.Subscribe()
	h.Loop = lifecycle.Go("websocket", func(ctx context.Context) {
		h.forward(ctx, sub)
	})
	return h
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
}

// HandleEventConnection streams port events
// @Summary Port event stream
// @Description Upgrade to a WebSocket receiving a port snapshot followed by port events
// @Tags Events
// @Param port query int false "Only events of this port number"
// @Param types query string false "Comma separated event types"
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	client := &Client{
		ID:          uuid.New().String(),
		Send:        make(chan []byte, clientSendBuffer),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	if port := c.Query("port"); port != "" {
		number, err := strconv.Atoi(port)
		if err != nil || number <= 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid port number", err)
			return
		}
		client.Port = &number
	}
	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				client.Subscribe(model.EventType(strings.ToUpper(t)))
			}
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	client.Connection = conn

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendSnapshot(client)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

func (h *WebSocketHandler) forward(ctx context.Context, sub *events.Subscription) {
	defer func() {
		h.bus.Unsubscribe(sub)
		h.connections.UnregisterAll()
		h.logger.LogServiceStop("stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			h.broadcast(&event)
		}
	}
}

func (h *WebSocketHandler) broadcast(event *model.PortEvent) {
	message, err := json.Marshal(&WebSocketMessage{
		Type:      "port_event",
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, id := range h.connections.Broadcast(event, message) {
		h.logger.Warn("Client send channel full during broadcast", zap.String("client_id", id))
	}
}

func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Debug("Event WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadLimit(maxMessageSize)
	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		return client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}
		h.handleClientMessage(client, &message)
	}
}

func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		topic, ok := topicOf(message)
		if !ok {
			h.sendError(client, "topic is required")
			return
		}
		if message.Type == "subscribe" {
			client.Subscribe(topic)
		} else {
			client.Unsubscribe(topic)
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      message.Type + "d",
			Data:      map[string]interface{}{"topic": topic, "subscriptions": client.Subscriptions()},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "snapshot":
		h.sendSnapshot(client)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, "unknown message type: "+message.Type)
	}
}

func topicOf(message *WebSocketMessage) (model.EventType, bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	topic, ok := data["topic"].(string)
	if !ok || topic == "" {
		return "", false
	}
	return model.EventType(strings.ToUpper(topic)), true
}

// sendSnapshot sends the currently tracked ports matching the client's port filter
func (h *WebSocketHandler) sendSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotWait)
	defer cancel()

	ports, err := h.ports.Snapshot(ctx)
	if err != nil {
		h.sendError(client, "port registry not available")
		return
	}
	if client.Port != nil {
		ports = slices.DeleteFunc(ports, func(p model.Port) bool {
			return p.Number != *client.Port
		})
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "snapshot",
		Data:      ports,
		Timestamp: time.Now(),
	})
}

func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Send(client, messageBytes) {
		h.logger.Warn("Client send channel full or closed, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}
