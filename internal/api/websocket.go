package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/command"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/logging"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// Event channels a client can subscribe to.
const (
	ChannelSnapshotUpdated = "snapshot.updated"
	ChannelCommandUpdated  = "command.updated"
)

// channelPermissions gates subscription to each channel.
var channelPermissions = map[string]auth.Permission{
	ChannelSnapshotUpdated: auth.PermDashboardView,
	ChannelCommandUpdated:  auth.PermCommandLogRead,
}

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// SnapshotEvent is the payload of a snapshot.updated event.
type SnapshotEvent struct {
	Key      string            `json:"key"`
	Snapshot snapshot.Snapshot `json:"snapshot"`
}

// Gauge tracks the connected client count. prometheus.Gauge satisfies it.
type Gauge interface {
	Set(float64)
}

// Hub manages WebSocket connections and broadcasts events.
//
// It receives snapshot refreshes from the poller and command transitions
// from the dispatcher and fans them out to clients allowed to see them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	gauge   Gauge
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	identity      auth.Identity
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

// NewHub creates a new WebSocket hub. gauge may be nil.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, gauge Gauge) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		gauge:   gauge,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)
	h.logger.Debug("websocket client connected", "clients", n, "username", client.identity.Username)
}

// Unregister removes a client from the hub. Only the caller that removes
// the client closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.setGauge(n)
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// SnapshotUpdated broadcasts a refreshed feed. The vehicle feed is only
// visible to roles with the full dashboard.
func (h *Hub) SnapshotUpdated(key string, snap snapshot.Snapshot) {
	perm := auth.PermDashboardView
	if key == snapshot.KeyEVStatus {
		perm = auth.PermDashboardFull
	}
	h.Broadcast(ChannelSnapshotUpdated, perm, SnapshotEvent{Key: key, Snapshot: snap})
}

// CommandUpdated broadcasts a command lifecycle transition.
func (h *Hub) CommandUpdated(exec command.Execution) {
	h.Broadcast(ChannelCommandUpdated, auth.PermCommandLogRead, exec)
}

// Broadcast sends an event to clients subscribed to channel whose role
// grants perm.
func (h *Hub) Broadcast(channel string, perm auth.Permission, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Copy the client set so no client lock is taken under the hub lock.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if !auth.HasPermission(client.identity.Role, perm) || !client.isSubscribed(channel) {
			continue
		}
		client.trySend(data)
		sent++
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
	h.mu.Unlock()
	h.setGauge(0)
}

// handleWebSocket upgrades an authenticated request to a live event stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		identity:      identityFrom(r.Context()),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe adds the channels the client's role may read. Unknown or
// forbidden channels are reported back and skipped.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	sub, ok := c.decodeChannels(msg)
	if !ok {
		return
	}

	var accepted, rejected []string
	c.mu.Lock()
	for _, ch := range sub.Channels {
		perm, known := channelPermissions[ch]
		if !known || !auth.HasPermission(c.identity.Role, perm) {
			rejected = append(rejected, ch)
			continue
		}
		c.subscriptions[ch] = struct{}{}
		accepted = append(accepted, ch)
	}
	c.mu.Unlock()

	resp := map[string]any{"subscribed": accepted}
	if len(rejected) > 0 {
		resp["rejected"] = rejected
	}
	c.sendResponse(msg.ID, WSTypeResponse, resp)
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	sub, ok := c.decodeChannels(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

func (c *WSClient) decodeChannels(msg WSMessage) (WSSubscribePayload, bool) {
	var sub WSSubscribePayload
	raw, err := json.Marshal(msg.Payload)
	if err == nil {
		err = json.Unmarshal(raw, &sub)
	}
	if err != nil {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return sub, false
	}
	return sub, true
}

// trySend queues data without blocking. Slow clients miss messages and a
// client closed mid-broadcast is ignored.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
