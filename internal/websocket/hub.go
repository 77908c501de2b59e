package websocket

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	config config.WebSocketConfig
	logger *logger.Logger

	mu    sync.RWMutex
	stats HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastDisconnectTime time.Time `json:"last_disconnect_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WebSocketConfig, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
		logger:     log.WithComponent("websocket"),
	}
}

// Run handles client registration, unregistration and broadcasting until ctx
// is done. Remaining clients are disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event, nil)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.LastConnectionTime = time.Now()
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int("active_connections", active),
	)

	if h.config.Events.BroadcastConnections {
		h.broadcastEvent(h.connectionEvent("connected", client), client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		h.removeLocked(client)
		h.stats.LastDisconnectTime = time.Now()
	}
	active := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int("active_connections", active),
	)

	if h.config.Events.BroadcastConnections {
		h.broadcastEvent(h.connectionEvent("disconnected", client), nil)
	}
}

func (h *Hub) connectionEvent(action string, client *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    action,
			ClientID:  client.ID,
			ClientIP:  client.IP,
			UserAgent: client.UserAgent,
			Message:   fmt.Sprintf("Client %s %s", client.ID, action),
		},
	}
}

// removeLocked drops a client; h.mu must be held.
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

// broadcastEvent delivers event to every subscribed client except exclude.
// Clients whose send buffer is full are disconnected.
func (h *Hub) broadcastEvent(event Event, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if client == exclude || !shouldSendToClient(client, event) {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID),
			)
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

// shouldSendToClient applies the client's subscription to an event
func shouldSendToClient(client *Client, event Event) bool {
	if event.Type == EventTypePong || client.Subscription == nil {
		return true
	}

	subscribed := false
	for _, eventType := range client.Subscription.Events {
		if eventType == event.Type {
			subscribed = true
			break
		}
	}
	if !subscribed {
		return false
	}

	if client.Subscription.Filter != nil {
		return applyEventFilter(client.Subscription.Filter, event)
	}
	return true
}

func applyEventFilter(filter *EventFilter, event Event) bool {
	switch data := event.Data.(type) {
	case RedactionEvent:
		if data.TotalReplacements < filter.MinReplacements {
			return false
		}
		if len(filter.Modes) > 0 && !contains(filter.Modes, data.Mode) {
			return false
		}
		if len(filter.Categories) > 0 {
			for _, f := range data.Findings {
				if contains(filter.Categories, f.EntityType) {
					return true
				}
			}
			return false
		}
	case RequestLogEvent:
		if filter.ExcludeHealth && data.Path == "/health" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BroadcastEvent queues an event for all connected clients when its type is
// enabled in config.
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcastEvent(event.Type) {
		return
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// BroadcastRedaction is a shorthand for a redaction event
func (h *Hub) BroadcastRedaction(ev RedactionEvent) {
	h.BroadcastEvent(Event{
		Type:      EventTypeRedaction,
		Timestamp: time.Now(),
		Data:      ev,
		RequestID: ev.RequestID,
	})
}

func (h *Hub) shouldBroadcastEvent(eventType EventType) bool {
	switch eventType {
	case EventTypeRedaction:
		return h.config.Events.BroadcastRedactions
	case EventTypeRequestLog:
		return h.config.Events.BroadcastRequests
	case EventTypeConnection:
		return h.config.Events.BroadcastConnections
	default:
		return false
	}
}

// authorized checks basic auth credentials. A hub without a configured
// username accepts every client.
func (h *Hub) authorized(r *http.Request) bool {
	if h.config.Username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

// RequireAuth guards next with the hub's credentials, so pages that open the
// stream share its login.
func (h *Hub) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="sentinel"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="sentinel"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          "client_" + uuid.NewString()[:8],
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.handleClientWrite(client)
	go h.handleClientRead(client)
}

func (h *Hub) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleClientRead(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()
	}()

	conn := client.Conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		client.LastPing = time.Now()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			return
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		sub := parseSubscription(msg.Data)
		h.mu.Lock()
		client.Subscription = sub
		h.mu.Unlock()
		h.logger.Info("Client subscription updated",
			zap.String("client_id", client.ID),
			zap.Int("events", len(sub.Events)),
		)
	case "ping":
		h.mu.RLock()
		defer h.mu.RUnlock()
		if !h.clients[client] {
			return
		}
		select {
		case client.Send <- Event{Type: EventTypePong, Timestamp: time.Now(), Data: map[string]string{"message": "pong"}}:
		default:
		}
	}
}

func parseSubscription(data map[string]interface{}) *SubscriptionRequest {
	sub := &SubscriptionRequest{}
	for _, v := range asList(data["events"]) {
		sub.Events = append(sub.Events, EventType(v))
	}
	if raw, ok := data["filter"].(map[string]interface{}); ok {
		f := &EventFilter{
			Categories: asList(raw["categories"]),
			Modes:      asList(raw["modes"]),
		}
		if n, ok := raw["min_replacements"].(float64); ok {
			f.MinReplacements = int(n)
		}
		if b, ok := raw["exclude_health"].(bool); ok {
			f.ExcludeHealth = b
		}
		sub.Filter = f
	}
	return sub
}

func asList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
