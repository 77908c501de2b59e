package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRedaction is sent after every anonymization run
	EventTypeRedaction EventType = "redaction"
	// EventTypeRequestLog represents a request logging event
	EventTypeRequestLog EventType = "request_log"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// RedactionEvent describes one anonymization run. It carries counts and
// offsets only.
type RedactionEvent struct {
	RequestID         string            `json:"request_id"`
	RunID             string            `json:"run_id,omitempty"`
	Mode              string            `json:"mode"`
	ConversationCount int               `json:"conversation_count"`
	Findings          []privacy.Finding `json:"findings"`
	TotalReplacements int               `json:"total_replacements"`
	Cached            bool              `json:"cached"`
	ProcessingMS      float64           `json:"processing_ms"`
}

// RequestLogEvent represents a request logging event
type RequestLogEvent struct {
	RequestID    string        `json:"request_id"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	StatusCode   int           `json:"status_code"`
	ClientIP     string        `json:"client_ip"`
	UserAgent    string        `json:"user_agent,omitempty"`
	Duration     time.Duration `json:"duration"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType   `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows the redaction events a client receives
type EventFilter struct {
	// Categories keeps events with a finding in one of the categories.
	Categories []string `json:"categories,omitempty"`
	// MinReplacements drops events with fewer replacements.
	MinReplacements int      `json:"min_replacements,omitempty"`
	Modes           []string `json:"modes,omitempty"`
	ExcludeHealth   bool     `json:"exclude_health,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
