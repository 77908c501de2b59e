package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.WebSocketConfig {
	cfg := config.GetDefaults().WebSocket
	cfg.Username = "admin"
	cfg.Password = "secret"
	cfg.Events.BroadcastConnections = false
	return cfg
}

func startHub(t *testing.T, cfg config.WebSocketConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user, pass string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if user != "" {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		req.SetBasicAuth(user, pass)
		header.Set("Authorization", req.Header.Get("Authorization"))
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHandleWebSocketRejectsBadCredentials(t *testing.T) {
	_, srv := startHub(t, testConfig())

	_, resp, err := dial(t, srv, "", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "admin", "wrong")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBroadcastRedaction(t *testing.T) {
	hub, srv := startHub(t, testConfig())

	conn, _, err := dial(t, srv, "admin", "secret")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.GetStats().ActiveConnections == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastRedaction(RedactionEvent{
		RequestID:         "req-1",
		Mode:              "batch",
		ConversationCount: 2,
		TotalReplacements: 3,
		Findings:          []privacy.Finding{{EntityType: "email", Count: 3}},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, "redaction", got["type"])
	assert.Equal(t, "req-1", got["request_id"])
	data := got["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total_replacements"])
	assert.NotContains(t, data, "original")
}

func TestBroadcastDisabledEventType(t *testing.T) {
	cfg := testConfig()
	cfg.Events.BroadcastRequests = false
	hub := NewHub(cfg, nil)

	hub.BroadcastEvent(Event{Type: EventTypeRequestLog, Data: RequestLogEvent{Path: "/v1/anonymize"}})
	assert.Len(t, hub.broadcast, 0)

	hub.BroadcastEvent(Event{Type: EventTypeRedaction, Data: RedactionEvent{}})
	assert.Len(t, hub.broadcast, 1)
}

func TestShouldSendToClient(t *testing.T) {
	redaction := Event{Type: EventTypeRedaction, Data: RedactionEvent{
		Mode:              "batch",
		TotalReplacements: 2,
		Findings:          []privacy.Finding{{EntityType: "phone", Count: 2}},
	}}
	health := Event{Type: EventTypeRequestLog, Data: RequestLogEvent{Path: "/health"}}

	tests := []struct {
		name   string
		sub    *SubscriptionRequest
		event  Event
		expect bool
	}{
		{"no subscription", nil, redaction, true},
		{"not subscribed", &SubscriptionRequest{Events: []EventType{EventTypeConnection}}, redaction, false},
		{"subscribed", &SubscriptionRequest{Events: []EventType{EventTypeRedaction}}, redaction, true},
		{"category match", &SubscriptionRequest{Events: []EventType{EventTypeRedaction}, Filter: &EventFilter{Categories: []string{"phone"}}}, redaction, true},
		{"category miss", &SubscriptionRequest{Events: []EventType{EventTypeRedaction}, Filter: &EventFilter{Categories: []string{"email"}}}, redaction, false},
		{"below minimum", &SubscriptionRequest{Events: []EventType{EventTypeRedaction}, Filter: &EventFilter{MinReplacements: 5}}, redaction, false},
		{"mode miss", &SubscriptionRequest{Events: []EventType{EventTypeRedaction}, Filter: &EventFilter{Modes: []string{"transcript"}}}, redaction, false},
		{"health excluded", &SubscriptionRequest{Events: []EventType{EventTypeRequestLog}, Filter: &EventFilter{ExcludeHealth: true}}, health, false},
		{"pong always", &SubscriptionRequest{Events: []EventType{EventTypeRedaction}}, Event{Type: EventTypePong}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{Subscription: tt.sub}
			assert.Equal(t, tt.expect, shouldSendToClient(client, tt.event))
		})
	}
}

func TestParseSubscription(t *testing.T) {
	sub := parseSubscription(map[string]interface{}{
		"events": []interface{}{"redaction", 7},
		"filter": map[string]interface{}{
			"categories":       []interface{}{"email"},
			"min_replacements": float64(2),
			"exclude_health":   true,
		},
	})

	assert.Equal(t, []EventType{EventTypeRedaction}, sub.Events)
	require.NotNil(t, sub.Filter)
	assert.Equal(t, []string{"email"}, sub.Filter.Categories)
	assert.Equal(t, 2, sub.Filter.MinReplacements)
	assert.True(t, sub.Filter.ExcludeHealth)
}

func TestOpenHubAcceptsAnonymousClients(t *testing.T) {
	cfg := testConfig()
	cfg.Username = ""
	hub, srv := startHub(t, cfg)

	conn, _, err := dial(t, srv, "", "")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.GetStats().TotalConnections == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequireAuth(t *testing.T) {
	hub := NewHub(testConfig(), nil)
	h := hub.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
