package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/raaihank/transcript-sentinel/internal/cache"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoChats = "Chat 10000001\nCustomer: my email is ann@example.com please\nAgent: Thanks, I have updated the email on file.\n" +
	"Chat 10000002\nCustomer: call me on 555-123-4567 or ann@example.com\nAgent: Noted, we will call you back shortly."

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*cache.Entry)}
}

func (m *memoryCache) Key(kind, fingerprint, text string) string {
	return cache.KeyFor("test", kind, fingerprint, text)
}

func (m *memoryCache) Get(_ context.Context, key string) (*cache.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *memoryCache) Put(_ context.Context, key string, entry *cache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *memoryCache) GetStats(_ context.Context) (*cache.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &cache.CacheStats{TotalKeys: int64(len(m.entries))}, nil
}

func (m *memoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*cache.Entry)
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	runs []store.Run
}

func (m *memoryStore) InsertRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memoryStore) RecentRuns(_ context.Context, limit int) ([]store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Run{}
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *memoryStore) GetRun(_ context.Context, runID string) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.RunID == runID {
			run := r
			return &run, nil
		}
	}
	return nil, fmt.Errorf("failed to get run %s: %w", runID, sql.ErrNoRows)
}

func (m *memoryStore) GetStats(_ context.Context) (*store.RunStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &store.RunStats{TotalRuns: int64(len(m.runs))}
	for _, r := range m.runs {
		stats.TotalConversations += int64(r.ConversationCount)
		stats.TotalReplacements += int64(r.TotalReplacements)
	}
	return stats, nil
}

func testConfig() *config.Config {
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	cfg.WebSocket.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, deps Dependencies) *Server {
	t.Helper()
	s, err := New(cfg, nil, deps)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rec := do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = do(s, http.MethodGet, "/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]interface{}
	decode(t, rec, &info)
	assert.Equal(t, "transcript-sentinel", info["name"])
	assert.Equal(t, false, info["cache_enabled"])
	assert.Len(t, info["enabled_categories"], 10)
}

func TestRequestIDIsReused(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})
	id := "6f1c1e4e-8a57-4f4e-9a8e-1f0b3c2d4e5f"

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIDHeader))
}

func TestAnonymize(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	t.Run("raw text", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte("Email me at john@example.com"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "john@example.com")

		var resp AnonymizeResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Email me at user0001@anonymized.com", resp.RedactedDocument)
		assert.Equal(t, 1, resp.Report.TotalReplacements)
		assert.False(t, resp.Cached)
		assert.Contains(t, resp.Summary, "Email addresses: 1")
	})

	t.Run("json body", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/v1/anonymize", "application/json", []byte(`{"text":"call 555-123-4567"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp AnonymizeResponse
		decode(t, rec, &resp)
		assert.Equal(t, "call +XX-XXX-XXX-0001", resp.RedactedDocument)
	})

	t.Run("vietnamese summary", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/v1/anonymize?locale=vi", "text/plain", []byte("nothing here"))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp AnonymizeResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Không phát hiện thông tin nhạy cảm.", resp.Summary)
	})

	t.Run("bad json", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/v1/anonymize", "application/json", []byte(`{"text":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(s, http.MethodPost, "/v1/anonymize", "application/json", []byte(`{"body":"x"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("binary", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/v1/anonymize", "application/octet-stream", []byte{0x00, 0x01, 0x02})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/v1/anonymize", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestBatch(t *testing.T) {
	st := &memoryStore{}
	s := newTestServer(t, testConfig(), Dependencies{Store: st})

	rec := do(s, http.MethodPost, "/v1/anonymize/batch", "text/plain", []byte(twoChats))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ann@example.com")
	assert.NotContains(t, rec.Body.String(), "555-123-4567")

	var resp BatchResponse
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.ConversationCount)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "Chat_10000001", resp.Records[0].OriginalID)
	assert.Equal(t, 3, resp.Report.TotalReplacements)
	assert.Equal(t, 2, strings.Count(resp.RedactedDocument, "user0001@anonymized.com"))
	assert.True(t, strings.HasPrefix(resp.Summary, "Processed 2 conversations"))

	require.Len(t, st.runs, 1)
	assert.Equal(t, resp.RunID, st.runs[0].RunID)
	assert.Equal(t, []string{"Chat_10000001", "Chat_10000002"}, []string(st.runs[0].ConversationIDs))
}

func TestBatchNoConversations(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rec := do(s, http.MethodPost, "/v1/anonymize/batch", "text/plain", []byte("just some notes\nwithout turns"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NoConversationsResponse
	decode(t, rec, &resp)
	assert.Equal(t, "no conversations found", resp.Error)
	assert.Equal(t, 29, resp.FileStats.OriginalLength)
	assert.Equal(t, 2, resp.FileStats.LineCount)
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Batch.MaxInputBytes = 16
	s := newTestServer(t, cfg, Dependencies{})

	rec := do(s, http.MethodPost, "/v1/anonymize/batch", "text/plain", []byte(twoChats))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func upload(t *testing.T, s *Server, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(s, http.MethodPost, "/v1/anonymize/batch", mw.FormDataContentType(), buf.Bytes())
}

func TestBatchUpload(t *testing.T) {
	st := &memoryStore{}
	s := newTestServer(t, testConfig(), Dependencies{Store: st})

	rec := upload(t, s, "chats.txt", []byte(twoChats))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, st.runs, 1)
	assert.Equal(t, "chats.txt", st.runs[0].Source)

	rec = upload(t, s, "chats.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestSegment(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rec := do(s, http.MethodPost, "/v1/segment", "text/plain", []byte(twoChats))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SegmentResponse
	decode(t, rec, &resp)
	require.Equal(t, 2, resp.ConversationCount)
	assert.Equal(t, "Chat_10000002", resp.Conversations[1].ID)
	assert.Equal(t, 2, resp.Conversations[1].Turns)
}

func TestCachedResponses(t *testing.T) {
	c := newMemoryCache()
	st := &memoryStore{}
	s := newTestServer(t, testConfig(), Dependencies{Cache: c, Store: st})

	first := do(s, http.MethodPost, "/v1/anonymize/batch", "text/plain", []byte(twoChats))
	require.Equal(t, http.StatusOK, first.Code)
	second := do(s, http.MethodPost, "/v1/anonymize/batch", "text/plain", []byte(twoChats))
	require.Equal(t, http.StatusOK, second.Code)

	var a, b BatchResponse
	decode(t, first, &a)
	decode(t, second, &b)
	assert.False(t, a.Cached)
	assert.True(t, b.Cached)
	assert.Equal(t, a.RedactedDocument, b.RedactedDocument)
	assert.Equal(t, a.RunID, b.RunID)
	assert.Len(t, st.runs, 1, "cache hits are not audited again")

	require.Len(t, c.entries, 1)
	for _, e := range c.entries {
		assert.Equal(t, kindBatch, e.Kind)
		assert.NotContains(t, string(e.Payload), "ann@example.com")
	}

	// The single transcript mode has its own key.
	rec := do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte(twoChats))
	var single AnonymizeResponse
	decode(t, rec, &single)
	assert.False(t, single.Cached)
	assert.Len(t, c.entries, 2)
}

func TestRuns(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, testConfig(), Dependencies{})
		rec := do(s, http.MethodGet, "/v1/runs", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("listing", func(t *testing.T) {
		st := &memoryStore{}
		s := newTestServer(t, testConfig(), Dependencies{Store: st})
		do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte("a@b.com"))
		do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte("c@d.com"))

		rec := do(s, http.MethodGet, "/v1/runs?limit=1", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp RunsResponse
		decode(t, rec, &resp)
		require.Len(t, resp.Runs, 1)
		assert.Equal(t, st.runs[1].RunID, resp.Runs[0].RunID)

		rec = do(s, http.MethodGet, "/v1/runs?limit=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(s, http.MethodGet, "/v1/runs/"+st.runs[0].RunID, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(s, http.MethodGet, "/v1/runs/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMin = 1
	cfg.RateLimit.Burst = 1
	s := newTestServer(t, cfg, Dependencies{})

	rec := do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}

func TestReload(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	cfg := testConfig()
	cfg.Privacy.Categories = []string{"phone"}
	require.NoError(t, s.Reload(cfg))

	rec := do(s, http.MethodPost, "/v1/anonymize", "text/plain", []byte("ann@example.com 555-123-4567"))
	var resp AnonymizeResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ann@example.com +XX-XXX-XXX-0001", resp.RedactedDocument)

	cfg.Privacy.Categories = []string{"bogus"}
	assert.Error(t, s.Reload(cfg))
}

func TestDashboardRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket.Enabled = true
	s := newTestServer(t, cfg, Dependencies{})

	rec := do(s, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "live redactions")

	cfg = testConfig()
	s = newTestServer(t, cfg, Dependencies{})
	rec = do(s, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAndClearCache(t *testing.T) {
	t.Run("without backends", func(t *testing.T) {
		s := newTestServer(t, testConfig(), Dependencies{})

		rec := do(s, http.MethodGet, "/v1/stats", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		decode(t, rec, &resp)
		assert.NotContains(t, resp, "cache")
		assert.NotContains(t, resp, "runs")
		assert.Contains(t, resp, "websocket")

		rec = do(s, http.MethodDelete, "/v1/cache", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("with backends", func(t *testing.T) {
		mc, ms := newMemoryCache(), &memoryStore{}
		s := newTestServer(t, testConfig(), Dependencies{Cache: mc, Store: ms})

		rec := do(s, http.MethodPost, "/v1/anonymize/batch", "text/plain", []byte(twoChats))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(s, http.MethodGet, "/v1/stats", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp StatsResponse
		decode(t, rec, &resp)
		require.NotNil(t, resp.Cache)
		assert.Equal(t, int64(1), resp.Cache.TotalKeys)
		require.NotNil(t, resp.Runs)
		assert.Equal(t, int64(1), resp.Runs.TotalRuns)
		assert.Equal(t, int64(2), resp.Runs.TotalConversations)
		assert.Equal(t, int64(3), resp.Runs.TotalReplacements)

		rec = do(s, http.MethodDelete, "/v1/cache", "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, mc.entries)
	})
}
