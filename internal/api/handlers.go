package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/cache"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"github.com/raaihank/transcript-sentinel/internal/websocket"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Cache kinds.
const (
	kindTranscript = "transcript"
	kindBatch      = "batch"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	eng := s.engine.Load()
	cats := eng.anonymizer.EnabledCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":               "transcript-sentinel",
		"version":            Version,
		"privacy_enabled":    eng.enabled,
		"enabled_categories": names,
		"rules_count":        len(eng.anonymizer.Catalog().Rules()),
		"max_input_bytes":    eng.maxInput,
		"cache_enabled":      s.cache != nil,
		"store_enabled":      s.store != nil,
		"websocket":          s.wsHub.GetStats(),
	})
}

// handleAnonymize redacts the body as one transcript, without segmentation
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng := s.engine.Load()
	requestID := getRequestID(r.Context())

	in, ok := s.input(w, r, eng)
	if !ok {
		return
	}

	key := s.cacheKey(kindTranscript, eng, in.text)
	resp, hit := lookup[AnonymizeResponse](r.Context(), s.cache, key)
	if !hit {
		res := eng.processor.AnonymizeTranscript(in.text)
		resp = newAnonymizeResponse(res)
		s.remember(r.Context(), key, kindTranscript, resp.Report.TotalReplacements, resp)
		s.recordRun(r.Context(), store.RunFromTranscript(in.source, res))
	}
	resp.Cached = hit
	resp.Summary = privacy.Summarize(resp.Report, privacy.SummaryOptions{Locale: requestLocale(r)})

	s.wsHub.BroadcastRedaction(websocket.RedactionEvent{
		RequestID:         requestID,
		RunID:             resp.RunID,
		Mode:              kindTranscript,
		ConversationCount: 1,
		Findings:          resp.Report.Findings(),
		TotalReplacements: resp.Report.TotalReplacements,
		Cached:            hit,
		ProcessingMS:      msSince(start),
	})

	writeJSON(w, http.StatusOK, resp)
}

// handleBatch segments the body into conversations and redacts them with
// placeholders shared across the document
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng := s.engine.Load()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	in, ok := s.input(w, r, eng)
	if !ok {
		return
	}

	key := s.cacheKey(kindBatch, eng, in.text)
	resp, hit := lookup[BatchResponse](r.Context(), s.cache, key)
	if !hit {
		res, err := eng.processor.Run(in.text)
		if err != nil {
			var none *batch.NoConversationsError
			if errors.As(err, &none) {
				writeJSON(w, http.StatusOK, NoConversationsResponse{
					Error:     batch.ErrNoConversations.Error(),
					FileStats: none.FileStats,
				})
				return
			}
			log.Error("Batch anonymization failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "batch anonymization failed")
			return
		}
		resp = newBatchResponse(res)
		s.remember(r.Context(), key, kindBatch, resp.Report.TotalReplacements, resp)
		s.recordRun(r.Context(), store.RunFromResult(in.source, res))
	}
	resp.Cached = hit
	resp.Summary = privacy.Summarize(resp.Report, privacy.SummaryOptions{
		ConversationCount: resp.ConversationCount,
		Locale:            requestLocale(r),
	})

	s.wsHub.BroadcastRedaction(websocket.RedactionEvent{
		RequestID:         requestID,
		RunID:             resp.RunID,
		Mode:              kindBatch,
		ConversationCount: resp.ConversationCount,
		Findings:          resp.Report.Findings(),
		TotalReplacements: resp.Report.TotalReplacements,
		Cached:            hit,
		ProcessingMS:      msSince(start),
	})

	writeJSON(w, http.StatusOK, resp)
}

// handleSegment returns the conversations found in the body. Segment output
// holds unredacted text and is never cached.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	eng := s.engine.Load()
	in, ok := s.input(w, r, eng)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSegmentResponse(eng.processor.Segment(in.text)))
}

// handleRuns lists recent audit rows
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run store not configured")
		return
	}

	limit := store.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// handleRun returns one audit row by run id
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run store not configured")
		return
	}

	run, err := s.store.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	} else if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleStats reports cache, run store and websocket figures
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithRequestID(getRequestID(r.Context()))
	resp := StatsResponse{WebSocket: s.wsHub.GetStats()}

	if admin, ok := s.cache.(CacheAdmin); ok {
		stats, err := admin.GetStats(r.Context())
		if err != nil {
			log.Warn("Failed to get cache stats", zap.Error(err))
		}
		resp.Cache = stats
	}
	if src, ok := s.store.(RunStatsSource); ok {
		stats, err := src.GetStats(r.Context())
		if err != nil {
			log.Warn("Failed to get run stats", zap.Error(err))
		}
		resp.Runs = stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleClearCache drops every cached result
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.cache.(CacheAdmin)
	if !ok {
		writeError(w, http.StatusNotFound, "result cache not configured")
		return
	}
	if err := admin.Clear(r.Context()); err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to clear cache", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// input reads the request body and writes the error reply itself when it
// cannot.
func (s *Server) input(w http.ResponseWriter, r *http.Request, eng *engine) (*input, bool) {
	in, err := readInput(w, r, eng.maxInput)
	if err != nil {
		status := http.StatusBadRequest
		var ie *inputError
		if errors.As(err, &ie) {
			status = ie.status
		}
		s.logger.WithRequestID(getRequestID(r.Context())).Info("Rejected request body",
			zap.Int("status_code", status),
			zap.String("reason", err.Error()),
		)
		writeError(w, status, err.Error())
		return nil, false
	}
	return in, true
}

func (s *Server) cacheKey(kind string, eng *engine, text string) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.Key(kind, eng.fingerprint, text)
}

// lookup returns the cached response under key, decoded as T.
func lookup[T any](ctx context.Context, c ResultCache, key string) (*T, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	entry, ok := c.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var out T
	if err := json.Unmarshal(entry.Payload, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (s *Server) remember(ctx context.Context, key, kind string, replacements int, resp interface{}) {
	if s.cache == nil || key == "" {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("Failed to encode response for cache", zap.Error(err))
		return
	}
	entry := &cache.Entry{Kind: kind, Payload: payload, Replacements: replacements}
	if err := s.cache.Put(ctx, key, entry); err != nil {
		s.logger.Warn("Failed to cache response", zap.Error(err))
	}
}

func (s *Server) recordRun(ctx context.Context, run *store.Run) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertRun(ctx, run); err != nil {
		s.logger.Warn("Failed to record run", zap.String("run_id", run.RunID), zap.Error(err))
	}
}

// requestLocale picks the summary locale from ?locale= or Accept-Language.
func requestLocale(r *http.Request) string {
	if v := r.URL.Query().Get("locale"); v != "" {
		return v
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, RequestID: w.Header().Get(requestIDHeader)})
}
