package api

import (
	"bufio"
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/raaihank/transcript-sentinel/internal/websocket"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns every request an id, reusing a well-formed
// incoming one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests and responses
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := getRequestID(r.Context())
		log := s.logger.WithRequestID(requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		log.LogRequest(r.Method, r.URL.Path, r.ContentLength)

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Info("HTTP request completed",
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", duration),
			zap.Int("response_size", rw.size),
		)

		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeRequestLog,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: websocket.RequestLogEvent{
				RequestID:    requestID,
				Method:       r.Method,
				Path:         r.URL.Path,
				StatusCode:   rw.statusCode,
				ClientIP:     getClientIP(r),
				UserAgent:    r.UserAgent(),
				Duration:     duration,
				RequestSize:  r.ContentLength,
				ResponseSize: int64(rw.size),
			},
		})
	})
}

// rateLimitMiddleware rejects clients over their request budget with 429
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if !s.limiter.Allow(clientIP) {
			wait := s.limiter.RetryAfter(clientIP)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			s.logger.WithRequestID(getRequestID(r.Context())).Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack lets the WebSocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// getRequestID extracts request ID from context
func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}
