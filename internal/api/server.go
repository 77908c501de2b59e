// Package api serves the anonymizer over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/raaihank/transcript-sentinel/internal/cache"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/security"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"github.com/raaihank/transcript-sentinel/internal/web"
	"github.com/raaihank/transcript-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info.
var Version = "0.1.0"

// ResultCache stores finished responses keyed by input digest.
type ResultCache interface {
	Key(kind, fingerprint, text string) string
	Get(ctx context.Context, key string) (*cache.Entry, bool)
	Put(ctx context.Context, key string, entry *cache.Entry) error
}

// RunStore records audit rows for finished runs.
type RunStore interface {
	InsertRun(ctx context.Context, run *store.Run) error
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, runID string) (*store.Run, error)
}

// CacheAdmin is implemented by caches that report statistics and can be
// flushed.
type CacheAdmin interface {
	GetStats(ctx context.Context) (*cache.CacheStats, error)
	Clear(ctx context.Context) error
}

// RunStatsSource is implemented by run stores that aggregate totals.
type RunStatsSource interface {
	GetStats(ctx context.Context) (*store.RunStats, error)
}

// Dependencies are the optional backends of the server. Nil fields disable
// the matching feature.
type Dependencies struct {
	Cache ResultCache
	Store RunStore
}

// Server represents the HTTP API server
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	root    *logger.Logger
	engine  atomic.Pointer[engine]
	router  *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
	limiter *security.RateLimiter
	cache   ResultCache
	store   RunStore
}

// New creates a new API server instance
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}

	eng, err := newEngine(cfg, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("api"),
		root:    log,
		router:  mux.NewRouter(),
		wsHub:   websocket.NewHub(cfg.WebSocket, log),
		limiter: security.NewRateLimiter(cfg.RateLimit),
		cache:   deps.Cache,
		store:   deps.Store,
	}
	s.engine.Store(eng)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.config.WebSocket.Enabled {
		path := s.config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)

		// The dashboard page connects to /ws.
		dashboard := s.wsHub.RequireAuth(web.ServeDashboard)
		s.router.HandleFunc("/", dashboard).Methods(http.MethodGet)
		s.router.HandleFunc("/dashboard", dashboard).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.rateLimitMiddleware)
	v1.HandleFunc("/anonymize", s.handleAnonymize).Methods(http.MethodPost)
	v1.HandleFunc("/anonymize/batch", s.handleBatch).Methods(http.MethodPost)
	v1.HandleFunc("/segment", s.handleSegment).Methods(http.MethodPost)
	v1.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/cache", s.handleClearCache).Methods(http.MethodDelete)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload rebuilds the anonymization engine from cfg. Requests in flight
// finish on the engine they started with. The server, rate limit and backend
// settings are not reloaded.
func (s *Server) Reload(cfg *config.Config) error {
	eng, err := newEngine(cfg, s.root)
	if err != nil {
		return err
	}
	s.engine.Store(eng)
	s.logger.Info("Configuration reloaded",
		zap.Int("enabled_categories", len(eng.anonymizer.EnabledCategories())),
		zap.Int("max_conversations", cfg.Batch.MaxConversations),
	)
	return nil
}

// Start runs the WebSocket hub and the rate limiter cleanup until ctx is done
// and serves HTTP until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting transcript-sentinel API server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("store_enabled", s.store != nil),
	)

	go s.wsHub.Run(ctx)
	s.limiter.StartCleanupRoutine(ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping transcript-sentinel API server")
	return s.server.Shutdown(ctx)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
