package security

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/transcript-sentinel/internal/config"
	"golang.org/x/time/rate"
)

// idleCutoff is how long a client bucket survives without requests.
const idleCutoff = time.Hour

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	config  config.RateLimitConfig
	limit   rate.Limit
	burst   int
	clients map[string]*clientBucket
	mu      sync.Mutex
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		config:  cfg,
		limit:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// Allow checks if a request from the given client is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}
	now := r.now()
	return r.bucket(clientIP, now).AllowN(now, 1)
}

// RetryAfter estimates how long the client must wait for its next token.
func (r *RateLimiter) RetryAfter(clientIP string) time.Duration {
	if !r.config.Enabled || r.limit <= 0 {
		return 0
	}
	now := r.now()
	res := r.bucket(clientIP, now).ReserveN(now, 1)
	defer res.CancelAt(now)
	if !res.OK() {
		return 0
	}
	return res.DelayFrom(now)
}

func (r *RateLimiter) bucket(clientIP string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.clients[clientIP]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[clientIP] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CleanupOldBuckets removes buckets of clients idle for over an hour
func (r *RateLimiter) CleanupOldBuckets() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idleCutoff)
	for ip, b := range r.clients {
		if b.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
		}
	}
}

// StartCleanupRoutine runs CleanupOldBuckets periodically until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupOldBuckets()
			}
		}
	}()
}
