package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"go.uber.org/zap"
)

// ResultCache keeps anonymization responses in Redis so identical uploads are
// not processed twice.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a new Redis-based result cache
func NewResultCache(cfg config.CacheConfig, log *logger.Logger) (*ResultCache, error) {
	if log == nil {
		log = logger.NewNop()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	opts.MinIdleConns = cfg.MinIdleConns

	c := &ResultCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: log.WithComponent("cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.Info("Result cache initialized successfully",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return c, nil
}

// Key derives the cache key of a request from its kind, the settings that
// shape the output and the input text.
func (c *ResultCache) Key(kind, fingerprint, text string) string {
	return KeyFor(c.config.KeyPrefix, kind, fingerprint, text)
}

// KeyFor derives a cache key. The input text only enters the key hashed.
func KeyFor(prefix, kind, fingerprint, text string) string {
	hasher := sha256.New()
	hasher.Write([]byte(kind))
	hasher.Write([]byte{0})
	hasher.Write([]byte(fingerprint))
	hasher.Write([]byte{0})
	hasher.Write([]byte(text))
	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:result:%s:%s", prefix, kind, hash[:32])
}

// Get returns the cached entry under key. Lookup failures count as misses.
func (c *ResultCache) Get(ctx context.Context, key string) (*Entry, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		c.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		c.misses.Add(1)
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		c.misses.Add(1)
		c.logger.Error("Failed to unmarshal cached entry", zap.Error(err))
		// Delete corrupted cache entry
		c.client.Del(ctx, key)
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("key", key), zap.String("kind", entry.Kind))
	return entry, true
}

// Put stores entry under key with the default TTL.
func (c *ResultCache) Put(ctx context.Context, key string, entry *Entry) error {
	entry.CachedAt = time.Now()
	entry.TTL = int64(c.config.DefaultTTL.Seconds())

	data, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry for caching: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}

	c.logger.Debug("Result cached",
		zap.String("key", key),
		zap.Int("replacements", entry.Replacements))

	return nil
}

// GetStats returns cache performance statistics
func (c *ResultCache) GetStats(ctx context.Context) (*CacheStats, error) {
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	stats.MemoryUsage = parseUsedMemory(info)

	if keys, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results
func (c *ResultCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":result:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(v, 10, 64); err == nil {
				return mem
			}
		}
	}
	return 0
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
