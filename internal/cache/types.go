package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached anonymization response. Payload is the response body as
// served, which never holds original values.
type Entry struct {
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Replacements int             `json:"replacements"`
	CachedAt     time.Time       `json:"cached_at"`
	TTL          int64           `json:"ttl"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

func encodeEntry(e *Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
