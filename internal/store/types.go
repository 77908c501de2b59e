package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/raaihank/transcript-sentinel/internal/batch"
)

// Run modes.
const (
	ModeBatch      = "batch"
	ModeTranscript = "transcript"
)

// Counts is the per-category replacement count of a run, stored as jsonb.
type Counts map[string]int

// Value implements driver.Valuer
func (c Counts) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *Counts) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Counts{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported counts type %T", src)
	}
	out := Counts{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode counts: %w", err)
	}
	*c = out
	return nil
}

// Run is one audited anonymization run. It never holds document text or
// original values.
type Run struct {
	ID                int64          `db:"id" json:"id"`
	RunID             string         `db:"run_id" json:"run_id"`
	Mode              string         `db:"mode" json:"mode"`
	Source            string         `db:"source" json:"source"`
	ConversationCount int            `db:"conversation_count" json:"conversation_count"`
	TotalReplacements int            `db:"total_replacements" json:"total_replacements"`
	Counts            Counts         `db:"replacements_by_type" json:"replacements_by_type"`
	ConversationIDs   pq.StringArray `db:"conversation_ids" json:"conversation_ids"`
	OriginalLength    int            `db:"original_length" json:"original_length"`
	RedactedLength    int            `db:"redacted_length" json:"redacted_length"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// RunStats are aggregate figures over every audited run.
type RunStats struct {
	TotalRuns          int64 `db:"total_runs" json:"total_runs"`
	TotalConversations int64 `db:"total_conversations" json:"total_conversations"`
	TotalReplacements  int64 `db:"total_replacements" json:"total_replacements"`
}

// RunFromResult maps a batch result to its audit row.
func RunFromResult(source string, res *batch.Result) *Run {
	counts := Counts{}
	for cat, n := range res.Report.ReplacementsByType {
		counts[string(cat)] = n
	}
	return &Run{
		RunID:             res.RunID,
		Mode:              ModeBatch,
		Source:            source,
		ConversationCount: res.ConversationCount,
		TotalReplacements: res.Report.TotalReplacements,
		Counts:            counts,
		ConversationIDs:   pq.StringArray(res.RecordIDs()),
		OriginalLength:    res.OriginalLength,
		RedactedLength:    res.RedactedLength,
		CreatedAt:         res.CreatedAt,
	}
}

// RunFromTranscript maps a single transcript result to its audit row.
func RunFromTranscript(source string, res *batch.TranscriptResult) *Run {
	counts := Counts{}
	for cat, n := range res.Report.ReplacementsByType {
		counts[string(cat)] = n
	}
	return &Run{
		RunID:             res.RunID,
		Mode:              ModeTranscript,
		Source:            source,
		ConversationCount: 1,
		TotalReplacements: res.Report.TotalReplacements,
		Counts:            counts,
		ConversationIDs:   pq.StringArray{},
		OriginalLength:    res.OriginalLength,
		RedactedLength:    res.RedactedLength,
		CreatedAt:         res.CreatedAt,
	}
}
