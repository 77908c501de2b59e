package pipeline

import (
	"context"
	"time"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/ingest"
	"github.com/raaihank/transcript-sentinel/internal/store"
)

// Config contains pipeline configuration
type Config struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// Single anonymizes every file as one transcript without segmentation.
	Single bool `yaml:"single" mapstructure:"single"`
}

// Recorder receives an audit row per processed file
type Recorder interface {
	InsertRun(ctx context.Context, run *store.Run) error
}

// FileResult is the outcome for one input file. Exactly one of Batch,
// Transcript, NoConversations and Err is set.
type FileResult struct {
	Path            string
	Document        *ingest.Document
	Batch           *batch.Result
	Transcript      *batch.TranscriptResult
	NoConversations *batch.NoConversationsError
	Err             error
}

// ProcessingResult represents the result of processing a set of files
type ProcessingResult struct {
	TotalFiles      int64         `json:"total_files"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	NoConversations int64         `json:"no_conversations"`
	Conversations   int64         `json:"conversations"`
	Replacements    int64         `json:"replacements"`
	Duration        time.Duration `json:"duration"`
	Errors          []string      `json:"errors,omitempty"`
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	FilesQueued    int64     `json:"files_queued"`
	FilesDone      int64     `json:"files_done"`
	ProcessingRate float64   `json:"processing_rate"` // files per second
}
