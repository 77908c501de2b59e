package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
)

// ErrNoConversations is matched by errors.Is when a document holds nothing
// the segmenter recognises.
var ErrNoConversations = errors.New("no conversations found")

// FileStats describes a raw input document.
type FileStats struct {
	OriginalLength int `json:"original_length" yaml:"original_length"`
	LineCount      int `json:"line_count" yaml:"line_count"`
}

// NoConversationsError is returned by Run for documents without a single
// record. It carries the input's stats for the caller to report.
type NoConversationsError struct {
	FileStats FileStats
}

func (e *NoConversationsError) Error() string {
	return fmt.Sprintf("%s (%d characters, %d lines)", ErrNoConversations, e.FileStats.OriginalLength, e.FileStats.LineCount)
}

// Is makes errors.Is(err, ErrNoConversations) hold.
func (e *NoConversationsError) Is(target error) bool {
	return target == ErrNoConversations
}

// RecordStats are the size figures of one record before and after redaction.
type RecordStats struct {
	OriginalLength int `json:"original_length" yaml:"original_length"`
	RedactedLength int `json:"redacted_length" yaml:"redacted_length"`
	LineCount      int `json:"line_count" yaml:"line_count"`
}

// RecordResult is the outcome for one conversation.
type RecordResult struct {
	OriginalID      string          `json:"original_id" yaml:"original_id"`
	Kind            transcript.Kind `json:"kind" yaml:"kind"`
	Timestamp       string          `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	OriginalContent string          `json:"original_content" yaml:"original_content"`
	RedactedContent string          `json:"redacted_content" yaml:"redacted_content"`
	Stats           RecordStats     `json:"stats" yaml:"stats"`
	Report          privacy.Report  `json:"report" yaml:"report"`
}

// Result is the outcome of a batch run.
type Result struct {
	RunID             string         `json:"run_id" yaml:"run_id"`
	CreatedAt         time.Time      `json:"created_at" yaml:"created_at"`
	RedactedDocument  string         `json:"redacted_document" yaml:"redacted_document"`
	Records           []RecordResult `json:"records" yaml:"records"`
	Report            privacy.Report `json:"report" yaml:"report"`
	ConversationCount int            `json:"conversation_count" yaml:"conversation_count"`
	// Truncated counts records found but not processed because of the
	// conversation cap.
	Truncated      int `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	OriginalLength int `json:"original_length" yaml:"original_length"`
	RedactedLength int `json:"redacted_length" yaml:"redacted_length"`
}

// TranscriptResult is the outcome of single transcript mode.
type TranscriptResult struct {
	RunID            string         `json:"run_id" yaml:"run_id"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
	RedactedDocument string         `json:"redacted_document" yaml:"redacted_document"`
	Report           privacy.Report `json:"report" yaml:"report"`
	OriginalLength   int            `json:"original_length" yaml:"original_length"`
	RedactedLength   int            `json:"redacted_length" yaml:"redacted_length"`
}

// RecordIDs returns the original ids of the processed records.
func (r *Result) RecordIDs() []string {
	ids := make([]string, len(r.Records))
	for i, rec := range r.Records {
		ids[i] = rec.OriginalID
	}
	return ids
}
