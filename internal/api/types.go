package api

import (
	"time"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/cache"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
	"github.com/raaihank/transcript-sentinel/internal/websocket"
)

// Reports in responses never carry original values.

// AnonymizeResponse is the body of POST /v1/anonymize
type AnonymizeResponse struct {
	RunID            string         `json:"run_id"`
	CreatedAt        time.Time      `json:"created_at"`
	RedactedDocument string         `json:"redacted_document"`
	Report           privacy.Report `json:"report"`
	Summary          string         `json:"summary"`
	OriginalLength   int            `json:"original_length"`
	RedactedLength   int            `json:"redacted_length"`
	Cached           bool           `json:"cached"`
}

// RecordResponse is one conversation of a batch response
type RecordResponse struct {
	OriginalID      string            `json:"original_id"`
	Kind            transcript.Kind   `json:"kind"`
	Timestamp       string            `json:"timestamp,omitempty"`
	RedactedContent string            `json:"redacted_content"`
	Stats           batch.RecordStats `json:"stats"`
	Report          privacy.Report    `json:"report"`
}

// BatchResponse is the body of POST /v1/anonymize/batch
type BatchResponse struct {
	RunID             string           `json:"run_id"`
	CreatedAt         time.Time        `json:"created_at"`
	RedactedDocument  string           `json:"redacted_document"`
	ConversationCount int              `json:"conversation_count"`
	Truncated         int              `json:"truncated,omitempty"`
	Records           []RecordResponse `json:"records"`
	Report            privacy.Report   `json:"report"`
	Summary           string           `json:"summary"`
	OriginalLength    int              `json:"original_length"`
	RedactedLength    int              `json:"redacted_length"`
	Cached            bool             `json:"cached"`
}

// NoConversationsResponse is returned with 200 when a document holds no
// recognisable conversation.
type NoConversationsResponse struct {
	Error     string          `json:"error"`
	FileStats batch.FileStats `json:"file_stats"`
}

// ConversationResponse is one record of a segment response
type ConversationResponse struct {
	ID               string          `json:"id"`
	Kind             transcript.Kind `json:"kind"`
	Timestamp        string          `json:"timestamp,omitempty"`
	ProcessedContent string          `json:"processed_content"`
	Turns            int             `json:"turns"`
}

// SegmentResponse is the body of POST /v1/segment
type SegmentResponse struct {
	ConversationCount int                    `json:"conversation_count"`
	Conversations     []ConversationResponse `json:"conversations"`
}

// RunsResponse is the body of GET /v1/runs
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// StatsResponse is the body of GET /v1/stats. Backends that are not
// configured, or that fail to answer, are omitted.
type StatsResponse struct {
	Cache     *cache.CacheStats  `json:"cache,omitempty"`
	Runs      *store.RunStats    `json:"runs,omitempty"`
	WebSocket websocket.HubStats `json:"websocket"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func newBatchResponse(res *batch.Result) *BatchResponse {
	records := make([]RecordResponse, len(res.Records))
	for i, rec := range res.Records {
		records[i] = RecordResponse{
			OriginalID:      rec.OriginalID,
			Kind:            rec.Kind,
			Timestamp:       rec.Timestamp,
			RedactedContent: rec.RedactedContent,
			Stats:           rec.Stats,
			Report:          rec.Report.WithoutOriginals(),
		}
	}
	return &BatchResponse{
		RunID:             res.RunID,
		CreatedAt:         res.CreatedAt,
		RedactedDocument:  res.RedactedDocument,
		ConversationCount: res.ConversationCount,
		Truncated:         res.Truncated,
		Records:           records,
		Report:            res.Report.WithoutOriginals(),
		OriginalLength:    res.OriginalLength,
		RedactedLength:    res.RedactedLength,
	}
}

func newAnonymizeResponse(res *batch.TranscriptResult) *AnonymizeResponse {
	return &AnonymizeResponse{
		RunID:            res.RunID,
		CreatedAt:        res.CreatedAt,
		RedactedDocument: res.RedactedDocument,
		Report:           res.Report.WithoutOriginals(),
		OriginalLength:   res.OriginalLength,
		RedactedLength:   res.RedactedLength,
	}
}

func newSegmentResponse(records []transcript.Record) *SegmentResponse {
	out := &SegmentResponse{
		ConversationCount: len(records),
		Conversations:     make([]ConversationResponse, len(records)),
	}
	for i, rec := range records {
		out.Conversations[i] = ConversationResponse{
			ID:               rec.ID,
			Kind:             rec.Kind,
			Timestamp:        rec.Timestamp,
			ProcessedContent: rec.ProcessedContent,
			Turns:            rec.Turns,
		}
	}
	return out
}
