// Package batch anonymizes whole documents, one conversation at a time, with
// placeholders shared across the document.
package batch

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
	"go.uber.org/zap"
)

// recordSeparator joins redacted records in the combined document.
const recordSeparator = "\n\n"

// Processor runs the segmenter and the anonymizer over documents.
type Processor struct {
	anonymizer       *privacy.Anonymizer
	segmenter        *transcript.Segmenter
	maxConversations int
	logger           *logger.Logger
	now              func() time.Time
}

// NewProcessor creates a batch processor.
func NewProcessor(anon *privacy.Anonymizer, seg *transcript.Segmenter, cfg config.BatchConfig, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		anonymizer:       anon,
		segmenter:        seg,
		maxConversations: cfg.MaxConversations,
		logger:           log.WithComponent("batch"),
		now:              time.Now,
	}
}

// Segment exposes the segmenter for callers that only need records.
func (p *Processor) Segment(text string) []transcript.Record {
	return p.segmenter.Segment(text)
}

// Run segments text and anonymizes every record in document order with one
// generator. A document without records yields a *NoConversationsError.
func (p *Processor) Run(text string) (*Result, error) {
	runID := newRunID()
	log := p.logger.WithRunID(runID)

	records := p.segmenter.Segment(text)
	if len(records) == 0 {
		stats := Stats(text)
		log.Info("No conversations found",
			zap.Int("original_length", stats.OriginalLength),
			zap.Int("line_count", stats.LineCount),
		)
		return nil, &NoConversationsError{FileStats: stats}
	}

	truncated := 0
	if p.maxConversations > 0 && len(records) > p.maxConversations {
		truncated = len(records) - p.maxConversations
		records = records[:p.maxConversations]
	}

	gen := privacy.NewGenerator()
	result := &Result{
		RunID:             runID,
		CreatedAt:         p.now(),
		Records:           make([]RecordResult, 0, len(records)),
		Report:            privacy.NewReport(),
		ConversationCount: len(records),
		Truncated:         truncated,
		OriginalLength:    utf8.RuneCountInString(text),
	}

	redacted := make([]string, 0, len(records))
	for _, rec := range records {
		out, report := p.anonymizer.AnonymizeWith(gen, rec.Content)
		redacted = append(redacted, out)

		result.Records = append(result.Records, RecordResult{
			OriginalID:      rec.ID,
			Kind:            rec.Kind,
			Timestamp:       rec.Timestamp,
			OriginalContent: rec.Content,
			RedactedContent: out,
			Stats: RecordStats{
				OriginalLength: utf8.RuneCountInString(rec.Content),
				RedactedLength: utf8.RuneCountInString(out),
				LineCount:      lineCount(rec.Content),
			},
			Report: report,
		})
		result.Report.Merge(report)

		log.Debug("Conversation anonymized",
			zap.String("conversation_id", rec.ID),
			zap.Int("replacements", report.TotalReplacements),
		)
	}

	result.RedactedDocument = strings.Join(redacted, recordSeparator)
	result.RedactedLength = utf8.RuneCountInString(result.RedactedDocument)

	log.Info("Batch anonymized",
		zap.Int("conversations", result.ConversationCount),
		zap.Int("truncated", truncated),
		zap.Int("replacements", result.Report.TotalReplacements),
	)

	return result, nil
}

// AnonymizeTranscript anonymizes text as a single transcript without
// segmentation, with its own generator.
func (p *Processor) AnonymizeTranscript(text string) *TranscriptResult {
	runID := newRunID()
	out, report := p.anonymizer.Anonymize(text)

	p.logger.WithRunID(runID).Info("Transcript anonymized",
		zap.Int("replacements", report.TotalReplacements),
	)

	return &TranscriptResult{
		RunID:            runID,
		CreatedAt:        p.now(),
		RedactedDocument: out,
		Report:           report,
		OriginalLength:   utf8.RuneCountInString(text),
		RedactedLength:   utf8.RuneCountInString(out),
	}
}

// Stats returns the length and line count of a raw document.
func Stats(text string) FileStats {
	return FileStats{
		OriginalLength: utf8.RuneCountInString(text),
		LineCount:      lineCount(text),
	}
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}

func newRunID() string {
	return uuid.NewString()[:8]
}
