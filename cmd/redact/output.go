package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/pipeline"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// outputRecord is one redacted conversation. Structured output never holds
// original text.
type outputRecord struct {
	OriginalID      string            `json:"original_id" yaml:"original_id"`
	Kind            transcript.Kind   `json:"kind" yaml:"kind"`
	Timestamp       string            `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	RedactedContent string            `json:"redacted_content" yaml:"redacted_content"`
	Stats           batch.RecordStats `json:"stats" yaml:"stats"`
	Report          privacy.Report    `json:"report" yaml:"report"`
}

// outputDocument is the structured result written by -format json or yaml.
type outputDocument struct {
	Source            string         `json:"source" yaml:"source"`
	Mode              string         `json:"mode" yaml:"mode"`
	RunID             string         `json:"run_id" yaml:"run_id"`
	CreatedAt         time.Time      `json:"created_at" yaml:"created_at"`
	ConversationCount int            `json:"conversation_count" yaml:"conversation_count"`
	Truncated         int            `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	OriginalLength    int            `json:"original_length" yaml:"original_length"`
	RedactedLength    int            `json:"redacted_length" yaml:"redacted_length"`
	RedactedDocument  string         `json:"redacted_document" yaml:"redacted_document"`
	Records           []outputRecord `json:"records,omitempty" yaml:"records,omitempty"`
	Report            privacy.Report `json:"report" yaml:"report"`
}

func fromBatch(source string, res *batch.Result) *outputDocument {
	doc := &outputDocument{
		Source:            source,
		Mode:              "batch",
		RunID:             res.RunID,
		CreatedAt:         res.CreatedAt,
		ConversationCount: res.ConversationCount,
		Truncated:         res.Truncated,
		OriginalLength:    res.OriginalLength,
		RedactedLength:    res.RedactedLength,
		RedactedDocument:  res.RedactedDocument,
		Report:            res.Report.WithoutOriginals(),
	}
	for _, rec := range res.Records {
		doc.Records = append(doc.Records, outputRecord{
			OriginalID:      rec.OriginalID,
			Kind:            rec.Kind,
			Timestamp:       rec.Timestamp,
			RedactedContent: rec.RedactedContent,
			Stats:           rec.Stats,
			Report:          rec.Report.WithoutOriginals(),
		})
	}
	return doc
}

func fromTranscript(source string, res *batch.TranscriptResult) *outputDocument {
	return &outputDocument{
		Source:            source,
		Mode:              "transcript",
		RunID:             res.RunID,
		CreatedAt:         res.CreatedAt,
		ConversationCount: 1,
		OriginalLength:    res.OriginalLength,
		RedactedLength:    res.RedactedLength,
		RedactedDocument:  res.RedactedDocument,
		Report:            res.Report.WithoutOriginals(),
	}
}

// render encodes doc in the requested format.
func render(doc *outputDocument, format string) ([]byte, error) {
	switch format {
	case formatText, "":
		out := doc.RedactedDocument
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return []byte(out), nil
	case formatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return buf.Bytes(), nil
	case formatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// summaryPrinter writes the colored run summary
type summaryPrinter struct {
	w      io.Writer
	colors map[string]*color.Color
}

func newSummaryPrinter(w io.Writer, noColor bool) *summaryPrinter {
	if noColor {
		color.NoColor = true
	}
	return &summaryPrinter{
		w: w,
		colors: map[string]*color.Color{
			"title":    color.New(color.FgWhite, color.Bold),
			"positive": color.New(color.FgGreen),
			"warning":  color.New(color.FgYellow),
			"item":     color.New(color.FgCyan),
		},
	}
}

func (p *summaryPrinter) print(doc *outputDocument, locale string) {
	opts := privacy.SummaryOptions{Locale: locale}
	if doc.Mode == "batch" {
		opts.ConversationCount = doc.ConversationCount
	}
	summary := privacy.Summarize(doc.Report, opts)

	p.colors["title"].Fprintf(p.w, "%s (run %s)\n", doc.Source, doc.RunID)
	for _, line := range strings.Split(summary, "\n") {
		switch {
		case strings.HasPrefix(line, "  "):
			p.colors["item"].Fprintln(p.w, line)
		case doc.Report.TotalReplacements == 0:
			p.colors["positive"].Fprintln(p.w, line)
		default:
			fmt.Fprintln(p.w, line)
		}
	}
	if doc.Truncated > 0 {
		p.colors["warning"].Fprintf(p.w, "%d conversations skipped by the conversation limit\n", doc.Truncated)
	}
}

func (p *summaryPrinter) noConversations(source string, stats batch.FileStats) {
	p.colors["warning"].Fprintf(p.w, "%s: no conversations found (%d characters, %d lines)\n",
		source, stats.OriginalLength, stats.LineCount)
}

func (p *summaryPrinter) totals(result *pipeline.ProcessingResult) {
	p.colors["title"].Fprintf(p.w, "\n%d files: %d redacted, %d without conversations, %d failed\n",
		result.TotalFiles, result.ProcessedOK, result.NoConversations, result.ProcessedFailed)
	fmt.Fprintf(p.w, "%d conversations, %d sensitive items replaced in %s\n",
		result.Conversations, result.Replacements, result.Duration.Round(time.Millisecond))
	for _, msg := range result.Errors {
		p.colors["warning"].Fprintln(p.w, msg)
	}
}
