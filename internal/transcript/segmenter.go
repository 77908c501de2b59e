package transcript

import (
	"strings"
	"unicode/utf8"

	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Default minimum size of an emitted record.
const (
	DefaultMinLines = 3
	DefaultMinChars = 50
)

// Segmenter splits raw multi-conversation documents into records.
type Segmenter struct {
	minLines int
	minChars int
	speakers *speakerMatcher
	logger   *logger.Logger
}

// NewSegmenter creates a segmenter. A MinLines or MinChars below one selects
// the matching default.
func NewSegmenter(cfg config.SegmenterConfig, log *logger.Logger) *Segmenter {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MinLines < 1 {
		cfg.MinLines = DefaultMinLines
	}
	if cfg.MinChars < 1 {
		cfg.MinChars = DefaultMinChars
	}
	return &Segmenter{
		minLines: cfg.MinLines,
		minChars: cfg.MinChars,
		speakers: newSpeakerMatcher(cfg.Personas),
		logger:   log.WithComponent("segmenter"),
	}
}

type span struct {
	start, end int
	header     string
}

// Segment returns the conversations of text in document order. Spans below
// the size thresholds, or without a single recognised speaker turn, are
// dropped. It never fails; a document with nothing recognisable yields nil.
func (s *Segmenter) Segment(text string) []Record {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := splitSpans(text)

	var records []Record
	dropped := 0
	for _, sp := range spans {
		content := text[sp.start:sp.end]
		if !s.largeEnough(content) {
			dropped++
			continue
		}

		processed, turns := s.speakers.Normalize(content)
		if turns == 0 {
			dropped++
			continue
		}

		id, kind := unknownID(content), KindUnknown
		if sp.header != "" {
			id, kind = HeaderID(sp.header, text[sp.start:])
		}

		records = append(records, Record{
			ID:               id,
			Kind:             kind,
			Content:          content,
			Timestamp:        ExtractTimestamp(content),
			ProcessedContent: processed,
			Turns:            turns,
		})
	}

	s.logger.Debug("Document segmented",
		zap.Int("headers", countHeaders(spans)),
		zap.Int("records", len(records)),
		zap.Int("dropped", dropped),
	)

	return records
}

// Normalize rewrites one conversation span into canonical speaker turns and
// reports how many turns it recognised.
func (s *Segmenter) Normalize(content string) (string, int) {
	return s.speakers.Normalize(strings.ReplaceAll(content, "\r\n", "\n"))
}

// splitSpans cuts text at every header. Text before the first header forms
// its own headerless span. Without any header the whole text is one span.
func splitSpans(text string) []span {
	locs := headerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []span{{start: 0, end: len(text)}}
	}

	var spans []span
	if strings.TrimSpace(text[:locs[0][0]]) != "" {
		spans = append(spans, span{start: 0, end: locs[0][0]})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		spans = append(spans, span{start: loc[0], end: end, header: text[loc[0]:loc[1]]})
	}
	return spans
}

func (s *Segmenter) largeEnough(content string) bool {
	lines := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return lines >= s.minLines && utf8.RuneCountInString(strings.TrimSpace(content)) >= s.minChars
}

func countHeaders(spans []span) int {
	n := 0
	for _, sp := range spans {
		if sp.header != "" {
			n++
		}
	}
	return n
}
