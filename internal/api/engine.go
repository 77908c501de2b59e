package api

import (
	"fmt"
	"strings"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
)

// engine is the set of components built from one configuration revision. A
// reload swaps the whole engine.
type engine struct {
	anonymizer *privacy.Anonymizer
	processor  *batch.Processor
	// fingerprint identifies the settings that shape output, for cache keys.
	fingerprint string
	maxInput    int64
	enabled     bool
}

func newEngine(cfg *config.Config, log *logger.Logger) (*engine, error) {
	anon, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create anonymizer: %w", err)
	}
	seg := transcript.NewSegmenter(cfg.Segmenter, log)

	cats := make([]string, 0, len(anon.EnabledCategories()))
	for _, c := range anon.EnabledCategories() {
		cats = append(cats, string(c))
	}
	fingerprint := fmt.Sprintf("enabled=%t;cats=%s;window=%d;lines=%d;chars=%d;personas=%s;max=%d",
		cfg.Privacy.Enabled,
		strings.Join(cats, ","),
		cfg.Privacy.ContextWindow,
		cfg.Segmenter.MinLines,
		cfg.Segmenter.MinChars,
		strings.Join(cfg.Segmenter.Personas, ","),
		cfg.Batch.MaxConversations,
	)

	return &engine{
		anonymizer:  anon,
		processor:   batch.NewProcessor(anon, seg, cfg.Batch, log),
		fingerprint: fingerprint,
		maxInput:    cfg.Batch.MaxInputBytes,
		enabled:     cfg.Privacy.Enabled,
	}, nil
}
