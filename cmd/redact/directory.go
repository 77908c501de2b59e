package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/ingest"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/pipeline"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"go.uber.org/zap"
)

type directoryOptions struct {
	cfg       *config.Config
	log       *logger.Logger
	processor *batch.Processor
	printer   *summaryPrinter
	input     string
	output    string
	format    string
	workers   int
	single    bool
	record    bool
	locale    string
}

// runDirectory redacts every supported file under opts.input into the mirror
// tree under opts.output.
func runDirectory(ctx context.Context, opts directoryOptions) int {
	log := opts.log
	if opts.output == "" {
		log.Error("A directory input needs -output to name an output directory")
		return exitError
	}
	if info, err := os.Stat(opts.output); err == nil && !info.IsDir() {
		log.Error("Output path is not a directory", zap.String("output", opts.output))
		return exitError
	}

	paths, err := pipeline.CollectInputs(opts.input)
	if err != nil {
		log.Error("Failed to collect inputs", zap.Error(err))
		return exitError
	}
	if len(paths) == 0 {
		log.Warn("No supported input files found", zap.String("input", opts.input))
		return exitNoConversations
	}

	var recorder pipeline.Recorder
	if opts.record {
		st, err := store.NewStore(opts.cfg.Store, log)
		if err != nil {
			log.Error("Failed to open run store", zap.Error(err))
			return exitError
		}
		defer st.Close()
		recorder = st
	}

	p := pipeline.NewPipeline(
		ingest.NewLoader(opts.cfg.Batch.MaxInputBytes, log),
		opts.processor,
		recorder,
		pipeline.Config{Workers: opts.workers, Single: opts.single},
		log,
	)

	result, err := p.ProcessFiles(ctx, paths, func(res pipeline.FileResult) error {
		var doc *outputDocument
		switch {
		case res.Err != nil:
			return nil
		case res.NoConversations != nil:
			opts.printer.noConversations(res.Document.Name, res.NoConversations.FileStats)
			return nil
		case res.Batch != nil:
			doc = fromBatch(res.Document.Name, res.Batch)
		default:
			doc = fromTranscript(res.Document.Name, res.Transcript)
		}

		data, err := render(doc, opts.format)
		if err != nil {
			return err
		}
		target, err := outputPath(opts.input, opts.output, res.Path, opts.format)
		if err != nil {
			return err
		}
		if err := writeOutput(target, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		opts.printer.print(doc, opts.locale)
		return nil
	})
	if err != nil {
		log.Error("Directory run failed", zap.Error(err))
		return exitError
	}

	opts.printer.totals(result)

	switch {
	case result.ProcessedFailed > 0:
		return exitError
	case result.ProcessedOK == 0:
		return exitNoConversations
	}
	return exitOK
}

// outputPath maps an input file to <output>/<relative dir>/<name>.redacted.<ext>.
func outputPath(inputRoot, outputRoot, path, format string) (string, error) {
	rel, err := filepath.Rel(inputRoot, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(outputRoot, base+".redacted."+outputExtension(format)), nil
}

func outputExtension(format string) string {
	switch format {
	case formatJSON:
		return "json"
	case formatYAML:
		return "yaml"
	default:
		return "txt"
	}
}
