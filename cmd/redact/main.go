package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/ingest"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
	"go.uber.org/zap"
)

// Exit codes.
const (
	exitOK              = 0
	exitError           = 1
	exitNoConversations = 2
)

// stdinName is the source name of input read from standard input.
const stdinName = "stdin.txt"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input transcript file (txt, csv, log, parquet, jsonl), directory, or - for stdin")
		outputFile = flag.String("output", "", "Output file (default stdout), or output directory for a directory input")
		workers    = flag.Int("workers", 4, "Number of concurrent workers for a directory input")
		format     = flag.String("format", formatText, "Output format: text, json or yaml")
		single     = flag.Bool("single", false, "Treat the input as one transcript without segmentation")
		record     = flag.Bool("record", false, "Write an audit row to the run store")
		noColor    = flag.Bool("no-color", false, "Disable colored summary")
		locale     = flag.String("locale", "en", "Summary language (en or vi)")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -input FILE [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -input chats.txt -output chats.redacted.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input dataset.parquet -format json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input exports/ -output redacted/ -workers 8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  cat transcript.txt | %s -input - -single\n", os.Args[0])
		return exitError
	}

	switch *format {
	case formatText, formatJSON, formatYAML:
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format: %s\n", *format)
		return exitError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitError
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	anon, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		log.Error("Failed to create anonymizer", zap.Error(err))
		return exitError
	}
	processor := batch.NewProcessor(anon, transcript.NewSegmenter(cfg.Segmenter, log), cfg.Batch, log)
	printer := newSummaryPrinter(os.Stderr, *noColor)

	if info, err := os.Stat(*inputFile); err == nil && info.IsDir() {
		return runDirectory(ctx, directoryOptions{
			cfg:       cfg,
			log:       log,
			processor: processor,
			printer:   printer,
			input:     *inputFile,
			output:    *outputFile,
			format:    *format,
			workers:   *workers,
			single:    *single,
			record:    *record,
			locale:    *locale,
		})
	}

	doc, err := loadInput(ctx, ingest.NewLoader(cfg.Batch.MaxInputBytes, log), *inputFile)
	if err != nil {
		log.Error("Failed to load input", zap.Error(err))
		return exitError
	}

	var (
		out      *outputDocument
		auditRow *store.Run
	)
	if *single {
		res := processor.AnonymizeTranscript(doc.Text)
		out = fromTranscript(doc.Name, res)
		auditRow = store.RunFromTranscript(doc.Name, res)
	} else {
		res, err := processor.Run(doc.Text)
		var none *batch.NoConversationsError
		if errors.As(err, &none) {
			printer.noConversations(doc.Name, none.FileStats)
			return exitNoConversations
		} else if err != nil {
			log.Error("Batch anonymization failed", zap.Error(err))
			return exitError
		}
		out = fromBatch(doc.Name, res)
		auditRow = store.RunFromResult(doc.Name, res)
	}

	data, err := render(out, *format)
	if err != nil {
		log.Error("Failed to render output", zap.Error(err))
		return exitError
	}
	if err := writeOutput(*outputFile, data); err != nil {
		log.Error("Failed to write output", zap.Error(err))
		return exitError
	}

	if *record {
		if err := recordRun(ctx, cfg.Store, log, auditRow); err != nil {
			log.Error("Failed to record run", zap.Error(err))
			return exitError
		}
	}

	printer.print(out, *locale)
	return exitOK
}

func loadInput(ctx context.Context, loader *ingest.Loader, path string) (*ingest.Document, error) {
	if path != "-" {
		return loader.Load(ctx, path)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return loader.LoadBytes(ctx, stdinName, data)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func recordRun(ctx context.Context, cfg config.StoreConfig, log *logger.Logger, run *store.Run) error {
	st, err := store.NewStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.InsertRun(ctx, run)
}
