// Package pipeline redacts many input files concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/ingest"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/store"
	"go.uber.org/zap"
)

// Pipeline loads, segments and anonymizes files on a pool of workers
type Pipeline struct {
	loader    *ingest.Loader
	processor *batch.Processor
	recorder  Recorder
	config    Config
	logger    *logger.Logger
	stats     ProcessingStats
	mu        sync.RWMutex
}

// NewPipeline creates a new pipeline. recorder may be nil.
func NewPipeline(loader *ingest.Loader, processor *batch.Processor, recorder Recorder, cfg Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		loader:    loader,
		processor: processor,
		recorder:  recorder,
		config:    cfg,
		logger:    log.WithComponent("pipeline"),
	}
}

// CollectInputs lists the files under dir that the loader can read, sorted.
func CollectInputs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := ingest.DetectFormat(d.Name()); ferr == nil {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ProcessFiles processes every path and hands each outcome to handle, one at
// a time, in completion order. An error from handle stops the run. Per-file
// failures are counted, not returned.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, handle func(FileResult) error) (*ProcessingResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	p.resetStats(int64(len(paths)))
	result := &ProcessingResult{TotalFiles: int64(len(paths))}

	p.logger.Info("Starting pipeline",
		zap.Int("files", len(paths)),
		zap.Int("workers", p.config.Workers),
		zap.Bool("single", p.config.Single))

	jobs := make(chan string)
	results := make(chan FileResult)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				select {
				case results <- p.processFile(ctx, path):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var handleErr error
	for res := range results {
		p.account(result, res)
		if handleErr == nil && handle != nil {
			if err := handle(res); err != nil {
				handleErr = err
				cancel()
			}
		}
	}

	result.Duration = time.Since(start)

	p.logger.Info("Pipeline completed",
		zap.Int64("total_files", result.TotalFiles),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("no_conversations", result.NoConversations),
		zap.Int64("replacements", result.Replacements),
		zap.Duration("total_duration", result.Duration))

	if handleErr != nil {
		return result, handleErr
	}
	// Only the caller's context can be done at this point.
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path}

	doc, err := p.loader.Load(ctx, path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Document = doc

	var run *store.Run
	if p.config.Single {
		res.Transcript = p.processor.AnonymizeTranscript(doc.Text)
		run = store.RunFromTranscript(doc.Name, res.Transcript)
	} else {
		out, err := p.processor.Run(doc.Text)
		var none *batch.NoConversationsError
		if errors.As(err, &none) {
			res.NoConversations = none
			return res
		} else if err != nil {
			res.Err = err
			return res
		}
		res.Batch = out
		run = store.RunFromResult(doc.Name, out)
	}

	if p.recorder != nil {
		if err := p.recorder.InsertRun(ctx, run); err != nil {
			p.logger.Warn("Failed to record run", zap.String("run_id", run.RunID), zap.Error(err))
		}
	}
	return res
}

func (p *Pipeline) account(result *ProcessingResult, res FileResult) {
	switch {
	case res.Err != nil:
		result.ProcessedFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", res.Path, res.Err))
		p.logger.Warn("File failed", zap.String("file", res.Path), zap.Error(res.Err))
	case res.NoConversations != nil:
		result.NoConversations++
	case res.Batch != nil:
		result.ProcessedOK++
		result.Conversations += int64(res.Batch.ConversationCount)
		result.Replacements += int64(res.Batch.Report.TotalReplacements)
	case res.Transcript != nil:
		result.ProcessedOK++
		result.Conversations++
		result.Replacements += int64(res.Transcript.Report.TotalReplacements)
	}

	p.mu.Lock()
	p.stats.FilesDone++
	if elapsed := time.Since(p.stats.StartTime).Seconds(); elapsed > 0 {
		p.stats.ProcessingRate = float64(p.stats.FilesDone) / elapsed
	}
	p.mu.Unlock()
}

func (p *Pipeline) resetStats(queued int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats = ProcessingStats{
		StartTime:   time.Now(),
		FilesQueued: queued,
	}
}

// GetStats returns current processing statistics
func (p *Pipeline) GetStats() ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
