package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raaihank/transcript-sentinel/internal/batch"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/raaihank/transcript-sentinel/internal/privacy"
	"github.com/raaihank/transcript-sentinel/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	got, err := outputPath("in", "out", filepath.Join("in", "team", "chats.log"), formatJSON)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "team", "chats.redacted.json"), got)

	got, err = outputPath("in", "out", filepath.Join("in", "notes"), formatText)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "notes.redacted.txt"), got)
}

func TestRunDirectory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	chat := "Chat 10000001\nCustomer: my email is ann@example.com please\nAgent: Thanks, I have updated the email on file.\n"
	require.NoError(t, os.MkdirAll(filepath.Join(in, "team"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "team", "a.txt"), []byte(chat), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("nothing here"), 0o600))

	cfg := config.GetDefaults()
	anon, err := privacy.New(cfg.Privacy, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	code := runDirectory(context.Background(), directoryOptions{
		cfg:       cfg,
		log:       logger.NewNop(),
		processor: batch.NewProcessor(anon, transcript.NewSegmenter(cfg.Segmenter, nil), cfg.Batch, nil),
		printer:   newSummaryPrinter(&buf, true),
		input:     in,
		output:    out,
		format:    formatText,
		workers:   2,
		locale:    "en",
	})
	assert.Equal(t, exitOK, code)

	data, err := os.ReadFile(filepath.Join(out, "team", "a.redacted.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "user0001@anonymized.com")
	assert.NotContains(t, string(data), "ann@example.com")

	_, err = os.Stat(filepath.Join(out, "notes.redacted.txt"))
	assert.True(t, os.IsNotExist(err))

	summary := buf.String()
	assert.Contains(t, summary, "notes.txt: no conversations found")
	assert.Contains(t, summary, "2 files: 1 redacted, 1 without conversations, 0 failed")
}

func TestRunDirectoryNeedsOutput(t *testing.T) {
	assert.Equal(t, exitError, runDirectory(context.Background(), directoryOptions{
		log:   logger.NewNop(),
		input: t.TempDir(),
	}))
}
