package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("JSONFormat", func(t *testing.T) {
		log, err := New(Config{Level: "info", Format: "json"})
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(0))
	})

	t.Run("ConsoleFormat", func(t *testing.T) {
		log, err := New(Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(-1))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := New(Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("FileSink", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentinel.log")
		log, err := New(Config{Level: "info", Format: "json", File: &FileConfig{Enabled: true, Path: path}})
		require.NoError(t, err)

		log.WithComponent("test").Info("hello")
		_ = log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"component":"test"`)
	})
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	require.NotNil(t, log)
	log.WithRunID("abc").WithRequestID("r1").Info("discarded")
	assert.False(t, log.Core().Enabled(0))
}
