package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raaihank/transcript-sentinel/internal/extract"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"chats.txt":        FormatText,
		"chats":            FormatText,
		"server.log":       FormatText,
		"export.CSV":       FormatCSV,
		"dataset.parquet":  FormatParquet,
		"dataset.jsonl":    FormatJSONL,
		"dataset.ndjson":   FormatJSONL,
		"transcripts.json": FormatJSONL,
	}
	for name, want := range tests {
		got, err := DetectFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectFormat("report.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.txt")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFChat 1\nCustomer: hi"), 0o600))

	doc, err := NewLoader(0, logger.NewNop()).Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "chats.txt", doc.Name)
	assert.Equal(t, FormatText, doc.Format)
	assert.Equal(t, extract.EncodingUTF8, doc.Encoding)
	assert.Equal(t, "Chat 1\nCustomer: hi", doc.Text)
	assert.Zero(t, doc.Rows)
}

func TestLoadCSVPassesThrough(t *testing.T) {
	body := "Chat 1,Customer: hello, there\n"
	doc, err := NewLoader(0, nil).LoadBytes(context.Background(), "export.csv", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, body, doc.Text)
	assert.Equal(t, FormatCSV, doc.Format)
}

func TestLoadJSONLines(t *testing.T) {
	body := `{"id": 1, "text": "Chat 1\nCustomer: hi"}
not json
{"id": "b", "content": "Chat 2\nAgent: hello"}

{"id": "c"}
`
	doc, err := NewLoader(0, nil).LoadBytes(context.Background(), "rows.jsonl", []byte(body))
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Rows)
	assert.Equal(t, "Chat 1\nCustomer: hi\n\nChat 2\nAgent: hello", doc.Text)
}

func TestLoadParquet(t *testing.T) {
	var buf bytes.Buffer
	w := parquet.NewWriter(&buf)
	for _, row := range []Row{
		{ID: "a", Text: "Chat 1\nCustomer: hi"},
		{ID: "b", Text: "   "},
		{ID: "c", Text: "Chat 3\nAgent: hello"},
	} {
		require.NoError(t, w.Write(row))
	}
	require.NoError(t, w.Close())

	doc, err := NewLoader(0, nil).LoadBytes(context.Background(), "rows.parquet", buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Rows)
	assert.Equal(t, "Chat 1\nCustomer: hi\n\nChat 3\nAgent: hello", doc.Text)
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(8, nil)

	_, err := l.LoadBytes(context.Background(), "big.txt", []byte("more than eight bytes"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = NewLoader(0, nil).LoadBytes(context.Background(), "bin.txt", []byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, extract.ErrUndecodableInput)

	_, err = NewLoader(0, nil).LoadBytes(context.Background(), "rows.parquet", []byte("not parquet"))
	assert.Error(t, err)

	_, err = NewLoader(0, nil).Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
