package ingest

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/raaihank/transcript-sentinel/internal/extract"
)

// Format represents supported input formats
type Format string

const (
	FormatText    Format = "text"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

var (
	// ErrUnsupportedFormat is returned for files no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrTooLarge is returned for inputs above the configured size limit.
	ErrTooLarge = errors.New("input exceeds size limit")
)

// Row is one transcript of a row-oriented dataset.
type Row struct {
	ID   string `parquet:"id,optional" json:"id"`
	Text string `parquet:"text" json:"text"`
}

// Document is loaded input ready for the batch processor.
type Document struct {
	Name     string           `json:"name"`
	Format   Format           `json:"format"`
	Encoding extract.Encoding `json:"encoding,omitempty"`
	Text     string           `json:"-"`
	// Rows is the number of dataset rows joined into Text. Zero for plain
	// text formats.
	Rows int `json:"rows"`
}

// DetectFormat detects the input format from the file extension
func DetectFormat(name string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	default:
		if extract.AcceptedExtension(name) {
			return FormatText, nil
		}
		return "", ErrUnsupportedFormat
	}
}
