// Package parser turns data files into typed row producers. Each parser
// infers an ordered column schema from a bounded sample and streams records
// without loading whole files; batching belongs to the write path, not here.
package parser

import (
	"context"
	"io"

	"github.com/datazip-inc/lakeplan/types"
)

type Parser interface {
	// InferSchema reads a bounded sample from the reader and returns the
	// file's columns in their physical order. The inferred schema sticks to
	// the parser for typed streaming.
	InferSchema(ctx context.Context, reader io.Reader) ([]types.Column, error)

	// StreamRecords reads records from the reader and calls the callback for
	// each one. The first callback error stops processing.
	StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error
}

// RecordCallback is called once per streamed record.
type RecordCallback func(ctx context.Context, record types.Record) error

type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// FileConfig selects and configures the parser for one file.
type FileConfig struct {
	Format  Format        `json:"format,omitempty"` // detected from the file extension when empty
	CSV     CSVConfig     `json:"csv,omitempty"`
	JSON    JSONConfig    `json:"json,omitempty"`
	Parquet ParquetConfig `json:"parquet,omitempty"`
}

type CSVConfig struct {
	Delimiter      string `json:"delimiter"`       // default ","
	HasHeader      bool   `json:"has_header"`      // header row carries column names
	SkipRows       int    `json:"skip_rows"`       // rows skipped before the header
	QuoteCharacter string `json:"quote_character"` // non-empty enables lazy quoting
}

type JSONConfig struct {
	LineDelimited bool `json:"line_delimited"` // JSONL when set, a single array otherwise
}

type ParquetConfig struct {
	StreamingEnabled bool `json:"streaming_enabled"` // row-group at a time via range reads
}
