package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/logger"
)

// FileProducer adapts a local file to the row producer contract. The schema
// is resolved once at construction (declared in the config or inferred from
// the file); Stream reopens the file so the producer can be replayed.
type FileProducer struct {
	path   string
	config FileConfig
	parser Parser
	schema []types.Column
}

func NewFileProducer(ctx context.Context, path string, config *FileConfig) (*FileProducer, error) {
	if config == nil {
		config = &FileConfig{}
	}

	format, err := resolveFormat(path, config.Format)
	if err != nil {
		return nil, err
	}

	fileParser, err := parserFor(format, *config, nil)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %s", path, err)
	}
	defer file.Close()

	schema, err := fileParser.InferSchema(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema from %s: %s", path, err)
	}

	logger.Infof("resolved %d columns from %s file %s", len(schema), format, filepath.Base(path))
	return &FileProducer{
		path:   path,
		config: *config,
		parser: fileParser,
		schema: schema,
	}, nil
}

func (f *FileProducer) Schema() []types.Column {
	return f.schema
}

func (f *FileProducer) Stream(ctx context.Context, callback func(ctx context.Context, record types.Record) error) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %s", f.path, err)
	}
	defer file.Close()

	return f.parser.StreamRecords(ctx, file, RecordCallback(callback))
}

// parserFor builds the parser for a format. A nil schema means the parser
// infers one on first use.
func parserFor(format Format, config FileConfig, schema []types.Column) (Parser, error) {
	switch format {
	case FormatCSV:
		return NewCSVParser(config.CSV, schema), nil
	case FormatJSON:
		return NewJSONParser(config.JSON, schema), nil
	case FormatParquet:
		return NewParquetParser(config.Parquet, schema), nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// resolveFormat prefers an explicit format and falls back to the file
// extension.
func resolveFormat(path string, explicit Format) (Format, error) {
	if explicit != "" {
		return explicit, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FormatCSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("cannot detect file format for %s, set the format explicitly", filepath.Base(path))
	}
}
