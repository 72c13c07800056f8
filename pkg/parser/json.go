package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/datazip-inc/lakeplan/utils/typeutils"
)

type JSONParser struct {
	config    JSONConfig
	schema    []types.Column
	flattener typeutils.Flattener
}

// NewJSONParser builds a JSON parser. Nested objects and arrays are
// flattened to string columns, so records always project onto a flat table
// schema.
func NewJSONParser(config JSONConfig, schema []types.Column) *JSONParser {
	return &JSONParser{
		config:    config,
		schema:    schema,
		flattener: typeutils.NewFlattener(),
	}
}

// InferSchema samples up to 100 records and resolves the widest common type
// per field. JSONL, a JSON array, and a single object are all detected from
// the content itself.
func (p *JSONParser) InferSchema(_ context.Context, reader io.Reader) ([]types.Column, error) {
	logger.Debugf("inferring json schema from sample data")
	maxSamples := 100

	// bound the sample read so huge files cannot blow up inference
	const maxBytesForInference = 10 * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(reader, maxBytesForInference))
	if err != nil {
		return nil, fmt.Errorf("failed to read json file: %s", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty json file")
	}

	samples, err := p.parseContent(trimmed, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json: %s", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no records found in json file")
	}

	resolver := typeutils.NewResolver()
	for idx, record := range samples {
		flattened, err := p.flattener.Flatten(record)
		if err != nil {
			return nil, fmt.Errorf("failed to flatten record %d: %s", idx, err)
		}
		if err := resolver.Resolve(flattened); err != nil {
			return nil, fmt.Errorf("failed to resolve schema for record %d: %s", idx, err)
		}
	}

	schema := resolver.Columns()
	logger.Infof("inferred %d columns from json sample", len(schema))
	p.schema = schema
	return schema, nil
}

// StreamRecords decodes records one at a time: JSONL when configured, a
// streamed array or a single object otherwise.
func (p *JSONParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	buffered := bufio.NewReader(reader)
	decoder := json.NewDecoder(buffered)
	recordCount := 0

	emit := func(record types.Record) error {
		flattened, err := p.flattener.Flatten(record)
		if err != nil {
			return fmt.Errorf("failed to flatten record %d: %s", recordCount, err)
		}
		if err := callback(ctx, flattened); err != nil {
			return err
		}
		recordCount++
		return nil
	}

	if p.config.LineDelimited {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var record types.Record
			if err := decoder.Decode(&record); err == io.EOF {
				break
			} else if err != nil {
				// a malformed line wedges the decoder, stop at the damage
				logger.Warnf("stopping json stream at record %d: %s", recordCount, err)
				break
			}
			if err := emit(record); err != nil {
				return err
			}
		}
	} else {
		first, err := firstLayoutByte(buffered)
		if err != nil {
			return fmt.Errorf("failed to read json input: %s", err)
		}

		// a lone object emits exactly one record
		if first == '{' {
			var record types.Record
			if err := decoder.Decode(&record); err != nil {
				return fmt.Errorf("failed to decode json object: %s", err)
			}
			if err := emit(record); err != nil {
				return err
			}
			logger.Infof("processed 1 record from json file")
			return nil
		}

		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("failed to read json array start: %s", err)
		}
		if delim, ok := token.(json.Delim); !ok || delim != '[' {
			return fmt.Errorf("expected json array, got: %v", token)
		}

		for decoder.More() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var record types.Record
			if err := decoder.Decode(&record); err != nil {
				return fmt.Errorf("failed to decode json record %d: %s", recordCount, err)
			}
			if err := emit(record); err != nil {
				return err
			}
		}
	}

	logger.Infof("processed %d records from json file", recordCount)
	return nil
}

// parseContent detects the sample's layout from its first byte: '[' is an
// array, '{' is either JSONL or a single object.
func (p *JSONParser) parseContent(data []byte, maxSamples int) ([]types.Record, error) {
	switch data[0] {
	case '[':
		return p.parseArray(data, maxSamples)
	case '{':
		return p.parseLinesOrObject(data, maxSamples)
	default:
		return nil, fmt.Errorf("invalid json layout: expected '[' or '{', got %q", data[0])
	}
}

func (p *JSONParser) parseArray(data []byte, maxSamples int) ([]types.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))

	token, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read json array start: %s", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected json array, got: %v", token)
	}

	records := make([]types.Record, 0, maxSamples)
	for decoder.More() && len(records) < maxSamples {
		var record types.Record
		if err := decoder.Decode(&record); err != nil {
			// a truncated sample is still enough for inference
			if len(records) > 0 {
				logger.Warnf("stopped sampling json array after %d records: %s", len(records), err)
				break
			}
			return nil, fmt.Errorf("failed to decode json array element: %s", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (p *JSONParser) parseLinesOrObject(data []byte, maxSamples int) ([]types.Record, error) {
	records, isLines, err := p.tryParseLines(data, maxSamples)
	if err == nil && isLines {
		// layout detected during inference carries over to streaming
		p.config.LineDelimited = true
		return records, nil
	}

	var single types.Record
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse as jsonl or a single json object: %s", err)
	}
	return []types.Record{single}, nil
}

// firstLayoutByte peeks past leading whitespace without consuming input.
func firstLayoutByte(buffered *bufio.Reader) (byte, error) {
	for window := 64; ; window *= 2 {
		peeked, err := buffered.Peek(window)
		for _, b := range peeked {
			switch b {
			case ' ', '\t', '\r', '\n':
				continue
			default:
				return b, nil
			}
		}
		if err != nil {
			return 0, err
		}
	}
}

// tryParseLines attempts JSONL decoding; the bool reports whether the data
// actually was line delimited.
func (p *JSONParser) tryParseLines(data []byte, maxSamples int) ([]types.Record, bool, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	records := []types.Record{}

	for i := 0; i < maxSamples; i++ {
		var record types.Record
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			// trailing garbage after at least one record still counts
			if len(records) > 0 {
				logger.Warnf("jsonl sampling stopped at record %d: %s", i, err)
				return records, true, nil
			}
			return nil, false, err
		}
		records = append(records, record)
	}
	return records, len(records) > 1, nil
}
