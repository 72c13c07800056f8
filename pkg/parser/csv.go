package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/datazip-inc/lakeplan/utils/typeutils"
)

type CSVParser struct {
	config CSVConfig
	schema []types.Column
}

// NewCSVParser builds a CSV parser. A nil schema is inferred on the first
// InferSchema call; a declared schema skips inference and drives the typed
// conversion directly.
func NewCSVParser(config CSVConfig, schema []types.Column) *CSVParser {
	return &CSVParser{
		config: config,
		schema: schema,
	}
}

func (p *CSVParser) delimiter() rune {
	if p.config.Delimiter == "" {
		return ','
	}
	return rune(p.config.Delimiter[0])
}

func (p *CSVParser) newReader(reader io.Reader) *csv.Reader {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = p.delimiter()
	if p.config.QuoteCharacter != "" {
		csvReader.LazyQuotes = true
	}
	return csvReader
}

// readHeaders consumes the configured skip rows and returns the column
// names: the header row when present, generated column_N names otherwise.
// The first data row is also returned in headerless mode so it is not lost.
func (p *CSVParser) readHeaders(csvReader *csv.Reader) ([]string, []string, error) {
	for i := 0; i < p.config.SkipRows; i++ {
		if _, err := csvReader.Read(); err != nil {
			return nil, nil, fmt.Errorf("failed to skip row %d: %s", i, err)
		}
	}

	if p.config.HasHeader {
		headers, err := csvReader.Read()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv headers: %s", err)
		}
		return headers, nil, nil
	}

	firstRow, err := csvReader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read first csv row: %s", err)
	}
	headers := make([]string, 0, len(firstRow))
	for i := range firstRow {
		headers = append(headers, fmt.Sprintf("column_%d", i))
	}
	return headers, firstRow, nil
}

// InferSchema samples up to 100 rows and infers each column's type from the
// values all rows agree on.
func (p *CSVParser) InferSchema(_ context.Context, reader io.Reader) ([]types.Column, error) {
	logger.Debugf("inferring csv schema from sample data")

	csvReader := p.newReader(reader)
	headers, firstRow, err := p.readHeaders(csvReader)
	if err != nil {
		return nil, err
	}

	maxSamples := 100
	sampleRows := [][]string{}
	if firstRow != nil {
		sampleRows = append(sampleRows, firstRow)
	}
	for len(sampleRows) < maxSamples {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("failed to read sample row %d: %s", len(sampleRows), err)
			break
		}
		sampleRows = append(sampleRows, row)
	}

	schema := make([]types.Column, 0, len(headers))
	for idx, header := range headers {
		schema = append(schema, types.Column{
			Name:     header,
			Type:     inferColumnType(sampleRows, idx),
			Nullable: true,
		})
	}

	logger.Infof("inferred %d columns from csv sample", len(schema))
	p.schema = schema
	return schema, nil
}

// StreamRecords reads the file row by row, converting each value to the
// schema's column type. The schema must cover every header.
func (p *CSVParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	csvReader := p.newReader(reader)
	headers, firstRow, err := p.readHeaders(csvReader)
	if err != nil {
		return err
	}

	columnTypes := make(map[string]types.DataType, len(p.schema))
	for _, column := range p.schema {
		columnTypes[column.Name] = column.Type
	}

	recordCount := 0
	emit := func(row []string) error {
		record := make(types.Record, len(headers))
		for idx, value := range row {
			if idx >= len(headers) {
				break
			}
			columnType, found := columnTypes[headers[idx]]
			if !found {
				return fmt.Errorf("column %s not present in schema", headers[idx])
			}
			converted, err := convertValue(value, columnType)
			if err != nil {
				return fmt.Errorf("failed to convert column %s in row %d: %s", headers[idx], recordCount, err)
			}
			record[headers[idx]] = converted
		}

		if err := callback(ctx, record); err != nil {
			return err
		}
		recordCount++
		return nil
	}

	// headerless mode already consumed the first data row
	if firstRow != nil {
		if err := emit(firstRow); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("failed to read csv row %d: %s", recordCount, err)
			continue
		}
		if err := emit(row); err != nil {
			return err
		}
	}

	logger.Infof("processed %d records from csv file", recordCount)
	return nil
}

// inferColumnType picks the narrowest type every sampled value parses as,
// preferring bool over int over float; mixed or empty columns fall back to
// string.
func inferColumnType(sampleRows [][]string, columnIndex int) types.DataType {
	if len(sampleRows) == 0 {
		return types.String
	}

	allInt := true
	allFloat := true
	allBool := true
	nonNullCount := 0

	for _, row := range sampleRows {
		if columnIndex >= len(row) {
			continue
		}

		value := strings.TrimSpace(row[columnIndex])
		if value == "" || strings.EqualFold(value, "null") {
			continue
		}
		nonNullCount++

		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			allFloat = false
		}
		lower := strings.ToLower(value)
		if lower != "true" && lower != "false" {
			allBool = false
		}
	}

	if nonNullCount == 0 {
		return types.String
	}
	if allBool {
		return types.Bool
	}
	if allInt {
		return types.Int64
	}
	if allFloat {
		return types.Float64
	}
	return types.String
}

// convertValue parses one CSV cell into the column's declared type. Empty
// cells and the literal "null" become nil.
func convertValue(value string, columnType types.DataType) (any, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return nil, nil
	}

	switch columnType {
	case types.Int32, types.Int64:
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %q to integer: %s", trimmed, err)
		}
		return parsed, nil
	case types.Float32, types.Float64:
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %q to float: %s", trimmed, err)
		}
		return parsed, nil
	case types.Bool:
		parsed, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %q to boolean: %s", trimmed, err)
		}
		return parsed, nil
	case types.Timestamp, types.TimestampMilli, types.TimestampMicro, types.TimestampNano:
		parsed, err := typeutils.ReformatDate(trimmed)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %q to timestamp: %s", trimmed, err)
		}
		return parsed, nil
	}
	return trimmed, nil
}
