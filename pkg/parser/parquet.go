package parser

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"time"
	"unicode/utf8"

	pq "github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/logger"
)

// ParquetParser reads Parquet files. Schema comes from file metadata alone;
// records stream one row group at a time to bound memory. The reader must be
// an io.ReaderAt (os.File, bytes.Reader, or a RangeReader).
type ParquetParser struct {
	config ParquetConfig
	schema []types.Column
}

func NewParquetParser(config ParquetConfig, schema []types.Column) *ParquetParser {
	return &ParquetParser{
		config: config,
		schema: schema,
	}
}

func (p *ParquetParser) InferSchema(_ context.Context, reader io.Reader) ([]types.Column, error) {
	logger.Debugf("inferring parquet schema from file metadata")

	readerAt, fileSize, err := prepareReader(reader)
	if err != nil {
		return nil, err
	}

	pqFile, err := pq.OpenFile(readerAt, fileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %s", err)
	}

	fields := pqFile.Schema().Fields()
	schema := make([]types.Column, 0, len(fields))
	for _, field := range fields {
		schema = append(schema, types.Column{
			Name:     field.Name(),
			Type:     columnTypeFor(field.Type()),
			Nullable: field.Optional(),
		})
	}

	logger.Infof("inferred %d columns from parquet metadata", len(schema))
	p.schema = schema
	return schema, nil
}

func (p *ParquetParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	readerAt, fileSize, err := prepareReader(reader)
	if err != nil {
		return err
	}

	pqFile, err := pq.OpenFile(readerAt, fileSize)
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %s", err)
	}

	fields := pqFile.Schema().Fields()
	recordCount := 0
	totalRowGroups := len(pqFile.RowGroups())

	for rgIdx, rowGroup := range pqFile.RowGroups() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		numRows := rowGroup.NumRows()
		logger.Debugf("processing row group %d/%d (%d rows)", rgIdx+1, totalRowGroups, numRows)

		// materialize this row group's columns only
		columnData := make([][]pq.Value, len(fields))
		for colIdx, columnChunk := range rowGroup.ColumnChunks() {
			pages := columnChunk.Pages()
			columnValues := make([]pq.Value, 0, numRows)

			for {
				page, err := pages.ReadPage()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("failed to read page in row group %d: %s", rgIdx, err)
				}

				pageValues := make([]pq.Value, page.NumValues())
				if _, err := page.Values().ReadValues(pageValues); err != nil && err != io.EOF {
					return fmt.Errorf("failed to read page values in row group %d: %s", rgIdx, err)
				}
				columnValues = append(columnValues, pageValues...)
			}
			pages.Close()

			columnData[colIdx] = columnValues
		}

		for rowIdx := int64(0); rowIdx < numRows; rowIdx++ {
			if rowIdx%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			record := make(types.Record, len(fields))
			for colIdx, field := range fields {
				if rowIdx < int64(len(columnData[colIdx])) {
					record[field.Name()] = parquetValue(columnData[colIdx][rowIdx], field.Type())
				}
			}

			if err := callback(ctx, record); err != nil {
				return err
			}
			recordCount++
		}
	}

	logger.Infof("processed %d records from parquet file", recordCount)
	return nil
}

// columnTypeFor maps a Parquet type onto the table type system, preferring
// logical type annotations over the physical kind.
func columnTypeFor(pqType pq.Type) types.DataType {
	if logicalType := pqType.LogicalType(); logicalType != nil {
		if logicalType.Integer != nil {
			switch logicalType.Integer.BitWidth {
			case 8, 16, 32:
				return types.Int32
			case 64:
				return types.Int64
			default:
				logger.Warnf("unexpected integer bit width %d, defaulting to int32", logicalType.Integer.BitWidth)
				return types.Int32
			}
		}

		if logicalType.Timestamp != nil {
			if logicalType.Timestamp.Unit.Nanos != nil {
				return types.TimestampNano
			} else if logicalType.Timestamp.Unit.Micros != nil {
				return types.TimestampMicro
			} else if logicalType.Timestamp.Unit.Millis != nil {
				return types.TimestampMilli
			}
			return types.Timestamp
		}

		// time-of-day renders as seconds
		if logicalType.Time != nil {
			return types.Int64
		}

		if logicalType.Date != nil {
			return types.Timestamp
		}

		if logicalType.Decimal != nil {
			return types.Float64
		}

		if logicalType.UTF8 != nil || logicalType.Json != nil || logicalType.UUID != nil ||
			logicalType.Enum != nil || logicalType.Bson != nil {
			return types.String
		}

		if logicalType.List != nil {
			return types.Array
		}

		if logicalType.Map != nil {
			return types.Object
		}
	}

	switch pqType.Kind() {
	case pq.Boolean:
		return types.Bool
	case pq.Int32:
		return types.Int32
	case pq.Int64:
		return types.Int64
	case pq.Int96:
		// legacy timestamp encoding
		return types.Timestamp
	case pq.Float:
		return types.Float32
	case pq.Double:
		return types.Float64
	case pq.ByteArray, pq.FixedLenByteArray:
		return types.String
	default:
		logger.Warnf("unknown parquet type %v, defaulting to string", pqType.Kind())
		return types.String
	}
}

// parquetValue converts one stored value to its Go representation, honoring
// the column's logical type.
func parquetValue(val pq.Value, fieldType pq.Type) any {
	if val.IsNull() {
		return nil
	}

	logicalType := fieldType.LogicalType()
	if logicalType != nil {
		// days since epoch, stored as int32
		if logicalType.Date != nil {
			days := val.Int32()
			return time.Unix(int64(days)*86400, 0).UTC().Format(time.RFC3339)
		}

		if logicalType.Timestamp != nil {
			rawValue := val.Int64()
			var t time.Time
			if logicalType.Timestamp.Unit.Nanos != nil {
				t = time.Unix(0, rawValue).UTC()
			} else if logicalType.Timestamp.Unit.Micros != nil {
				t = time.Unix(0, rawValue*1000).UTC()
			} else if logicalType.Timestamp.Unit.Millis != nil {
				t = time.Unix(0, rawValue*1_000_000).UTC()
			} else {
				t = time.Unix(rawValue, 0).UTC()
			}
			return t.Format(time.RFC3339)
		}

		if logicalType.Time != nil {
			var rawValue int64
			if val.Kind() == pq.Int32 {
				rawValue = int64(val.Int32())
			} else {
				rawValue = val.Int64()
			}

			var seconds int64
			if logicalType.Time.Unit.Nanos != nil {
				seconds = rawValue / 1_000_000_000
			} else if logicalType.Time.Unit.Micros != nil {
				seconds = rawValue / 1_000_000
			} else if logicalType.Time.Unit.Millis != nil {
				seconds = rawValue / 1_000
			} else {
				seconds = rawValue
			}
			return seconds
		}

		if logicalType.Decimal != nil {
			dec, err := decodeDecimal(val, logicalType.Decimal.Scale)
			if err != nil {
				logger.Warnf("failed to decode decimal: %s", err)
				return nil
			}
			rendered, _ := dec.Float64()
			return rendered
		}
	}

	switch val.Kind() {
	case pq.Boolean:
		return val.Boolean()
	case pq.Int32:
		return int64(val.Int32())
	case pq.Int64:
		return val.Int64()
	case pq.Float:
		return float64(val.Float())
	case pq.Double:
		return val.Double()
	case pq.ByteArray, pq.FixedLenByteArray:
		byteData := val.ByteArray()
		if utf8.Valid(byteData) {
			return string(byteData)
		}
		return base64.StdEncoding.EncodeToString(byteData)
	case pq.Int96:
		return val.String()
	default:
		// groups and lists serialize through the string representation
		return val.String()
	}
}

// decodeDecimal rebuilds the unscaled integer (two's complement for byte
// arrays) and applies the declared scale.
func decodeDecimal(val pq.Value, scale int32) (decimal.Decimal, error) {
	var unscaled *big.Int

	switch val.Kind() {
	case pq.Int32:
		unscaled = big.NewInt(int64(val.Int32()))
	case pq.Int64:
		unscaled = big.NewInt(val.Int64())
	case pq.FixedLenByteArray, pq.ByteArray:
		raw := val.ByteArray()
		if len(raw) == 0 {
			return decimal.Zero, nil
		}

		unscaled = new(big.Int).SetBytes(raw)
		if raw[0]&0x80 != 0 {
			bitLen := uint(len(raw) * 8)
			max := new(big.Int).Lsh(big.NewInt(1), bitLen)
			unscaled.Sub(unscaled, max)
		}
	default:
		return decimal.Zero, fmt.Errorf("unsupported decimal kind: %v", val.Kind())
	}

	return decimal.NewFromBigInt(unscaled, -scale), nil
}

// prepareReader validates the reader and determines the file size the
// parquet library needs.
func prepareReader(reader io.Reader) (io.ReaderAt, int64, error) {
	readerAt, ok := reader.(io.ReaderAt)
	if !ok {
		return nil, 0, fmt.Errorf("parquet parser requires io.ReaderAt, got %T", reader)
	}

	seeker, ok := reader.(io.Seeker)
	if !ok {
		return nil, 0, fmt.Errorf("parquet parser requires io.Seeker to determine file size")
	}

	size, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to determine file size: %s", err)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to seek to start: %s", err)
	}

	return readerAt, size, nil
}

// RangeReader adapts a bare io.ReaderAt of known size (an object-store range
// reader, typically) to the ReaderAt+Seeker pair the parquet parser needs.
type RangeReader struct {
	readerAt io.ReaderAt
	size     int64
	offset   int64
}

func NewRangeReader(readerAt io.ReaderAt, size int64) *RangeReader {
	return &RangeReader{
		readerAt: readerAt,
		size:     size,
	}
}

func (r *RangeReader) ReadAt(p []byte, off int64) (int, error) {
	return r.readerAt.ReadAt(p, off)
}

func (r *RangeReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.offset = offset
	case io.SeekCurrent:
		r.offset += offset
	case io.SeekEnd:
		r.offset = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if r.offset < 0 {
		r.offset = 0
	}
	if r.offset > r.size {
		r.offset = r.size
	}
	return r.offset, nil
}

func (r *RangeReader) Read(p []byte) (int, error) {
	n, err := r.readerAt.ReadAt(p, r.offset)
	r.offset += int64(n)
	return n, err
}
