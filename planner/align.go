package planner

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/typeutils"
)

// Align reshapes the producer schema onto the table layout and returns one
// projection per target column: data columns first, then partition columns,
// both in declared order.
//
// Dynamic partition columns are matched POSITIONALLY against the trailing
// producer columns, never by name. The producer must emit its partition
// columns last and in the table's declared partition order; a query that
// reorders them will be aligned silently wrong. Static partition columns are
// pinned from the request's partition spec instead and consume no producer
// columns.
func Align(table *types.TableDescriptor, request *types.InsertRequest) ([]types.FieldProjection, error) {
	producer := stripMetaColumns(request.ProducerSchema)
	staticCount := request.StaticPartitionCount()

	if staticCount > 0 && staticCount != len(table.PartitionSchema) {
		return nil, &types.SchemaMismatchError{
			Reason: fmt.Sprintf("partial static partitioning: %d of %d partition columns pinned, pin all or none",
				staticCount, len(table.PartitionSchema)),
			Expected: table.PartitionFields(),
			Actual:   staticFields(request),
		}
	}

	expected := len(table.DataSchema) + len(table.PartitionSchema)
	actual := staticCount + len(producer)
	if expected != actual {
		return nil, &types.SchemaMismatchError{
			Reason: fmt.Sprintf("expected %d columns, producer supplies %d plus %d static partition values",
				expected, len(producer), staticCount),
			Expected: append(table.DataFields(), table.PartitionFields()...),
			Actual:   append(columnNames(producer), staticFields(request)...),
		}
	}

	// static mode pins every partition column; collect all missing literals
	// in one failure instead of reporting them one by one
	if staticCount > 0 {
		var missing error
		for _, target := range table.PartitionSchema {
			if value, found := request.PartitionSpec[target.Name]; !found || value == nil {
				missing = multierror.Append(missing, fmt.Errorf("no literal for static partition column %s", target.Name))
			}
		}
		if missing != nil {
			return nil, &types.SchemaMismatchError{
				Reason:   fmt.Sprintf("missing static partition values: %s", missing),
				Expected: table.PartitionFields(),
				Actual:   staticFields(request),
			}
		}
	}

	// trailing producer columns feed the partition schema under dynamic
	// partitioning; under static they are all data columns
	dataColumns := producer
	var partitionColumns []types.Column
	if staticCount == 0 && table.Partitioned() {
		split := len(producer) - len(table.PartitionSchema)
		dataColumns, partitionColumns = producer[:split], producer[split:]
	}

	projection := make([]types.FieldProjection, 0, expected)
	for idx, target := range table.DataSchema {
		projection = append(projection, projectColumn(dataColumns[idx], target))
	}
	for idx, target := range table.PartitionSchema {
		if staticCount > 0 {
			literal := *request.PartitionSpec[target.Name]
			projection = append(projection, types.FieldProjection{
				Literal:        &literal,
				TargetName:     target.Name,
				TargetType:     target.Type,
				TargetNullable: target.Nullable,
				Cast:           target.Type != types.String,
			})
			continue
		}
		projection = append(projection, projectColumn(partitionColumns[idx], target))
	}
	return projection, nil
}

func projectColumn(source, target types.Column) types.FieldProjection {
	return types.FieldProjection{
		SourceField:    source.Name,
		TargetName:     target.Name,
		TargetType:     target.Type,
		TargetNullable: target.Nullable,
		Cast:           source.Type != target.Type,
	}
}

// stripMetaColumns drops bookkeeping columns a round-trip read carries back;
// they are regenerated by the write path and never part of the target schema.
func stripMetaColumns(producer []types.Column) []types.Column {
	stripped := make([]types.Column, 0, len(producer))
	for _, column := range producer {
		if utils.ExistInArray(constants.MetaColumns, column.Name) {
			continue
		}
		stripped = append(stripped, column)
	}
	return stripped
}

func staticFields(request *types.InsertRequest) []string {
	fields := make([]string, 0, len(request.PartitionSpec))
	for name, value := range request.PartitionSpec {
		if value != nil {
			fields = append(fields, name)
		}
	}
	return fields
}

func columnNames(columns []types.Column) []string {
	names := make([]string, 0, len(columns))
	for _, column := range columns {
		names = append(names, column.Name)
	}
	return names
}

// ProjectRecord applies the aligned projection to one producer record:
// renames, pinned literals, and casts where source and target types differ.
func ProjectRecord(projection []types.FieldProjection, record types.Record) (types.Record, error) {
	projected := make(types.Record, len(projection))
	for _, field := range projection {
		var value any
		if field.Literal != nil {
			value = *field.Literal
		} else {
			value = record[field.SourceField]
		}

		if field.Cast {
			cast, err := typeutils.ReformatValue(field.TargetType, value)
			if err != nil {
				return nil, fmt.Errorf("failed to cast column %s to %s: %s", field.TargetName, field.TargetType, err)
			}
			value = cast
		}
		projected[field.TargetName] = value
	}
	return projected, nil
}

// ProjectBatch projects a batch concurrently, preserving record order.
func ProjectBatch(ctx context.Context, projection []types.FieldProjection, records []types.Record, concurrency int) ([]types.Record, error) {
	projected := make([]types.Record, len(records))
	err := utils.Concurrent(ctx, records, concurrency, func(_ context.Context, record types.Record, idx int) error {
		result, err := ProjectRecord(projection, record)
		if err != nil {
			return err
		}
		projected[idx] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return projected, nil
}
