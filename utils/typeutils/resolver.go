package typeutils

import (
	"fmt"
	"sort"

	"github.com/datazip-inc/lakeplan/types"
)

// Resolver accumulates an ordered column schema across sampled records.
// Within a record keys fold in sorted order, so the resulting column order is
// deterministic for a given producer regardless of map iteration.
type Resolver struct {
	order   []string
	fields  map[string]*resolvedField
	records int
}

type resolvedField struct {
	dataType types.DataType
	nullable bool
	seen     int
}

func NewResolver() *Resolver {
	return &Resolver{
		fields: make(map[string]*resolvedField),
	}
}

// Resolve folds one record into the schema, widening column types through the
// common ancestor tree on conflict.
func (r *Resolver) Resolve(record types.Record) error {
	r.records++

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return fmt.Errorf("failed to resolve schema: record contains an empty column name")
		}

		value := record[key]
		detected := TypeFromValue(value)
		field, found := r.fields[key]
		if !found {
			r.order = append(r.order, key)
			r.fields[key] = &resolvedField{
				dataType: detected,
				nullable: detected == types.Null,
				seen:     1,
			}
			continue
		}

		field.seen++
		if detected == types.Null {
			field.nullable = true
			continue
		}
		if field.dataType == types.Null {
			field.dataType = detected
			continue
		}
		if field.dataType != detected {
			field.dataType = types.GetCommonAncestorType(field.dataType, detected)
		}
	}
	return nil
}

// Columns returns the resolved schema. A column missing from any sampled
// record is nullable; a column never carrying a value resolves to string.
func (r *Resolver) Columns() []types.Column {
	columns := make([]types.Column, 0, len(r.order))
	for _, name := range r.order {
		field := r.fields[name]
		dataType := field.dataType
		if dataType == types.Null {
			dataType = types.String
		}
		columns = append(columns, types.Column{
			Name:     name,
			Type:     dataType,
			Nullable: field.nullable || field.seen < r.records,
		})
	}
	return columns
}
