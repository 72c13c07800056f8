package types

import (
	"fmt"

	"github.com/datazip-inc/lakeplan/utils"
)

type TableType string

const (
	CopyOnWrite TableType = "copy_on_write"
	MergeOnRead TableType = "merge_on_read"
)

// Column is one named, typed field of a table or producer schema.
type Column struct {
	Name     string   `json:"name" validate:"required"`
	Type     DataType `json:"type"`
	Nullable bool     `json:"nullable"`
}

// TableConfig is the subset of table properties persisted with the data,
// under <base_path>/.lakeplan/config.json. Pointer fields distinguish unset
// from an explicit false/empty so partial configs do not clobber defaults.
type TableConfig struct {
	HiveStylePartitioning *bool   `json:"hive_style_partitioning,omitempty"`
	URLEncodePartitioning *bool   `json:"urlencode_partitioning,omitempty"`
	KeyGeneratorClass     *string `json:"keygen_class,omitempty"`
}

// TableDescriptor is the planner's view of the target table. DataSchema and
// PartitionSchema are disjoint ordered column lists; the physical layout is
// data columns followed by partition columns.
type TableDescriptor struct {
	Database        string       `json:"database"`
	Name            string       `json:"name" validate:"required"`
	BasePath        string       `json:"base_path" validate:"required"`
	DataSchema      []Column     `json:"data_schema" validate:"min=1,dive"`
	PartitionSchema []Column     `json:"partition_schema,omitempty" validate:"omitempty,dive"`
	PrimaryKeys     []string     `json:"primary_keys,omitempty"`
	TableType       TableType    `json:"table_type,omitempty"`
	Config          *TableConfig `json:"config,omitempty"`
}

// ID returns the fully qualified table name used in logs and catalog calls.
func (t *TableDescriptor) ID() string {
	if t.Database == "" {
		return t.Name
	}
	return fmt.Sprintf("%s.%s", t.Database, t.Name)
}

func (t *TableDescriptor) Keyed() bool {
	return len(t.PrimaryKeys) > 0
}

func (t *TableDescriptor) Partitioned() bool {
	return len(t.PartitionSchema) > 0
}

// PartitionFields returns the partition column names in declaration order.
func (t *TableDescriptor) PartitionFields() []string {
	fields := make([]string, 0, len(t.PartitionSchema))
	for _, col := range t.PartitionSchema {
		fields = append(fields, col.Name)
	}
	return fields
}

// DataFields returns the data column names in declaration order.
func (t *TableDescriptor) DataFields() []string {
	fields := make([]string, 0, len(t.DataSchema))
	for _, col := range t.DataSchema {
		fields = append(fields, col.Name)
	}
	return fields
}

func (t *TableDescriptor) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("empty table name")
	}

	if t.BasePath == "" {
		return fmt.Errorf("empty base path for table %s", t.Name)
	}

	if len(t.DataSchema) == 0 {
		return fmt.Errorf("table %s has no data columns", t.Name)
	}

	// default table type
	if t.TableType == "" {
		t.TableType = CopyOnWrite
	}
	if t.TableType != CopyOnWrite && t.TableType != MergeOnRead {
		return fmt.Errorf("unsupported table type: %s", t.TableType)
	}

	for _, key := range t.PrimaryKeys {
		if !utils.ExistInArray(t.DataFields(), key) {
			return fmt.Errorf("primary key %s not found in data schema of table %s", key, t.Name)
		}
	}

	for _, part := range t.PartitionSchema {
		if utils.ExistInArray(t.DataFields(), part.Name) {
			return fmt.Errorf("partition column %s duplicates a data column in table %s", part.Name, t.Name)
		}
	}

	return nil
}
