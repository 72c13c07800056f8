package types

import (
	"context"
	"fmt"
)

// InsertRequest carries everything the producer side contributes to one
// insert: the shape of incoming rows, the requested partition spec, and the
// option overlays that participate in config resolution.
//
// PartitionSpec values distinguish static from dynamic partitioning: a non-nil
// value pins the partition column to that literal for every row, a nil value
// leaves it dynamic (carried per row by a trailing producer column).
type InsertRequest struct {
	ProducerSchema []Column           `json:"producer_schema" validate:"min=1,dive"`
	PartitionSpec  map[string]*string `json:"partition_spec,omitempty"`
	Overwrite      bool               `json:"overwrite"`
	SessionOptions map[string]string  `json:"session_options,omitempty"`
	ExtraOptions   map[string]string  `json:"extra_options,omitempty"`
}

// StaticPartitionCount counts partition spec entries that carry a literal.
func (r *InsertRequest) StaticPartitionCount() int {
	count := 0
	for _, value := range r.PartitionSpec {
		if value != nil {
			count++
		}
	}
	return count
}

func (r *InsertRequest) Validate() error {
	if len(r.ProducerSchema) == 0 {
		return fmt.Errorf("empty producer schema")
	}

	seen := map[string]bool{}
	for _, col := range r.ProducerSchema {
		if col.Name == "" {
			return fmt.Errorf("producer schema contains an unnamed column")
		}
		if seen[col.Name] {
			return fmt.Errorf("producer schema contains duplicate column %s", col.Name)
		}
		seen[col.Name] = true
	}

	return nil
}

// RowProducer supplies the rows behind an insert request. Stream invokes the
// callback once per record and stops on the first callback error.
type RowProducer interface {
	Schema() []Column
	Stream(ctx context.Context, callback func(ctx context.Context, record Record) error) error
}
