package types

import (
	"fmt"

	"github.com/mitchellh/hashstructure"

	"github.com/datazip-inc/lakeplan/constants"
)

// Operation is the write operation a plan instructs the writer to perform.
type Operation string

const (
	OperationInsert             Operation = "insert"
	OperationUpsert             Operation = "upsert"
	OperationBulkInsert         Operation = "bulk_insert"
	OperationOverwritePartition Operation = "overwrite_partition"
	OperationOverwriteTable     Operation = "overwrite_table"
)

// PayloadStrategy names the merge hook applied when an incoming record
// collides with a stored record on its key.
type PayloadStrategy string

const (
	PayloadDefaultMerge PayloadStrategy = "default_merge"
	PayloadStrictReject PayloadStrategy = "strict_duplicate_reject"
)

type WriteMode string

const (
	WriteModeAppend    WriteMode = "append"
	WriteModeOverwrite WriteMode = "overwrite"
)

// InsertMode is the session-level duplicate handling switch for keyed tables.
type InsertMode string

const (
	InsertModeStrict    InsertMode = "strict"
	InsertModeNonStrict InsertMode = "non-strict"
)

// KeyGenerator identifies how record keys and partition paths are derived.
type KeyGenerator string

const (
	KeyGeneratorComplex KeyGenerator = "complex"
	KeyGeneratorUUID    KeyGenerator = "uuid"
)

// FieldProjection maps one target column to its source. Exactly one of
// SourceField and Literal is set: SourceField reads the named producer
// column, Literal pins a static partition value. Cast marks that the source
// value must be coerced to TargetType before writing.
type FieldProjection struct {
	SourceField    string   `json:"source_field,omitempty"`
	Literal        *string  `json:"literal,omitempty"`
	TargetName     string   `json:"target_name"`
	TargetType     DataType `json:"target_type"`
	TargetNullable bool     `json:"target_nullable"`
	Cast           bool     `json:"cast,omitempty"`
}

// WritePlan is the planner's full answer for one insert request: the chosen
// operation, the payload strategy, the resolved writer options, and the
// column projection that reshapes producer rows into the table layout.
// Projection order is data columns first, then partition columns, both in
// table declaration order.
type WritePlan struct {
	Operation       Operation         `json:"operation"`
	PayloadStrategy PayloadStrategy   `json:"payload_strategy"`
	WriteMode       WriteMode         `json:"write_mode"`
	Options         map[string]string `json:"options"`
	Projection      []FieldProjection `json:"projection"`
	Instant         string            `json:"instant"`
}

// Fingerprint returns a stable hash of the plan, excluding the instant so two
// plans for identical requests compare equal across retries.
func (p *WritePlan) Fingerprint() (string, error) {
	shadow := *p
	shadow.Instant = ""
	if shadow.Options != nil {
		options := make(map[string]string, len(shadow.Options))
		for k, v := range shadow.Options {
			options[k] = v
		}
		delete(options, constants.OptionInstant)
		shadow.Options = options
	}

	hash, err := hashstructure.Hash(shadow, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash write plan: %s", err)
	}
	return fmt.Sprintf("%016x", hash), nil
}
