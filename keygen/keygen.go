// Package keygen derives record keys and partition paths from resolved
// writer options, mirroring how the write path addresses rows inside a
// keyed lake table.
package keygen

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
)

// Generator turns a projected record into its storage address: a record key
// for keyed lookups and a relative partition path under the table base path.
type Generator interface {
	RecordKey(record types.Record) (string, error)
	PartitionPath(record types.Record) (string, error)
}

// FromOptions builds the generator named by write.keygen.class out of a
// resolved option map.
func FromOptions(options map[string]string) (Generator, error) {
	pathing := partitionPathing{
		fields:    utils.SplitAndTrim(options[constants.OptionPartitionFields]),
		hiveStyle: options[constants.OptionHiveStylePartition] != "false",
		urlEncode: options[constants.OptionURLEncodePartition] == "true",
	}

	class := types.KeyGenerator(options[constants.OptionKeyGeneratorClass])
	switch class {
	case types.KeyGeneratorComplex:
		recordKeys := utils.SplitAndTrim(options[constants.OptionRecordKeyFields])
		if len(recordKeys) == 0 {
			return nil, types.NewConfigurationError("keygen class %s requires %s to be set", class, constants.OptionRecordKeyFields)
		}
		return &complexGenerator{recordKeys: recordKeys, pathing: pathing}, nil
	case types.KeyGeneratorUUID:
		return &uuidGenerator{pathing: pathing}, nil
	default:
		return nil, types.NewConfigurationError("unknown keygen class: %s", class)
	}
}

// complexGenerator joins the configured record key fields. A single key field
// contributes its bare value, multiple fields contribute field:value pairs so
// keys stay unambiguous across column reordering.
type complexGenerator struct {
	recordKeys []string
	pathing    partitionPathing
}

func (c *complexGenerator) RecordKey(record types.Record) (string, error) {
	if len(c.recordKeys) == 1 {
		value, found := record[c.recordKeys[0]]
		if !found || value == nil {
			return "", fmt.Errorf("record key field %s is null or missing", c.recordKeys[0])
		}
		return utils.ConvertToString(value), nil
	}

	parts := make([]string, 0, len(c.recordKeys))
	for _, field := range c.recordKeys {
		value, found := record[field]
		if !found || value == nil {
			return "", fmt.Errorf("record key field %s is null or missing", field)
		}
		parts = append(parts, fmt.Sprintf("%s:%s", field, utils.ConvertToString(value)))
	}
	return strings.Join(parts, ","), nil
}

func (c *complexGenerator) PartitionPath(record types.Record) (string, error) {
	return c.pathing.path(record)
}

// uuidGenerator assigns every record a fresh random key; used on tables
// without primary keys where rows are never addressed individually.
type uuidGenerator struct {
	pathing partitionPathing
}

func (u *uuidGenerator) RecordKey(_ types.Record) (string, error) {
	return uuid.New().String(), nil
}

func (u *uuidGenerator) PartitionPath(record types.Record) (string, error) {
	return u.pathing.path(record)
}

// partitionPathing renders the relative partition directory for a record.
// Hive style yields field=value segments, otherwise bare values; either way
// segments join with '/' in partition field order.
type partitionPathing struct {
	fields    []string
	hiveStyle bool
	urlEncode bool
}

func (p partitionPathing) path(record types.Record) (string, error) {
	if len(p.fields) == 0 {
		return "", nil
	}

	segments := make([]string, 0, len(p.fields))
	for _, field := range p.fields {
		value, found := record[field]
		if !found {
			return "", fmt.Errorf("partition field %s missing from record", field)
		}

		// Hive convention for null partition values
		rendered := utils.Ternary(value == nil, "__HIVE_DEFAULT_PARTITION__", utils.ConvertToString(value)).(string)
		if p.urlEncode {
			rendered = url.QueryEscape(rendered)
		}
		segments = append(segments, utils.Ternary(p.hiveStyle, fmt.Sprintf("%s=%s", field, rendered), rendered).(string))
	}
	return strings.Join(segments, "/"), nil
}
