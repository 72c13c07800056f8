package planner

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
)

// sessionSettings are the parsed planner signals carried by session options.
type sessionSettings struct {
	mode           types.InsertMode
	bulkInsert     bool
	dropDuplicates bool
}

func parseSessionOptions(options map[string]string) (*sessionSettings, error) {
	settings := &sessionSettings{mode: types.InsertModeStrict}

	if raw, found := options[constants.SessionInsertMode]; found {
		switch types.InsertMode(strings.ToLower(strings.TrimSpace(raw))) {
		case types.InsertModeStrict:
			settings.mode = types.InsertModeStrict
		case types.InsertModeNonStrict:
			settings.mode = types.InsertModeNonStrict
		default:
			return nil, types.NewConfigurationError("%s must be %s or %s, got %q",
				constants.SessionInsertMode, types.InsertModeStrict, types.InsertModeNonStrict, raw)
		}
	}

	var err error
	if settings.bulkInsert, err = sessionBool(options, constants.SessionBulkInsertEnable); err != nil {
		return nil, err
	}
	if settings.dropDuplicates, err = sessionBool(options, constants.SessionDropDuplicates); err != nil {
		return nil, err
	}
	return settings, nil
}

func sessionBool(options map[string]string, key string) (bool, error) {
	raw, found := options[key]
	if !found {
		return false, nil
	}
	value, err := cast.ToBoolE(strings.TrimSpace(raw))
	if err != nil {
		return false, types.NewConfigurationError("%s must be a boolean, got %q", key, raw)
	}
	return value, nil
}

// buildOptions assembles the resolved option map the writer consumes.
// Overlay precedence, later wins: hard defaults < stored table config <
// session options < per-request extra options. The resolved keys (operation,
// payload, key generator, schema fields, instant) are stamped last because
// they are outputs of planning, not inputs.
func buildOptions(table *types.TableDescriptor, request *types.InsertRequest, stored *types.TableConfig,
	operation types.Operation, strategy types.PayloadStrategy, instant string) (map[string]string, error) {
	options := map[string]string{
		constants.OptionInsertParallelism:  strconv.Itoa(constants.DefaultWriteParallelism),
		constants.OptionUpsertParallelism:  strconv.Itoa(constants.DefaultWriteParallelism),
		constants.OptionMetaSyncExtractor:  constants.DefaultPartitionExtractor,
		constants.OptionMetaSyncViaJDBC:    "false",
		constants.OptionHiveStylePartition: "true",
		constants.OptionURLEncodePartition: "false",
	}

	// stored table config overrides defaults where set
	if stored != nil {
		if stored.HiveStylePartitioning != nil {
			options[constants.OptionHiveStylePartition] = strconv.FormatBool(*stored.HiveStylePartitioning)
		}
		if stored.URLEncodePartitioning != nil {
			options[constants.OptionURLEncodePartition] = strconv.FormatBool(*stored.URLEncodePartitioning)
		}
		if stored.KeyGeneratorClass != nil {
			options[constants.OptionKeyGeneratorClass] = *stored.KeyGeneratorClass
		}
	}

	for key, value := range request.SessionOptions {
		options[key] = value
	}
	for key, value := range request.ExtraOptions {
		options[key] = value
	}

	options[constants.OptionBasePath] = table.BasePath
	options[constants.OptionDatabaseName] = table.Database
	options[constants.OptionTableName] = table.Name
	options[constants.OptionTableType] = string(table.TableType)
	options[constants.OptionOperation] = string(operation)
	options[constants.OptionPayloadClass] = string(strategy)
	options[constants.OptionRecordKeyFields] = strings.Join(table.PrimaryKeys, constants.DefaultPartitionFieldDelim)
	options[constants.OptionPartitionFields] = strings.Join(table.PartitionFields(), constants.DefaultPartitionFieldDelim)
	options[constants.OptionInstant] = instant

	// partition schema travels with the plan for downstream key extraction
	partitionSchema, err := json.Marshal(table.PartitionSchema)
	if err != nil {
		return nil, types.NewConfigurationError("failed to serialize partition schema: %s", err)
	}
	options[constants.OptionPartitionSchema] = string(partitionSchema)

	if _, found := options[constants.OptionKeyGeneratorClass]; !found {
		options[constants.OptionKeyGeneratorClass] = string(utils.Ternary(table.Keyed(),
			types.KeyGeneratorComplex, types.KeyGeneratorUUID).(types.KeyGenerator))
	}

	precombine, err := resolvePrecombineField(table, options)
	if err != nil {
		return nil, err
	}
	options[constants.OptionPrecombineField] = precombine

	return options, nil
}

// resolvePrecombineField picks the merge-ordering column: an explicit
// write.precombine.field overlay wins, then the session override, then the
// last declared data column. Overrides must name a data column.
func resolvePrecombineField(table *types.TableDescriptor, options map[string]string) (string, error) {
	override := options[constants.OptionPrecombineField]
	if override == "" {
		override = options[constants.SessionPrecombineField]
	}
	if override != "" {
		if !utils.ExistInArray(table.DataFields(), override) {
			return "", types.NewConfigurationError("precombine field %s (%s) not found in data schema of table %s",
				override, constants.SessionPrecombineField, table.Name)
		}
		return override, nil
	}
	return table.DataSchema[len(table.DataSchema)-1].Name, nil
}
