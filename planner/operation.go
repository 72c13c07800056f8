package planner

import (
	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/logger"
)

// signals are the request facts the operation decision is made from.
type signals struct {
	keyed          bool
	partitioned    bool
	bulkInsert     bool
	overwrite      bool
	dropDuplicates bool
	mode           types.InsertMode
}

// operationRule is one row of the decision table. Rules are evaluated in
// slice order and the first match wins; error rules reject contradictory
// flag combinations before any operation can resolve.
type operationRule struct {
	name    string
	matches func(sig signals) bool
	resolve func(sig signals) (types.Operation, error)
}

var operationRules = []operationRule{
	{
		name: "strict bulk insert on keyed table",
		matches: func(sig signals) bool {
			return sig.keyed && sig.bulkInsert && sig.mode == types.InsertModeStrict
		},
		resolve: func(_ signals) (types.Operation, error) {
			return "", types.NewConfigurationError(
				"bulk insert incompatible with strict mode on a keyed table (%s conflicts with %s=%s)",
				constants.SessionBulkInsertEnable, constants.SessionInsertMode, types.InsertModeStrict)
		},
	},
	{
		name: "bulk insert into partition overwrite",
		matches: func(sig signals) bool {
			return sig.bulkInsert && sig.overwrite && sig.partitioned
		},
		resolve: func(_ signals) (types.Operation, error) {
			return "", types.NewConfigurationError(
				"overwrite-partition cannot use bulk insert (%s conflicts with overwrite on a partitioned table)",
				constants.SessionBulkInsertEnable)
		},
	},
	{
		name: "bulk insert with drop duplicates",
		matches: func(sig signals) bool {
			return sig.bulkInsert && sig.dropDuplicates
		},
		resolve: func(_ signals) (types.Operation, error) {
			return "", types.NewConfigurationError(
				"bulk insert cannot drop duplicates (%s conflicts with %s)",
				constants.SessionBulkInsertEnable, constants.SessionDropDuplicates)
		},
	},
	{
		name: "bulk overwrite of unpartitioned table",
		matches: func(sig signals) bool {
			return sig.bulkInsert && sig.overwrite && !sig.partitioned
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationBulkInsert, nil
		},
	},
	{
		name: "overwrite partitions",
		matches: func(sig signals) bool {
			return sig.overwrite && sig.partitioned
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationOverwritePartition, nil
		},
	},
	{
		name: "overwrite table",
		matches: func(sig signals) bool {
			return sig.overwrite && !sig.partitioned
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationOverwriteTable, nil
		},
	},
	{
		name: "strict keyed insert",
		matches: func(sig signals) bool {
			return sig.keyed && !sig.bulkInsert && !sig.dropDuplicates && sig.mode == types.InsertModeStrict
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationUpsert, nil
		},
	},
	{
		name: "bulk insert",
		matches: func(sig signals) bool {
			return !sig.keyed && sig.bulkInsert
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationBulkInsert, nil
		},
	},
	{
		name: "non-strict bulk insert on keyed table",
		matches: func(sig signals) bool {
			return sig.keyed && sig.bulkInsert && sig.mode != types.InsertModeStrict
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationBulkInsert, nil
		},
	},
	{
		name: "plain insert",
		matches: func(_ signals) bool {
			return true
		},
		resolve: func(_ signals) (types.Operation, error) {
			return types.OperationInsert, nil
		},
	},
}

// resolveOperation scans the decision table and returns the first match.
// The final rule matches unconditionally so the scan always resolves.
func resolveOperation(sig signals) (types.Operation, error) {
	for _, rule := range operationRules {
		if !rule.matches(sig) {
			continue
		}
		operation, err := rule.resolve(sig)
		if err != nil {
			return "", err
		}
		logger.Debugf("operation %s resolved by rule %q", operation, rule.name)
		return operation, nil
	}
	// unreachable, the default rule always matches
	return types.OperationInsert, nil
}

// resolvePayloadStrategy installs the strict duplicate guard only where a
// collision would otherwise be silently rewritten into the base files:
// strict-mode upserts on copy-on-write tables. Merge-on-read resolves
// duplicates at read time through the default merge payload.
func resolvePayloadStrategy(operation types.Operation, tableType types.TableType, mode types.InsertMode) types.PayloadStrategy {
	if operation == types.OperationUpsert && tableType == types.CopyOnWrite && mode == types.InsertModeStrict {
		return types.PayloadStrictReject
	}
	return types.PayloadDefaultMerge
}

// resolveWriteMode maps the request onto the writer's save mode. Table-level
// overwrites truncate; partition overwrites append and replace only the
// partitions the incoming rows touch.
func resolveWriteMode(overwrite, partitioned bool) types.WriteMode {
	if overwrite && !partitioned {
		return types.WriteModeOverwrite
	}
	return types.WriteModeAppend
}
