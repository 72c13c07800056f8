package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/lakeplan/types"
)

func TestResolveOperation(t *testing.T) {
	tests := []struct {
		name        string
		sig         signals
		expected    types.Operation
		expectError bool
	}{
		// Keyed tables reject the bulk path under strict mode outright.
		{
			name:        "strict bulk on keyed table fails",
			sig:         signals{keyed: true, bulkInsert: true, mode: types.InsertModeStrict},
			expectError: true,
		},
		// Partition overwrites cannot ride the bulk path.
		{
			name:        "bulk partition overwrite fails",
			sig:         signals{partitioned: true, bulkInsert: true, overwrite: true, mode: types.InsertModeNonStrict},
			expectError: true,
		},
		// Bulk insert never deduplicates, regardless of any other flag.
		{
			name:        "bulk with drop duplicates fails",
			sig:         signals{bulkInsert: true, dropDuplicates: true, mode: types.InsertModeNonStrict},
			expectError: true,
		},
		{
			name:        "bulk with drop duplicates fails even when keyed non-strict",
			sig:         signals{keyed: true, bulkInsert: true, dropDuplicates: true, overwrite: true, mode: types.InsertModeNonStrict},
			expectError: true,
		},
		// Overwriting an unpartitioned table through bulk stays bulk.
		{
			name:     "bulk overwrite of unpartitioned table",
			sig:      signals{bulkInsert: true, overwrite: true, mode: types.InsertModeNonStrict},
			expected: types.OperationBulkInsert,
		},
		{
			name:     "overwrite partitioned table",
			sig:      signals{partitioned: true, overwrite: true, mode: types.InsertModeStrict},
			expected: types.OperationOverwritePartition,
		},
		{
			name:     "overwrite unpartitioned table",
			sig:      signals{overwrite: true, mode: types.InsertModeStrict},
			expected: types.OperationOverwriteTable,
		},
		// The canonical keyed path: strict, no special flags.
		{
			name:     "keyed strict insert upserts",
			sig:      signals{keyed: true, mode: types.InsertModeStrict},
			expected: types.OperationUpsert,
		},
		{
			name:     "bulk insert on keyless table",
			sig:      signals{bulkInsert: true, mode: types.InsertModeStrict},
			expected: types.OperationBulkInsert,
		},
		// Non-strict mode opens the bulk path for keyed tables.
		{
			name:     "non-strict bulk on keyed table",
			sig:      signals{keyed: true, bulkInsert: true, mode: types.InsertModeNonStrict},
			expected: types.OperationBulkInsert,
		},
		// Keyless tables without bulk always take the plain insert path.
		{
			name:     "keyless insert",
			sig:      signals{mode: types.InsertModeStrict},
			expected: types.OperationInsert,
		},
		{
			name:     "keyed non-strict falls through to insert",
			sig:      signals{keyed: true, mode: types.InsertModeNonStrict},
			expected: types.OperationInsert,
		},
		// Drop-duplicates alone keeps a keyed table off the upsert path.
		{
			name:     "keyed strict with drop duplicates inserts",
			sig:      signals{keyed: true, dropDuplicates: true, mode: types.InsertModeStrict},
			expected: types.OperationInsert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			operation, err := resolveOperation(tt.sig)
			if tt.expectError {
				require.Error(t, err, "expected an error but got none")
				var cfgErr *types.ConfigurationError
				assert.ErrorAs(t, err, &cfgErr, "flag conflicts must be configuration errors")
				return
			}
			require.NoError(t, err, "unexpected error resolving operation")
			assert.Equal(t, tt.expected, operation, "operation mismatch")
		})
	}
}

func TestConflictMessagesNameOptions(t *testing.T) {
	// error messages must name the conflicting options so the failing
	// request can be fixed without reading planner internals
	_, err := resolveOperation(signals{keyed: true, bulkInsert: true, mode: types.InsertModeStrict})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql.bulk_insert.enable")
	assert.Contains(t, err.Error(), "sql.insert.mode")

	_, err = resolveOperation(signals{bulkInsert: true, dropDuplicates: true, mode: types.InsertModeNonStrict})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql.bulk_insert.enable")
	assert.Contains(t, err.Error(), "sql.insert.drop_duplicates")
}

func TestResolvePayloadStrategy(t *testing.T) {
	tests := []struct {
		name      string
		operation types.Operation
		tableType types.TableType
		mode      types.InsertMode
		expected  types.PayloadStrategy
	}{
		// The guard is installed only where a collision would silently
		// rewrite base files.
		{
			name:      "strict upsert on copy-on-write",
			operation: types.OperationUpsert,
			tableType: types.CopyOnWrite,
			mode:      types.InsertModeStrict,
			expected:  types.PayloadStrictReject,
		},
		// Merge-on-read resolves duplicates at read time.
		{
			name:      "strict upsert on merge-on-read",
			operation: types.OperationUpsert,
			tableType: types.MergeOnRead,
			mode:      types.InsertModeStrict,
			expected:  types.PayloadDefaultMerge,
		},
		{
			name:      "non-strict upsert",
			operation: types.OperationUpsert,
			tableType: types.CopyOnWrite,
			mode:      types.InsertModeNonStrict,
			expected:  types.PayloadDefaultMerge,
		},
		{
			name:      "insert never installs the guard",
			operation: types.OperationInsert,
			tableType: types.CopyOnWrite,
			mode:      types.InsertModeStrict,
			expected:  types.PayloadDefaultMerge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := resolvePayloadStrategy(tt.operation, tt.tableType, tt.mode)
			assert.Equal(t, tt.expected, strategy, "payload strategy mismatch")
		})
	}
}

func TestResolveWriteMode(t *testing.T) {
	// table-level overwrite truncates, everything else appends
	assert.Equal(t, types.WriteModeOverwrite, resolveWriteMode(true, false))
	assert.Equal(t, types.WriteModeAppend, resolveWriteMode(true, true), "partition overwrite must not truncate the table")
	assert.Equal(t, types.WriteModeAppend, resolveWriteMode(false, false))
	assert.Equal(t, types.WriteModeAppend, resolveWriteMode(false, true))
}
