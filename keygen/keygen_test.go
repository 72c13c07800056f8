package keygen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
)

func TestFromOptions(t *testing.T) {
	tests := []struct {
		name        string
		options     map[string]string
		expectError bool
	}{
		// Complex generator needs record key fields to address rows.
		{
			name: "complex without record keys",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorComplex),
			},
			expectError: true,
		},
		// A class outside complex/uuid is a configuration error, not a fallback.
		{
			name: "unknown class",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: "simple",
			},
			expectError: true,
		},
		{
			name: "complex with record keys",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorComplex),
				constants.OptionRecordKeyFields:   "id, region",
			},
			expectError: false,
		},
		// UUID generator works without any key fields.
		{
			name: "uuid",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorUUID),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := FromOptions(tt.options)
			if tt.expectError {
				require.Error(t, err, "expected an error but got none")
				var cfgErr *types.ConfigurationError
				assert.ErrorAs(t, err, &cfgErr, "keygen failures should be configuration errors")
				return
			}
			require.NoError(t, err, "unexpected error building generator")
			require.NotNil(t, generator)
		})
	}
}

func TestComplexRecordKey(t *testing.T) {
	tests := []struct {
		name        string
		options     map[string]string
		record      types.Record
		expectedKey string
		expectError bool
	}{
		// A single key field contributes its bare value.
		{
			name: "single key",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorComplex),
				constants.OptionRecordKeyFields:   "id",
			},
			record:      types.Record{"id": int64(42), "name": "x"},
			expectedKey: "42",
		},
		// Composite keys carry field:value pairs in configured field order.
		{
			name: "composite key",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorComplex),
				constants.OptionRecordKeyFields:   "region,id",
			},
			record:      types.Record{"id": int64(7), "region": "eu"},
			expectedKey: "region:eu,id:7",
		},
		// Null key values cannot address a row.
		{
			name: "null key value",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorComplex),
				constants.OptionRecordKeyFields:   "id",
			},
			record:      types.Record{"id": nil},
			expectError: true,
		},
		// Missing key column is as fatal as a null one.
		{
			name: "missing key column",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorComplex),
				constants.OptionRecordKeyFields:   "id",
			},
			record:      types.Record{"name": "x"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := FromOptions(tt.options)
			require.NoError(t, err, "unexpected error building generator")

			key, err := generator.RecordKey(tt.record)
			if tt.expectError {
				require.Error(t, err, "expected an error but got none")
				return
			}
			require.NoError(t, err, "unexpected error deriving record key")
			assert.Equal(t, tt.expectedKey, key, "record key mismatch")
		})
	}
}

func TestUUIDRecordKey(t *testing.T) {
	generator, err := FromOptions(map[string]string{
		constants.OptionKeyGeneratorClass: string(types.KeyGeneratorUUID),
	})
	require.NoError(t, err)

	record := types.Record{"name": "x"}
	first, err := generator.RecordKey(record)
	require.NoError(t, err)
	second, err := generator.RecordKey(record)
	require.NoError(t, err)

	// every call mints a fresh key
	assert.NotEqual(t, first, second, "uuid keys should never repeat")
	_, err = uuid.Parse(first)
	assert.NoError(t, err, "key should be a valid uuid")
}

func TestPartitionPath(t *testing.T) {
	tests := []struct {
		name         string
		options      map[string]string
		record       types.Record
		expectedPath string
		expectError  bool
	}{
		// Hive style is the default pathing convention.
		{
			name: "hive style default",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorUUID),
				constants.OptionPartitionFields:   "dt,region",
			},
			record:       types.Record{"dt": "2024-01-01", "region": "eu"},
			expectedPath: "dt=2024-01-01/region=eu",
		},
		// Disabling hive style leaves bare values joined by '/'.
		{
			name: "bare values",
			options: map[string]string{
				constants.OptionKeyGeneratorClass:  string(types.KeyGeneratorUUID),
				constants.OptionPartitionFields:    "dt,region",
				constants.OptionHiveStylePartition: "false",
			},
			record:       types.Record{"dt": "2024-01-01", "region": "eu"},
			expectedPath: "2024-01-01/eu",
		},
		// URL encoding protects separators inside partition values.
		{
			name: "url encoded value",
			options: map[string]string{
				constants.OptionKeyGeneratorClass:  string(types.KeyGeneratorUUID),
				constants.OptionPartitionFields:    "city",
				constants.OptionURLEncodePartition: "true",
			},
			record:       types.Record{"city": "new york/ny"},
			expectedPath: "city=new+york%2Fny",
		},
		// Null partition values take the hive default bucket.
		{
			name: "null partition value",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorUUID),
				constants.OptionPartitionFields:   "region",
			},
			record:       types.Record{"region": nil},
			expectedPath: "region=__HIVE_DEFAULT_PARTITION__",
		},
		// Unpartitioned tables resolve to an empty relative path.
		{
			name: "no partition fields",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorUUID),
			},
			record:       types.Record{"id": int64(1)},
			expectedPath: "",
		},
		// A record that lost its partition column is unplaceable.
		{
			name: "missing partition column",
			options: map[string]string{
				constants.OptionKeyGeneratorClass: string(types.KeyGeneratorUUID),
				constants.OptionPartitionFields:   "region",
			},
			record:      types.Record{"id": int64(1)},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := FromOptions(tt.options)
			require.NoError(t, err, "unexpected error building generator")

			path, err := generator.PartitionPath(tt.record)
			if tt.expectError {
				require.Error(t, err, "expected an error but got none")
				return
			}
			require.NoError(t, err, "unexpected error deriving partition path")
			assert.Equal(t, tt.expectedPath, path, "partition path mismatch")
		})
	}
}
