package typeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/lakeplan/types"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name     string
		records  []types.Record
		expected []types.Column
	}{
		{
			name: "basic types in sorted column order",
			records: []types.Record{
				{
					"name":       "jane",
					"id":         int64(42),
					"score":      3.14,
					"active":     true,
					"created_at": time.Date(2024, 3, 19, 15, 30, 0, 0, time.UTC),
				},
			},
			expected: []types.Column{
				{Name: "active", Type: types.Bool},
				{Name: "created_at", Type: types.Timestamp},
				{Name: "id", Type: types.Int64},
				{Name: "name", Type: types.String},
				{Name: "score", Type: types.Float64},
			},
		},
		{
			name: "conflicting integer widths widen to int64",
			records: []types.Record{
				{"value": int32(1)},
				{"value": int64(2)},
			},
			expected: []types.Column{
				{Name: "value", Type: types.Int64},
			},
		},
		{
			name: "integer and float widen to float64",
			records: []types.Record{
				{"value": int64(1)},
				{"value": 2.5},
			},
			expected: []types.Column{
				{Name: "value", Type: types.Float64},
			},
		},
		{
			name: "integer and string widen to string",
			records: []types.Record{
				{"value": int64(1)},
				{"value": "two"},
			},
			expected: []types.Column{
				{Name: "value", Type: types.String},
			},
		},
		{
			name: "missing field becomes nullable",
			records: []types.Record{
				{"id": int64(1), "name": "jane"},
				{"id": int64(2)},
			},
			expected: []types.Column{
				{Name: "id", Type: types.Int64},
				{Name: "name", Type: types.String, Nullable: true},
			},
		},
		{
			name: "null then value keeps the value type",
			records: []types.Record{
				{"value": nil},
				{"value": "jane"},
			},
			expected: []types.Column{
				{Name: "value", Type: types.String, Nullable: true},
			},
		},
		{
			name: "never populated column falls back to string",
			records: []types.Record{
				{"value": nil},
				{"value": nil},
			},
			expected: []types.Column{
				{Name: "value", Type: types.String, Nullable: true},
			},
		},
		{
			name: "late columns append after early ones",
			records: []types.Record{
				{"id": int64(1)},
				{"id": int64(2), "name": "jane", "dt": "2024-06-01"},
			},
			expected: []types.Column{
				{Name: "id", Type: types.Int64},
				{Name: "dt", Type: types.String, Nullable: true},
				{Name: "name", Type: types.String, Nullable: true},
			},
		},
		{
			name: "containers resolve to array and object",
			records: []types.Record{
				{"items": []any{1, 2}, "attrs": map[string]any{"a": 1}},
			},
			expected: []types.Column{
				{Name: "attrs", Type: types.Object},
				{Name: "items", Type: types.Array},
			},
		},
		{
			name:     "no records yields an empty schema",
			records:  []types.Record{},
			expected: []types.Column{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver()
			for _, record := range tc.records {
				require.NoError(t, resolver.Resolve(record))
			}
			assert.Equal(t, tc.expected, resolver.Columns())
		})
	}
}

func TestResolveRejectsEmptyColumnName(t *testing.T) {
	resolver := NewResolver()
	err := resolver.Resolve(types.Record{"": "value"})
	require.ErrorContains(t, err, "empty column name")
}
