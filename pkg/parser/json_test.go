package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/lakeplan/types"
)

func jsonColumns(t *testing.T, config JSONConfig, content string) []types.Column {
	t.Helper()
	parser := NewJSONParser(config, nil)
	schema, err := parser.InferSchema(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	return schema
}

func TestJSONInferSchemaLineDelimited(t *testing.T) {
	content := `{"id": 1, "name": "jane", "score": 9.5}
{"id": 2, "name": "john", "score": 7.25}
`
	schema := jsonColumns(t, JSONConfig{LineDelimited: true}, content)

	require.Len(t, schema, 3)
	// json numbers decode as float64, integral or not
	assert.Equal(t, types.Column{Name: "id", Type: types.Float64}, schema[0])
	assert.Equal(t, types.Column{Name: "name", Type: types.String}, schema[1])
	assert.Equal(t, types.Column{Name: "score", Type: types.Float64}, schema[2])
}

func TestJSONInferSchemaArray(t *testing.T) {
	content := `[{"id": 1, "name": "jane"}, {"id": 2}]`
	schema := jsonColumns(t, JSONConfig{}, content)

	require.Len(t, schema, 2)
	assert.Equal(t, types.Column{Name: "id", Type: types.Float64}, schema[0])
	assert.Equal(t, types.Column{Name: "name", Type: types.String, Nullable: true}, schema[1])
}

func TestJSONInferSchemaSingleObject(t *testing.T) {
	schema := jsonColumns(t, JSONConfig{}, `{"id": 1, "active": true}`)

	require.Len(t, schema, 2)
	assert.Equal(t, "active", schema[0].Name)
	assert.Equal(t, types.Bool, schema[0].Type)
	assert.Equal(t, "id", schema[1].Name)
}

func TestJSONInferSchemaFlattensNested(t *testing.T) {
	content := `{"id": 1, "Address Info": {"city": "pune"}, "tags": ["a", "b"]}`
	schema := jsonColumns(t, JSONConfig{}, content)

	require.Len(t, schema, 3)
	// nested structures stringify during flattening, keys normalize
	assert.Equal(t, "address_info", schema[0].Name)
	assert.Equal(t, types.String, schema[0].Type)
	assert.Equal(t, "id", schema[1].Name)
	assert.Equal(t, "tags", schema[2].Name)
	assert.Equal(t, types.String, schema[2].Type)
}

func TestJSONInferSchemaErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "empty file", content: "   ", expected: "empty json file"},
		{name: "invalid layout", content: `"just a string"`, expected: "invalid json layout"},
		{name: "empty array", content: `[]`, expected: "no records found"},
		{name: "garbage", content: `{{{`, expected: "failed to parse json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewJSONParser(JSONConfig{}, nil)
			_, err := parser.InferSchema(context.Background(), strings.NewReader(tt.content))
			require.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestJSONStreamRecordsLineDelimited(t *testing.T) {
	content := `{"id": 1, "name": "jane"}
{"id": 2, "name": "john"}
`
	parser := NewJSONParser(JSONConfig{LineDelimited: true}, nil)

	records := []types.Record{}
	err := parser.StreamRecords(context.Background(), strings.NewReader(content), func(_ context.Context, record types.Record) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, float64(1), records[0]["id"])
	assert.Equal(t, "jane", records[0]["name"])
	assert.Equal(t, "john", records[1]["name"])
}

func TestJSONStreamRecordsArray(t *testing.T) {
	content := `[{"id": 1}, {"id": 2}, {"id": 3}]`
	parser := NewJSONParser(JSONConfig{}, nil)

	records := []types.Record{}
	err := parser.StreamRecords(context.Background(), strings.NewReader(content), func(_ context.Context, record types.Record) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestJSONStreamRecordsSingleObject(t *testing.T) {
	parser := NewJSONParser(JSONConfig{}, nil)

	records := []types.Record{}
	err := parser.StreamRecords(context.Background(), strings.NewReader(`{"id": 1, "name": "jane"}`), func(_ context.Context, record types.Record) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "jane", records[0]["name"])
}

func TestJSONStreamRecordsRejectsScalarInput(t *testing.T) {
	parser := NewJSONParser(JSONConfig{}, nil)
	err := parser.StreamRecords(context.Background(), strings.NewReader(`"just a string"`), func(_ context.Context, _ types.Record) error {
		return nil
	})
	require.ErrorContains(t, err, "expected json array")
}

func TestJSONStreamRecordsFlattens(t *testing.T) {
	content := `[{"User ID": 1, "attrs": {"tier": "gold"}}]`
	parser := NewJSONParser(JSONConfig{}, nil)

	records := []types.Record{}
	err := parser.StreamRecords(context.Background(), strings.NewReader(content), func(_ context.Context, record types.Record) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, float64(1), records[0]["user_id"])
	assert.Equal(t, `{"tier":"gold"}`, records[0]["attrs"])
}

func TestJSONLayoutDetectionCarriesToStreaming(t *testing.T) {
	content := `{"id": 1}
{"id": 2}
{"id": 3}
`
	// inference spots the line-delimited layout, streaming follows it
	parser := NewJSONParser(JSONConfig{}, nil)
	_, err := parser.InferSchema(context.Background(), strings.NewReader(content))
	require.NoError(t, err)

	records := []types.Record{}
	err = parser.StreamRecords(context.Background(), strings.NewReader(content), func(_ context.Context, record types.Record) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestJSONStreamRecordsCallbackErrorStops(t *testing.T) {
	parser := NewJSONParser(JSONConfig{}, nil)

	seen := 0
	err := parser.StreamRecords(context.Background(), strings.NewReader(`[{"id": 1}, {"id": 2}]`), func(_ context.Context, _ types.Record) error {
		seen++
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, seen)
}
