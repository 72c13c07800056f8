package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/destination"
	"github.com/datazip-inc/lakeplan/planner"
	"github.com/datazip-inc/lakeplan/types"
)

type sliceProducer struct {
	schema []types.Column
	rows   []types.Record
}

func (s *sliceProducer) Schema() []types.Column {
	return s.schema
}

func (s *sliceProducer) Stream(ctx context.Context, callback func(ctx context.Context, record types.Record) error) error {
	for _, row := range s.rows {
		if err := callback(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type recordingNotifier struct {
	refreshed []string
	err       error
}

func (r *recordingNotifier) Refresh(_ context.Context, database, table string) error {
	r.refreshed = append(r.refreshed, fmt.Sprintf("%s.%s", database, table))
	return r.err
}

// run plans one request and executes it against the memory destination.
func run(t *testing.T, table *types.TableDescriptor, request *types.InsertRequest,
	rows []types.Record, notifier destination.Notifier, writerConfig any) (*types.WritePlan, error) {
	t.Helper()

	plan, err := planner.New(nil).Plan(context.Background(), table, request)
	require.NoError(t, err, "planning must succeed before execution")

	executor, err := destination.NewExecutor(context.Background(),
		&types.WriterConfig{Type: types.Memory, WriterConfig: writerConfig}, notifier, 0)
	require.NoError(t, err)

	return plan, executor.Execute(context.Background(), table, plan,
		&sliceProducer{schema: request.ProducerSchema, rows: rows})
}

func keyedTable(t *testing.T) *types.TableDescriptor {
	return &types.TableDescriptor{
		Database: "lake",
		Name:     "users",
		BasePath: "mem://" + t.Name(),
		DataSchema: []types.Column{
			{Name: "id", Type: types.Int64},
			{Name: "name", Type: types.String, Nullable: true},
		},
		PartitionSchema: []types.Column{
			{Name: "dt", Type: types.String},
		},
		PrimaryKeys: []string{"id"},
		TableType:   types.CopyOnWrite,
	}
}

func dynamicRequest() *types.InsertRequest {
	return &types.InsertRequest{
		ProducerSchema: []types.Column{
			{Name: "id", Type: types.Int64},
			{Name: "name", Type: types.String, Nullable: true},
			{Name: "dt", Type: types.String},
		},
	}
}

func TestStrictUpsertRejectsDuplicateKey(t *testing.T) {
	table := keyedTable(t)
	notifier := &recordingNotifier{}

	// first request lands the row
	plan, err := run(t, table, dynamicRequest(), []types.Record{
		{"id": int64(1), "name": "jane", "dt": "2024-06-01"},
	}, notifier, nil)
	require.NoError(t, err)
	require.Equal(t, types.OperationUpsert, plan.Operation)
	require.Equal(t, types.PayloadStrictReject, plan.PayloadStrategy)
	assert.Equal(t, []string{"lake.users"}, notifier.refreshed)

	// second request collides on the stored key and must fail the write
	_, err = run(t, table, dynamicRequest(), []types.Record{
		{"id": int64(1), "name": "imposter", "dt": "2024-06-01"},
	}, notifier, nil)
	require.Error(t, err)

	var dup *types.DuplicateKeyError
	require.ErrorAs(t, err, &dup, "the duplicate guard error must survive the write path")
	assert.Equal(t, "1", dup.Key)

	// a failed write never refreshes the catalog
	assert.Equal(t, []string{"lake.users"}, notifier.refreshed)

	// the stored row is the original
	stored, found := LookupTable(table.BasePath)
	require.True(t, found)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, "jane", stored.Rows()[0]["name"])
}

func TestInsertStampsMetaColumns(t *testing.T) {
	table := keyedTable(t)
	table.PrimaryKeys = nil

	plan, err := run(t, table, dynamicRequest(), []types.Record{
		{"id": int64(1), "name": "a", "dt": "2024-06-01"},
		{"id": int64(2), "name": "b", "dt": "2024-06-02"},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OperationInsert, plan.Operation)

	stored, found := LookupTable(table.BasePath)
	require.True(t, found)
	require.Equal(t, 2, stored.Len())

	keys := map[string]bool{}
	for _, row := range stored.Rows() {
		assert.Equal(t, plan.Instant, row[constants.MetaCommitTime])
		assert.NotEmpty(t, row[constants.MetaCommitSeqNo])
		assert.NotEmpty(t, row[constants.MetaRecordKey])
		keys[row[constants.MetaRecordKey].(string)] = true
	}
	// uuid keygen assigns every row a distinct key
	assert.Len(t, keys, 2)

	assert.Equal(t, []string{"dt=2024-06-01", "dt=2024-06-02"}, stored.Partitions(),
		"hive style partition paths by default")
}

func TestDefaultMergeKeepsLargerOrderingValue(t *testing.T) {
	table := &types.TableDescriptor{
		Database: "lake",
		Name:     "scores",
		BasePath: "mem://" + t.Name(),
		DataSchema: []types.Column{
			{Name: "id", Type: types.Int64},
			{Name: "score", Type: types.Int64},
		},
		PrimaryKeys: []string{"id"},
		TableType:   types.MergeOnRead,
	}
	request := &types.InsertRequest{ProducerSchema: table.DataSchema}

	// merge-on-read upserts merge through the default payload
	plan, err := run(t, table, request, []types.Record{{"id": int64(1), "score": int64(5)}}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, types.OperationUpsert, plan.Operation)
	require.Equal(t, types.PayloadDefaultMerge, plan.PayloadStrategy)

	stored, found := LookupTable(table.BasePath)
	require.True(t, found)

	// a smaller ordering value loses to the stored row
	_, err = run(t, table, request, []types.Record{{"id": int64(1), "score": int64(3)}}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, int64(5), stored.Rows()[0]["score"])

	// a larger one replaces it
	_, err = run(t, table, request, []types.Record{{"id": int64(1), "score": int64(9)}}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, int64(9), stored.Rows()[0]["score"])
}

func TestOverwriteTableTruncates(t *testing.T) {
	table := &types.TableDescriptor{
		Database:   "lake",
		Name:       "flat",
		BasePath:   "mem://" + t.Name(),
		DataSchema: []types.Column{{Name: "id", Type: types.Int64}},
	}
	request := &types.InsertRequest{ProducerSchema: table.DataSchema}

	_, err := run(t, table, request, []types.Record{{"id": int64(1)}, {"id": int64(2)}}, nil, nil)
	require.NoError(t, err)

	overwrite := &types.InsertRequest{ProducerSchema: table.DataSchema, Overwrite: true}
	plan, err := run(t, table, overwrite, []types.Record{{"id": int64(9)}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OperationOverwriteTable, plan.Operation)
	assert.Equal(t, types.WriteModeOverwrite, plan.WriteMode)

	stored, found := LookupTable(table.BasePath)
	require.True(t, found)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, int64(9), stored.Rows()[0]["id"])
}

func TestOverwritePartitionReplacesTouchedOnly(t *testing.T) {
	table := keyedTable(t)
	table.PrimaryKeys = nil

	_, err := run(t, table, dynamicRequest(), []types.Record{
		{"id": int64(1), "name": "a", "dt": "a"},
		{"id": int64(2), "name": "b", "dt": "a"},
		{"id": int64(3), "name": "c", "dt": "b"},
	}, nil, nil)
	require.NoError(t, err)

	overwrite := dynamicRequest()
	overwrite.Overwrite = true
	plan, err := run(t, table, overwrite, []types.Record{
		{"id": int64(9), "name": "z", "dt": "a"},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OperationOverwritePartition, plan.Operation)

	stored, found := LookupTable(table.BasePath)
	require.True(t, found)
	// partition a replaced by the single incoming row, partition b untouched
	require.Equal(t, 2, stored.Len())
	replacedRows := stored.PartitionRows("dt=a")
	require.Len(t, replacedRows, 1)
	assert.Equal(t, int64(9), replacedRows[0]["id"])
	require.Len(t, stored.PartitionRows("dt=b"), 1)
}

func TestBulkInsertAppends(t *testing.T) {
	table := keyedTable(t)
	table.PrimaryKeys = nil
	request := dynamicRequest()
	request.SessionOptions = map[string]string{constants.SessionBulkInsertEnable: "true"}

	plan, err := run(t, table, request, []types.Record{
		{"id": int64(1), "name": "a", "dt": "a"},
		{"id": int64(2), "name": "b", "dt": "a"},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OperationBulkInsert, plan.Operation)

	stored, found := LookupTable(table.BasePath)
	require.True(t, found)
	assert.Equal(t, 2, stored.Len())
}

func TestFullTableRejectsBatch(t *testing.T) {
	table := keyedTable(t)
	table.PrimaryKeys = nil
	notifier := &recordingNotifier{}

	_, err := run(t, table, dynamicRequest(), []types.Record{
		{"id": int64(1), "name": "a", "dt": "a"},
		{"id": int64(2), "name": "b", "dt": "a"},
		{"id": int64(3), "name": "c", "dt": "a"},
	}, notifier, map[string]any{"max_rows": 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected the batch",
		"an engine-side rejection without error still fails the request")
	assert.Empty(t, notifier.refreshed, "a failed write never refreshes the catalog")
}

func TestConfigValidation(t *testing.T) {
	_, err := destination.NewExecutor(context.Background(),
		&types.WriterConfig{Type: types.Memory, WriterConfig: map[string]any{"max_rows": -1}}, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_rows cannot be negative")

	_, err = destination.NewExecutor(context.Background(),
		&types.WriterConfig{Type: types.DestinationType("NOPE")}, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid destination type")
}

func TestDropAll(t *testing.T) {
	table := keyedTable(t)
	_, err := run(t, table, dynamicRequest(), []types.Record{
		{"id": int64(1), "name": "a", "dt": "a"},
	}, nil, nil)
	require.NoError(t, err)

	_, found := LookupTable(table.BasePath)
	require.True(t, found)

	DropAll()
	_, found = LookupTable(table.BasePath)
	assert.False(t, found)
}

func TestWriterRegistered(t *testing.T) {
	newFunc, found := destination.RegisteredWriters[types.Memory]
	require.True(t, found)
	writer := newFunc()
	assert.Equal(t, string(types.Memory), writer.Type())
	assert.NotNil(t, writer.GetConfigRef())
	// the spec mirrors the config shape
	_, isConfig := writer.Spec().(Config)
	assert.True(t, isConfig)
	assert.NoError(t, writer.Check(context.Background()))
}
