// Package memory implements an in-process destination. Tables live in a
// process-global registry keyed by base path, so repeated requests against
// the same base path see each other's writes. It is the reference writer for
// operation semantics: upsert merges through the payload combiner, bulk
// insert appends, overwrites truncate the table or replace touched
// partitions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/destination"
	"github.com/datazip-inc/lakeplan/keygen"
	"github.com/datazip-inc/lakeplan/payload"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/logger"
)

type Config struct {
	// MaxRows bounds the table size; zero means unbounded. A full table
	// rejects batches without raising an error.
	MaxRows int `json:"max_rows"`
}

func (c *Config) Validate() error {
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows cannot be negative, got %d", c.MaxRows)
	}
	return nil
}

// Memory writes planned batches into an in-process table.
type Memory struct {
	config   *Config
	table    *types.TableDescriptor
	plan     *types.WritePlan
	store    *Table
	keys     keygen.Generator
	combiner payload.Combiner
	replaced map[string]bool // partitions already replaced in this request
}

// GetConfigRef returns the config reference for the memory writer.
func (m *Memory) GetConfigRef() destination.Config {
	m.config = &Config{}
	return m.config
}

// Spec returns a new Config instance.
func (m *Memory) Spec() any {
	return Config{}
}

func (m *Memory) Type() string {
	return string(types.Memory)
}

func (m *Memory) Check(_ context.Context) error {
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("failed to validate config: %s", err)
	}
	return nil
}

func (m *Memory) Setup(_ context.Context, table *types.TableDescriptor, plan *types.WritePlan) error {
	m.table = table
	m.plan = plan
	m.replaced = map[string]bool{}

	keys, err := keygen.FromOptions(plan.Options)
	if err != nil {
		return fmt.Errorf("failed to build key generator: %s", err)
	}
	m.keys = keys

	combiner, err := payload.ForStrategy(plan.PayloadStrategy, plan.Options[constants.OptionPrecombineField])
	if err != nil {
		return err
	}
	m.combiner = combiner

	m.store = lookupOrCreate(table.BasePath)
	if plan.WriteMode == types.WriteModeOverwrite {
		m.store.truncate()
		logger.Infof("truncated table %s for overwrite", table.ID())
	}
	return nil
}

func (m *Memory) Write(_ context.Context, batch []types.Record) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	for _, record := range batch {
		key, err := m.keys.RecordKey(record)
		if err != nil {
			return false, fmt.Errorf("failed to derive record key: %s", err)
		}
		partition, err := m.keys.PartitionPath(record)
		if err != nil {
			return false, fmt.Errorf("failed to derive partition path: %s", err)
		}

		// partition overwrite drops each partition once, the first time an
		// incoming row touches it
		if m.plan.Operation == types.OperationOverwritePartition && !m.replaced[partition] {
			dropped := m.store.dropPartitionLocked(partition)
			m.replaced[partition] = true
			logger.Debugf("replaced partition %s of table %s (%d rows dropped)", partition, m.table.ID(), dropped)
		}

		if m.plan.Operation == types.OperationUpsert {
			if idx, found := m.store.byKey[key]; found {
				merged, err := m.combiner.Combine(key, m.store.rows[idx].data, record)
				if err != nil {
					return false, err
				}
				m.store.updateLocked(idx, partition, merged, m.plan.Instant)
				continue
			}
		}

		if m.config.MaxRows > 0 && len(m.store.rows) >= m.config.MaxRows {
			logger.Warnf("table %s is full (%d rows), rejecting batch", m.table.ID(), m.config.MaxRows)
			return false, nil
		}
		m.store.appendLocked(key, partition, record, m.plan.Instant)
	}
	return true, nil
}

func (m *Memory) Close(_ context.Context) error {
	if m.store != nil {
		logger.Debugf("memory writer closed, table %s holds %d rows", m.table.ID(), m.store.Len())
	}
	return nil
}

type storedRow struct {
	key       string
	partition string
	data      types.Record
}

// Table is one in-memory lake table: live rows in arrival order with a
// record-key index for keyed lookups.
type Table struct {
	mu    sync.Mutex
	rows  []storedRow
	byKey map[string]int
	seq   int64
}

func (t *Table) truncate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.byKey = map[string]int{}
}

func (t *Table) dropPartitionLocked(partition string) int {
	kept := make([]storedRow, 0, len(t.rows))
	for _, row := range t.rows {
		if row.partition == partition {
			continue
		}
		kept = append(kept, row)
	}

	dropped := len(t.rows) - len(kept)
	t.rows = kept
	t.byKey = make(map[string]int, len(kept))
	for idx, row := range kept {
		t.byKey[row.key] = idx
	}
	return dropped
}

func (t *Table) appendLocked(key, partition string, data types.Record, instant string) {
	t.seq++
	t.rows = append(t.rows, storedRow{key: key, partition: partition, data: stampMeta(data, key, partition, instant, t.seq)})
	t.byKey[key] = len(t.rows) - 1
}

func (t *Table) updateLocked(idx int, partition string, data types.Record, instant string) {
	t.seq++
	key := t.rows[idx].key
	t.rows[idx] = storedRow{key: key, partition: partition, data: stampMeta(data, key, partition, instant, t.seq)}
}

// stampMeta copies the record with the bookkeeping columns the write path
// maintains on every stored row. Rewritten rows get the current instant even
// when the stored version survives the merge.
func stampMeta(data types.Record, key, partition, instant string, seq int64) types.Record {
	stored := make(types.Record, len(data)+len(constants.MetaColumns))
	for field, value := range data {
		stored[field] = value
	}
	stored[constants.MetaCommitTime] = instant
	stored[constants.MetaCommitSeqNo] = fmt.Sprintf("%s_0_%d", instant, seq)
	stored[constants.MetaRecordKey] = key
	stored[constants.MetaPartitionPath] = partition
	stored[constants.MetaFileName] = fmt.Sprintf("%s.mem", instant)
	return stored
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Rows returns the live rows in arrival order.
func (t *Table) Rows() []types.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := make([]types.Record, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, row.data)
	}
	return rows
}

// PartitionRows returns the live rows under one partition path.
func (t *Table) PartitionRows(partition string) []types.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := make([]types.Record, 0)
	for _, row := range t.rows {
		if row.partition == partition {
			rows = append(rows, row.data)
		}
	}
	return rows
}

// Partitions returns the distinct partition paths holding live rows, sorted.
func (t *Table) Partitions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := map[string]bool{}
	for _, row := range t.rows {
		seen[row.partition] = true
	}

	partitions := make([]string, 0, len(seen))
	for partition := range seen {
		partitions = append(partitions, partition)
	}
	sort.Strings(partitions)
	return partitions
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Table{}
)

func lookupOrCreate(basePath string) *Table {
	registryMu.Lock()
	defer registryMu.Unlock()
	table, found := registry[basePath]
	if !found {
		table = &Table{byKey: map[string]int{}}
		registry[basePath] = table
	}
	return table
}

// LookupTable returns the table stored under a base path, if any.
func LookupTable(basePath string) (*Table, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	table, found := registry[basePath]
	return table, found
}

// DropAll removes every stored table.
func DropAll() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]*Table{}
}

func init() {
	destination.RegisteredWriters[types.Memory] = func() destination.Writer {
		return new(Memory)
	}
}
