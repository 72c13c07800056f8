package destination

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/planner"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
)

type Stats struct {
	ThreadCount  atomic.Int64 // active writer threads
	ReadCount    atomic.Int64 // records accepted from the producer
	WrittenCount atomic.Int64 // records acknowledged by the writer
}

// Executor drives one planned insert into a destination writer: it streams
// producer rows, projects them in batches, and hands each batch to the
// writer under the plan's operation.
type Executor struct {
	writer    Writer
	notifier  Notifier
	stats     *Stats
	batchSize int
}

// NewExecutor resolves the destination type, loads its config, and verifies
// the destination is usable. The writer binds to a table and plan later, in
// Execute.
func NewExecutor(ctx context.Context, config *types.WriterConfig, notifier Notifier, batchSize int64) (*Executor, error) {
	newFunc, found := RegisteredWriters[config.Type]
	if !found {
		return nil, fmt.Errorf("invalid destination type has been passed [%s]", config.Type)
	}

	writer := newFunc()
	if err := utils.Unmarshal(config.WriterConfig, writer.GetConfigRef()); err != nil {
		return nil, err
	}

	if err := writer.Check(ctx); err != nil {
		return nil, fmt.Errorf("failed to test destination: %s", err)
	}

	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	return &Executor{
		writer:    writer,
		notifier:  notifier,
		stats:     &Stats{},
		batchSize: int(batchSize),
	}, nil
}

func (e *Executor) GetStats() *Stats {
	return e.stats
}

// Execute runs one planned insert end to end. Batches flush through a
// single-flush group so the next batch buffers while the previous one
// writes; any flush failure fails the whole request. The catalog refresh
// runs only after every batch landed and the writer closed cleanly.
func (e *Executor) Execute(ctx context.Context, table *types.TableDescriptor, plan *types.WritePlan, producer types.RowProducer) error {
	if err := e.writer.Setup(ctx, table, plan); err != nil {
		return fmt.Errorf("failed to setup writer for table %s: %s", table.ID(), err)
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	logger.StatsLogger(statsCtx, func() (int64, int64, int64) {
		return e.stats.ThreadCount.Load(), e.stats.ReadCount.Load(), e.stats.WrittenCount.Load()
	})

	e.stats.ThreadCount.Add(1)
	defer e.stats.ThreadCount.Add(-1)

	group := utils.NewCGroupWithLimit(ctx, 1)
	buffer := make([]types.Record, 0, e.batchSize)
	flush := func() {
		if len(buffer) == 0 {
			return
		}
		batch := make([]types.Record, len(buffer))
		copy(batch, buffer)
		buffer = buffer[:0]
		group.Add(func(ctx context.Context) error {
			return e.flush(ctx, plan, batch)
		})
	}

	err := producer.Stream(ctx, func(_ context.Context, record types.Record) error {
		select {
		case <-group.Ctx().Done():
			return group.Block()
		default:
			e.stats.ReadCount.Add(1)
			buffer = append(buffer, record)
			if len(buffer) >= e.batchSize {
				flush()
			}
			return nil
		}
	})
	if err != nil {
		// an in-flight flush failure is the root cause, prefer it
		if flushErr := group.Block(); flushErr != nil {
			return flushErr
		}
		return fmt.Errorf("failed to stream rows for table %s: %s", table.ID(), err)
	}

	flush()
	if err := group.Block(); err != nil {
		return err
	}
	if err := e.writer.Close(ctx); err != nil {
		return fmt.Errorf("failed to close writer: %s", err)
	}

	logger.Infof("wrote %d records to table %s at instant %s",
		e.stats.WrittenCount.Load(), table.ID(), plan.Instant)

	// refresh failures are logged, never consulted
	if e.notifier != nil {
		if err := e.notifier.Refresh(ctx, table.Database, table.Name); err != nil {
			logger.Warnf("failed to refresh catalog for table %s: %s", table.ID(), err)
		}
	}
	return nil
}

func (e *Executor) flush(ctx context.Context, plan *types.WritePlan, batch []types.Record) (err error) {
	defer func() {
		if err == nil {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic recovered in flush: %v", rec)
			}
		}
	}()

	projected, err := planner.ProjectBatch(ctx, plan.Projection, batch, runtime.GOMAXPROCS(0)*16)
	if err != nil {
		return fmt.Errorf("failed to project batch: %s", err)
	}

	success, err := e.writer.Write(ctx, projected)
	if err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	if !success {
		return fmt.Errorf("writer rejected the batch without error")
	}

	e.stats.WrittenCount.Add(int64(len(projected)))
	logger.Debugf("flushed %d records", len(projected))
	return nil
}
