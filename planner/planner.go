// Package planner decides how an insert request is written into a lake
// table: which write operation runs, which payload merges colliding keys,
// and how producer rows are reshaped into the table schema.
package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/datazip-inc/lakeplan/storage"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
)

type Planner struct {
	store storage.ConfigStore
}

// New builds a planner over the given config store. A nil store skips the
// stored-config probe, which keeps planning pure for callers that resolved
// the table config themselves.
func New(store storage.ConfigStore) *Planner {
	return &Planner{store: store}
}

// Plan resolves one insert request into a write plan. Planning is stateless
// and performs at most one storage read (the stored table config probe);
// every failure is raised before any write could start.
func (p *Planner) Plan(ctx context.Context, table *types.TableDescriptor, request *types.InsertRequest) (*types.WritePlan, error) {
	if err := table.Validate(); err != nil {
		return nil, types.NewConfigurationError("invalid table descriptor: %s", err)
	}
	if err := request.Validate(); err != nil {
		return nil, types.NewConfigurationError("invalid insert request: %s", err)
	}
	if err := validatePartitionSpec(table, request); err != nil {
		return nil, err
	}

	session, err := parseSessionOptions(request.SessionOptions)
	if err != nil {
		return nil, err
	}

	// a missing stored config means a fresh table and defaults apply; a
	// failed read of an existing one is fatal
	stored := table.Config
	if stored == nil && p.store != nil {
		stored, err = p.store.Load(ctx, table.BasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load stored config for table %s: %s", table.ID(), err)
		}
	}

	sig := signals{
		keyed:          table.Keyed(),
		partitioned:    table.Partitioned(),
		bulkInsert:     session.bulkInsert,
		overwrite:      request.Overwrite,
		dropDuplicates: session.dropDuplicates,
		mode:           session.mode,
	}
	operation, err := resolveOperation(sig)
	if err != nil {
		return nil, err
	}
	strategy := resolvePayloadStrategy(operation, table.TableType, session.mode)

	projection, err := Align(table, request)
	if err != nil {
		return nil, err
	}

	instant := utils.ULID()
	options, err := buildOptions(table, request, stored, operation, strategy, instant)
	if err != nil {
		return nil, err
	}

	plan := &types.WritePlan{
		Operation:       operation,
		PayloadStrategy: strategy,
		WriteMode:       resolveWriteMode(request.Overwrite, table.Partitioned()),
		Options:         options,
		Projection:      projection,
		Instant:         instant,
	}

	if fingerprint, err := plan.Fingerprint(); err == nil {
		logger.Debugf("plan fingerprint %s for table %s", fingerprint, table.ID())
	}
	logger.Infof("planned %s (%s payload, %s mode) at instant %s for table %s",
		plan.Operation, plan.PayloadStrategy, plan.WriteMode, plan.Instant, table.ID())
	return plan, nil
}

// validatePartitionSpec enforces key-set equality between a non-empty
// partition spec and the table's partition columns.
func validatePartitionSpec(table *types.TableDescriptor, request *types.InsertRequest) error {
	if len(request.PartitionSpec) == 0 {
		return nil
	}

	specFields := make([]string, 0, len(request.PartitionSpec))
	for name := range request.PartitionSpec {
		specFields = append(specFields, name)
	}
	sort.Strings(specFields)

	tableFields := table.PartitionFields()
	if len(specFields) == len(tableFields) && utils.IsSubset(tableFields, specFields) {
		return nil
	}
	return types.NewConfigurationError("partition fields mismatch: table %s declares [%s], request supplies [%s]",
		table.ID(), strings.Join(tableFields, ", "), strings.Join(specFields, ", "))
}
