package destination

import (
	"context"

	"github.com/datazip-inc/lakeplan/types"
)

type Config interface {
	Validate() error
}

type NewFunc func() Writer

// RegisteredWriters maps destination type to its constructor. Destinations
// register themselves from init so importing a destination package is enough
// to make it selectable.
var RegisteredWriters = map[types.DestinationType]NewFunc{}

type Writer interface {
	GetConfigRef() Config
	Spec() any
	Type() string
	// Check verifies the destination is reachable and writable; it doesn't
	// bind the writer to a table
	Check(ctx context.Context) error
	// Setup binds the writer to one table and plan before any batch arrives.
	// Overwrite write modes take effect here, before the first batch.
	Setup(ctx context.Context, table *types.TableDescriptor, plan *types.WritePlan) error
	// Write persists one projected batch under the plan's operation. The
	// boolean reports engine-side success; a false without error still fails
	// the request.
	Write(ctx context.Context, batch []types.Record) (bool, error)
	Close(ctx context.Context) error
}

// Notifier receives the post-success catalog refresh. Refresh outcomes are
// logged, never consulted; a write is complete before the notifier runs.
type Notifier interface {
	Refresh(ctx context.Context, database, table string) error
}
