// Package payload implements the merge hooks applied when an incoming record
// collides with a stored record on its key.
package payload

import (
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/typeutils"
)

// Combiner resolves one key collision. Implementations return the record that
// survives, or an error when the collision itself is the failure.
type Combiner interface {
	Combine(key string, current, incoming types.Record) (types.Record, error)
}

type NewFunc func(orderingField string) Combiner

// RegisteredPayloads maps payload strategy to its constructor.
var RegisteredPayloads = map[types.PayloadStrategy]NewFunc{}

func init() {
	RegisteredPayloads[types.PayloadDefaultMerge] = func(orderingField string) Combiner {
		return &defaultMerge{orderingField: orderingField}
	}
	RegisteredPayloads[types.PayloadStrictReject] = func(_ string) Combiner {
		return &strictReject{}
	}
}

// ForStrategy builds the combiner for a resolved payload strategy; the
// ordering field is the precombine column stamped into the option map.
func ForStrategy(strategy types.PayloadStrategy, orderingField string) (Combiner, error) {
	newFunc, found := RegisteredPayloads[strategy]
	if !found {
		return nil, types.NewConfigurationError("unknown payload strategy: %s", strategy)
	}
	return newFunc(orderingField), nil
}

// defaultMerge keeps the record with the larger precombine value, preferring
// the incoming record on ties so later writes win.
type defaultMerge struct {
	orderingField string
}

func (d *defaultMerge) Combine(_ string, current, incoming types.Record) (types.Record, error) {
	if d.orderingField == "" {
		return incoming, nil
	}
	if typeutils.Compare(incoming[d.orderingField], current[d.orderingField]) >= 0 {
		return incoming, nil
	}
	return current, nil
}

// strictReject fails the write on the first key collision.
type strictReject struct{}

func (s *strictReject) Combine(key string, _, _ types.Record) (types.Record, error) {
	return nil, types.NewDuplicateKeyError(key)
}
