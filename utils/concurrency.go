package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CxGroup wraps errgroup with its derived context so callers can watch for
// sibling failures while queueing more work.
type CxGroup struct {
	group *errgroup.Group
	ctx   context.Context
}

func NewCGroup(ctx context.Context) *CxGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &CxGroup{
		group: group,
		ctx:   ctx,
	}
}

// NewCGroupWithLimit caps the number of goroutines running at once; Add
// blocks once the limit is reached.
func NewCGroupWithLimit(ctx context.Context, limit int) *CxGroup {
	cxGroup := NewCGroup(ctx)
	cxGroup.group.SetLimit(limit)
	return cxGroup
}

func (c *CxGroup) Ctx() context.Context {
	return c.ctx
}

func (c *CxGroup) Add(fn func(ctx context.Context) error) {
	c.group.Go(func() error {
		return fn(c.ctx)
	})
}

// Block waits for all added routines and returns the first error.
func (c *CxGroup) Block() error {
	return c.group.Wait()
}

// Concurrent runs execute over set with bounded concurrency, failing fast on
// the first error.
func Concurrent[T any](ctx context.Context, set []T, concurrency int, execute func(ctx context.Context, one T, executionNumber int) error) error {
	group := NewCGroupWithLimit(ctx, concurrency)
	for idx, one := range set {
		if group.Ctx().Err() != nil {
			break
		}
		group.Add(func(ctx context.Context) error {
			return execute(ctx, one, idx)
		})
	}
	return group.Block()
}
