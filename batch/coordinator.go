// Package batch fans out many permission checks sharing one principal
// context and folds per-item failures into uniform denials, so a single
// bad item can never abort or corrupt the rest of the batch.
package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"authcore"
)

// DefaultConcurrency bounds the number of checks evaluated in parallel.
const DefaultConcurrency = 16

// CheckFunc evaluates a single request. The error return is reserved
// for infrastructure failures; policy denials come back as decisions.
type CheckFunc func(ctx context.Context, principal authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error)

// Coordinator runs batches of permission checks. Items are evaluated
// independently and concurrently; only the positional order of the
// result slice is guaranteed, not the order of completion.
type Coordinator struct {
	check       CheckFunc
	concurrency int
	logger      *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds parallel evaluation. Values below 1 are
// treated as 1.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// WithLogger attaches a logger for per-item failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator evaluating items with the given CheckFunc.
func New(check CheckFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		check:       check,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BatchCheck evaluates every request and returns one decision per
// request, positionally matched: result i answers request i, for all
// batch sizes including 0 and 1.
//
// An item whose evaluation fails or panics yields {allowed:false,
// reason:"internal error"} in its slot; the remaining items are
// unaffected. If ctx is cancelled before the batch completes, the
// whole call returns (nil, ctx.Err()) — no partial prefix is ever
// returned, so callers retry the entire batch.
func (c *Coordinator) BatchCheck(ctx context.Context, principal authcore.PrincipalContext, reqs []authcore.PermissionRequest) ([]authcore.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]authcore.Decision, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.checkOne(ctx, principal, reqs[i], i)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// checkOne evaluates a single item, converting errors and panics into
// an internal-error denial for that slot.
func (c *Coordinator) checkOne(ctx context.Context, principal authcore.PrincipalContext, req authcore.PermissionRequest, index int) (decision authcore.Decision) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic evaluating batch item",
				zap.Int("index", index),
				zap.String("resource", req.Resource),
				zap.String("action", req.Action),
				zap.Any("panic", r),
			)
			decision = authcore.DenyInternal()
		}
	}()

	d, err := c.check(ctx, principal, req)
	if err != nil {
		c.logger.Warn("batch item evaluation failed",
			zap.Int("index", index),
			zap.String("resource", req.Resource),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return authcore.DenyInternal()
	}
	return d
}
