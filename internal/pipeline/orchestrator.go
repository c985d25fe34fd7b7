// Package pipeline drives items through retry orchestration, two-source
// fusion, location inference, scoring, and incremental persistence.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/reachlab/creator-scout/internal/extract"
	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
)

// AttemptFn performs one extraction attempt for an item, optionally
// through the given proxy endpoint (nil means direct).
type AttemptFn[T any] func(ctx context.Context, ep *proxy.Endpoint) (T, error)

// Orchestrator retries attempts through a rotating proxy pool. Attempts
// for one item are strictly sequential; the extraction step owns a
// single session.
type Orchestrator struct {
	pool        *proxy.Pool
	maxAttempts int
}

// NewOrchestrator creates an Orchestrator. maxAttempts values below 1
// are raised to 1.
func NewOrchestrator(pool *proxy.Pool, maxAttempts int) *Orchestrator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Orchestrator{pool: pool, maxAttempts: maxAttempts}
}

// attempt runs fn up to the retry budget, rotating the proxy after each
// failure and feeding success/failure back to the pool. When the budget
// is exhausted it returns a terminal FailureRecord instead of an error;
// only context cancellation aborts early.
func attempt[T any](ctx context.Context, o *Orchestrator, id string, fn AttemptFn[T]) (T, *model.FailureRecord, error) {
	var zero T
	prevFailed := false

	for i := 1; i <= o.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, nil, err
		}

		var ep *proxy.Endpoint
		if e, ok := o.pool.Next(prevFailed); ok {
			ep = &e
		}

		fields := []zap.Field{
			zap.String("id", id),
			zap.Int("attempt", i),
			zap.Int("max_attempts", o.maxAttempts),
		}
		if ep != nil {
			fields = append(fields, zap.String("proxy", ep.Address))
		}
		zap.L().Debug("extraction attempt", fields...)

		out, err := fn(ctx, ep)
		if err == nil {
			o.pool.ReportSuccess()
			return out, nil, nil
		}

		if ctx.Err() != nil {
			return zero, nil, ctx.Err()
		}
		if ep != nil {
			o.pool.ReportFailure(*ep)
		}
		prevFailed = true
		zap.L().Warn("extraction attempt failed",
			zap.String("id", id),
			zap.Int("attempt", i),
			zap.String("class", string(extract.Classify(err))),
			zap.Error(err))
	}

	zap.L().Error("item skipped after retries", zap.String("id", id), zap.Int("attempts", o.maxAttempts))
	return zero, &model.FailureRecord{
		ID:       id,
		Reason:   model.FailureReasonRetries,
		Attempts: o.maxAttempts,
	}, nil
}
