// Package scheduler dispatches pipeline runs with a hard cap on concurrently
// in-flight pipelines.
//
// The algorithm keeps a FIFO cursor into the priority-ordered item list and a
// set of in-flight runs. It refills to the concurrency cap after every
// completion, so no queued item can starve. Completion order is whichever run
// finishes first; submission order is restored later by the aggregator.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/resolve/metrics"
)

// ErrInvalidConcurrency is returned before any item starts when the
// configured cap is not positive.
var ErrInvalidConcurrency = errors.New("max concurrent must be > 0")

// Runner executes the pipeline for one work item.
type Runner interface {
	Run(ctx context.Context, item domain.WorkItem) domain.PipelineResult
}

// Options control one batch run.
type Options struct {
	MaxConcurrent int

	// Deadline, when non-zero, stops new items from starting once passed.
	// Items already in flight run to completion; unstarted items receive a
	// skipped result.
	Deadline time.Time
}

// Scheduler drains a priority-ordered queue through a Runner.
type Scheduler struct {
	runner Runner
	log    *slog.Logger
}

// New creates a scheduler around the given runner.
func New(runner Runner) *Scheduler {
	return &Scheduler{
		runner: runner,
		log:    slog.Default().With("component", "scheduler"),
	}
}

// RunBatch executes every item and returns exactly one result per item, in
// completion order. The in-flight count never exceeds opts.MaxConcurrent.
func (s *Scheduler) RunBatch(ctx context.Context, items []domain.ScoredWorkItem, opts Options) ([]domain.PipelineResult, error) {
	if opts.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidConcurrency, opts.MaxConcurrent)
	}

	results := make([]domain.PipelineResult, 0, len(items))
	done := make(chan domain.PipelineResult)

	next := 0
	inFlight := 0

	for next < len(items) || inFlight > 0 {
		// Refill to the cap. Once the deadline or context has expired,
		// everything still queued is skipped in one pass.
		if reason := s.expired(ctx, opts.Deadline); reason != "" {
			for ; next < len(items); next++ {
				results = append(results, skipped(items[next], reason))
				metrics.ItemsTotal.WithLabelValues(string(domain.ErrorSkipped)).Inc()
			}
		}
		for inFlight < opts.MaxConcurrent && next < len(items) {
			go s.runOne(ctx, items[next], done)
			next++
			inFlight++
		}

		if inFlight > 0 {
			// First to finish wins; the refill above tops the set back up.
			res := <-done
			inFlight--
			results = append(results, res)
		}
	}

	return results, nil
}

// runOne executes a single pipeline under fault isolation: a panic inside
// any stage becomes a failed result instead of taking down the batch.
func (s *Scheduler) runOne(ctx context.Context, item domain.ScoredWorkItem, done chan<- domain.PipelineResult) {
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	var res domain.PipelineResult

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("pipeline panicked", "item", item.Item.ID, "panic", r)
				res = domain.PipelineResult{
					ItemID:   item.Item.ID,
					Success:  false,
					Attempts: 1,
					Category: domain.ErrorInternal,
					Message:  fmt.Sprintf("pipeline panic: %v", r),
				}
			}
		}()
		res = s.runner.Run(ctx, item.Item)
	}()

	res.OriginalIndex = item.OriginalIndex
	outcome := "success"
	if !res.Success {
		outcome = string(res.Category)
	}
	metrics.ItemsTotal.WithLabelValues(outcome).Inc()

	done <- res
}

// expired reports why no more items may start, or "" if the batch can
// keep going. The reason becomes the skip message for unstarted items.
func (s *Scheduler) expired(ctx context.Context, deadline time.Time) string {
	select {
	case <-ctx.Done():
		return "batch cancelled before item started"
	default:
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return "batch deadline passed before item started"
	}
	return ""
}

func skipped(item domain.ScoredWorkItem, reason string) domain.PipelineResult {
	return domain.PipelineResult{
		ItemID:        item.Item.ID,
		OriginalIndex: item.OriginalIndex,
		Success:       false,
		Attempts:      0,
		Category:      domain.ErrorSkipped,
		Message:       reason,
	}
}
