// Package resolve is the batch resolution core: it takes submitted work
// items through prioritization, bounded-concurrency scheduling, and ordered
// aggregation. External collaborators are injected, never cached globally.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/resolve/aggregate"
	"github.com/vietddude/mender/internal/resolve/metrics"
	"github.com/vietddude/mender/internal/resolve/pipeline"
	"github.com/vietddude/mender/internal/resolve/priority"
	"github.com/vietddude/mender/internal/resolve/scheduler"
)

// DefaultMaxConcurrent caps in-flight pipelines when none is configured.
const DefaultMaxConcurrent = 4

// ErrDuplicateItemID is returned before scheduling when a batch carries the
// same item ID twice.
var ErrDuplicateItemID = errors.New("duplicate work item id in batch")

// Options control one SubmitBatch call. Zero values take defaults.
type Options struct {
	MaxConcurrent     int
	MaxRefineAttempts int
	BatchDeadline     time.Duration
}

// Collaborators are the external operations the core consumes but does not
// implement.
type Collaborators struct {
	Fetcher   pipeline.ContextFetcher
	Generator pipeline.Generator
	Validator pipeline.Validator
	Finalizer pipeline.Finalizer
}

// Engine is the single entry point for batch resolution.
type Engine struct {
	collab Collaborators
	prio   *priority.Prioritizer
	agg    *aggregate.Aggregator
	log    *slog.Logger
}

// NewEngine creates an engine with the given collaborators and priority
// config. A nil Validator falls back to the structural diff validator.
func NewEngine(collab Collaborators, prioCfg priority.Config) (*Engine, error) {
	if collab.Fetcher == nil || collab.Generator == nil || collab.Finalizer == nil {
		return nil, fmt.Errorf("fetcher, generator, and finalizer collaborators are required")
	}
	if collab.Validator == nil {
		collab.Validator = pipeline.NewDiffValidator()
	}
	return &Engine{
		collab: collab,
		prio:   priority.New(prioCfg),
		agg:    aggregate.New(aggregate.DefaultTopErrorGroups),
		log:    slog.Default().With("component", "engine"),
	}, nil
}

// SubmitBatch resolves every item and returns one summary with exactly one
// result per item, in submission order. The only batch-aborting failures are
// configuration errors detected before any item starts; per-item failures
// are isolated into their own results.
func (e *Engine) SubmitBatch(ctx context.Context, items []domain.WorkItem, opts Options) (domain.BatchSummary, error) {
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxConcurrent < 0 {
		return domain.BatchSummary{}, fmt.Errorf("%w, got %d", scheduler.ErrInvalidConcurrency, opts.MaxConcurrent)
	}
	if opts.MaxRefineAttempts == 0 {
		opts.MaxRefineAttempts = pipeline.DefaultMaxRefineAttempts
	}
	if err := checkUniqueIDs(items); err != nil {
		return domain.BatchSummary{}, err
	}

	batchID := uuid.NewString()
	started := time.Now()

	runner, err := pipeline.NewRunner(pipeline.Config{
		Fetcher:           e.collab.Fetcher,
		Generator:         e.collab.Generator,
		Validator:         e.collab.Validator,
		Finalizer:         e.collab.Finalizer,
		MaxRefineAttempts: opts.MaxRefineAttempts,
	})
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("failed to build pipeline: %w", err)
	}

	schedOpts := scheduler.Options{MaxConcurrent: opts.MaxConcurrent}
	if opts.BatchDeadline > 0 {
		schedOpts.Deadline = started.Add(opts.BatchDeadline)
	}

	e.log.Info("batch submitted",
		"batch", batchID,
		"items", len(items),
		"max_concurrent", opts.MaxConcurrent,
	)

	scored := e.prio.Prioritize(items)
	results, err := scheduler.New(runner).RunBatch(ctx, scored, schedOpts)
	if err != nil {
		return domain.BatchSummary{}, err
	}

	summary := e.agg.Aggregate(batchID, results)
	summary.StartedAt = started
	summary.FinishedAt = time.Now()

	metrics.BatchesTotal.Inc()
	e.log.Info("batch finished",
		"batch", batchID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.FinishedAt.Sub(started),
	)

	return summary, nil
}

func checkUniqueIDs(items []domain.WorkItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateItemID, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}
