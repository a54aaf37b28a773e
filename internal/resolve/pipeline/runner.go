package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/resolve/metrics"
)

// Runner executes the stage sequence for exactly one work item.
// A Runner is stateless and safe for concurrent use.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// NewRunner creates a runner from the given config.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("context fetcher is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.Finalizer == nil {
		return nil, fmt.Errorf("finalizer is required")
	}
	if cfg.MaxRefineAttempts <= 0 {
		cfg.MaxRefineAttempts = DefaultMaxRefineAttempts
	}
	return &Runner{
		cfg: cfg,
		log: slog.Default().With("component", "pipeline"),
	}, nil
}

// Run resolves one work item and returns its terminal result. Stage errors
// never escape as Go errors; they are folded into the result's category and
// message. OriginalIndex is left for the scheduler to fill in.
func (r *Runner) Run(ctx context.Context, item domain.WorkItem) domain.PipelineResult {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	itemCtx, err := r.cfg.Fetcher.FetchContext(ctx, item)
	if err != nil {
		r.log.Warn("context fetch failed", "item", item.ID, "error", err)
		return failed(item.ID, 1, domain.ErrorContextFetch, err)
	}

	candidate, validation, attempts, genErr := r.refine(ctx, itemCtx)
	if genErr != nil {
		r.log.Warn("generation failed", "item", item.ID, "attempt", attempts, "error", genErr)
		return failed(item.ID, attempts, domain.ErrorGeneration, genErr)
	}
	if !validation.Valid {
		r.log.Info("refinement exhausted", "item", item.ID, "attempts", attempts, "issues", validation.Issues)
		return domain.PipelineResult{
			ItemID:   item.ID,
			Success:  false,
			Attempts: attempts,
			Category: domain.ErrorValidationExhausted,
			Message:  fmt.Sprintf("validation failed after %d attempts: %s", attempts, joinIssues(validation.Issues)),
			Output: &domain.Resolution{
				Candidate:  candidate,
				Validation: validation,
			},
		}
	}

	commit, err := r.cfg.Finalizer.Finalize(ctx, candidate)
	if err != nil {
		r.log.Warn("finalize failed", "item", item.ID, "error", err)
		return failed(item.ID, attempts, domain.ErrorFinalize, err)
	}

	r.log.Info("item resolved", "item", item.ID, "attempts", attempts, "commit", commit.ID)
	return domain.PipelineResult{
		ItemID:   item.ID,
		Success:  true,
		Attempts: attempts,
		Output: &domain.Resolution{
			Candidate:  candidate,
			Validation: validation,
			Commit:     commit,
		},
	}
}

func failed(itemID string, attempts int, cat domain.ErrorCategory, err error) domain.PipelineResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return domain.PipelineResult{
		ItemID:   itemID,
		Success:  false,
		Attempts: attempts,
		Category: cat,
		Message:  msg,
	}
}
