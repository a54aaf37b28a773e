// Package pipeline runs the per-item resolution stages: fetch context,
// generate a candidate, validate it, refine on failure, finalize.
package pipeline

import (
	"context"

	"github.com/vietddude/mender/internal/core/domain"
)

// ContextFetcher gathers textual context for a work item from the
// repository host.
type ContextFetcher interface {
	FetchContext(ctx context.Context, item domain.WorkItem) (*domain.Context, error)
}

// Generator produces a candidate fix from gathered context. On refinement
// passes, feedback carries the previous attempt's validation issues.
type Generator interface {
	Generate(ctx context.Context, itemCtx *domain.Context, feedback []string) (*domain.Candidate, error)
}

// Validator checks a candidate locally. Implementations must be pure:
// no I/O, no shared state.
type Validator interface {
	Validate(c *domain.Candidate) domain.Validation
}

// Finalizer persists an accepted candidate on the repository host.
type Finalizer interface {
	Finalize(ctx context.Context, c *domain.Candidate) (*domain.CommitHandle, error)
}

// Config wires the runner's collaborators. All four are required.
type Config struct {
	Fetcher   ContextFetcher
	Generator Generator
	Validator Validator
	Finalizer Finalizer

	// MaxRefineAttempts caps generate+validate cycles per item.
	// Zero means DefaultMaxRefineAttempts.
	MaxRefineAttempts int
}

// DefaultMaxRefineAttempts is the refine-loop ceiling when none is configured.
const DefaultMaxRefineAttempts = 3
