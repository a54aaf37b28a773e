package domain

import "time"

// ErrorCategory classifies why a pipeline run failed.
type ErrorCategory string

const (
	// ErrorContextFetch means gathering context from the repository host failed.
	ErrorContextFetch ErrorCategory = "context_fetch_error"

	// ErrorGeneration means the candidate generator failed terminally.
	ErrorGeneration ErrorCategory = "generation_error"

	// ErrorValidationExhausted means the refine loop ran out of attempts.
	ErrorValidationExhausted ErrorCategory = "validation_exhausted"

	// ErrorFinalize means submitting the accepted candidate failed.
	ErrorFinalize ErrorCategory = "finalize_error"

	// ErrorSkipped means the batch deadline passed before the item started.
	ErrorSkipped ErrorCategory = "skipped"

	// ErrorInternal means the pipeline panicked and was recovered.
	ErrorInternal ErrorCategory = "internal_error"
)

// PipelineResult is the terminal outcome for exactly one work item.
// Attempts counts generate+validate cycles and is at least 1 for any
// executed pipeline; it is 0 only for skipped items.
type PipelineResult struct {
	ItemID        string
	OriginalIndex int
	Success       bool
	Attempts      int
	Output        *Resolution
	Category      ErrorCategory
	Message       string
}

// ErrorGroup clusters failures that share a normalized message.
type ErrorGroup struct {
	NormalizedMessage string
	Count             int
}

// BatchSummary is the order-preserving aggregate report for one batch.
// Results are sorted by original submission index, never by completion time.
type BatchSummary struct {
	BatchID     string
	Total       int
	Succeeded   int
	Failed      int
	SuccessRate float64
	Results     []PipelineResult
	ErrorGroups []ErrorGroup
	StartedAt   time.Time
	FinishedAt  time.Time
}
