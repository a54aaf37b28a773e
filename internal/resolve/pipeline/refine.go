package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/resolve/metrics"
)

// refine runs the bounded generate+validate loop. It returns the last
// candidate, its validation, and the number of cycles executed. A non-nil
// error means the generator itself failed, which is terminal; the attempt
// that failed is included in the count. MaxRefineAttempts is a hard ceiling
// regardless of collaborator behavior.
func (r *Runner) refine(ctx context.Context, itemCtx *domain.Context) (*domain.Candidate, domain.Validation, int, error) {
	var (
		candidate  *domain.Candidate
		validation domain.Validation
		feedback   []string
	)

	for attempt := 1; attempt <= r.cfg.MaxRefineAttempts; attempt++ {
		metrics.GenerateAttempts.Inc()

		c, err := r.cfg.Generator.Generate(ctx, itemCtx, feedback)
		if err != nil {
			return nil, domain.Validation{}, attempt, err
		}
		c.Attempt = attempt
		candidate = c

		validation = r.cfg.Validator.Validate(candidate)
		if validation.Valid {
			return candidate, validation, attempt, nil
		}

		feedback = buildFeedback(attempt, validation.Issues)
	}

	// Last candidate and its issues are kept for diagnostics.
	return candidate, validation, r.cfg.MaxRefineAttempts, nil
}

// buildFeedback turns validation issues into generator guidance for the
// next attempt.
func buildFeedback(attempt int, issues []string) []string {
	fb := make([]string, 0, len(issues)+1)
	fb = append(fb, fmt.Sprintf("attempt %d was rejected, fix the following issues", attempt))
	fb = append(fb, issues...)
	return fb
}

func joinIssues(issues []string) string {
	if len(issues) == 0 {
		return "no issues reported"
	}
	return strings.Join(issues, "; ")
}
