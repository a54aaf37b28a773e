package pipeline

import (
	"strings"

	"github.com/vietddude/mender/internal/core/domain"
)

// DiffValidator is the default structural validator: it checks that a
// candidate carries a well-formed unified diff. It never does I/O.
type DiffValidator struct{}

// NewDiffValidator creates the default validator.
func NewDiffValidator() *DiffValidator {
	return &DiffValidator{}
}

// Validate runs structural checks over the candidate's diff and returns
// every issue found, not just the first.
func (v *DiffValidator) Validate(c *domain.Candidate) domain.Validation {
	var issues []string

	diff := strings.TrimSpace(c.Diff)
	if diff == "" {
		issues = append(issues, "candidate diff is empty")
		return domain.Validation{Valid: false, Issues: issues}
	}

	if !strings.Contains(diff, "@@") {
		issues = append(issues, "diff has no hunk headers")
	}

	if strings.Contains(diff, "…") || strings.Contains(diff, "[truncated]") {
		issues = append(issues, "diff appears truncated")
	}

	var adds, dels int
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			adds++
		case strings.HasPrefix(line, "-"):
			dels++
		}
	}
	if adds == 0 && dels == 0 {
		issues = append(issues, "diff changes no lines")
	}

	return domain.Validation{Valid: len(issues) == 0, Issues: issues}
}
