package pipeline

import (
	"testing"

	"github.com/vietddude/mender/internal/core/domain"
)

func TestDiffValidator(t *testing.T) {
	v := NewDiffValidator()

	tests := []struct {
		name      string
		diff      string
		wantValid bool
	}{
		{"valid diff", goodDiff, true},
		{"empty diff", "", false},
		{"whitespace only", "  \n\t", false},
		{"no hunk headers", "+added line\n-removed line\n", false},
		{"truncated marker", "@@ -1 +1 @@\n+x\n[truncated]", false},
		{"no changed lines", "--- a/f\n+++ b/f\n@@ -1 +1 @@\n context\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(&domain.Candidate{Diff: tt.diff})
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (issues: %v)", got.Valid, tt.wantValid, got.Issues)
			}
			if !got.Valid && len(got.Issues) == 0 {
				t.Error("invalid result must carry issues")
			}
		})
	}
}
