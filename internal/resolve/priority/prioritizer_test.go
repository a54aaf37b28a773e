package priority

import (
	"testing"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
)

func testConfig() Config {
	return Config{
		UrgentLabels: []string{"urgent", "critical"},
		BugLabels:    []string{"bug"},
		Jitter:       nil, // deterministic for tests
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestPrioritizer() *Prioritizer {
	p := New(testConfig())
	p.now = fixedNow
	return p
}

func item(id string, age time.Duration, labels ...string) domain.WorkItem {
	return domain.WorkItem{
		ID:        id,
		Labels:    labels,
		CreatedAt: fixedNow().Add(-age),
	}
}

func TestScoring(t *testing.T) {
	p := newTestPrioritizer()

	tests := []struct {
		name string
		item domain.WorkItem
		want float64
	}{
		{"plain old item", item("a", 48*time.Hour), 0},
		{"urgent label", item("b", 48*time.Hour, "urgent"), 10},
		{"two urgent labels", item("c", 48*time.Hour, "urgent", "critical"), 20},
		{"bug label", item("d", 48*time.Hour, "bug"), 5},
		{"urgent bug", item("e", 48*time.Hour, "urgent", "bug"), 15},
		{"fresh item", item("f", time.Hour), 1},
		{"stale item", item("g", 40*24*time.Hour), -1},
		{"fresh urgent bug", item("h", time.Hour, "urgent", "bug"), 16},
		{"unknown labels ignored", item("i", 48*time.Hour, "docs", "question"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.score(tt.item, fixedNow())
			if got != tt.want {
				t.Errorf("score(%s) = %v, want %v", tt.item.ID, got, tt.want)
			}
		})
	}
}

func TestPrioritizeSortsDescending(t *testing.T) {
	p := newTestPrioritizer()

	items := []domain.WorkItem{
		item("low", 48*time.Hour),
		item("high", time.Hour, "urgent", "bug"),
		item("mid", 48*time.Hour, "bug"),
	}

	scored := p.Prioritize(items)

	wantOrder := []string{"high", "mid", "low"}
	for i, want := range wantOrder {
		if scored[i].Item.ID != want {
			t.Errorf("position %d: got %s, want %s", i, scored[i].Item.ID, want)
		}
	}
}

func TestPrioritizeRecordsOriginalIndex(t *testing.T) {
	p := newTestPrioritizer()

	items := []domain.WorkItem{
		item("first", 48*time.Hour),
		item("second", time.Hour, "urgent"),
		item("third", 48*time.Hour, "bug"),
	}

	scored := p.Prioritize(items)

	seen := map[string]int{}
	for _, s := range scored {
		seen[s.Item.ID] = s.OriginalIndex
	}
	if seen["first"] != 0 || seen["second"] != 1 || seen["third"] != 2 {
		t.Errorf("original indexes not preserved: %v", seen)
	}
}

func TestPrioritizeStableOnTies(t *testing.T) {
	p := newTestPrioritizer()

	// All items score identically; submission order must survive.
	items := []domain.WorkItem{
		item("a", 48*time.Hour, "bug"),
		item("b", 48*time.Hour, "bug"),
		item("c", 48*time.Hour, "bug"),
		item("d", 48*time.Hour, "bug"),
	}

	scored := p.Prioritize(items)

	for i, want := range []string{"a", "b", "c", "d"} {
		if scored[i].Item.ID != want {
			t.Errorf("tie order broken at %d: got %s, want %s", i, scored[i].Item.ID, want)
		}
	}
}

func TestJitterStaysBelowScoreGap(t *testing.T) {
	// DefaultJitter must never push a lower deterministic score above a
	// higher one; base scores are whole numbers at least 1 apart.
	for i := 0; i < 1000; i++ {
		if j := DefaultJitter(); j < 0 || j >= 0.5 {
			t.Fatalf("DefaultJitter() = %v, want [0, 0.5)", j)
		}
	}
}

func TestPrioritizeEmpty(t *testing.T) {
	p := newTestPrioritizer()
	if got := p.Prioritize(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %d items", len(got))
	}
}
