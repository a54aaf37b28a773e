// Package priority orders work items before scheduling.
//
// Scoring is deterministic except for an optional jitter term used as a
// tie-break between equally scored items. Deterministic score components are
// whole numbers and jitter stays below 0.5, so jitter can only reorder exact
// ties, never items with different base scores.
package priority

import (
	"math/rand"
	"sort"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
)

const (
	urgentLabelWeight = 10
	bugLabelWeight    = 5
	freshBonus        = 1
	stalePenalty      = 1

	freshAge = 24 * time.Hour
	staleAge = 30 * 24 * time.Hour
)

// Config holds label sets and the tie-break source.
type Config struct {
	UrgentLabels []string `yaml:"urgent_labels"`
	BugLabels    []string `yaml:"bug_labels"`

	// Jitter returns the tie-break perturbation added to each score.
	// Values must stay in [0, 0.5) so two perturbed scores can never
	// straddle a whole-number gap between deterministic scores. Nil
	// disables the perturbation, leaving submission order as the
	// secondary key via the stable sort.
	Jitter func() float64 `yaml:"-"`
}

// DefaultConfig returns the label sets used when none are configured.
func DefaultConfig() Config {
	return Config{
		UrgentLabels: []string{"urgent", "critical", "p0"},
		BugLabels:    []string{"bug", "defect", "regression"},
		Jitter:       DefaultJitter,
	}
}

// DefaultJitter is the random tie-break used in production.
func DefaultJitter() float64 {
	return rand.Float64() / 2
}

// Prioritizer computes scores and sorts items for the scheduler.
type Prioritizer struct {
	urgent map[string]struct{}
	bugs   map[string]struct{}
	jitter func() float64
	now    func() time.Time
}

// New creates a Prioritizer from the given config.
func New(cfg Config) *Prioritizer {
	p := &Prioritizer{
		urgent: make(map[string]struct{}, len(cfg.UrgentLabels)),
		bugs:   make(map[string]struct{}, len(cfg.BugLabels)),
		jitter: cfg.Jitter,
		now:    time.Now,
	}
	for _, l := range cfg.UrgentLabels {
		p.urgent[l] = struct{}{}
	}
	for _, l := range cfg.BugLabels {
		p.bugs[l] = struct{}{}
	}
	return p
}

// Prioritize scores every item and returns them sorted by descending score.
// The sort is stable, so items whose scores tie keep submission order. Each
// output element records the index the item held in the input.
func (p *Prioritizer) Prioritize(items []domain.WorkItem) []domain.ScoredWorkItem {
	now := p.now()

	scored := make([]domain.ScoredWorkItem, len(items))
	for i, item := range items {
		scored[i] = domain.ScoredWorkItem{
			Item:          item,
			Score:         p.score(item, now),
			OriginalIndex: i,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}

func (p *Prioritizer) score(item domain.WorkItem, now time.Time) float64 {
	var score float64

	for _, l := range item.Labels {
		if _, ok := p.urgent[l]; ok {
			score += urgentLabelWeight
		}
	}

	for _, l := range item.Labels {
		if _, ok := p.bugs[l]; ok {
			score += bugLabelWeight
			break
		}
	}

	age := item.Age(now)
	if age < freshAge {
		score += freshBonus
	} else if age > staleAge {
		score -= stalePenalty
	}

	if p.jitter != nil {
		score += p.jitter()
	}

	return score
}
