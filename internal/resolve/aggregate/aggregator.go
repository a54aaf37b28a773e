// Package aggregate restores submission order and builds the batch summary.
package aggregate

import (
	"sort"

	"github.com/vietddude/mender/internal/core/domain"
)

// DefaultTopErrorGroups is how many error clusters a summary retains.
const DefaultTopErrorGroups = 5

// Aggregator folds scheduler output into an ordered BatchSummary.
type Aggregator struct {
	topK int
}

// New creates an aggregator keeping the topK most frequent error groups.
// topK <= 0 means DefaultTopErrorGroups.
func New(topK int) *Aggregator {
	if topK <= 0 {
		topK = DefaultTopErrorGroups
	}
	return &Aggregator{topK: topK}
}

// Aggregate sorts results back into submission order and computes counts,
// success rate, and ranked error clusters. The input slice is not modified.
func (a *Aggregator) Aggregate(batchID string, results []domain.PipelineResult) domain.BatchSummary {
	ordered := make([]domain.PipelineResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OriginalIndex < ordered[j].OriginalIndex
	})

	summary := domain.BatchSummary{
		BatchID: batchID,
		Total:   len(ordered),
		Results: ordered,
	}

	var failedMessages []string
	for _, r := range ordered {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
			failedMessages = append(failedMessages, r.Message)
		}
	}
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Total)
	}

	summary.ErrorGroups = a.groupErrors(failedMessages)
	return summary
}

// groupErrors clusters failure messages by normalized form, ranked by
// descending count. Ties keep first-appearance order.
func (a *Aggregator) groupErrors(messages []string) []domain.ErrorGroup {
	if len(messages) == 0 {
		return nil
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	var order []string

	for i, msg := range messages {
		norm := NormalizeMessage(msg)
		if _, ok := counts[norm]; !ok {
			firstSeen[norm] = i
			order = append(order, norm)
		}
		counts[norm]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > a.topK {
		order = order[:a.topK]
	}

	groups := make([]domain.ErrorGroup, len(order))
	for i, norm := range order {
		groups[i] = domain.ErrorGroup{NormalizedMessage: norm, Count: counts[norm]}
	}
	return groups
}
