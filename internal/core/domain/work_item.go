package domain

import "time"

// WorkItem is one reported problem submitted for automated resolution.
// Items are immutable after creation and safe to share across goroutines.
type WorkItem struct {
	ID        string
	Labels    []string
	CreatedAt time.Time
	Payload   Payload
}

// Payload carries the problem description the pipeline resolves.
// The core never interprets it; collaborators do.
type Payload struct {
	Repo  string
	Title string
	Body  string
}

// HasLabel reports whether the item carries the given label.
func (w WorkItem) HasLabel(label string) bool {
	for _, l := range w.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Age returns how long ago the item was created, relative to now.
func (w WorkItem) Age(now time.Time) time.Duration {
	return now.Sub(w.CreatedAt)
}

// ScoredWorkItem pairs a WorkItem with its computed priority score and the
// index it held in the original submission. The index survives scheduling so
// the aggregator can restore submission order.
type ScoredWorkItem struct {
	Item          WorkItem
	Score         float64
	OriginalIndex int
}
