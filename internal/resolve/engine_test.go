package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/resolve/priority"
)

const goodDiff = "--- a/main.go\n+++ b/main.go\n@@ -1,1 +1,1 @@\n-old\n+new\n"

// stubCollaborators is an instrumented collaborator set: configurable
// per-item latency and failures, plus a concurrent-call high-water mark.
type stubCollaborators struct {
	mu        sync.Mutex
	active    int
	highWater int

	delays    map[string]time.Duration
	fetchErr  map[string]error
	genErr    map[string]error
	badDiff   map[string]bool
	finalErr  map[string]error
	generated map[string]int
}

func newStubCollaborators() *stubCollaborators {
	return &stubCollaborators{
		delays:    map[string]time.Duration{},
		fetchErr:  map[string]error{},
		genErr:    map[string]error{},
		badDiff:   map[string]bool{},
		finalErr:  map[string]error{},
		generated: map[string]int{},
	}
}

func (s *stubCollaborators) enter() {
	s.mu.Lock()
	s.active++
	if s.active > s.highWater {
		s.highWater = s.active
	}
	s.mu.Unlock()
}

func (s *stubCollaborators) leave() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *stubCollaborators) FetchContext(ctx context.Context, item domain.WorkItem) (*domain.Context, error) {
	s.enter()
	defer s.leave()
	if d := s.delays[item.ID]; d > 0 {
		time.Sleep(d)
	}
	if err := s.fetchErr[item.ID]; err != nil {
		return nil, err
	}
	return &domain.Context{ItemID: item.ID}, nil
}

func (s *stubCollaborators) Generate(ctx context.Context, itemCtx *domain.Context, feedback []string) (*domain.Candidate, error) {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	s.generated[itemCtx.ItemID]++
	s.mu.Unlock()
	if err := s.genErr[itemCtx.ItemID]; err != nil {
		return nil, err
	}
	diff := goodDiff
	if s.badDiff[itemCtx.ItemID] {
		diff = ""
	}
	return &domain.Candidate{ItemID: itemCtx.ItemID, Diff: diff}, nil
}

func (s *stubCollaborators) Finalize(ctx context.Context, c *domain.Candidate) (*domain.CommitHandle, error) {
	s.enter()
	defer s.leave()
	if err := s.finalErr[c.ItemID]; err != nil {
		return nil, err
	}
	return &domain.CommitHandle{ID: "commit-" + c.ItemID}, nil
}

func newTestEngine(t *testing.T, stub *stubCollaborators) *Engine {
	t.Helper()
	e, err := NewEngine(Collaborators{
		Fetcher:   stub,
		Generator: stub,
		Finalizer: stub,
	}, priority.Config{
		UrgentLabels: []string{"urgent"},
		BugLabels:    []string{"bug"},
		Jitter:       nil,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func workItems(n int) []domain.WorkItem {
	items := make([]domain.WorkItem, n)
	for i := range items {
		items[i] = domain.WorkItem{
			ID:        fmt.Sprintf("item-%d", i+1),
			CreatedAt: time.Now().Add(-48 * time.Hour),
		}
	}
	return items
}

func TestSubmitBatchPreservesSubmissionOrder(t *testing.T) {
	stub := newStubCollaborators()
	delays := []time.Duration{50, 10, 30, 5, 20}
	items := workItems(5)
	for i := range items {
		stub.delays[items[i].ID] = delays[i] * time.Millisecond
	}
	e := newTestEngine(t, stub)

	summary, err := e.SubmitBatch(context.Background(), items, Options{MaxConcurrent: 2})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	if len(summary.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(summary.Results))
	}
	for i, r := range summary.Results {
		want := fmt.Sprintf("item-%d", i+1)
		if r.ItemID != want {
			t.Errorf("Results[%d] = %s, want %s (order must ignore completion timing)", i, r.ItemID, want)
		}
	}
}

func TestSubmitBatchConcurrencyHighWaterMark(t *testing.T) {
	stub := newStubCollaborators()
	items := workItems(8)
	for _, it := range items {
		stub.delays[it.ID] = 15 * time.Millisecond
	}
	e := newTestEngine(t, stub)

	_, err := e.SubmitBatch(context.Background(), items, Options{MaxConcurrent: 3})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if stub.highWater > 3 {
		t.Errorf("collaborator high-water mark %d exceeds concurrency cap 3", stub.highWater)
	}
}

func TestSubmitBatchEveryItemExactlyOnce(t *testing.T) {
	stub := newStubCollaborators()
	items := workItems(7)
	stub.fetchErr["item-2"] = errors.New("repo gone")
	stub.badDiff["item-4"] = true
	stub.finalErr["item-6"] = errors.New("push rejected")
	e := newTestEngine(t, stub)

	summary, err := e.SubmitBatch(context.Background(), items, Options{MaxConcurrent: 3})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	if summary.Total != 7 {
		t.Errorf("Total = %d, want 7", summary.Total)
	}
	seen := map[string]int{}
	for _, r := range summary.Results {
		seen[r.ItemID]++
	}
	for _, it := range items {
		if seen[it.ID] != 1 {
			t.Errorf("item %s appears %d times, want exactly 1", it.ID, seen[it.ID])
		}
	}
	if summary.Succeeded != 4 || summary.Failed != 3 {
		t.Errorf("succeeded/failed = %d/%d, want 4/3", summary.Succeeded, summary.Failed)
	}
}

func TestSubmitBatchFailureCategories(t *testing.T) {
	stub := newStubCollaborators()
	items := workItems(4)
	stub.fetchErr["item-1"] = errors.New("repo gone")
	stub.genErr["item-2"] = errors.New("model down")
	stub.badDiff["item-3"] = true
	stub.finalErr["item-4"] = errors.New("push rejected")
	e := newTestEngine(t, stub)

	summary, err := e.SubmitBatch(context.Background(), items, Options{MaxConcurrent: 2, MaxRefineAttempts: 3})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	want := map[string]domain.ErrorCategory{
		"item-1": domain.ErrorContextFetch,
		"item-2": domain.ErrorGeneration,
		"item-3": domain.ErrorValidationExhausted,
		"item-4": domain.ErrorFinalize,
	}
	for _, r := range summary.Results {
		if r.Category != want[r.ItemID] {
			t.Errorf("item %s: category %s, want %s", r.ItemID, r.Category, want[r.ItemID])
		}
	}
	if got := stub.generated["item-3"]; got != 3 {
		t.Errorf("exhausted item generated %d times, want exactly 3", got)
	}
}

func TestSubmitBatchRejectsNegativeConcurrency(t *testing.T) {
	e := newTestEngine(t, newStubCollaborators())
	_, err := e.SubmitBatch(context.Background(), workItems(2), Options{MaxConcurrent: -1})
	if err == nil {
		t.Fatal("expected config error before scheduling")
	}
}

func TestSubmitBatchRejectsDuplicateIDs(t *testing.T) {
	e := newTestEngine(t, newStubCollaborators())
	items := workItems(2)
	items[1].ID = items[0].ID
	_, err := e.SubmitBatch(context.Background(), items, Options{})
	if !errors.Is(err, ErrDuplicateItemID) {
		t.Fatalf("err = %v, want ErrDuplicateItemID", err)
	}
}

func TestSubmitBatchDeadline(t *testing.T) {
	stub := newStubCollaborators()
	items := workItems(10)
	for _, it := range items {
		stub.delays[it.ID] = 25 * time.Millisecond
	}
	e := newTestEngine(t, stub)

	summary, err := e.SubmitBatch(context.Background(), items, Options{
		MaxConcurrent: 2,
		BatchDeadline: 40 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	if summary.Total != 10 {
		t.Fatalf("every item needs a result, got %d", summary.Total)
	}
	var skippedCount, finished int
	for _, r := range summary.Results {
		switch {
		case r.Category == domain.ErrorSkipped:
			skippedCount++
		case r.Success:
			finished++
		}
	}
	if skippedCount == 0 {
		t.Error("expected some items skipped after deadline")
	}
	if finished == 0 {
		t.Error("already-started items must finish normally")
	}
	if finished+skippedCount != 10 {
		t.Errorf("finished %d + skipped %d != 10", finished, skippedCount)
	}
}

func TestSubmitBatchAppliesDefaults(t *testing.T) {
	stub := newStubCollaborators()
	e := newTestEngine(t, stub)

	summary, err := e.SubmitBatch(context.Background(), workItems(3), Options{})
	if err != nil {
		t.Fatalf("SubmitBatch with zero options: %v", err)
	}
	if summary.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", summary.Succeeded)
	}
	if summary.BatchID == "" {
		t.Error("batch ID must be assigned")
	}
}

func TestSubmitBatchRunsUrgentItemsFirst(t *testing.T) {
	stub := newStubCollaborators()
	items := workItems(3)
	items[2].Labels = []string{"urgent", "bug"}
	e := newTestEngine(t, stub)

	summary, err := e.SubmitBatch(context.Background(), items, Options{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	// Priority changes execution order, never reporting order.
	for i, r := range summary.Results {
		want := fmt.Sprintf("item-%d", i+1)
		if r.ItemID != want {
			t.Errorf("Results[%d] = %s, want %s", i, r.ItemID, want)
		}
	}
}
