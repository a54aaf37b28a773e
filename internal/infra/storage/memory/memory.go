package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/infra/storage"
)

// MemoryStorage backs all repositories when no database is configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	queue   map[string]*queuedItem
	batches map[string]*domain.BatchSummary
	results map[string][]domain.PipelineResult
}

type queuedItem struct {
	item     domain.WorkItem
	status   storage.QueuedStatus
	lastErr  string
	enqueued time.Time
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		queue:   make(map[string]*queuedItem),
		batches: make(map[string]*domain.BatchSummary),
		results: make(map[string][]domain.PipelineResult),
	}
}

// -----------------------------------------------------------------------------
// WorkItem Repository
// -----------------------------------------------------------------------------

type WorkItemRepo struct {
	store *MemoryStorage
}

func NewWorkItemRepo(store *MemoryStorage) *WorkItemRepo {
	return &WorkItemRepo{store: store}
}

func (r *WorkItemRepo) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.queue[item.ID]; ok {
		return nil
	}
	r.store.queue[item.ID] = &queuedItem{
		item:     *item,
		status:   storage.QueuedStatusPending,
		enqueued: time.Now(),
	}
	return nil
}

func (r *WorkItemRepo) DequeuePending(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var pending []*queuedItem
	for _, q := range r.store.queue {
		if q.status == storage.QueuedStatusPending {
			pending = append(pending, q)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].item.CreatedAt.Before(pending[j].item.CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	items := make([]domain.WorkItem, 0, len(pending))
	for _, q := range pending {
		q.status = storage.QueuedStatusRunning
		items = append(items, q.item)
	}
	return items, nil
}

func (r *WorkItemRepo) MarkResolved(ctx context.Context, ids []string) error {
	return r.setStatus(ids, storage.QueuedStatusResolved, "")
}

func (r *WorkItemRepo) MarkFailed(ctx context.Context, ids []string, reason string) error {
	return r.setStatus(ids, storage.QueuedStatusFailed, reason)
}

func (r *WorkItemRepo) Requeue(ctx context.Context, ids []string) error {
	return r.setStatus(ids, storage.QueuedStatusPending, "")
}

func (r *WorkItemRepo) setStatus(ids []string, status storage.QueuedStatus, reason string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range ids {
		if q, ok := r.store.queue[id]; ok {
			q.status = status
			q.lastErr = reason
		}
	}
	return nil
}

func (r *WorkItemRepo) CountPending(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, q := range r.store.queue {
		if q.status == storage.QueuedStatusPending {
			count++
		}
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Batch Repository
// -----------------------------------------------------------------------------

type BatchRepo struct {
	store *MemoryStorage
}

func NewBatchRepo(store *MemoryStorage) *BatchRepo {
	return &BatchRepo{store: store}
}

func (r *BatchRepo) SaveSummary(ctx context.Context, s *domain.BatchSummary) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *s
	cp.Results = nil
	r.store.batches[s.BatchID] = &cp
	return nil
}

func (r *BatchRepo) GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.batches[batchID]
	if !ok {
		return nil, storage.ErrBatchNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *BatchRepo) ListRecent(ctx context.Context, limit int) ([]domain.BatchSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	summaries := make([]domain.BatchSummary, 0, len(r.store.batches))
	for _, s := range r.store.batches {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].FinishedAt.After(summaries[j].FinishedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (r *BatchRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	deleted := 0
	for id, s := range r.store.batches {
		if s.FinishedAt.Before(cutoff) {
			delete(r.store.batches, id)
			delete(r.store.results, id)
			deleted++
		}
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Result Repository
// -----------------------------------------------------------------------------

type ResultRepo struct {
	store *MemoryStorage
}

func NewResultRepo(store *MemoryStorage) *ResultRepo {
	return &ResultRepo{store: store}
}

func (r *ResultRepo) SaveBatch(ctx context.Context, batchID string, results []domain.PipelineResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := make([]domain.PipelineResult, len(results))
	copy(cp, results)
	r.store.results[batchID] = cp
	return nil
}

func (r *ResultRepo) GetByBatch(ctx context.Context, batchID string) ([]domain.PipelineResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	results := make([]domain.PipelineResult, len(r.store.results[batchID]))
	copy(results, r.store.results[batchID])
	sort.Slice(results, func(i, j int) bool {
		return results[i].OriginalIndex < results[j].OriginalIndex
	})
	return results, nil
}
