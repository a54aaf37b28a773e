package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
)

// ErrBatchNotFound is returned when a batch summary doesn't exist.
var ErrBatchNotFound = errors.New("batch not found")

// QueuedStatus tracks a work item's place in the queue lifecycle.
type QueuedStatus string

const (
	QueuedStatusPending  QueuedStatus = "pending"
	QueuedStatusRunning  QueuedStatus = "running"
	QueuedStatusResolved QueuedStatus = "resolved"
	QueuedStatusFailed   QueuedStatus = "failed"
)

// WorkItemRepository handles the pending work-item queue.
type WorkItemRepository interface {
	// Enqueue adds a work item to the queue.
	Enqueue(ctx context.Context, item *domain.WorkItem) error

	// DequeuePending claims up to limit pending items, oldest first,
	// marking them running.
	DequeuePending(ctx context.Context, limit int) ([]domain.WorkItem, error)

	// MarkResolved marks items terminally resolved.
	MarkResolved(ctx context.Context, ids []string) error

	// MarkFailed marks items terminally failed with a reason.
	MarkFailed(ctx context.Context, ids []string, reason string) error

	// Requeue returns failed items to pending.
	Requeue(ctx context.Context, ids []string) error

	// CountPending returns the number of pending items.
	CountPending(ctx context.Context) (int, error)
}

// BatchRepository handles batch summary storage.
type BatchRepository interface {
	// SaveSummary persists a batch summary (without per-item results).
	SaveSummary(ctx context.Context, s *domain.BatchSummary) error

	// GetSummary retrieves a summary by batch ID.
	GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error)

	// ListRecent returns the most recent summaries, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.BatchSummary, error)

	// DeleteOlderThan removes summaries finished before the cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// ResultRepository handles per-item pipeline results.
type ResultRepository interface {
	// SaveBatch persists all results of one batch.
	SaveBatch(ctx context.Context, batchID string, results []domain.PipelineResult) error

	// GetByBatch retrieves a batch's results in submission order.
	GetByBatch(ctx context.Context, batchID string) ([]domain.PipelineResult, error)
}
