package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/mender/internal/core/domain"
)

// WorkItemRepo implements storage.WorkItemRepository using PostgreSQL.
type WorkItemRepo struct {
	db *DB
}

// NewWorkItemRepo creates a new PostgreSQL work item repository.
func NewWorkItemRepo(db *DB) *WorkItemRepo {
	return &WorkItemRepo{db: db}
}

// Enqueue adds a work item to the queue.
func (r *WorkItemRepo) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	query := `
		INSERT INTO work_items (id, labels, repo, title, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		strings.Join(item.Labels, ","),
		item.Payload.Repo,
		item.Payload.Title,
		item.Payload.Body,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue work item: %w", err)
	}
	return nil
}

// DequeuePending claims up to limit pending items, oldest first.
// The UPDATE+RETURNING keeps the claim atomic under concurrent pollers.
func (r *WorkItemRepo) DequeuePending(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	query := `
		UPDATE work_items SET status = 'running', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM work_items
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, labels, repo, title, body, created_at
	`

	var rows []struct {
		ID        string    `db:"id"`
		Labels    string    `db:"labels"`
		Repo      string    `db:"repo"`
		Title     string    `db:"title"`
		Body      string    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to dequeue work items: %w", err)
	}

	items := make([]domain.WorkItem, 0, len(rows))
	for _, row := range rows {
		var labels []string
		if row.Labels != "" {
			labels = strings.Split(row.Labels, ",")
		}
		items = append(items, domain.WorkItem{
			ID:        row.ID,
			Labels:    labels,
			CreatedAt: row.CreatedAt,
			Payload: domain.Payload{
				Repo:  row.Repo,
				Title: row.Title,
				Body:  row.Body,
			},
		})
	}
	return items, nil
}

// MarkResolved marks items terminally resolved.
func (r *WorkItemRepo) MarkResolved(ctx context.Context, ids []string) error {
	return r.setStatus(ctx, ids, "resolved", "")
}

// MarkFailed marks items terminally failed with a reason.
func (r *WorkItemRepo) MarkFailed(ctx context.Context, ids []string, reason string) error {
	return r.setStatus(ctx, ids, "failed", reason)
}

// Requeue returns failed items to pending.
func (r *WorkItemRepo) Requeue(ctx context.Context, ids []string) error {
	return r.setStatus(ctx, ids, "pending", "")
}

func (r *WorkItemRepo) setStatus(ctx context.Context, ids []string, status, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE work_items SET status = ?, last_error = ?, updated_at = NOW() WHERE id IN (?)",
		status, reason, ids,
	)
	if err != nil {
		return fmt.Errorf("failed to build status update: %w", err)
	}
	query = r.db.Rebind(query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update work item status: %w", err)
	}
	return nil
}

// CountPending returns the number of pending items.
func (r *WorkItemRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM work_items WHERE status = 'pending'")
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}
