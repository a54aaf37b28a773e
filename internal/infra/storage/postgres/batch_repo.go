package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/infra/storage"
)

// BatchRepo implements storage.BatchRepository using PostgreSQL.
type BatchRepo struct {
	db *DB
}

// NewBatchRepo creates a new PostgreSQL batch repository.
func NewBatchRepo(db *DB) *BatchRepo {
	return &BatchRepo{db: db}
}

type batchRow struct {
	BatchID     string    `db:"batch_id"`
	Total       int       `db:"total"`
	Succeeded   int       `db:"succeeded"`
	Failed      int       `db:"failed"`
	SuccessRate float64   `db:"success_rate"`
	ErrorGroups []byte    `db:"error_groups"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
}

// SaveSummary persists a batch summary. Error groups are stored as JSONB;
// per-item results live in batch_results via ResultRepo.
func (r *BatchRepo) SaveSummary(ctx context.Context, s *domain.BatchSummary) error {
	groups, err := json.Marshal(s.ErrorGroups)
	if err != nil {
		return fmt.Errorf("failed to encode error groups: %w", err)
	}

	query := `
		INSERT INTO batches (batch_id, total, succeeded, failed, success_rate, error_groups, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		s.BatchID,
		s.Total,
		s.Succeeded,
		s.Failed,
		s.SuccessRate,
		groups,
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save batch summary: %w", err)
	}
	return nil
}

// GetSummary retrieves a summary by batch ID.
func (r *BatchRepo) GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	query := `
		SELECT batch_id, total, succeeded, failed, success_rate, error_groups, started_at, finished_at
		FROM batches WHERE batch_id = $1
	`
	var row batchRow
	err := r.db.GetContext(ctx, &row, query, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch summary: %w", err)
	}
	return row.toDomain()
}

// ListRecent returns the most recent summaries, newest first.
func (r *BatchRepo) ListRecent(ctx context.Context, limit int) ([]domain.BatchSummary, error) {
	query := `
		SELECT batch_id, total, succeeded, failed, success_rate, error_groups, started_at, finished_at
		FROM batches ORDER BY finished_at DESC LIMIT $1
	`
	var rows []batchRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	summaries := make([]domain.BatchSummary, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *s)
	}
	return summaries, nil
}

// DeleteOlderThan removes summaries finished before the cutoff.
func (r *BatchRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM batches WHERE finished_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old batches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (row batchRow) toDomain() (*domain.BatchSummary, error) {
	var groups []domain.ErrorGroup
	if len(row.ErrorGroups) > 0 {
		if err := json.Unmarshal(row.ErrorGroups, &groups); err != nil {
			return nil, fmt.Errorf("failed to decode error groups: %w", err)
		}
	}
	return &domain.BatchSummary{
		BatchID:     row.BatchID,
		Total:       row.Total,
		Succeeded:   row.Succeeded,
		Failed:      row.Failed,
		SuccessRate: row.SuccessRate,
		ErrorGroups: groups,
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
	}, nil
}
