package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/mender/internal/core/domain"
)

// ResultRepo implements storage.ResultRepository using PostgreSQL.
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a new PostgreSQL result repository.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveBatch persists all results of one batch in a single transaction.
func (r *ResultRepo) SaveBatch(ctx context.Context, batchID string, results []domain.PipelineResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO batch_results
			(batch_id, item_id, original_index, success, attempts, category, message, commit_id, commit_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, res := range results {
		var commitID, commitURL string
		if res.Output != nil && res.Output.Commit != nil {
			commitID = res.Output.Commit.ID
			commitURL = res.Output.Commit.URL
		}
		_, err := tx.ExecContext(
			ctx,
			query,
			batchID,
			res.ItemID,
			res.OriginalIndex,
			res.Success,
			res.Attempts,
			string(res.Category),
			res.Message,
			commitID,
			commitURL,
		)
		if err != nil {
			return fmt.Errorf("failed to save result for %s: %w", res.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// GetByBatch retrieves a batch's results in submission order.
func (r *ResultRepo) GetByBatch(ctx context.Context, batchID string) ([]domain.PipelineResult, error) {
	query := `
		SELECT item_id, original_index, success, attempts, category, message, commit_id, commit_url
		FROM batch_results WHERE batch_id = $1 ORDER BY original_index ASC
	`

	var rows []struct {
		ItemID        string `db:"item_id"`
		OriginalIndex int    `db:"original_index"`
		Success       bool   `db:"success"`
		Attempts      int    `db:"attempts"`
		Category      string `db:"category"`
		Message       string `db:"message"`
		CommitID      string `db:"commit_id"`
		CommitURL     string `db:"commit_url"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, batchID); err != nil {
		return nil, fmt.Errorf("failed to get batch results: %w", err)
	}

	results := make([]domain.PipelineResult, 0, len(rows))
	for _, row := range rows {
		res := domain.PipelineResult{
			ItemID:        row.ItemID,
			OriginalIndex: row.OriginalIndex,
			Success:       row.Success,
			Attempts:      row.Attempts,
			Category:      domain.ErrorCategory(row.Category),
			Message:       row.Message,
		}
		if row.CommitID != "" {
			res.Output = &domain.Resolution{
				Commit: &domain.CommitHandle{ID: row.CommitID, URL: row.CommitURL},
			}
		}
		results = append(results, res)
	}
	return results, nil
}
