package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/mender/internal/infra/storage"
)

// Pruner deletes old batch history based on retention policy.
type Pruner struct {
	retention time.Duration
	batchRepo storage.BatchRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, batchRepo storage.BatchRepository) *Pruner {
	return &Pruner{
		retention: retention,
		batchRepo: batchRepo,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check interval is 10% of the retention period, clamped to [1m, 1h]
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	deleted, err := p.batchRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune batch history", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Pruned batch history", "deleted", deleted, "cutoff", cutoff)
	}
}
