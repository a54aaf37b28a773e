// Package control wires storage, remote clients, and the resolution engine
// into a long-running service.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/mender/internal/core/config"
	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/core/worker"
	"github.com/vietddude/mender/internal/infra/forge"
	"github.com/vietddude/mender/internal/infra/model"
	redisclient "github.com/vietddude/mender/internal/infra/redis"
	"github.com/vietddude/mender/internal/infra/storage"
	"github.com/vietddude/mender/internal/infra/storage/memory"
	"github.com/vietddude/mender/internal/infra/storage/postgres"
	"github.com/vietddude/mender/internal/resolve"
	"github.com/vietddude/mender/internal/resolve/health"
)

// Resolver is the main application struct that manages the resolution
// service lifecycle: it polls the work-item queue, runs batches through the
// engine, and persists outcomes.
type Resolver struct {
	cfg          *config.AppConfig
	engine       *resolve.Engine
	itemRepo     storage.WorkItemRepository
	batchRepo    storage.BatchRepository
	resultRepo   storage.ResultRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *worker.Pruner
	log          *slog.Logger
}

// NewResolver creates a new Resolver instance with all dependencies
// initialized.
func NewResolver(cfg *config.AppConfig) (*Resolver, error) {

	// 1. Initialize Storage
	var itemRepo storage.WorkItemRepository
	var batchRepo storage.BatchRepository
	var resultRepo storage.ResultRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations. Goose needs the *sql.DB that sqlx wraps.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		itemRepo = postgres.NewWorkItemRepo(db)
		batchRepo = postgres.NewBatchRepo(db)
		resultRepo = postgres.NewResultRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		itemRepo = memory.NewWorkItemRepo(store)
		batchRepo = memory.NewBatchRepo(store)
		resultRepo = memory.NewResultRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis (optional, dedup and progress only)
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, dedup disabled", "error", err)
		}
	}

	// 3. Initialize Remote Clients
	forgeClient, err := forge.NewClient(cfg.Forge)
	if err != nil {
		return nil, fmt.Errorf("failed to init forge client: %w", err)
	}
	modelClient, err := model.NewClient(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to init model client: %w", err)
	}

	// 4. Initialize Engine
	engine, err := resolve.NewEngine(resolve.Collaborators{
		Fetcher:   forgeClient,
		Generator: modelClient,
		Finalizer: forgeClient,
	}, cfg.Priority)
	if err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}

	// 5. Initialize Health Monitor and Server
	var dbPinger health.Pinger
	if db != nil {
		dbPinger = db
	}
	var redisPinger health.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	healthMon := health.NewMonitor(dbPinger, redisPinger, itemRepo)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	// 6. Initialize Pruner
	var pruner *worker.Pruner
	if cfg.Batch.Retention > 0 {
		pruner = worker.NewPruner(cfg.Batch.Retention, batchRepo)
	}

	return &Resolver{
		cfg:          cfg,
		engine:       engine,
		itemRepo:     itemRepo,
		batchRepo:    batchRepo,
		resultRepo:   resultRepo,
		db:           db,
		redisClient:  redisClient,
		healthMon:    healthMon,
		healthServer: healthServer,
		pruner:       pruner,
		log:          slog.Default().With("component", "resolver"),
	}, nil
}

// Start starts the resolver and all its components. It returns immediately;
// the poll loop and servers run until ctx is cancelled.
func (r *Resolver) Start(ctx context.Context) error {
	go func() {
		if err := r.healthServer.Start(); err != nil {
			r.log.Error("Health server failed", "error", err)
		}
	}()

	go r.healthMon.Start(ctx)

	if r.db != nil {
		r.db.StartMetricsCollector(ctx)
	}

	if r.pruner != nil {
		go r.pruner.Start(ctx)
	}

	go r.runLoop(ctx)

	return nil
}

// Stop stops the resolver.
func (r *Resolver) Stop(ctx context.Context) error {
	r.log.Info("Stopping Resolver...")

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Warn("Failed to close database", "error", err)
		}
	}

	return r.healthServer.Stop(ctx)
}

func (r *Resolver) runLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Batch.ScanInterval)
	defer ticker.Stop()

	// Initial scan so a restart doesn't wait a full interval
	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce claims one batch of pending items and resolves it end to end.
func (r *Resolver) runOnce(ctx context.Context) {
	items, err := r.itemRepo.DequeuePending(ctx, r.cfg.Batch.BatchSize)
	if err != nil {
		r.log.Error("Failed to dequeue pending items", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	items, err = r.dropAlreadyResolved(ctx, items)
	if err != nil {
		r.log.Warn("Dedup filter failed, resolving full batch", "error", err)
	}
	if len(items) == 0 {
		return
	}

	summary, err := r.engine.SubmitBatch(ctx, items, resolve.Options{
		MaxConcurrent:     r.cfg.Batch.MaxConcurrent,
		MaxRefineAttempts: r.cfg.Batch.MaxRefineAttempts,
		BatchDeadline:     r.cfg.Batch.Deadline,
	})
	if err != nil {
		// Batch-level errors happen before any item ran, so the whole
		// claim goes back to pending.
		r.log.Error("Batch submission failed", "error", err)
		if reqErr := r.itemRepo.Requeue(ctx, itemIDs(items)); reqErr != nil {
			r.log.Error("Failed to requeue items", "error", reqErr)
		}
		return
	}

	r.persistOutcome(ctx, summary)
}

// dropAlreadyResolved removes items the redis dedup set has seen before and
// marks them resolved in storage.
func (r *Resolver) dropAlreadyResolved(ctx context.Context, items []domain.WorkItem) ([]domain.WorkItem, error) {
	if r.redisClient == nil {
		return items, nil
	}

	keep, err := r.redisClient.FilterUnresolved(ctx, itemIDs(items))
	if err != nil {
		return items, err
	}
	if len(keep) == len(items) {
		return items, nil
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	var out []domain.WorkItem
	var dropped []string
	for _, it := range items {
		if _, ok := keepSet[it.ID]; ok {
			out = append(out, it)
		} else {
			dropped = append(dropped, it.ID)
		}
	}

	if len(dropped) > 0 {
		r.log.Info("Skipping already-resolved items", "count", len(dropped))
		if err := r.itemRepo.MarkResolved(ctx, dropped); err != nil {
			r.log.Warn("Failed to mark deduped items resolved", "error", err)
		}
	}
	return out, nil
}

func (r *Resolver) persistOutcome(ctx context.Context, summary domain.BatchSummary) {
	if err := r.batchRepo.SaveSummary(ctx, &summary); err != nil {
		r.log.Error("Failed to save batch summary", "batch", summary.BatchID, "error", err)
	}
	if err := r.resultRepo.SaveBatch(ctx, summary.BatchID, summary.Results); err != nil {
		r.log.Error("Failed to save batch results", "batch", summary.BatchID, "error", err)
	}

	var resolved, skipped []string
	failed := make(map[string]string)
	for _, res := range summary.Results {
		switch {
		case res.Success:
			resolved = append(resolved, res.ItemID)
		case res.Category == domain.ErrorSkipped:
			// Skipped items never ran a stage; they go back to pending
			// for the next scan instead of a terminal state.
			skipped = append(skipped, res.ItemID)
		default:
			failed[res.ItemID] = res.Message
		}
	}

	if len(resolved) > 0 {
		if err := r.itemRepo.MarkResolved(ctx, resolved); err != nil {
			r.log.Error("Failed to mark items resolved", "error", err)
		}
		if r.redisClient != nil {
			if err := r.redisClient.MarkResolved(ctx, resolved...); err != nil {
				r.log.Warn("Failed to record resolved items in redis", "error", err)
			}
		}
	}

	if len(skipped) > 0 {
		r.log.Info("Requeueing deadline-skipped items", "count", len(skipped))
		if err := r.itemRepo.Requeue(ctx, skipped); err != nil {
			r.log.Error("Failed to requeue skipped items", "error", err)
		}
	}

	// Group failures by message so MarkFailed stays a handful of calls
	byReason := make(map[string][]string)
	for id, reason := range failed {
		byReason[reason] = append(byReason[reason], id)
	}
	for reason, ids := range byReason {
		if err := r.itemRepo.MarkFailed(ctx, ids, reason); err != nil {
			r.log.Error("Failed to mark items failed", "error", err)
		}
	}

	if r.redisClient != nil {
		if err := r.redisClient.PublishProgress(ctx, summary.BatchID, summary.Succeeded+summary.Failed, summary.Total); err != nil {
			r.log.Warn("Failed to publish batch progress", "error", err)
		}
	}

	r.log.Info("Batch persisted",
		"batch", summary.BatchID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
}

func itemIDs(items []domain.WorkItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
