package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/mender/internal/infra/storage"
	"github.com/vietddude/mender/internal/resolve/metrics"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// Backlog thresholds for queue status evaluation.
const (
	degradedBacklog = 100
	criticalBacklog = 1000
)

// Monitor aggregates health status from various system components.
type Monitor struct {
	db         Pinger
	redis      Pinger
	itemRepo   storage.WorkItemRepository
	lastCheck  time.Time
	lastReport map[string]ComponentHealth
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor. redis may be nil when
// deduplication is disabled.
func NewMonitor(db Pinger, redis Pinger, itemRepo storage.WorkItemRepository) *Monitor {
	return &Monitor{
		db:         db,
		redis:      redis,
		itemRepo:   itemRepo,
		lastReport: make(map[string]ComponentHealth),
	}
}

// Start runs periodic background health checks until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckHealth(ctx)
		}
	}
}

// CheckHealth probes every component and returns per-component status.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ComponentHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks (e.g. max once per 10s) to avoid spamming backends
	if time.Since(m.lastCheck) < 10*time.Second && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ComponentHealth)

	dbHealth := ComponentHealth{Component: "database", Status: StatusHealthy}
	if m.db != nil {
		if err := m.db.Health(ctx); err != nil {
			dbHealth.Status = StatusCritical
			dbHealth.Detail = err.Error()
		}
	}
	report["database"] = dbHealth

	if m.redis != nil {
		redisHealth := ComponentHealth{Component: "redis", Status: StatusHealthy}
		// Redis only backs dedup and progress, so an outage degrades
		// rather than breaks the system.
		if err := m.redis.Health(ctx); err != nil {
			redisHealth.Status = StatusDegraded
			redisHealth.Detail = err.Error()
		}
		report["redis"] = redisHealth
	}

	queueHealth := ComponentHealth{Component: "queue", Status: StatusHealthy}
	if pending, err := m.itemRepo.CountPending(ctx); err != nil {
		queueHealth.Status = StatusDegraded
		queueHealth.Detail = err.Error()
	} else {
		queueHealth.PendingItems = pending
		metrics.QueuePending.Set(float64(pending))
		if pending > criticalBacklog {
			queueHealth.Status = StatusCritical
		} else if pending > degradedBacklog {
			queueHealth.Status = StatusDegraded
		}
	}
	report["queue"] = queueHealth

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
