package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/queue"
	"github.com/probewatch/probewatch/internal/store"
)

// Retention manages background housekeeping: pruning old result rows and
// orphaned execution jobs.
type Retention struct {
	cron          *cron.Cron
	store         *store.Store
	queue         *queue.Queue
	logger        *zap.Logger
	retentionDays int
}

// NewRetention creates the housekeeping scheduler.
func NewRetention(st *store.Store, q *queue.Queue, retentionDays int, logger *zap.Logger) *Retention {
	return &Retention{
		cron:          cron.New(),
		store:         st,
		queue:         q,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Start registers the sweep entries and begins ticking.
func (r *Retention) Start() {
	// Prune old results daily at 3:14 AM.
	r.cron.AddFunc("14 3 * * *", func() {
		r.pruneResults()
	})

	// Sweep orphaned jobs hourly at minute 40.
	r.cron.AddFunc("40 * * * *", func() {
		r.pruneOrphanedJobs()
	})

	r.cron.Start()
	r.logger.Info("retention_started", zap.Int("retention_days", r.retentionDays))
}

// Stop halts the sweeps.
func (r *Retention) Stop() {
	r.cron.Stop()
	r.logger.Info("retention_stopped")
}

func (r *Retention) pruneResults() {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.retentionDays)
	n, err := r.store.PruneResults(context.Background(), cutoff)
	if err != nil {
		r.logger.Error("retention_prune_failed", zap.Error(err))
		return
	}
	r.logger.Info("retention_pruned_results", zap.Int64("rows", n))
}

func (r *Retention) pruneOrphanedJobs() {
	n, err := r.queue.PruneOrphans(context.Background())
	if err != nil {
		r.logger.Error("retention_orphan_sweep_failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("retention_pruned_orphan_jobs", zap.Int64("rows", n))
	}
}
