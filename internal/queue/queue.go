package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/probewatch/probewatch/internal/models"
)

// MaxAttempts caps execution retries per job, counting the first run.
const MaxAttempts = 3

// staleRunningAge is how long a job may sit in running before a restarted
// process reclaims it as abandoned.
const staleRunningAge = 10 * time.Minute

// Queue is the durable execution-job queue backed by the execution_jobs
// table. Ticks enqueue and return immediately; workers claim under
// SKIP LOCKED so concurrent replicas never double-run a job.
type Queue struct {
	db *gorm.DB
}

// New creates a queue over an open database handle.
func New(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue inserts one pending job for a monitor.
func (q *Queue) Enqueue(ctx context.Context, monitorID uuid.UUID, attempt int) error {
	now := time.Now().UTC()
	job := &models.ExecutionJob{
		ID:         uuid.New(),
		MonitorID:  monitorID,
		Attempt:    attempt,
		Status:     models.JobPending,
		EnqueuedAt: now,
		RunAfter:   now,
	}
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("enqueueing job for monitor %s: %w", monitorID, err)
	}
	return nil
}

// Claim atomically takes the oldest runnable pending job, marking it
// running. Returns nil when the queue is empty.
func (q *Queue) Claim(ctx context.Context) (*models.ExecutionJob, error) {
	var jobs []models.ExecutionJob
	err := q.db.WithContext(ctx).Raw(`
		UPDATE execution_jobs
		SET status = 'running', started_at = NOW()
		WHERE id = (
			SELECT id FROM execution_jobs
			WHERE status = 'pending' AND run_after <= NOW()
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING *
	`).Scan(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// Complete removes a finished job. Jobs are not kept in a terminal state.
func (q *Queue) Complete(ctx context.Context, jobID uuid.UUID) error {
	if err := q.db.WithContext(ctx).Where("id = ?", jobID).Delete(&models.ExecutionJob{}).Error; err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	return nil
}

// Retry re-enqueues a claimed job with the next attempt number, gated by
// exponential backoff.
func (q *Queue) Retry(ctx context.Context, job *models.ExecutionJob) error {
	nextAttempt := job.Attempt + 1
	err := q.db.WithContext(ctx).Model(&models.ExecutionJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":     models.JobPending,
			"attempt":    nextAttempt,
			"run_after":  time.Now().UTC().Add(Backoff(nextAttempt)),
			"started_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("retrying job %s: %w", job.ID, err)
	}
	return nil
}

// Backoff is the retry delay before the given attempt: 2^attempt seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// RequeueStale returns jobs abandoned in running state (e.g. by a crashed
// worker) to pending. Called once at process start.
func (q *Queue) RequeueStale(ctx context.Context) (int64, error) {
	res := q.db.WithContext(ctx).Model(&models.ExecutionJob{}).
		Where("status = ? AND started_at < ?", models.JobRunning, time.Now().UTC().Add(-staleRunningAge)).
		Updates(map[string]interface{}{
			"status":     models.JobPending,
			"started_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("requeueing stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Depth reports the number of runnable pending jobs.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&models.ExecutionJob{}).
		Where("status = ?", models.JobPending).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("measuring queue depth: %w", err)
	}
	return n, nil
}

// PruneOrphans deletes pending jobs whose monitor no longer exists.
func (q *Queue) PruneOrphans(ctx context.Context) (int64, error) {
	res := q.db.WithContext(ctx).Exec(`
		DELETE FROM execution_jobs
		WHERE monitor_id NOT IN (SELECT id FROM monitors)
	`)
	if res.Error != nil {
		return 0, fmt.Errorf("pruning orphaned jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
