package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/models"
)

// enqueueRetries is how many times a failed enqueue is retried with
// exponential backoff before the tick is surfaced as an error.
const enqueueRetries = 3

// Enqueuer accepts one execution job per tick.
type Enqueuer interface {
	Enqueue(ctx context.Context, monitorID uuid.UUID, attempt int) error
}

// monitorSource is the persistence the scheduler needs to rebuild and
// annotate its registry.
type monitorSource interface {
	ListSchedulable(ctx context.Context) ([]*models.Monitor, error)
	UpdateMonitorFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

// Scheduler owns the recurring-job registry: one repeating entry per
// enabled, non-paused monitor. Constructed once per process and passed by
// reference; registry state is rebuilt from durable monitor rows at start.
type Scheduler struct {
	cron   *cron.Cron
	queue  Enqueuer
	store  monitorSource
	logger *zap.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

// New creates a scheduler.
func New(queue Enqueuer, store monitorSource, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		queue:   queue,
		store:   store,
		logger:  logger,
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Start begins dispatching ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler_started")
}

// Stop halts ticking and waits for in-flight tick functions.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler_stopped")
}

// Schedule registers (or replaces) the repeating entry for a monitor.
// Idempotent: re-scheduling replaces the prior entry without producing
// duplicate ticks.
func (s *Scheduler) Schedule(m *models.Monitor) error {
	if !m.Schedulable() {
		s.Unschedule(m.ID)
		return nil
	}

	freq := m.FrequencySeconds
	if freq < 1 {
		return fmt.Errorf("monitor %s has invalid frequency %d", m.ID, freq)
	}

	monitorID := m.ID

	s.mu.Lock()
	if old, exists := s.entries[monitorID]; exists {
		s.cron.Remove(old)
		delete(s.entries, monitorID)
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", freq), func() {
		s.tick(monitorID)
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduling monitor %s: %w", monitorID, err)
	}
	s.entries[monitorID] = entryID
	s.mu.Unlock()

	// The entry handle is persisted as an opaque reference; the registry
	// itself is rebuilt from monitor rows, not from this column.
	handle := strconv.Itoa(int(entryID))
	if err := s.store.UpdateMonitorFields(context.Background(), monitorID, map[string]interface{}{
		"scheduled_job_id": handle,
	}); err != nil {
		s.logger.Warn("scheduler_handle_persist_failed",
			zap.String("monitor_id", monitorID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("monitor_scheduled",
		zap.String("monitor_id", monitorID.String()),
		zap.Int("frequency_seconds", freq),
	)
	return nil
}

// Unschedule removes a monitor's repeating entry. Safe to call for
// monitors that were never scheduled.
func (s *Scheduler) Unschedule(monitorID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[monitorID]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, monitorID)
		s.logger.Info("monitor_unscheduled", zap.String("monitor_id", monitorID.String()))
	}
}

// TriggerNow enqueues an immediate ad hoc run without touching the
// recurring entry.
func (s *Scheduler) TriggerNow(ctx context.Context, monitorID uuid.UUID) error {
	if err := s.queue.Enqueue(ctx, monitorID, 0); err != nil {
		return fmt.Errorf("triggering monitor %s: %w", monitorID, err)
	}
	return nil
}

// ReloadAll rebuilds every repeating entry from durable state. Called at
// process start.
func (s *Scheduler) ReloadAll(ctx context.Context) error {
	monitors, err := s.store.ListSchedulable(ctx)
	if err != nil {
		return fmt.Errorf("reloading schedule: %w", err)
	}

	for _, m := range monitors {
		if err := s.Schedule(m); err != nil {
			s.logger.Error("monitor_schedule_failed",
				zap.String("monitor_id", m.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("schedule_reloaded", zap.Int("monitors", len(monitors)))
	return nil
}

// Scheduled reports whether a monitor currently has a recurring entry.
func (s *Scheduler) Scheduled(monitorID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[monitorID]
	return ok
}

// tick enqueues exactly one execution job. Enqueue failures (queue
// unavailable) are retried with backoff and surfaced as errors, never
// silently dropped.
func (s *Scheduler) tick(monitorID uuid.UUID) {
	ctx := context.Background()

	var err error
	for attempt := 0; attempt < enqueueRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}
		if err = s.queue.Enqueue(ctx, monitorID, 0); err == nil {
			return
		}
		s.logger.Warn("scheduler_enqueue_retry",
			zap.String("monitor_id", monitorID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	s.logger.Error("scheduler_enqueue_failed",
		zap.String("monitor_id", monitorID.String()),
		zap.Error(err),
	)
}
