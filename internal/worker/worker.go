package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/checks"
	"github.com/probewatch/probewatch/internal/models"
	"github.com/probewatch/probewatch/internal/queue"
	"github.com/probewatch/probewatch/internal/store"
)

// pollInterval is how long an idle worker waits before re-checking the
// queue. Jobs beyond pool capacity simply wait their turn: backpressure,
// not rejection.
const pollInterval = 500 * time.Millisecond

// defaultSyntheticTimeout bounds synthetic runs whose script defines no
// timeout of its own.
const defaultSyntheticTimeout = 60

// monitorStore loads monitor rows for claimed jobs.
type monitorStore interface {
	GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error)
}

// jobQueue is the claim/complete/retry surface of the execution queue.
type jobQueue interface {
	Claim(ctx context.Context) (*models.ExecutionJob, error)
	Complete(ctx context.Context, jobID uuid.UUID) error
	Retry(ctx context.Context, job *models.ExecutionJob) error
}

// resultSink consumes finished outcomes.
type resultSink interface {
	Evaluate(ctx context.Context, m *models.Monitor, outcome checks.Outcome) (*models.MonitorResult, error)
}

// Timeouts carries the per-type default deadlines in seconds.
type Timeouts struct {
	HTTP int
	Ping int
	Port int
}

// Pool consumes execution jobs with bounded concurrency. One claimed job
// runs one check under an absolute deadline; panics are converted to error
// outcomes rather than crashing the worker.
type Pool struct {
	queue     jobQueue
	store     monitorStore
	registry  *checks.Registry
	evaluator resultSink
	logger    *zap.Logger
	capacity  int
	timeouts  Timeouts

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewPool creates a worker pool with the given capacity.
func NewPool(q jobQueue, st monitorStore, registry *checks.Registry, evaluator resultSink, timeouts Timeouts, capacity int, logger *zap.Logger) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		queue:     q,
		store:     st,
		registry:  registry,
		evaluator: evaluator,
		logger:    logger,
		capacity:  capacity,
		timeouts:  timeouts,
		inflight:  make(map[uuid.UUID]struct{}),
	}
}

// Run starts the pool and blocks until ctx is cancelled and all workers
// have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.capacity; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.loop(ctx, worker)
		}(i)
	}
	p.logger.Info("worker_pool_started", zap.Int("capacity", p.capacity))
	wg.Wait()
	p.logger.Info("worker_pool_stopped")
}

func (p *Pool) loop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Claim(ctx)
		if err != nil {
			p.logger.Warn("worker_claim_failed", zap.Int("worker", worker), zap.Error(err))
			sleepCtx(ctx, pollInterval)
			continue
		}
		if job == nil {
			sleepCtx(ctx, pollInterval)
			continue
		}

		p.Process(ctx, job)
	}
}

// Process runs one claimed job to completion.
func (p *Pool) Process(ctx context.Context, job *models.ExecutionJob) {
	m, err := p.store.GetMonitor(ctx, job.MonitorID)
	if err == store.ErrNotFound {
		// Deleted between tick and claim: drop silently.
		p.complete(ctx, job)
		return
	}
	if err != nil {
		p.logger.Error("worker_monitor_load_failed",
			zap.String("job_id", job.ID.String()),
			zap.String("monitor_id", job.MonitorID.String()),
			zap.Error(err),
		)
		p.complete(ctx, job)
		return
	}

	if !m.Enabled || m.Status == models.StatusPaused || m.Status == models.StatusMaintenance {
		p.complete(ctx, job)
		return
	}

	// Per-monitor execution lock: when a check outlasts its frequency, the
	// overlapping tick is skipped and the next one covers it.
	if !p.acquire(m.ID) {
		p.logger.Debug("worker_skipped_inflight", zap.String("monitor_id", m.ID.String()))
		p.complete(ctx, job)
		return
	}
	defer p.release(m.ID)

	outcome := p.execute(ctx, m)

	if outcome.Retryable() && job.Attempt+1 < queue.MaxAttempts {
		if err := p.queue.Retry(ctx, job); err != nil {
			p.logger.Error("worker_retry_failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		} else {
			p.logger.Info("worker_retry_scheduled",
				zap.String("monitor_id", m.ID.String()),
				zap.Int("attempt", job.Attempt+1),
			)
			return
		}
	}

	if _, err := p.evaluator.Evaluate(ctx, m, outcome); err != nil {
		p.logger.Error("worker_evaluate_failed",
			zap.String("monitor_id", m.ID.String()),
			zap.Error(err),
		)
	}

	p.complete(ctx, job)
}

// execute runs the matching executor under the monitor's absolute
// deadline, converting panics into error outcomes.
func (p *Pool) execute(ctx context.Context, m *models.Monitor) (out checks.Outcome) {
	exec, ok := p.registry.Executor(m.Type)
	if !ok {
		return checks.Outcome{
			Status: models.ResultError,
			Detail: map[string]interface{}{"error": fmt.Sprintf("no executor for type %q", m.Type)},
			Err:    &checks.ValidationError{Reason: fmt.Sprintf("unknown monitor type %q", m.Type)},
		}
	}

	timeout := p.deadlineFor(m)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("executor panic: %v", r)
			p.logger.Error("worker_executor_panic",
				zap.String("monitor_id", m.ID.String()),
				zap.Any("panic", r),
			)
			out = checks.Outcome{
				Status:    models.ResultError,
				ElapsedMs: time.Since(start).Milliseconds(),
				Detail:    map[string]interface{}{"error": err.Error()},
				Err:       err,
			}
		}
	}()

	if m.LocationConfig != nil && m.LocationConfig.Enabled {
		return checks.RunLocations(cctx, exec, m)
	}
	return exec.Execute(cctx, m)
}

// deadlineFor computes the absolute deadline from the monitor's config,
// falling back to the per-type default.
func (p *Pool) deadlineFor(m *models.Monitor) time.Duration {
	seconds := 0
	if m.Config != nil {
		seconds = m.Config.TimeoutSeconds()
	}
	if seconds <= 0 {
		switch m.Type {
		case models.TypePingHost:
			seconds = p.timeouts.Ping
		case models.TypePortCheck:
			seconds = p.timeouts.Port
		case models.TypeSyntheticTest:
			seconds = defaultSyntheticTimeout
		default:
			seconds = p.timeouts.HTTP
		}
	}
	return time.Duration(seconds) * time.Second
}

func (p *Pool) acquire(monitorID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[monitorID]; busy {
		return false
	}
	p.inflight[monitorID] = struct{}{}
	return true
}

func (p *Pool) release(monitorID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, monitorID)
}

func (p *Pool) complete(ctx context.Context, job *models.ExecutionJob) {
	if err := p.queue.Complete(ctx, job.ID); err != nil {
		p.logger.Warn("worker_complete_failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
