package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/checks"
	"github.com/probewatch/probewatch/internal/models"
	"github.com/probewatch/probewatch/internal/queue"
	"github.com/probewatch/probewatch/internal/store"
)

type fakeMonitorStore struct {
	monitors map[uuid.UUID]*models.Monitor
}

func (s *fakeMonitorStore) GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error) {
	m, ok := s.monitors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

type fakeJobQueue struct {
	completed []uuid.UUID
	retried   []*models.ExecutionJob
}

func (q *fakeJobQueue) Claim(ctx context.Context) (*models.ExecutionJob, error) {
	return nil, nil
}

func (q *fakeJobQueue) Complete(ctx context.Context, jobID uuid.UUID) error {
	q.completed = append(q.completed, jobID)
	return nil
}

func (q *fakeJobQueue) Retry(ctx context.Context, job *models.ExecutionJob) error {
	q.retried = append(q.retried, job)
	return nil
}

type fakeSink struct {
	evaluated []checks.Outcome
}

func (s *fakeSink) Evaluate(ctx context.Context, m *models.Monitor, outcome checks.Outcome) (*models.MonitorResult, error) {
	s.evaluated = append(s.evaluated, outcome)
	return &models.MonitorResult{}, nil
}

func testPool(monitors ...*models.Monitor) (*Pool, *fakeJobQueue, *fakeSink) {
	ms := &fakeMonitorStore{monitors: make(map[uuid.UUID]*models.Monitor)}
	for _, m := range monitors {
		ms.monitors[m.ID] = m
	}

	q := &fakeJobQueue{}
	sink := &fakeSink{}
	registry := checks.NewRegistry(checks.RegistryOptions{
		Validator:    checks.NewTargetValidator(true),
		SnippetBytes: 1000,
	})
	timeouts := Timeouts{HTTP: 5, Ping: 5, Port: 5}

	return NewPool(q, ms, registry, sink, timeouts, 2, zap.NewNop()), q, sink
}

func job(monitorID uuid.UUID, attempt int) *models.ExecutionJob {
	return &models.ExecutionJob{
		ID:         uuid.New(),
		MonitorID:  monitorID,
		Attempt:    attempt,
		Status:     models.JobRunning,
		EnqueuedAt: time.Now().UTC(),
		RunAfter:   time.Now().UTC(),
	}
}

func workerMonitor(target string) *models.Monitor {
	return &models.Monitor{
		ID:               uuid.New(),
		Type:             models.TypeHTTPRequest,
		Target:           target,
		FrequencySeconds: 60,
		Enabled:          true,
		Status:           models.StatusPending,
		Config:           &models.MonitorConfig{HTTP: &models.HTTPConfig{}},
	}
}

func TestProcessDropsDeletedMonitor(t *testing.T) {
	pool, q, sink := testPool()
	j := job(uuid.New(), 0)

	pool.Process(context.Background(), j)

	assert.Equal(t, []uuid.UUID{j.ID}, q.completed)
	assert.Empty(t, sink.evaluated)
}

func TestProcessSkipsDisabledMonitor(t *testing.T) {
	m := workerMonitor("http://127.0.0.1:1/")
	m.Enabled = false
	pool, q, sink := testPool(m)
	j := job(m.ID, 0)

	pool.Process(context.Background(), j)

	assert.Equal(t, []uuid.UUID{j.ID}, q.completed)
	assert.Empty(t, sink.evaluated)
}

func TestProcessSkipsPausedMonitor(t *testing.T) {
	m := workerMonitor("http://127.0.0.1:1/")
	m.Status = models.StatusPaused
	pool, q, sink := testPool(m)
	j := job(m.ID, 0)

	pool.Process(context.Background(), j)

	assert.Equal(t, []uuid.UUID{j.ID}, q.completed)
	assert.Empty(t, sink.evaluated)
}

func TestProcessSkipsOverlappingExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := workerMonitor(srv.URL)
	pool, q, sink := testPool(m)

	require.True(t, pool.acquire(m.ID))
	defer pool.release(m.ID)

	j := job(m.ID, 0)
	pool.Process(context.Background(), j)

	assert.Equal(t, []uuid.UUID{j.ID}, q.completed)
	assert.Empty(t, sink.evaluated)
}

func TestProcessExecutesAndEvaluates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := workerMonitor(srv.URL)
	pool, q, sink := testPool(m)
	j := job(m.ID, 0)

	pool.Process(context.Background(), j)

	require.Len(t, sink.evaluated, 1)
	assert.Equal(t, models.ResultUp, sink.evaluated[0].Status)
	assert.Equal(t, []uuid.UUID{j.ID}, q.completed)
	assert.Empty(t, q.retried)
}

func TestProcessRetriesTransientFailure(t *testing.T) {
	// A freshly closed server leaves a refusing port behind.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	m := workerMonitor(target)
	pool, q, sink := testPool(m)
	j := job(m.ID, 0)

	pool.Process(context.Background(), j)

	require.Len(t, q.retried, 1)
	assert.Empty(t, sink.evaluated)
	assert.Empty(t, q.completed)
}

func TestProcessEvaluatesAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	m := workerMonitor(target)
	pool, q, sink := testPool(m)
	j := job(m.ID, queue.MaxAttempts-1)

	pool.Process(context.Background(), j)

	assert.Empty(t, q.retried)
	require.Len(t, sink.evaluated, 1)
	assert.Equal(t, models.ResultDown, sink.evaluated[0].Status)
	assert.Equal(t, []uuid.UUID{j.ID}, q.completed)
}

func TestDeadlineForPrefersConfiguredTimeout(t *testing.T) {
	pool, _, _ := testPool()

	m := workerMonitor("http://example.com/")
	m.Config.HTTP.TimeoutSeconds = 90
	assert.Equal(t, 90*time.Second, pool.deadlineFor(m))

	m.Config.HTTP.TimeoutSeconds = 0
	assert.Equal(t, 5*time.Second, pool.deadlineFor(m))

	ping := &models.Monitor{Type: models.TypePingHost, Config: &models.MonitorConfig{Ping: &models.PingConfig{}}}
	assert.Equal(t, 5*time.Second, pool.deadlineFor(ping))

	synthetic := &models.Monitor{Type: models.TypeSyntheticTest, Config: &models.MonitorConfig{Synthetic: &models.SyntheticConfig{ScriptRef: "x"}}}
	assert.Equal(t, 60*time.Second, pool.deadlineFor(synthetic))
}

func TestAcquireReleaseLock(t *testing.T) {
	pool, _, _ := testPool()
	id := uuid.New()

	assert.True(t, pool.acquire(id))
	assert.False(t, pool.acquire(id))
	pool.release(id)
	assert.True(t, pool.acquire(id))
}
