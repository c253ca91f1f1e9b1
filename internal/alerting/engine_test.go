package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/models"
)

type recordingNotifier struct {
	events []EventType
}

func (n *recordingNotifier) Notify(ctx context.Context, providerIDs []string, event EventType, m *models.Monitor, r *models.MonitorResult) error {
	n.events = append(n.events, event)
	return nil
}

type recordingMarker struct {
	marked []time.Time
}

func (m *recordingMarker) MarkSSLAlert(ctx context.Context, monitorID uuid.UUID, at time.Time) error {
	m.marked = append(m.marked, at)
	return nil
}

func testEngine(at time.Time) (*Engine, *recordingNotifier, *recordingMarker) {
	notifier := &recordingNotifier{}
	marker := &recordingMarker{}
	e := NewEngine(notifier, marker, zap.NewNop())
	e.now = func() time.Time { return at }
	return e, notifier, marker
}

func alertingMonitor(threshold int) *models.Monitor {
	return &models.Monitor{
		ID: uuid.New(),
		AlertConfig: models.AlertConfig{
			Enabled:          true,
			OnFailure:        true,
			OnRecovery:       true,
			FailureThreshold: threshold,
		},
	}
}

func failingResult(consecutive int) *models.MonitorResult {
	return &models.MonitorResult{
		Status:                  models.ResultDown,
		IsUp:                    false,
		ConsecutiveFailureCount: consecutive,
	}
}

// runStreak feeds n consecutive failures through Plan, carrying the
// alerts-sent counter forward the way the evaluator's append does.
func runStreak(e *Engine, m *models.Monitor, n int) (fired []int, last *models.MonitorResult) {
	var prev *models.MonitorResult
	for i := 1; i <= n; i++ {
		res := failingResult(i)
		events := e.Plan(m, prev, res)
		for _, ev := range events {
			if ev == EventFailure {
				fired = append(fired, i)
			}
		}
		prev = res
	}
	return fired, prev
}

func TestFailureAlertLadder(t *testing.T) {
	e, _, _ := testEngine(time.Now())
	m := alertingMonitor(3)

	fired, last := runStreak(e, m, 12)

	// Alerts at 3, 6, 9; capped at three per incident.
	assert.Equal(t, []int{3, 6, 9}, fired)
	assert.Equal(t, 3, last.AlertsSentForFailure)
}

func TestFailureAlertThresholdOne(t *testing.T) {
	e, _, _ := testEngine(time.Now())
	m := alertingMonitor(1)

	fired, _ := runStreak(e, m, 5)
	assert.Equal(t, []int{1, 2, 3}, fired)
}

func TestRecoveryAlertAfterFailures(t *testing.T) {
	e, _, _ := testEngine(time.Now())
	m := alertingMonitor(3)

	_, last := runStreak(e, m, 4)
	require.Equal(t, 1, last.AlertsSentForFailure)

	recovery := &models.MonitorResult{
		Status:         models.ResultUp,
		IsUp:           true,
		IsStatusChange: true,
	}
	events := e.Plan(m, last, recovery)

	assert.Equal(t, []EventType{EventRecovery}, events)
	assert.Equal(t, 0, recovery.AlertsSentForFailure)
}

func TestNoRecoveryAlertWithoutPriorFailureAlert(t *testing.T) {
	e, _, _ := testEngine(time.Now())
	m := alertingMonitor(3)

	// Two failures: below threshold, no alert went out.
	_, last := runStreak(e, m, 2)
	require.Equal(t, 0, last.AlertsSentForFailure)

	recovery := &models.MonitorResult{
		Status:         models.ResultUp,
		IsUp:           true,
		IsStatusChange: true,
	}
	events := e.Plan(m, last, recovery)
	assert.Empty(t, events)
}

func TestMutedMonitorSuppressesAlerts(t *testing.T) {
	now := time.Now()
	e, _, _ := testEngine(now)
	m := alertingMonitor(1)
	muted := now.Add(time.Hour)
	m.MutedUntil = &muted

	fired, _ := runStreak(e, m, 3)
	assert.Empty(t, fired)
}

func TestAlertsDisabled(t *testing.T) {
	e, _, _ := testEngine(time.Now())
	m := alertingMonitor(1)
	m.AlertConfig.Enabled = false

	fired, _ := runStreak(e, m, 3)
	assert.Empty(t, fired)
}

func TestTimeoutAlertsRequireOnTimeout(t *testing.T) {
	e, _, _ := testEngine(time.Now())
	m := alertingMonitor(1)
	m.AlertConfig.OnFailure = false
	m.AlertConfig.OnTimeout = true

	res := &models.MonitorResult{
		Status:                  models.ResultTimeout,
		ConsecutiveFailureCount: 1,
	}
	events := e.Plan(m, nil, res)
	assert.Contains(t, events, EventFailure)

	down := failingResult(1)
	events = e.Plan(m, nil, down)
	assert.Empty(t, events)
}

func TestSSLAlertOncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	e, _, _ := testEngine(now)

	m := alertingMonitor(3)
	m.AlertConfig.OnSSLExpiration = true
	m.AlertConfig.SSLDaysWarning = 14

	res := &models.MonitorResult{
		Status: models.ResultUp,
		IsUp:   true,
		Details: map[string]interface{}{
			"tls": map[string]interface{}{"days_remaining": 10},
		},
	}

	events := e.Plan(m, nil, res)
	assert.Contains(t, events, EventSSLExpiring)

	// Same calendar day: suppressed.
	earlier := now.Add(-2 * time.Hour)
	m.LastSSLAlertAt = &earlier
	events = e.Plan(m, nil, res)
	assert.NotContains(t, events, EventSSLExpiring)

	// Previous day: fires again.
	yesterday := now.AddDate(0, 0, -1)
	m.LastSSLAlertAt = &yesterday
	events = e.Plan(m, nil, res)
	assert.Contains(t, events, EventSSLExpiring)
}

func TestSSLAlertOutsideWarningWindow(t *testing.T) {
	e, _, _ := testEngine(time.Now())

	m := alertingMonitor(3)
	m.AlertConfig.OnSSLExpiration = true
	m.AlertConfig.SSLDaysWarning = 14

	res := &models.MonitorResult{
		Status: models.ResultUp,
		IsUp:   true,
		Details: map[string]interface{}{
			"tls": map[string]interface{}{"days_remaining": 60},
		},
	}
	events := e.Plan(m, nil, res)
	assert.Empty(t, events)
}

func TestEmitDispatchesAndMarksSSL(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	e, notifier, marker := testEngine(now)

	m := alertingMonitor(1)
	res := failingResult(1)

	e.Emit(context.Background(), m, res, []EventType{EventFailure, EventSSLExpiring})

	assert.Equal(t, []EventType{EventFailure, EventSSLExpiring}, notifier.events)
	require.Len(t, marker.marked, 1)
	assert.Equal(t, now.UTC(), marker.marked[0])
}
