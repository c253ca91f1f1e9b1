package evaluate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/alerting"
	"github.com/probewatch/probewatch/internal/checks"
	"github.com/probewatch/probewatch/internal/models"
)

// Store is the persistence the evaluator needs: the previous result for
// comparison and a transactional insert+update for the new one.
type Store interface {
	LatestResult(ctx context.Context, monitorID uuid.UUID) (*models.MonitorResult, error)
	AppendResult(ctx context.Context, r *models.MonitorResult, monitorUpdates map[string]interface{}) error
}

// Evaluator turns raw execution outcomes into persisted, classified
// results and drives the alert engine.
type Evaluator struct {
	store  Store
	alerts *alerting.Engine
	logger *zap.Logger
	now    func() time.Time
}

// New creates an evaluator.
func New(store Store, alerts *alerting.Engine, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		store:  store,
		alerts: alerts,
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate compares the outcome to the monitor's last known state, persists
// the result together with the monitor's status columns in one transaction,
// and emits any alerts the transition triggers.
func (e *Evaluator) Evaluate(ctx context.Context, m *models.Monitor, outcome checks.Outcome) (*models.MonitorResult, error) {
	prev, err := e.store.LatestResult(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("loading previous result: %w", err)
	}

	res := e.classify(m, prev, outcome)
	events := e.alerts.Plan(m, prev, res)

	if err := e.store.AppendResult(ctx, res, e.monitorUpdates(m, res)); err != nil {
		return nil, fmt.Errorf("persisting result: %w", err)
	}

	e.alerts.Emit(ctx, m, res, events)

	e.logger.Debug("result_evaluated",
		zap.String("monitor_id", m.ID.String()),
		zap.String("status", string(res.Status)),
		zap.Int64("response_time_ms", res.ResponseTimeMs),
		zap.Bool("status_change", res.IsStatusChange),
		zap.Int("consecutive_failures", res.ConsecutiveFailureCount),
	)

	return res, nil
}

// classify builds the new result row from the outcome and the immediately
// preceding result.
func (e *Evaluator) classify(m *models.Monitor, prev *models.MonitorResult, outcome checks.Outcome) *models.MonitorResult {
	isUp := outcome.Status == models.ResultUp

	res := &models.MonitorResult{
		ID:             uuid.New(),
		MonitorID:      m.ID,
		CheckedAt:      e.now().UTC(),
		Status:         outcome.Status,
		ResponseTimeMs: outcome.ElapsedMs,
		Details:        outcome.Detail,
		IsUp:           isUp,
	}

	// Status change compares the up/down sense against the preceding
	// result; the first result for a monitor establishes its state.
	if prev == nil {
		res.IsStatusChange = true
	} else {
		res.IsStatusChange = prev.IsUp != isUp
	}

	if isUp {
		res.ConsecutiveFailureCount = 0
	} else if prev != nil && prev.Failing() {
		res.ConsecutiveFailureCount = prev.ConsecutiveFailureCount + 1
	} else {
		res.ConsecutiveFailureCount = 1
	}

	return res
}

// monitorUpdates builds the monitor column updates applied in the same
// transaction as the result insert.
func (e *Evaluator) monitorUpdates(m *models.Monitor, res *models.MonitorResult) map[string]interface{} {
	updates := map[string]interface{}{
		"status":        monitorStatusFor(res),
		"last_check_at": res.CheckedAt,
	}
	if res.IsStatusChange {
		updates["last_status_change_at"] = res.CheckedAt
	}

	if tlsDetail, ok := res.Details["tls"].(map[string]interface{}); ok {
		updates["last_ssl_check_at"] = res.CheckedAt
		switch v := tlsDetail["days_remaining"].(type) {
		case int:
			updates["last_ssl_days_remaining"] = v
		case float64:
			updates["last_ssl_days_remaining"] = int(v)
		}
	}

	return updates
}

// monitorStatusFor maps a result status onto the monitor's state: errors
// stay visible as error, timeouts count as down.
func monitorStatusFor(res *models.MonitorResult) models.MonitorStatus {
	switch res.Status {
	case models.ResultUp:
		return models.StatusUp
	case models.ResultError:
		return models.StatusError
	default:
		return models.StatusDown
	}
}
