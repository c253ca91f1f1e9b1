package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/models"
)

// EventType names an alertable transition.
type EventType string

const (
	EventFailure     EventType = "failure"
	EventRecovery    EventType = "recovery"
	EventSSLExpiring EventType = "ssl_expiring"
)

// maxAlertsPerIncident caps failure alerts within one failure streak.
const maxAlertsPerIncident = 3

// Notifier is the external delivery collaborator. The engine only decides
// that and what to send; delivery success is the collaborator's concern.
type Notifier interface {
	Notify(ctx context.Context, providerIDs []string, event EventType, m *models.Monitor, r *models.MonitorResult) error
}

// sslAlertMarker records the emission time for the once-per-day SSL cap.
type sslAlertMarker interface {
	MarkSSLAlert(ctx context.Context, monitorID uuid.UUID, at time.Time) error
}

// Engine is the threshold-driven alert state machine. It performs no
// network I/O toward notification channels itself.
type Engine struct {
	notifier Notifier
	marker   sslAlertMarker
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates the alert engine.
func NewEngine(notifier Notifier, marker sslAlertMarker, logger *zap.Logger) *Engine {
	return &Engine{
		notifier: notifier,
		marker:   marker,
		logger:   logger,
		now:      time.Now,
	}
}

// Plan decides which alerts the new result triggers and finalizes the
// result's alerts-sent counter before it is persisted. Called before the
// result row is inserted; result rows are append-only afterwards.
func (e *Engine) Plan(m *models.Monitor, prev, res *models.MonitorResult) []EventType {
	cfg := m.AlertConfig
	cfg.Normalize()

	prevAlerts := 0
	if prev != nil && prev.Failing() {
		prevAlerts = prev.AlertsSentForFailure
	}

	var events []EventType

	if res.Failing() {
		res.AlertsSentForFailure = prevAlerts
		if e.failureAlertDue(m, &cfg, res, prevAlerts) {
			res.AlertsSentForFailure = prevAlerts + 1
			events = append(events, EventFailure)
		}
	} else {
		res.AlertsSentForFailure = 0
		if cfg.Enabled && cfg.OnRecovery && !m.Muted(e.now()) &&
			res.IsStatusChange && prevAlerts > 0 {
			events = append(events, EventRecovery)
		}
	}

	if due, _ := e.sslAlertDue(m, &cfg, res); due {
		events = append(events, EventSSLExpiring)
	}

	return events
}

// failureAlertDue implements the alert ladder: alert k fires on the tick
// where the consecutive failure count reaches k * threshold, k capped at 3
// per incident.
func (e *Engine) failureAlertDue(m *models.Monitor, cfg *models.AlertConfig, res *models.MonitorResult, prevAlerts int) bool {
	if !cfg.Enabled || m.Muted(e.now()) {
		return false
	}
	if !cfg.OnFailure && !(res.Status == models.ResultTimeout && cfg.OnTimeout) {
		return false
	}
	if prevAlerts >= maxAlertsPerIncident {
		return false
	}
	return res.ConsecutiveFailureCount == (prevAlerts+1)*cfg.FailureThreshold
}

// sslAlertDue evaluates SSL expiry independently of up/down status:
// days-remaining at or under the warning window, at most once per calendar
// day per monitor.
func (e *Engine) sslAlertDue(m *models.Monitor, cfg *models.AlertConfig, res *models.MonitorResult) (bool, int) {
	if !cfg.Enabled || !cfg.OnSSLExpiration || m.Muted(e.now()) {
		return false, 0
	}

	days, ok := tlsDaysRemaining(res)
	if !ok || days > cfg.SSLDaysWarning {
		return false, days
	}

	if m.LastSSLAlertAt != nil {
		last := m.LastSSLAlertAt.UTC()
		today := e.now().UTC()
		if last.Year() == today.Year() && last.YearDay() == today.YearDay() {
			return false, days
		}
	}

	return true, days
}

// Emit hands each planned event to the delivery collaborator.
func (e *Engine) Emit(ctx context.Context, m *models.Monitor, res *models.MonitorResult, events []EventType) {
	for _, event := range events {
		if err := e.notifier.Notify(ctx, m.AlertConfig.ProviderIDs, event, m, res); err != nil {
			e.logger.Error("alert_dispatch_failed",
				zap.String("monitor_id", m.ID.String()),
				zap.String("event", string(event)),
				zap.Error(err),
			)
			continue
		}

		e.logger.Info("alert_dispatched",
			zap.String("monitor_id", m.ID.String()),
			zap.String("event", string(event)),
			zap.Int("consecutive_failures", res.ConsecutiveFailureCount),
			zap.Int("alerts_sent", res.AlertsSentForFailure),
		)

		if event == EventSSLExpiring && e.marker != nil {
			if err := e.marker.MarkSSLAlert(ctx, m.ID, e.now().UTC()); err != nil {
				e.logger.Error("ssl_alert_mark_failed",
					zap.String("monitor_id", m.ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// tlsDaysRemaining digs the certificate days-remaining out of the result
// detail, tolerating the numeric widening JSON round-trips introduce.
func tlsDaysRemaining(res *models.MonitorResult) (int, bool) {
	if res.Details == nil {
		return 0, false
	}
	tlsDetail, ok := res.Details["tls"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := tlsDetail["days_remaining"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
