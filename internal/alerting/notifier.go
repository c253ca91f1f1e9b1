package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/models"
)

// HTTPNotifier hands alert requests to the external delivery service over
// HTTP. The delivery service owns provider fan-out (email/Slack/webhook).
type HTTPNotifier struct {
	deliveryURL string
	client      *http.Client
}

// NewHTTPNotifier creates a notifier against the delivery service URL.
func NewHTTPNotifier(deliveryURL string) *HTTPNotifier {
	return &HTTPNotifier{
		deliveryURL: deliveryURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type notifyRequest struct {
	ProviderIDs []string  `json:"provider_ids"`
	Event       EventType `json:"event"`
	Monitor     struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		Target string `json:"target"`
	} `json:"monitor"`
	Result struct {
		Status              string                 `json:"status"`
		CheckedAt           time.Time              `json:"checked_at"`
		ResponseTimeMs      int64                  `json:"response_time_ms"`
		ConsecutiveFailures int                    `json:"consecutive_failures"`
		Details             map[string]interface{} `json:"details,omitempty"`
	} `json:"result"`
}

// Notify posts one alert request to the delivery service.
func (n *HTTPNotifier) Notify(ctx context.Context, providerIDs []string, event EventType, m *models.Monitor, r *models.MonitorResult) error {
	var payload notifyRequest
	payload.ProviderIDs = providerIDs
	payload.Event = event
	payload.Monitor.ID = m.ID.String()
	payload.Monitor.Name = m.Name
	payload.Monitor.Type = string(m.Type)
	payload.Monitor.Target = m.Target
	payload.Result.Status = string(r.Status)
	payload.Result.CheckedAt = r.CheckedAt
	payload.Result.ResponseTimeMs = r.ResponseTimeMs
	payload.Result.ConsecutiveFailures = r.ConsecutiveFailureCount
	payload.Result.Details = r.Details

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.deliveryURL+"/v1/notifications", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivery service returned status %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier is the fallback when no delivery service is configured: the
// alert request is logged and dropped.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs the alert request.
func (n *LogNotifier) Notify(ctx context.Context, providerIDs []string, event EventType, m *models.Monitor, r *models.MonitorResult) error {
	n.Logger.Warn("alert_not_delivered",
		zap.String("monitor_id", m.ID.String()),
		zap.String("monitor_name", m.Name),
		zap.String("event", string(event)),
		zap.Strings("provider_ids", providerIDs),
		zap.String("status", string(r.Status)),
	)
	return nil
}
