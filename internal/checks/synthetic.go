package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/probewatch/probewatch/internal/models"
)

// ScriptRunReport is the test-runner collaborator's verdict for one run.
type ScriptRunReport struct {
	Passed      bool     `json:"passed"`
	ExecutionID string   `json:"execution_id"`
	ReportURL   string   `json:"report_url"`
	Logs        []string `json:"logs,omitempty"`
	FailureMsg  string   `json:"failure_message,omitempty"`
}

// ScriptRunner runs a stored browser-transaction script by reference. The
// runner itself is an external collaborator; the engine only consumes its
// pass/fail and report artifact.
type ScriptRunner interface {
	RunScript(ctx context.Context, scriptRef string) (*ScriptRunReport, error)
}

// SyntheticExecutor probes synthetic_test monitors through the runner.
type SyntheticExecutor struct {
	runner ScriptRunner
}

// NewSyntheticExecutor creates the executor for synthetic_test monitors.
func NewSyntheticExecutor(runner ScriptRunner) *SyntheticExecutor {
	return &SyntheticExecutor{runner: runner}
}

func (e *SyntheticExecutor) Type() models.MonitorType {
	return models.TypeSyntheticTest
}

func (e *SyntheticExecutor) Execute(ctx context.Context, m *models.Monitor) Outcome {
	start := time.Now()

	cfg := m.Config.Synthetic
	if cfg == nil {
		return errorOutcome(&ValidationError{Reason: "synthetic config missing"}, time.Since(start))
	}
	if e.runner == nil {
		return errorOutcome(&ValidationError{Reason: "no test runner configured"}, time.Since(start))
	}

	report, err := e.runner.RunScript(ctx, cfg.ScriptRef)
	elapsed := time.Since(start)
	if err != nil {
		if deadlineExceeded(ctx, err) {
			return timeoutOutcome(elapsed, map[string]interface{}{"script_ref": cfg.ScriptRef})
		}
		return downOutcome(&RunnerError{Err: err}, elapsed, map[string]interface{}{
			"script_ref": cfg.ScriptRef,
		})
	}

	detail := map[string]interface{}{
		"script_ref":   cfg.ScriptRef,
		"execution_id": report.ExecutionID,
		"report_url":   report.ReportURL,
	}
	if len(report.Logs) > 0 {
		// Keep only the tail; full logs live behind the report URL.
		tail := report.Logs
		if len(tail) > 20 {
			tail = tail[len(tail)-20:]
		}
		detail["log_tail"] = tail
	}

	if !report.Passed {
		msg := report.FailureMsg
		if msg == "" {
			msg = "synthetic test failed"
		}
		return downOutcome(fmt.Errorf("%s", msg), elapsed, detail)
	}

	return Outcome{
		Status:    models.ResultUp,
		ElapsedMs: elapsed.Milliseconds(),
		Detail:    detail,
	}
}

// HTTPScriptRunner is the default runner client: it POSTs run requests to
// the external runner service.
type HTTPScriptRunner struct {
	baseURL string
	client  *http.Client
}

// NewHTTPScriptRunner creates a runner client against the given base URL.
func NewHTTPScriptRunner(baseURL string) *HTTPScriptRunner {
	return &HTTPScriptRunner{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// RunScript submits the script reference and waits for the run verdict.
func (r *HTTPScriptRunner) RunScript(ctx context.Context, scriptRef string) (*ScriptRunReport, error) {
	payload, err := json.Marshal(map[string]string{"script_ref": scriptRef})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/runs", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runner returned status %d", resp.StatusCode)
	}

	var report ScriptRunReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding runner report: %w", err)
	}

	return &report, nil
}
