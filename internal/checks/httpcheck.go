package checks

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"time"

	"github.com/probewatch/probewatch/internal/models"
)

// HTTPExecutor probes http_request monitors.
type HTTPExecutor struct {
	validator    *TargetValidator
	snippetBytes int
}

// NewHTTPExecutor creates the executor for http_request monitors.
func NewHTTPExecutor(validator *TargetValidator, snippetBytes int) *HTTPExecutor {
	return &HTTPExecutor{validator: validator, snippetBytes: snippetBytes}
}

func (e *HTTPExecutor) Type() models.MonitorType {
	return models.TypeHTTPRequest
}

func (e *HTTPExecutor) Execute(ctx context.Context, m *models.Monitor) Outcome {
	cfg := m.Config.HTTP
	if cfg == nil {
		return errorOutcome(&ValidationError{Reason: "http config missing"}, 0)
	}
	return runHTTPProbe(ctx, e.validator, m.Target, cfg, e.snippetBytes, []string{"200-299"}, nil)
}

// tlsInspection asks the probe core to capture a certificate summary from
// the response's connection state.
type tlsInspection struct {
	summary map[string]interface{}
}

// runHTTPProbe is the probe core shared by the http_request and website
// executors. defaultExpected is used when the config lists no patterns.
func runHTTPProbe(
	ctx context.Context,
	validator *TargetValidator,
	target string,
	cfg *models.HTTPConfig,
	snippetBytes int,
	defaultExpected []string,
	inspect *tlsInspection,
) Outcome {
	start := time.Now()

	if err := validator.ValidateURL(target); err != nil {
		return errorOutcome(err, time.Since(start))
	}

	expected := cfg.ExpectedStatusCodes
	if len(expected) == 0 {
		expected = defaultExpected
	}
	matcher, err := ParseStatusPatterns(expected)
	if err != nil {
		return errorOutcome(err, time.Since(start))
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	if cfg.Body != "" {
		reqBody = strings.NewReader(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return errorOutcome(&ValidationError{Reason: fmt.Sprintf("failed to build request: %v", err)}, time.Since(start))
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	if cfg.BasicAuthUser != "" {
		req.SetBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass)
	}
	if cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.BearerToken)
	}

	// Capture the resolved peer address for the result detail.
	var resolvedIP string
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if addr := info.Conn.RemoteAddr(); addr != nil {
				resolvedIP = addr.String()
			}
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.IgnoreTLS},
		},
	}
	if cfg.FollowRedirects != nil && !*cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if deadlineExceeded(ctx, err) {
			return timeoutOutcome(elapsed, nil)
		}
		return downOutcome(&TransientNetworkError{Err: err}, elapsed, nil)
	}
	defer resp.Body.Close()

	detail := map[string]interface{}{
		"status_code": resp.StatusCode,
	}
	if resolvedIP != "" {
		detail["resolved_ip"] = resolvedIP
	}

	if inspect != nil && resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		inspect.summary = certSummary(resp.TLS.PeerCertificates[0], time.Now())
	}

	// Read a bounded amount of body: enough for keyword/JSON checks without
	// buffering arbitrarily large responses.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if deadlineExceeded(ctx, err) {
			return timeoutOutcome(time.Since(start), detail)
		}
		return downOutcome(&TransientNetworkError{Err: err}, time.Since(start), detail)
	}
	detail["body_snippet"] = truncate(string(body), snippetBytes)
	elapsed = time.Since(start)

	if !matcher.Match(resp.StatusCode) {
		return downOutcome(fmt.Errorf("unexpected status code %d", resp.StatusCode), elapsed, detail)
	}

	if cfg.Keyword != "" {
		found := strings.Contains(string(body), cfg.Keyword)
		if cfg.InvertKeyword && found {
			return downOutcome(fmt.Errorf("keyword %q found (inverted check)", cfg.Keyword), elapsed, detail)
		}
		if !cfg.InvertKeyword && !found {
			return downOutcome(fmt.Errorf("keyword %q not found", cfg.Keyword), elapsed, detail)
		}
	}

	if cfg.JSONPath != "" {
		got, err := extractJSONPath(body, cfg.JSONPath)
		if err != nil {
			return downOutcome(fmt.Errorf("json path %q: %w", cfg.JSONPath, err), elapsed, detail)
		}
		if got != cfg.JSONPathExpected {
			return downOutcome(fmt.Errorf("json path %q: got %q, want %q", cfg.JSONPath, got, cfg.JSONPathExpected), elapsed, detail)
		}
	}

	return Outcome{
		Status:    models.ResultUp,
		ElapsedMs: elapsed.Milliseconds(),
		Detail:    detail,
	}
}

func deadlineExceeded(ctx context.Context, err error) bool {
	return ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// extractJSONPath walks a dotted path ("data.items.0.status") through a
// JSON document and renders the leaf as a string.
func extractJSONPath(body []byte, path string) (string, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("response is not valid JSON: %w", err)
	}

	current := doc
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			val, ok := node[key]
			if !ok {
				return "", fmt.Errorf("key %q not found", key)
			}
			current = val
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", fmt.Errorf("index %q out of range", key)
			}
			current = node[idx]
		default:
			return "", fmt.Errorf("cannot descend into %q", key)
		}
	}

	switch leaf := current.(type) {
	case string:
		return leaf, nil
	case float64:
		return strconv.FormatFloat(leaf, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(leaf), nil
	case nil:
		return "null", nil
	default:
		rendered, err := json.Marshal(leaf)
		if err != nil {
			return "", err
		}
		return string(rendered), nil
	}
}

// hostFromTarget strips an optional scheme and port for host-style checks.
func hostFromTarget(target string) string {
	host := target
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
