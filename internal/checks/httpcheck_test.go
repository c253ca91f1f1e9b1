package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probewatch/probewatch/internal/models"
)

func httpMonitor(target string, cfg *models.HTTPConfig) *models.Monitor {
	return &models.Monitor{
		ID:     uuid.New(),
		Type:   models.TypeHTTPRequest,
		Target: target,
		Config: &models.MonitorConfig{HTTP: cfg},
	}
}

func newHTTPExecutorForTest(snippetBytes int) *HTTPExecutor {
	return NewHTTPExecutor(NewTargetValidator(true), snippetBytes)
}

func TestHTTPExecuteUpOnSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	exec := newHTTPExecutorForTest(1000)
	out := exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{}))

	assert.Equal(t, models.ResultUp, out.Status)
	assert.Equal(t, 200, out.Detail["status_code"])
	assert.GreaterOrEqual(t, out.ElapsedMs, int64(0))
}

func TestHTTPExecuteDownOnUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec := newHTTPExecutorForTest(1000)
	out := exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{}))

	assert.Equal(t, models.ResultDown, out.Status)
	require.Error(t, out.Err)
	assert.False(t, out.Retryable())
}

func TestHTTPExecuteCustomExpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	exec := newHTTPExecutorForTest(1000)
	out := exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{
		ExpectedStatusCodes: []string{"418"},
	}))

	assert.Equal(t, models.ResultUp, out.Status)
}

func TestHTTPExecuteKeywordChecks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"service":"healthy"}`))
	}))
	defer srv.Close()

	exec := newHTTPExecutorForTest(1000)

	out := exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{Keyword: "healthy"}))
	assert.Equal(t, models.ResultUp, out.Status)

	out = exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{Keyword: "degraded"}))
	assert.Equal(t, models.ResultDown, out.Status)

	out = exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{
		Keyword:       "healthy",
		InvertKeyword: true,
	}))
	assert.Equal(t, models.ResultDown, out.Status)

	out = exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{
		Keyword:       "degraded",
		InvertKeyword: true,
	}))
	assert.Equal(t, models.ResultUp, out.Status)
}

func TestHTTPExecuteJSONPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"items":[{"status":"ok"}]}}`))
	}))
	defer srv.Close()

	exec := newHTTPExecutorForTest(1000)

	out := exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{
		JSONPath:         "data.items.0.status",
		JSONPathExpected: "ok",
	}))
	assert.Equal(t, models.ResultUp, out.Status)

	out = exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{
		JSONPath:         "data.items.0.status",
		JSONPathExpected: "failed",
	}))
	assert.Equal(t, models.ResultDown, out.Status)

	out = exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{
		JSONPath:         "data.missing",
		JSONPathExpected: "ok",
	}))
	assert.Equal(t, models.ResultDown, out.Status)
}

func TestHTTPExecuteSnippetTruncated(t *testing.T) {
	body := strings.Repeat("a", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	exec := newHTTPExecutorForTest(100)
	out := exec.Execute(context.Background(), httpMonitor(srv.URL, &models.HTTPConfig{}))

	require.Equal(t, models.ResultUp, out.Status)
	snippet, ok := out.Detail["body_snippet"].(string)
	require.True(t, ok)
	assert.Len(t, snippet, 100)
}

func TestHTTPExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	exec := newHTTPExecutorForTest(1000)
	start := time.Now()
	out := exec.Execute(ctx, httpMonitor(srv.URL, &models.HTTPConfig{}))

	assert.Equal(t, models.ResultTimeout, out.Status)
	assert.GreaterOrEqual(t, out.ElapsedMs, int64(90))
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPExecuteConnectionRefusedIsRetryable(t *testing.T) {
	// Grab a port that nothing is listening on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	exec := newHTTPExecutorForTest(1000)
	out := exec.Execute(context.Background(), httpMonitor(target, &models.HTTPConfig{}))

	assert.Equal(t, models.ResultDown, out.Status)
	assert.True(t, out.Retryable())
}

func TestHTTPExecuteRejectsBlockedTarget(t *testing.T) {
	exec := NewHTTPExecutor(NewTargetValidator(false), 1000)
	out := exec.Execute(context.Background(), httpMonitor("http://169.254.169.254/latest/meta-data/", &models.HTTPConfig{}))

	assert.Equal(t, models.ResultError, out.Status)
	assert.False(t, out.Retryable())
}

func TestExtractJSONPath(t *testing.T) {
	body := []byte(`{"count":3,"ok":true,"nested":{"name":"svc"},"list":[10,20]}`)

	cases := []struct {
		path string
		want string
	}{
		{"count", "3"},
		{"ok", "true"},
		{"nested.name", "svc"},
		{"list.1", "20"},
	}
	for _, c := range cases {
		got, err := extractJSONPath(body, c.path)
		require.NoError(t, err, "path %q", c.path)
		assert.Equal(t, c.want, got, "path %q", c.path)
	}

	_, err := extractJSONPath(body, "list.5")
	assert.Error(t, err)
	_, err = extractJSONPath([]byte("not json"), "a")
	assert.Error(t, err)
}
