package checks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probewatch/probewatch/internal/models"
)

// scriptedExecutor hands out a fixed sequence of outcomes, one per call.
type scriptedExecutor struct {
	mu       sync.Mutex
	outcomes []Outcome
	next     int
}

func (e *scriptedExecutor) Type() models.MonitorType {
	return models.TypeHTTPRequest
}

func (e *scriptedExecutor) Execute(ctx context.Context, m *models.Monitor) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.outcomes[e.next%len(e.outcomes)]
	e.next++
	return out
}

func locationMonitor(strategy models.AggregationStrategy, threshold int, locations ...string) *models.Monitor {
	return &models.Monitor{
		ID:   uuid.New(),
		Type: models.TypeHTTPRequest,
		LocationConfig: &models.LocationConfig{
			Enabled:          true,
			Locations:        locations,
			Strategy:         strategy,
			ThresholdPercent: threshold,
		},
	}
}

func TestEffectiveThreshold(t *testing.T) {
	cases := []struct {
		strategy models.AggregationStrategy
		custom   int
		want     int
	}{
		{models.StrategyAll, 0, 100},
		{models.StrategyMajority, 0, 50},
		{models.StrategyAny, 0, 1},
		{models.StrategyCustom, 75, 75},
	}
	for _, c := range cases {
		lc := &models.LocationConfig{Strategy: c.strategy, ThresholdPercent: c.custom}
		assert.Equal(t, c.want, EffectiveThreshold(lc), "strategy %s", c.strategy)
	}
}

func TestUpRequired(t *testing.T) {
	cases := []struct {
		total, threshold, want int
	}{
		{4, 100, 4},
		{4, 50, 2},
		{5, 50, 3},
		{4, 1, 1},
		{3, 75, 3},
		{1, 100, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, UpRequired(c.total, c.threshold), "total=%d threshold=%d", c.total, c.threshold)
	}
}

func TestRunLocationsMajorityUp(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{
		{Status: models.ResultUp, ElapsedMs: 10},
		{Status: models.ResultUp, ElapsedMs: 30},
		{Status: models.ResultDown, ElapsedMs: 20, Err: errors.New("refused")},
		{Status: models.ResultDown, ElapsedMs: 5, Err: errors.New("refused")},
	}}
	m := locationMonitor(models.StrategyMajority, 0, "us-east", "eu-west", "ap-south", "sa-east")

	out := RunLocations(context.Background(), exec, m)

	assert.Equal(t, models.ResultUp, out.Status)
	assert.Equal(t, int64(30), out.ElapsedMs)
	assert.Equal(t, 2, out.Detail["up_count"])
	assert.Equal(t, 2, out.Detail["up_required"])
}

func TestRunLocationsMajorityDown(t *testing.T) {
	probeErr := errors.New("refused")
	exec := &scriptedExecutor{outcomes: []Outcome{
		{Status: models.ResultUp, ElapsedMs: 10},
		{Status: models.ResultDown, ElapsedMs: 20, Err: probeErr},
		{Status: models.ResultDown, ElapsedMs: 20, Err: probeErr},
		{Status: models.ResultDown, ElapsedMs: 20, Err: probeErr},
	}}
	m := locationMonitor(models.StrategyMajority, 0, "us-east", "eu-west", "ap-south", "sa-east")

	out := RunLocations(context.Background(), exec, m)

	assert.Equal(t, models.ResultDown, out.Status)
	assert.Equal(t, 1, out.Detail["up_count"])
	require.Error(t, out.Err)
}

func TestRunLocationsErrorCountsAsDown(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{
		{Status: models.ResultUp, ElapsedMs: 10},
		{Status: models.ResultError, ElapsedMs: 0, Err: &ValidationError{Reason: "bad target"}},
	}}
	m := locationMonitor(models.StrategyAll, 0, "us-east", "eu-west")

	out := RunLocations(context.Background(), exec, m)

	assert.Equal(t, models.ResultDown, out.Status)
	assert.Equal(t, 1, out.Detail["up_count"])
	assert.Equal(t, 2, out.Detail["up_required"])
}

func TestRunLocationsAnyStrategy(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{
		{Status: models.ResultDown, ElapsedMs: 5, Err: errors.New("refused")},
		{Status: models.ResultDown, ElapsedMs: 5, Err: errors.New("refused")},
		{Status: models.ResultUp, ElapsedMs: 12},
	}}
	m := locationMonitor(models.StrategyAny, 0, "a", "b", "c")

	out := RunLocations(context.Background(), exec, m)
	assert.Equal(t, models.ResultUp, out.Status)
}

func TestRunLocationsBreakdownCoversAllLocations(t *testing.T) {
	exec := &scriptedExecutor{outcomes: []Outcome{
		{Status: models.ResultUp, ElapsedMs: 1},
	}}
	m := locationMonitor(models.StrategyAll, 0, "us-east", "eu-west", "ap-south")

	out := RunLocations(context.Background(), exec, m)

	breakdown, ok := out.Detail["locations"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, breakdown, 3)
	for _, loc := range m.LocationConfig.Locations {
		assert.Contains(t, breakdown, loc)
	}
}
