package checks

import (
	"context"
	"sync"

	"github.com/probewatch/probewatch/internal/models"
)

// EffectiveThreshold derives the up-percentage threshold from the
// aggregation strategy. Custom uses the stored percentage directly.
func EffectiveThreshold(lc *models.LocationConfig) int {
	switch lc.Strategy {
	case models.StrategyAll:
		return 100
	case models.StrategyMajority:
		return 50
	case models.StrategyAny:
		return 1
	case models.StrategyCustom:
		return lc.ThresholdPercent
	}
	return 100
}

// UpRequired is the number of up locations needed to classify the monitor
// as up: ceil(total * threshold / 100).
func UpRequired(total, thresholdPercent int) int {
	return (total*thresholdPercent + 99) / 100
}

// RunLocations fans the executor out to every configured location in
// parallel and reduces the per-location outcomes to one logical outcome. A
// location that errors counts as down, never as absent. All locations must
// settle before the aggregate is computed; each probe still runs under the
// caller's deadline, so one slow location cannot hold the rest hostage past
// it.
func RunLocations(ctx context.Context, exec Executor, m *models.Monitor) Outcome {
	lc := m.LocationConfig
	locations := lc.Locations

	type located struct {
		location string
		outcome  Outcome
	}

	results := make([]located, len(locations))
	var wg sync.WaitGroup
	for i, loc := range locations {
		wg.Add(1)
		go func(i int, loc string) {
			defer wg.Done()
			// All probes currently originate from this node; the location
			// identifier is carried through for the breakdown and for
			// remote probe agents once they attach.
			results[i] = located{location: loc, outcome: exec.Execute(ctx, m)}
		}(i, loc)
	}
	wg.Wait()

	threshold := EffectiveThreshold(lc)
	required := UpRequired(len(locations), threshold)

	upCount := 0
	var maxElapsed int64
	var firstErr error
	breakdown := make(map[string]interface{}, len(locations))

	for _, r := range results {
		if r.outcome.Status == models.ResultUp {
			upCount++
		} else if firstErr == nil {
			firstErr = r.outcome.Err
		}
		if r.outcome.ElapsedMs > maxElapsed {
			maxElapsed = r.outcome.ElapsedMs
		}
		breakdown[r.location] = map[string]interface{}{
			"status":     string(r.outcome.Status),
			"elapsed_ms": r.outcome.ElapsedMs,
		}
	}

	detail := map[string]interface{}{
		"locations":         breakdown,
		"up_count":          upCount,
		"up_required":       required,
		"threshold_percent": threshold,
	}

	if upCount >= required {
		return Outcome{
			Status:    models.ResultUp,
			ElapsedMs: maxElapsed,
			Detail:    detail,
		}
	}

	return Outcome{
		Status:    models.ResultDown,
		ElapsedMs: maxElapsed,
		Detail:    detail,
		Err:       firstErr,
	}
}
