// Package monitoring summarizes recent question runs for the stats endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/model"
	"github.com/sells-group/wikiqa/internal/store"
)

// RunLister is the store capability the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// MetricsSnapshot holds a point-in-time view of answering activity.
type MetricsSnapshot struct {
	RunsTotal     int     `json:"runs_total"`
	RunsComplete  int     `json:"runs_complete"`
	RunsFailed    int     `json:"runs_failed"`
	RunsQueued    int     `json:"runs_queued"`
	RunsRunning   int     `json:"runs_running"`
	FailRate      float64 `json:"fail_rate"`
	FoundRate     float64 `json:"found_rate"`
	FastPathRate  float64 `json:"fast_path_rate"`
	AvgDurationMs int64   `json:"avg_duration_ms"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var found, fast int
	var totalDuration int64
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusQueued:
			snap.RunsQueued++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Result == nil {
			continue
		}
		totalDuration += r.Result.DurationMs
		if r.Result.Found {
			found++
			if r.Result.Best != nil && r.Result.Best.Source == model.SourceFast {
				fast++
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RunsComplete > 0 {
		snap.FoundRate = float64(found) / float64(snap.RunsComplete)
		snap.AvgDurationMs = totalDuration / int64(snap.RunsComplete)
	}
	if found > 0 {
		snap.FastPathRate = float64(fast) / float64(found)
	}
	return snap, nil
}
