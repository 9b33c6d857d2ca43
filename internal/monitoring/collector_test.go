package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wikiqa/internal/model"
	"github.com/sells-group/wikiqa/internal/store"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func completed(found bool, source model.Source, ms int64) model.Run {
	res := &model.AskResult{Found: found, DurationMs: ms}
	if found {
		res.Best = &model.AnswerCandidate{Text: "x", Source: source}
	}
	return model.Run{Status: model.RunStatusComplete, Result: res}
}

func TestCollect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ml := new(mockLister)
	ml.On("ListRuns", mock.Anything, store.RunFilter{CreatedAfter: now.Add(-24 * time.Hour), Limit: 10000}).
		Return([]model.Run{
			completed(true, model.SourceFast, 1000),
			completed(true, model.SourceSlow, 3000),
			completed(false, model.SourceNone, 2000),
			{Status: model.RunStatusFailed, Error: "boom"},
			{Status: model.RunStatusQueued},
			{Status: model.RunStatusRunning},
		}, nil)

	c := NewCollector(ml)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.RunsTotal)
	assert.Equal(t, 3, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsQueued)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 0.25, snap.FailRate, 1e-9)
	assert.InDelta(t, 2.0/3.0, snap.FoundRate, 1e-9)
	assert.InDelta(t, 0.5, snap.FastPathRate, 1e-9)
	assert.Equal(t, int64(2000), snap.AvgDurationMs)
	assert.Equal(t, now, snap.CollectedAt)
	ml.AssertExpectations(t)
}

func TestCollectEmpty(t *testing.T) {
	ml := new(mockLister)
	ml.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{}, nil)

	snap, err := NewCollector(ml).Collect(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.FoundRate)
}

func TestCollectStoreError(t *testing.T) {
	ml := new(mockLister)
	ml.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := NewCollector(ml).Collect(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
