package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wikiqa/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Page Cache ---

func TestSQLite_PageCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	page := &model.PageContent{
		Title:      "Leo Tolstoy",
		URL:        "https://en.wikipedia.org/wiki/Leo_Tolstoy",
		Summary:    "Leo Tolstoy\nA Russian writer.",
		Paragraphs: []string{"He wrote War and Peace."},
		Infobox:    " Born — 1828; \n",
		HasBody:    true,
	}
	require.NoError(t, st.SetCachedPage(ctx, page, time.Hour))

	got, err := st.GetCachedPage(ctx, "Leo Tolstoy")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, page.URL, got.URL)
	assert.Equal(t, page.Paragraphs, got.Paragraphs)
	assert.Equal(t, page.Infobox, got.Infobox)
	assert.True(t, got.HasBody)
}

func TestSQLite_PageCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetCachedPage(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_PageCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPage(ctx, &model.PageContent{Title: "Old"}, -time.Hour))

	got, err := st.GetCachedPage(ctx, "Old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_PageCache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPage(ctx, &model.PageContent{Title: "Python", Summary: "v1"}, time.Hour))
	require.NoError(t, st.SetCachedPage(ctx, &model.PageContent{Title: "Python", Summary: "v2"}, time.Hour))

	got, err := st.GetCachedPage(ctx, "Python")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Summary)
}

func TestSQLite_PageCache_DeleteExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPage(ctx, &model.PageContent{Title: "a"}, -time.Hour))
	require.NoError(t, st.SetCachedPage(ctx, &model.PageContent{Title: "b"}, -time.Minute))
	require.NoError(t, st.SetCachedPage(ctx, &model.PageContent{Title: "c"}, time.Hour))

	n, err := st.DeleteExpiredPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.GetCachedPage(ctx, "c")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// --- Runs ---

func TestSQLite_CreateRun_And_GetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "Who wrote War and Peace?")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, fetched.ID)
	assert.Equal(t, "Who wrote War and Peace?", fetched.Question)
	assert.Nil(t, fetched.Result)
	assert.Empty(t, fetched.Error)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "q")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, fetched.Status)

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusRunning)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "Who wrote War and Peace?")
	require.NoError(t, err)

	result := &model.AskResult{
		RunID:    run.ID,
		Question: "Who wrote War and Peace?",
		Answer:   "Leo Tolstoy",
		Found:    true,
		Queries:  []string{`"War and Peace"`, "War and Peace"},
		Best:     &model.AnswerCandidate{Text: "Leo Tolstoy", Score: 7.5, Source: model.SourceFast},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, fetched.Status)
	assert.True(t, fetched.Terminal())
	require.NotNil(t, fetched.Result)
	assert.Equal(t, "Leo Tolstoy", fetched.Result.Answer)
	assert.Len(t, fetched.Result.Queries, 2)
	require.NotNil(t, fetched.Result.Best)
	assert.InDelta(t, 7.5, fetched.Result.Best.Score, 1e-9)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "q")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "annotator unavailable"))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, fetched.Status)
	assert.Equal(t, "annotator unavailable", fetched.Error)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, "first")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "second")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "q1")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))

	_, err = st.CreateRun(ctx, "q2")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_ListRuns_CreatedAfter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, "q")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	runs, err = st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
