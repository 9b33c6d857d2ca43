package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/wikiqa/internal/model"
	"github.com/sells-group/wikiqa/internal/query"
)

// --- Decomposer ---

type staticDecomposer struct {
	queries  []string
	entities []string
}

func (d staticDecomposer) Decompose(_ context.Context, question string) *query.Decomposition {
	return &query.Decomposition{Question: question, Queries: d.queries, Entities: d.entities}
}

// --- Pages ---

type fakePage struct {
	title      string
	summary    string
	summaryErr error
	infobox    string
	infoboxErr error
	paragraphs []string

	mu             sync.Mutex
	paragraphCalls int
}

func (p *fakePage) Title() string { return p.title }

func (p *fakePage) URL(context.Context) (string, error) {
	return "https://en.wikipedia.org/wiki/" + p.title, nil
}

func (p *fakePage) Summary(context.Context) (string, error) {
	if p.summaryErr != nil {
		return "", p.summaryErr
	}
	return p.summary, nil
}

func (p *fakePage) Infobox(context.Context) (string, error) {
	return p.infobox, p.infoboxErr
}

func (p *fakePage) Paragraphs(context.Context) ([]string, error) {
	p.mu.Lock()
	p.paragraphCalls++
	p.mu.Unlock()
	return p.paragraphs, nil
}

// --- Searcher ---

type searchResult struct {
	pages []Page
	err   error
	panic string
	delay time.Duration
}

type fakeSearcher map[string]searchResult

func (s fakeSearcher) Search(ctx context.Context, q string) ([]Page, error) {
	res, ok := s[q]
	if !ok {
		return nil, nil
	}
	if res.delay > 0 {
		time.Sleep(res.delay)
	}
	if res.panic != "" {
		panic(res.panic)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.pages, res.err
}

// --- Ranker ---

type mockRanker struct {
	mock.Mock
}

func (m *mockRanker) SelectBest(ctx context.Context, question string, summaries []string) (int, error) {
	args := m.Called(ctx, question, summaries)
	return args.Int(0), args.Error(1)
}

// firstRanker always prefers the first summary.
type firstRanker struct{}

func (firstRanker) SelectBest(_ context.Context, _ string, summaries []string) (int, error) {
	if len(summaries) == 0 {
		return 0, eris.New("no summaries")
	}
	return 0, nil
}

// --- Extractor ---

// tableExtractor answers each text from a lookup table and records every call.
type tableExtractor struct {
	answers map[string]model.AnswerCandidate
	err     error

	mu    sync.Mutex
	calls [][]string
}

func (e *tableExtractor) Extract(_ context.Context, _ string, texts []string) ([]model.AnswerCandidate, error) {
	e.mu.Lock()
	e.calls = append(e.calls, texts)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([]model.AnswerCandidate, len(texts))
	for i, t := range texts {
		out[i] = e.answers[t]
	}
	return out, nil
}

func (e *tableExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// --- Run recorder ---

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) CreateRun(ctx context.Context, question string) (*model.Run, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRuns) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockRuns) CompleteRun(ctx context.Context, runID string, result *model.AskResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockRuns) FailRun(ctx context.Context, runID string, reason string) error {
	args := m.Called(ctx, runID, reason)
	return args.Error(0)
}
