package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wikiqa/internal/model"
)

func newTestPipeline(queries, entities []string, search PageSearcher, ranker Ranker, ext SpanExtractor) *Pipeline {
	return New(Deps{
		Queries:   staticDecomposer{queries: queries, entities: entities},
		Search:    search,
		Ranker:    ranker,
		Extractor: ext,
	}, Options{})
}

func TestAskNothingFound(t *testing.T) {
	p := newTestPipeline([]string{"Xyzzy"}, nil, fakeSearcher{}, firstRanker{}, &tableExtractor{})

	res, err := p.Ask(context.Background(), "Who is Xyzzy?")
	require.NoError(t, err)

	assert.Equal(t, model.NoAnswer, res.Answer)
	assert.False(t, res.Found)
	assert.Nil(t, res.Best)
	require.Len(t, res.Candidates, 1)
	assert.True(t, res.Candidates[0].IsSentinel())
	assert.Equal(t, model.NothingFoundText, res.Candidates[0].Text)
	require.Len(t, res.Branches, 1)
	assert.Equal(t, model.BranchEmpty, res.Branches[0].Status)
	assert.Equal(t, model.StageSearch, res.Branches[0].Stage)
}

func TestAnswerReturnsPostprocessedText(t *testing.T) {
	page := &fakePage{title: "Ada Lovelace", summary: "Ada Lovelace\nAda was a mathematician."}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		page.summary: {Text: "mathe ##matician", Score: 3},
	}}
	p := newTestPipeline([]string{"Ada Lovelace"}, nil,
		fakeSearcher{"Ada Lovelace": {pages: []Page{page}}}, firstRanker{}, ext)

	assert.Equal(t, "mathematician", p.Answer(context.Background(), "What was Ada Lovelace?"))
}

func TestFindAnswersSkipsDisambiguationPages(t *testing.T) {
	disamb := &fakePage{title: "Mercury", summary: "Mercury\nMercury may refer to:"}
	planet := &fakePage{title: "Mercury (planet)", summary: "Mercury (planet)\nMercury is the smallest planet."}
	element := &fakePage{title: "Mercury (element)", summary: "Mercury (element)\nMercury has atomic number 80."}

	ranker := new(mockRanker)
	ranker.On("SelectBest", mock.Anything, "atomic number of mercury",
		[]string{planet.summary, element.summary}).Return(1, nil)

	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		element.summary: {Text: "number 80", Score: 4},
		planet.summary:  {Text: "smallest", Score: 9},
	}}

	p := newTestPipeline(nil, nil, fakeSearcher{"mercury": {pages: []Page{disamb, planet, element}}}, ranker, ext)

	answers, trace, err := p.FindAnswers(context.Background(), "atomic number of mercury", "mercury", nil)
	require.NoError(t, err)
	ranker.AssertExpectations(t)

	require.Len(t, answers, 1)
	assert.Equal(t, "number 80", answers[0].Text)
	assert.Equal(t, "Mercury (element)", answers[0].PageTitle)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Mercury (element)", answers[0].PageURL)
	assert.Equal(t, "mercury", answers[0].Query)
	assert.Equal(t, model.SourceFast, answers[0].Source)
	assert.Equal(t, "Mercury (element)", trace.Page)
	assert.Equal(t, model.BranchAccepted, trace.Status)
	assert.Equal(t, model.StageFastExtract, trace.Stage)
}

func TestFindAnswersAllDisambiguation(t *testing.T) {
	pages := []Page{
		&fakePage{title: "A", summary: "A\nA may refer to:"},
		&fakePage{title: "B", summaryErr: errors.New("boom")},
	}
	ranker := new(mockRanker)
	p := newTestPipeline(nil, nil, fakeSearcher{"a": {pages: pages}}, ranker, &tableExtractor{})

	answers, trace, err := p.FindAnswers(context.Background(), "q", "a", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoComparablePages)
	assert.Empty(t, answers)
	assert.Equal(t, model.StageRank, trace.Stage)
	assert.Equal(t, model.BranchFailed, trace.Status)
	ranker.AssertNotCalled(t, "SelectBest", mock.Anything, mock.Anything, mock.Anything)
}

func TestFindAnswersFastPathSkipsParagraphs(t *testing.T) {
	page := &fakePage{
		title:      "Paris",
		summary:    "Paris\nParis is the capital of France.",
		infobox:    "Country France\nPopulation 2,102,650",
		paragraphs: []string{"Paris has many museums."},
	}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		page.infobox: {Text: "2 , 102 , 650", Score: 6},
	}}
	p := newTestPipeline(nil, []string{"Paris"}, fakeSearcher{"Paris": {pages: []Page{page}}}, firstRanker{}, ext)

	answers, trace, err := p.FindAnswers(context.Background(), "population of paris", "Paris", []string{"Paris"})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, model.SourceFast, answers[0].Source)
	assert.Equal(t, model.BranchAccepted, trace.Status)
	assert.Equal(t, 1, trace.Answers)

	require.Equal(t, 1, ext.callCount())
	assert.Equal(t, []string{page.infobox, page.summary}, ext.calls[0])
	assert.Equal(t, 0, page.paragraphCalls)
}

func TestFindAnswersSlowPathFallback(t *testing.T) {
	page := &fakePage{
		title:   "Ada Lovelace",
		summary: "Ada Lovelace\nAda was an English mathematician.",
		paragraphs: []string{
			"Early life of Ada.",
			"Ada wrote notes.",
			"Unrelated text here.",
			"Ada",
		},
	}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		page.summary:       {Text: "[CLS]", Score: 9},
		"Ada wrote notes.": {Text: "notes", Score: 2.5},
	}}
	p := newTestPipeline(nil, nil, fakeSearcher{"Ada Lovelace": {pages: []Page{page}}}, firstRanker{}, ext)

	answers, trace, err := p.FindAnswers(context.Background(), "what did ada write", "Ada Lovelace", []string{"Ada", "notes"})
	require.NoError(t, err)

	require.Equal(t, 2, ext.callCount())
	// The empty infobox is not sent to the model.
	assert.Equal(t, []string{page.summary}, ext.calls[0])
	assert.Equal(t, []string{"Early life of Ada.", "Ada wrote notes.", "Ada wrote notes."}, ext.calls[1])

	require.Len(t, answers, 2)
	for _, a := range answers {
		assert.Equal(t, "notes", a.Text)
		assert.Equal(t, model.SourceSlow, a.Source)
	}
	assert.Equal(t, model.StageSlowExtract, trace.Stage)
	assert.Equal(t, model.BranchAccepted, trace.Status)
}

func TestFindAnswersRejectedAndEmpty(t *testing.T) {
	page := &fakePage{
		title:      "Ada Lovelace",
		summary:    "Ada Lovelace\nAda was an English mathematician.",
		paragraphs: []string{"Ada wrote notes."},
	}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		page.summary:       {Text: "English", Score: 0.5},
		"Ada wrote notes.": {Text: "notes", Score: 1},
	}}
	p := newTestPipeline(nil, nil, fakeSearcher{"Ada": {pages: []Page{page}}}, firstRanker{}, ext)

	answers, trace, err := p.FindAnswers(context.Background(), "q", "Ada", []string{"ada"})
	require.NoError(t, err)
	assert.Empty(t, answers)
	assert.Equal(t, model.BranchRejected, trace.Status)

	answers, trace, err = p.FindAnswers(context.Background(), "q", "Ada", []string{"Babbage"})
	require.NoError(t, err)
	assert.Empty(t, answers)
	assert.Equal(t, model.BranchEmpty, trace.Status)
	assert.Equal(t, model.StageSlowExtract, trace.Stage)
}

func TestFindAnswersExtractorError(t *testing.T) {
	page := &fakePage{title: "Ada", summary: "Ada\nAda was a mathematician."}
	ext := &tableExtractor{err: errors.New("model unavailable")}
	p := newTestPipeline(nil, nil, fakeSearcher{"Ada": {pages: []Page{page}}}, firstRanker{}, ext)

	_, trace, err := p.FindAnswers(context.Background(), "q", "Ada", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Equal(t, model.StageFastExtract, trace.Stage)
	assert.Equal(t, model.BranchFailed, trace.Status)
	assert.NotEmpty(t, trace.Error)
}

func TestAskIsolatesFailingBranches(t *testing.T) {
	page := &fakePage{title: "Good", summary: "Good\nA good page."}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		page.summary: {Text: "good answer", Score: 2},
	}}
	search := fakeSearcher{
		"errors": {err: errors.New("search down")},
		"panics": {panic: "index out of range"},
		"works":  {pages: []Page{page}},
	}
	p := newTestPipeline([]string{"errors", "panics", "works"}, nil, search, firstRanker{}, ext)

	res, err := p.Ask(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "good answer", res.Answer)
	assert.True(t, res.Found)
	require.Len(t, res.Branches, 3)
	assert.Equal(t, model.BranchFailed, res.Branches[0].Status)
	assert.Contains(t, res.Branches[0].Error, "search down")
	assert.Equal(t, model.BranchFailed, res.Branches[1].Status)
	assert.Contains(t, res.Branches[1].Error, "panic")
	assert.Equal(t, model.BranchAccepted, res.Branches[2].Status)
}

func TestAskConcurrentMergeKeepsCandidateOrder(t *testing.T) {
	mk := func(name string) *fakePage {
		return &fakePage{title: name, summary: name + "\nsummary of " + name}
	}
	one, two, three := mk("one"), mk("two"), mk("three")
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		one.summary:   {Text: "one", Score: 4},
		two.summary:   {Text: "two", Score: 4},
		three.summary: {Text: "three", Score: 4},
	}}
	// Later queries finish first.
	search := fakeSearcher{
		"q1": {pages: []Page{one}, delay: 40 * time.Millisecond},
		"q2": {pages: []Page{two}, delay: 20 * time.Millisecond},
		"q3": {pages: []Page{three}},
	}
	p := New(Deps{
		Queries:   staticDecomposer{queries: []string{"q1", "q2", "q3"}},
		Search:    search,
		Ranker:    firstRanker{},
		Extractor: ext,
	}, Options{MaxConcurrentQueries: 3})

	res, err := p.Ask(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "one", res.Candidates[0].Text)
	assert.Equal(t, "two", res.Candidates[1].Text)
	assert.Equal(t, "three", res.Candidates[2].Text)
	// Equal scores resolve to the last candidate.
	assert.Equal(t, "three", res.Answer)
}

func TestAskHighestScoreWins(t *testing.T) {
	a := &fakePage{title: "A", summary: "A\nalpha"}
	b := &fakePage{title: "B", summary: "B\nbeta"}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		a.summary: {Text: "alpha", Score: 7},
		b.summary: {Text: "beta", Score: 3},
	}}
	p := newTestPipeline([]string{"a", "b", "nothing"}, nil,
		fakeSearcher{"a": {pages: []Page{a}}, "b": {pages: []Page{b}}}, firstRanker{}, ext)

	res, err := p.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.Answer)
	require.NotNil(t, res.Best)
	assert.Equal(t, "a", res.Best.Query)
	assert.Len(t, res.Candidates, 3)
}

func TestAskRecordsRun(t *testing.T) {
	page := &fakePage{title: "A", summary: "A\nalpha"}
	ext := &tableExtractor{answers: map[string]model.AnswerCandidate{
		page.summary: {Text: "alpha", Score: 7},
	}}
	runs := new(mockRuns)
	runs.On("CreateRun", mock.Anything, "q").Return(&model.Run{ID: "run-1"}, nil)
	runs.On("UpdateRunStatus", mock.Anything, "run-1", model.RunStatusRunning).Return(nil)
	runs.On("CompleteRun", mock.Anything, "run-1", mock.MatchedBy(func(r *model.AskResult) bool {
		return r.RunID == "run-1" && r.Found && r.Answer == "alpha"
	})).Return(nil)

	p := New(Deps{
		Queries:   staticDecomposer{queries: []string{"a"}},
		Search:    fakeSearcher{"a": {pages: []Page{page}}},
		Ranker:    firstRanker{},
		Extractor: ext,
		Runs:      runs,
	}, Options{})

	res, err := p.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	runs.AssertExpectations(t)
}

func TestAskCreateRunFailureDoesNotBlock(t *testing.T) {
	runs := new(mockRuns)
	runs.On("CreateRun", mock.Anything, "q").Return(nil, errors.New("db locked"))

	p := New(Deps{
		Queries:   staticDecomposer{queries: []string{"a"}},
		Search:    fakeSearcher{},
		Ranker:    firstRanker{},
		Extractor: &tableExtractor{},
		Runs:      runs,
	}, Options{})

	res, err := p.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	assert.Equal(t, model.NoAnswer, res.Answer)
	runs.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestAskCancelledContext(t *testing.T) {
	page := &fakePage{title: "A", summary: "A\nalpha"}
	runs := new(mockRuns)
	runs.On("CreateRun", mock.Anything, "q").Return(&model.Run{ID: "run-2"}, nil)
	runs.On("UpdateRunStatus", mock.Anything, "run-2", model.RunStatusRunning).Return(nil)
	runs.On("FailRun", mock.Anything, "run-2", "context canceled").Return(nil)

	p := New(Deps{
		Queries:   staticDecomposer{queries: []string{"a"}},
		Search:    fakeSearcher{"a": {pages: []Page{page}}},
		Ranker:    firstRanker{},
		Extractor: &tableExtractor{},
		Runs:      runs,
	}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Ask(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, model.NoAnswer, res.Answer)
	assert.Equal(t, model.BranchFailed, res.Branches[0].Status)
	runs.AssertExpectations(t)

	assert.Equal(t, model.NoAnswer, p.Answer(ctx, "q"))
}

func TestSelectParagraphs(t *testing.T) {
	paragraphs := []string{"Alan Turing was born in London.", "Turing", "He studied at King's College.", "LONDON is large."}

	got := SelectParagraphs([]string{"london", "Turing", ""}, paragraphs)
	assert.Equal(t, []string{
		"Alan Turing was born in London.",
		"LONDON is large.",
		"Alan Turing was born in London.",
	}, got)

	assert.Empty(t, SelectParagraphs(nil, paragraphs))
	assert.Empty(t, SelectParagraphs([]string{"Paris"}, paragraphs))
}
