package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/answer"
	"github.com/sells-group/wikiqa/internal/metrics"
	"github.com/sells-group/wikiqa/internal/model"
	"github.com/sells-group/wikiqa/internal/rank"
)

// ErrNoComparablePages is returned when every page found for a query was a
// disambiguation page or had no summary.
var ErrNoComparablePages = eris.New("pipeline: no comparable pages")

// disambiguationMarker marks summaries of disambiguation pages.
const disambiguationMarker = "refer to"

// minTextLen is the exclusive lower bound on paragraph length for the slow path.
const minTextLen = 5

// FindAnswers resolves a single query candidate: search, rank the results
// against the question, then try the infobox and summary before falling back
// to entity-matching paragraphs. A query with no search results yields the
// nothing-found placeholder. The returned trace is filled in even on error.
func (p *Pipeline) FindAnswers(ctx context.Context, question, query string, entities []string) ([]model.AnswerCandidate, model.BranchResult, error) {
	start := time.Now()
	trace := model.BranchResult{Query: query, Stage: model.StageSearch}
	answers, err := p.findAnswers(ctx, question, query, entities, &trace)
	trace.DurationMs = time.Since(start).Milliseconds()
	return answers, trace, err
}

func (p *Pipeline) findAnswers(ctx context.Context, question, query string, entities []string, trace *model.BranchResult) ([]model.AnswerCandidate, error) {
	fail := func(err error) ([]model.AnswerCandidate, error) {
		trace.Status = model.BranchFailed
		trace.Error = err.Error()
		return nil, err
	}

	// Search.
	var pages []Page
	err := p.trackStage(trace, model.StageSearch, func() error {
		var err error
		pages, err = p.search.Search(ctx, query)
		return err
	})
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: search %q", query))
	}
	if len(pages) == 0 {
		trace.Status = model.BranchEmpty
		trace.Answers = 1
		return []model.AnswerCandidate{model.NothingFound(query)}, nil
	}

	// Rank.
	var (
		best    Page
		summary string
	)
	err = p.trackStage(trace, model.StageRank, func() error {
		kept, summaries := comparablePages(ctx, pages)
		if len(summaries) == 0 {
			return ErrNoComparablePages
		}
		idx, err := p.ranker.SelectBest(ctx, question, summaries)
		if err != nil {
			if errors.Is(err, rank.ErrNoCandidates) {
				return ErrNoComparablePages
			}
			return err
		}
		if idx < 0 || idx >= len(kept) {
			return eris.Errorf("pipeline: ranker returned index %d for %d pages", idx, len(kept))
		}
		best, summary = kept[idx], summaries[idx]
		return nil
	})
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: rank %q", query))
	}
	trace.Page = best.Title()
	if url, err := best.URL(ctx); err == nil {
		trace.PageURL = url
	}

	// Fast path: infobox and summary.
	var answers []model.AnswerCandidate
	err = p.trackStage(trace, model.StageFastExtract, func() error {
		infobox, err := best.Infobox(ctx)
		if err != nil {
			return err
		}
		cands, err := p.extractor.Extract(ctx, question, nonEmpty(infobox, summary))
		if err != nil {
			return err
		}
		answers = p.annotate(answer.Filter(cands), trace, model.SourceFast)
		return nil
	})
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: fast extract %q", trace.Page))
	}
	if len(answers) > 0 {
		trace.Status = model.BranchAccepted
		trace.Answers = len(answers)
		return answers, nil
	}

	// Slow path: paragraphs mentioning an entity.
	status := model.BranchEmpty
	err = p.trackStage(trace, model.StageSlowExtract, func() error {
		paragraphs, err := best.Paragraphs(ctx)
		if err != nil {
			return err
		}
		texts := SelectParagraphs(entities, paragraphs)
		if len(texts) == 0 {
			return nil
		}
		cands, err := p.extractor.Extract(ctx, question, texts)
		if err != nil {
			return err
		}
		answers = p.annotate(answer.Filter(cands), trace, model.SourceSlow)
		if len(cands) > 0 {
			status = model.BranchRejected
		}
		return nil
	})
	if err != nil {
		return fail(eris.Wrapf(err, "pipeline: slow extract %q", trace.Page))
	}
	if len(answers) > 0 {
		status = model.BranchAccepted
	}
	trace.Status = status
	trace.Answers = len(answers)
	return answers, nil
}

// trackStage records the stage on the trace and times fn.
func (p *Pipeline) trackStage(trace *model.BranchResult, stage model.Stage, fn func() error) error {
	trace.Stage = stage
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.RecordStage(string(stage), elapsed.Seconds())
	zap.L().Debug("pipeline: stage complete",
		zap.String("query", trace.Query),
		zap.String("stage", string(stage)),
		zap.Duration("duration", elapsed),
		zap.Bool("ok", err == nil),
	)
	return err
}

func (p *Pipeline) annotate(cands []model.AnswerCandidate, trace *model.BranchResult, src model.Source) []model.AnswerCandidate {
	for i := range cands {
		cands[i].Query = trace.Query
		cands[i].PageTitle = trace.Page
		cands[i].PageURL = trace.PageURL
		cands[i].Source = src
	}
	return cands
}

// comparablePages fetches every page's summary and drops disambiguation pages and
// pages whose summary cannot be loaded. The returned slices stay aligned.
func comparablePages(ctx context.Context, pages []Page) ([]Page, []string) {
	kept := make([]Page, 0, len(pages))
	summaries := make([]string, 0, len(pages))
	for _, pg := range pages {
		s, err := pg.Summary(ctx)
		if err != nil {
			zap.L().Warn("pipeline: summary unavailable",
				zap.String("page", pg.Title()),
				zap.Error(err),
			)
			continue
		}
		if strings.Contains(s, disambiguationMarker) {
			continue
		}
		kept = append(kept, pg)
		summaries = append(summaries, s)
	}
	return kept, summaries
}

// SelectParagraphs returns, for each entity in order, every paragraph that
// mentions it case-insensitively and is longer than five characters. A
// paragraph matching several entities appears once per entity.
func SelectParagraphs(entities, paragraphs []string) []string {
	lowered := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		lowered[i] = strings.ToLower(p)
	}
	var out []string
	for _, ent := range entities {
		e := strings.ToLower(ent)
		if e == "" {
			continue
		}
		for i, p := range paragraphs {
			if strings.Contains(lowered[i], e) && utf8.RuneCountInString(p) > minTextLen {
				out = append(out, p)
			}
		}
	}
	return out
}

func nonEmpty(texts ...string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
