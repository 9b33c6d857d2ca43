// Package pipeline answers questions by decomposing them into search
// queries and resolving each query against the wiki.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wikiqa/internal/answer"
	"github.com/sells-group/wikiqa/internal/metrics"
	"github.com/sells-group/wikiqa/internal/model"
	"github.com/sells-group/wikiqa/internal/query"
)

// QueryDecomposer derives query candidates and entities from a question.
type QueryDecomposer interface {
	Decompose(ctx context.Context, question string) *query.Decomposition
}

// Page is a lazily fetched wiki page.
type Page interface {
	Title() string
	URL(ctx context.Context) (string, error)
	Summary(ctx context.Context) (string, error)
	Paragraphs(ctx context.Context) ([]string, error)
	Infobox(ctx context.Context) (string, error)
}

// PageSearcher finds pages for a query, in relevance order.
type PageSearcher interface {
	Search(ctx context.Context, query string) ([]Page, error)
}

// Ranker picks the summary closest to the question.
type Ranker interface {
	SelectBest(ctx context.Context, question string, summaries []string) (int, error)
}

// SpanExtractor extracts one scored span per text.
type SpanExtractor interface {
	Extract(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error)
}

// RunRecorder persists question runs. Optional.
type RunRecorder interface {
	CreateRun(ctx context.Context, question string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.AskResult) error
	FailRun(ctx context.Context, runID string, reason string) error
}

// Deps are the collaborators of a Pipeline. Runs may be nil.
type Deps struct {
	Queries   QueryDecomposer
	Search    PageSearcher
	Ranker    Ranker
	Extractor SpanExtractor
	Runs      RunRecorder
}

// Options tune a Pipeline.
type Options struct {
	// MaxConcurrentQueries bounds how many query branches run at once.
	// Values below 2 resolve branches one after another.
	MaxConcurrentQueries int
	// QuestionTimeout caps one Ask call. Zero means no limit.
	QuestionTimeout time.Duration
}

// Pipeline is the answer orchestrator.
type Pipeline struct {
	queries   QueryDecomposer
	search    PageSearcher
	ranker    Ranker
	extractor SpanExtractor
	runs      RunRecorder
	opts      Options
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if opts.MaxConcurrentQueries < 1 {
		opts.MaxConcurrentQueries = 1
	}
	return &Pipeline{
		queries:   deps.Queries,
		search:    deps.Search,
		ranker:    deps.Ranker,
		extractor: deps.Extractor,
		runs:      deps.Runs,
		opts:      opts,
	}
}

// Answer returns the best answer text for question, or model.NoAnswer. It
// never fails.
func (p *Pipeline) Answer(ctx context.Context, question string) string {
	res, err := p.Ask(ctx, question)
	if err != nil {
		zap.L().Warn("pipeline: ask failed", zap.String("question", question), zap.Error(err))
	}
	if res == nil || res.Answer == "" {
		return model.NoAnswer
	}
	return res.Answer
}

// Ask answers question and returns the full trace. Every query candidate is
// tried; a failing candidate never prevents the others from contributing.
// The only error is the caller's context ending, in which case the partial
// result is still returned.
func (p *Pipeline) Ask(ctx context.Context, question string) (*model.AskResult, error) {
	start := time.Now()
	log := zap.L().With(zap.String("question", question))

	res := &model.AskResult{Question: question}
	res.RunID = p.startRun(ctx, question)
	if res.RunID != "" {
		log = log.With(zap.String("run_id", res.RunID))
	}

	askCtx := ctx
	if p.opts.QuestionTimeout > 0 {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithTimeout(ctx, p.opts.QuestionTimeout)
		defer cancel()
	}

	dec := p.queries.Decompose(askCtx, question)
	res.Queries = dec.Queries
	res.Entities = dec.Entities
	log.Info("pipeline: query candidates",
		zap.Strings("queries", dec.Queries),
		zap.Strings("entities", dec.Entities),
	)

	for _, out := range p.runBranches(askCtx, dec) {
		res.Branches = append(res.Branches, out.trace)
		res.Candidates = append(res.Candidates, out.answers...)
	}

	res.Answer = model.NoAnswer
	if best, ok := answer.Best(extracted(res.Candidates)); ok {
		res.Best = &best
		res.Answer = answer.Postprocess(best.Text)
		res.Found = true
	}
	res.DurationMs = time.Since(start).Milliseconds()
	metrics.RecordQuestion(res.Found, len(res.Queries), time.Since(start).Seconds())

	log.Info("pipeline: answered",
		zap.String("answer", res.Answer),
		zap.Bool("found", res.Found),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int64("duration_ms", res.DurationMs),
	)

	if err := ctx.Err(); err != nil {
		p.failRun(ctx, res.RunID, err)
		return res, eris.Wrap(err, "pipeline: ask")
	}
	p.completeRun(ctx, res)
	return res, nil
}

type branchOutcome struct {
	answers []model.AnswerCandidate
	trace   model.BranchResult
}

// runBranches resolves every query candidate, at most MaxConcurrentQueries
// at a time, and returns the outcomes in candidate order.
func (p *Pipeline) runBranches(ctx context.Context, dec *query.Decomposition) []branchOutcome {
	outcomes := make([]branchOutcome, len(dec.Queries))

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrentQueries)
	for i, q := range dec.Queries {
		g.Go(func() error {
			outcomes[i] = p.safeBranch(ctx, dec.Question, q, dec.Entities)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// safeBranch runs FindAnswers, converting errors and panics into a failed
// trace with no answers.
func (p *Pipeline) safeBranch(ctx context.Context, question, q string, entities []string) (out branchOutcome) {
	start := time.Now()
	log := zap.L().With(zap.String("query", q))

	defer func() {
		if r := recover(); r != nil {
			out.answers = nil
			out.trace.Query = q
			out.trace.Status = model.BranchFailed
			out.trace.Error = eris.Errorf("panic: %v", r).Error()
			out.trace.DurationMs = time.Since(start).Milliseconds()
			log.Error("pipeline: branch panicked",
				zap.String("stage", string(out.trace.Stage)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			metrics.RecordError(string(out.trace.Stage))
			metrics.RecordBranch(string(out.trace.Stage), string(model.BranchFailed))
		}
	}()

	out.trace = model.BranchResult{Query: q, Stage: model.StageSearch}
	answers, err := p.findAnswers(ctx, question, q, entities, &out.trace)
	out.trace.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		log.Warn("pipeline: branch failed",
			zap.String("stage", string(out.trace.Stage)),
			zap.Error(err),
		)
		metrics.RecordError(string(out.trace.Stage))
		answers = nil
	} else {
		log.Info("pipeline: branch complete",
			zap.String("stage", string(out.trace.Stage)),
			zap.String("status", string(out.trace.Status)),
			zap.String("page", out.trace.Page),
			zap.Int("answers", len(answers)),
			zap.Int64("duration_ms", out.trace.DurationMs),
		)
	}
	metrics.RecordBranch(string(out.trace.Stage), string(out.trace.Status))
	out.answers = answers
	return out
}

// extracted drops placeholder candidates before best-answer selection.
func extracted(cands []model.AnswerCandidate) []model.AnswerCandidate {
	out := make([]model.AnswerCandidate, 0, len(cands))
	for _, c := range cands {
		if !c.IsSentinel() {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pipeline) startRun(ctx context.Context, question string) string {
	if p.runs == nil {
		return ""
	}
	run, err := p.runs.CreateRun(ctx, question)
	if err != nil {
		zap.L().Warn("pipeline: failed to create run", zap.Error(err))
		return ""
	}
	if err := p.runs.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		zap.L().Warn("pipeline: failed to update status", zap.String("run_id", run.ID), zap.Error(err))
	}
	return run.ID
}

func (p *Pipeline) completeRun(ctx context.Context, res *model.AskResult) {
	if p.runs == nil || res.RunID == "" {
		return
	}
	if err := p.runs.CompleteRun(context.WithoutCancel(ctx), res.RunID, res); err != nil {
		zap.L().Warn("pipeline: failed to record result", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

func (p *Pipeline) failRun(ctx context.Context, runID string, cause error) {
	if p.runs == nil || runID == "" {
		return
	}
	if err := p.runs.FailRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to record failure", zap.String("run_id", runID), zap.Error(err))
	}
}
