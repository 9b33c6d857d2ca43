package batch

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wikiqa/internal/answer"
	"github.com/sells-group/wikiqa/internal/model"
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (*model.AskResult, error)
}

// Result is the outcome of one batch question.
type Result struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Expected      string  `json:"expected,omitempty"`
	Answer        string  `json:"answer"`
	Score         float64 `json:"score"`
	Found         bool    `json:"found"`
	ExactMatch    bool    `json:"exact_match"`
	ContainsMatch bool    `json:"contains_match"`
	RunID         string  `json:"run_id,omitempty"`
	Error         string  `json:"error,omitempty"`
	DurationMs    int64   `json:"duration_ms"`
}

// Report aggregates a batch.
type Report struct {
	Results   []Result `json:"results"`
	Total     int      `json:"total"`
	Found     int      `json:"found"`
	Failed    int      `json:"failed"`
	Evaluated int      `json:"evaluated"`
	Exact     int      `json:"exact"`
	Contains  int      `json:"contains"`
	// ExactAccuracy and ContainsAccuracy are over evaluated questions only.
	ExactAccuracy    float64 `json:"exact_accuracy"`
	ContainsAccuracy float64 `json:"contains_accuracy"`
	DurationMs       int64   `json:"duration_ms"`
}

// Runner answers a batch in-process.
type Runner struct {
	asker         Asker
	maxConcurrent int
}

// NewRunner creates a Runner. maxConcurrent below 1 means one at a time.
func NewRunner(asker Asker, maxConcurrent int) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{asker: asker, maxConcurrent: maxConcurrent}
}

// Run answers every question and returns results in input order. A failing
// question is recorded on its result and does not stop the batch.
func (r *Runner) Run(ctx context.Context, questions []Question) *Report {
	start := time.Now()
	log := zap.L().With(zap.Int("questions", len(questions)))
	log.Info("batch: starting", zap.Int("max_concurrent", r.maxConcurrent))

	results := make([]Result, len(questions))
	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for i, q := range questions {
		g.Go(func() error {
			results[i] = answerOne(ctx, r.asker, q)
			return nil
		})
	}
	_ = g.Wait()

	rep := Summarize(results)
	rep.DurationMs = time.Since(start).Milliseconds()
	log.Info("batch: complete",
		zap.Int("found", rep.Found),
		zap.Int("failed", rep.Failed),
		zap.Float64("exact_accuracy", rep.ExactAccuracy),
		zap.Int64("duration_ms", rep.DurationMs),
	)
	return rep
}

// answerOne asks a single question and scores the answer.
func answerOne(ctx context.Context, asker Asker, q Question) Result {
	start := time.Now()
	res := Result{ID: q.ID, Question: q.Question, Expected: q.Expected}

	ar, err := asker.Ask(ctx, q.Question)
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		zap.L().Warn("batch: question failed", zap.String("id", q.ID), zap.Error(err))
		res.Error = err.Error()
		res.Answer = model.NoAnswer
		return res
	}
	fill(&res, ar)
	return res
}

func fill(res *Result, ar *model.AskResult) {
	res.Answer = ar.Answer
	res.Found = ar.Found
	res.RunID = ar.RunID
	if ar.Best != nil {
		res.Score = ar.Best.Score
	}
	if res.Expected != "" && res.Found {
		res.ExactMatch = ExactMatch(res.Answer, res.Expected)
		res.ContainsMatch = ContainsMatch(res.Answer, res.Expected)
	}
}

// Summarize computes the report totals for results.
func Summarize(results []Result) *Report {
	rep := &Report{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Error != "" {
			rep.Failed++
		}
		if r.Found {
			rep.Found++
		}
		if r.Expected == "" {
			continue
		}
		rep.Evaluated++
		if r.ExactMatch {
			rep.Exact++
		}
		if r.ContainsMatch {
			rep.Contains++
		}
	}
	if rep.Evaluated > 0 {
		rep.ExactAccuracy = float64(rep.Exact) / float64(rep.Evaluated)
		rep.ContainsAccuracy = float64(rep.Contains) / float64(rep.Evaluated)
	}
	return rep
}

// ExactMatch compares answers after normalization.
func ExactMatch(got, want string) bool {
	g, w := normalizeAnswer(got), normalizeAnswer(want)
	return g != "" && g == w
}

// ContainsMatch reports whether either normalized answer contains the other.
func ContainsMatch(got, want string) bool {
	g, w := normalizeAnswer(got), normalizeAnswer(want)
	if g == "" || w == "" {
		return false
	}
	return strings.Contains(g, w) || strings.Contains(w, g)
}

var articles = map[string]bool{"a": true, "an": true, "the": true}

// normalizeAnswer lowercases, drops punctuation and articles, and collapses
// whitespace.
func normalizeAnswer(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !articles[w] {
			kept = append(kept, w)
		}
	}
	return answer.CollapseSpaces(strings.Join(kept, " "))
}
