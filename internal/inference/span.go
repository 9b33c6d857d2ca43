package inference

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/model"
)

// DefaultBatchSize bounds how many texts go through the model at once.
const DefaultBatchSize = 4

// SpanExtractor turns predictions into scored answer candidates.
type SpanExtractor struct {
	predictor SpanPredictor
	batchSize int
	clamp     bool
}

// ExtractorOption configures a SpanExtractor.
type ExtractorOption func(*SpanExtractor)

// WithBatchSize sets the number of texts per model call.
func WithBatchSize(n int) ExtractorOption {
	return func(e *SpanExtractor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClampSpan makes an end position before the start select the single
// start token instead of an empty span.
func WithClampSpan(on bool) ExtractorOption {
	return func(e *SpanExtractor) { e.clamp = on }
}

// NewSpanExtractor creates a SpanExtractor over predictor.
func NewSpanExtractor(p SpanPredictor, opts ...ExtractorOption) *SpanExtractor {
	e := &SpanExtractor{predictor: p, batchSize: DefaultBatchSize}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns one candidate per text, in order. Text holds the selected
// tokens joined by spaces; Score is (start logit + end logit) / 2.
func (e *SpanExtractor) Extract(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error) {
	out := make([]model.AnswerCandidate, 0, len(texts))
	for from := 0; from < len(texts); from += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "inference: extract")
		}
		to := min(from+e.batchSize, len(texts))

		preds, err := e.predictor.Predict(ctx, question, texts[from:to])
		if err != nil {
			return nil, eris.Wrapf(err, "inference: predict batch %d-%d", from, to)
		}
		if len(preds) != to-from {
			return nil, eris.Errorf("inference: predictor returned %d results for %d texts", len(preds), to-from)
		}
		for _, p := range preds {
			out = append(out, model.AnswerCandidate{
				Text:  e.decode(p),
				Score: float64(p.StartLogit+p.EndLogit) / 2,
			})
		}
	}
	return out, nil
}

func (e *SpanExtractor) decode(p SpanPrediction) string {
	start, end := p.Start, p.End
	if e.clamp && end < start {
		end = start
	}
	if start < 0 || start >= len(p.Tokens) || end < start {
		return ""
	}
	end = min(end, len(p.Tokens)-1)
	return strings.Join(p.Tokens[start:end+1], " ")
}

// argmax returns the index and value of the largest element; ties go to the
// first occurrence.
func argmax(xs []float32) (int, float32) {
	if len(xs) == 0 {
		return -1, 0
	}
	best, val := 0, xs[0]
	for i, x := range xs[1:] {
		if x > val {
			best, val = i+1, x
		}
	}
	return best, val
}
