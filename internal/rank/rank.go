// Package rank picks the page whose summary is semantically closest to the
// question.
package rank

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/inference"
)

// ErrNoCandidates is returned when there is nothing to compare against.
var ErrNoCandidates = eris.New("rank: no comparable pages")

// Ranker scores summaries by cosine distance to the question embedding.
type Ranker struct {
	embedder inference.Embedder
}

// New creates a Ranker.
func New(e inference.Embedder) *Ranker {
	return &Ranker{embedder: e}
}

// SelectBest returns the index of the summary with the smallest cosine
// distance to question. The question and all summaries are embedded in one
// call. Ties go to the lowest index.
func (r *Ranker) SelectBest(ctx context.Context, question string, summaries []string) (int, error) {
	if len(summaries) == 0 {
		return -1, ErrNoCandidates
	}
	texts := make([]string, 0, len(summaries)+1)
	texts = append(texts, question)
	texts = append(texts, summaries...)

	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return -1, eris.Wrap(err, "rank: embed")
	}
	if len(vecs) != len(texts) {
		return -1, eris.Errorf("rank: got %d embeddings for %d texts", len(vecs), len(texts))
	}

	best, bestDist := -1, math.Inf(1)
	for i, v := range vecs[1:] {
		d := CosineDistance(vecs[0], v)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		// every distance was NaN
		best = 0
	}
	return best, nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from
// everything; vectors of different length are at distance +Inf.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
