package answer

import (
	"sort"
	"unicode/utf8"

	"github.com/sells-group/wikiqa/internal/model"
)

const (
	minAnswerLen = 2
	maxAnswerLen = 200
	minScore     = 1.0
)

// Good reports whether a candidate passes the quality gate: no reserved
// model tokens, 2 < len < 200, and score strictly above 1.
func Good(a model.AnswerCandidate) bool {
	if a.Text == "" || model.ContainsArtifact(a.Text) {
		return false
	}
	n := utf8.RuneCountInString(a.Text)
	if n <= minAnswerLen || n >= maxAnswerLen {
		return false
	}
	return a.Score > minScore
}

// Filter returns the candidates that pass the quality gate, in order.
func Filter(candidates []model.AnswerCandidate) []model.AnswerCandidate {
	var out []model.AnswerCandidate
	for _, c := range candidates {
		if Good(c) {
			out = append(out, c)
		}
	}
	return out
}

// Best returns the highest-scoring candidate. Among equal scores the one
// appearing last wins. ok is false when candidates is empty.
func Best(candidates []model.AnswerCandidate) (best model.AnswerCandidate, ok bool) {
	if len(candidates) == 0 {
		return model.AnswerCandidate{}, false
	}
	sorted := make([]model.AnswerCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})
	return sorted[len(sorted)-1], true
}
