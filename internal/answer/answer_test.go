package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/wikiqa/internal/model"
)

func TestPostprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"decimal", "2. 3 million", "2.3 million"},
		{"thousands", "1, 500 people", "1,500 people"},
		{"continuation marker", "wo ##rd", "word"},
		{"sentence period", "word . Word", "word. Word"},
		{"comma", "paris , france", "paris, france"},
		{"apostrophe", "tolstoy ' s novel", "tolstoy's novel"},
		{"prefix marker", "▁leo ▁tol stoy", "leo tolstoy"},
		{"whitespace", "  leo   tolstoy  ", "leo tolstoy"},
		{"empty", "", ""},
		{"multi continuation", "ant ##ide ##pressant drug", "antidepressant drug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Postprocess(tt.in))
		})
	}
}

func TestGood(t *testing.T) {
	tests := []struct {
		name string
		a    model.AnswerCandidate
		want bool
	}{
		{"accepted", model.AnswerCandidate{Text: "leo tolstoy", Score: 4.2}, true},
		{"score exactly one", model.AnswerCandidate{Text: "leo tolstoy", Score: 1}, false},
		{"score just above one", model.AnswerCandidate{Text: "leo tolstoy", Score: 1.0001}, true},
		{"cls token", model.AnswerCandidate{Text: "[CLS]", Score: 9}, false},
		{"sep inside", model.AnswerCandidate{Text: "who wrote [SEP] leo", Score: 9}, false},
		{"pad", model.AnswerCandidate{Text: "<pad> tolstoy", Score: 9}, false},
		{"unk", model.AnswerCandidate{Text: "<unk> tolstoy", Score: 9}, false},
		{"empty", model.AnswerCandidate{Text: "", Score: 9}, false},
		{"two chars", model.AnswerCandidate{Text: "ab", Score: 9}, false},
		{"three chars", model.AnswerCandidate{Text: "abc", Score: 9}, true},
		{"199 chars", model.AnswerCandidate{Text: strings.Repeat("a", 199), Score: 9}, true},
		{"200 chars", model.AnswerCandidate{Text: strings.Repeat("a", 200), Score: 9}, false},
		{"sentinel", model.NothingFound("q"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Good(tt.a))
		})
	}
}

func TestFilterKeepsOrder(t *testing.T) {
	in := []model.AnswerCandidate{
		{Text: "moscow", Score: 2},
		{Text: "[CLS]", Score: 8},
		{Text: "yasnaya polyana", Score: 3},
		{Text: "tula", Score: 0.5},
	}
	got := Filter(in)
	assert.Equal(t, []model.AnswerCandidate{in[0], in[2]}, got)
	assert.Empty(t, Filter(nil))
}

func TestBestLastMaximumWins(t *testing.T) {
	got, ok := Best([]model.AnswerCandidate{
		{Text: "Paris", Score: 3.2},
		{Text: "France", Score: 5.1},
		{Text: "Rome", Score: 5.1},
	})
	assert.True(t, ok)
	assert.Equal(t, "Rome", got.Text)
}

func TestBestDoesNotReorderInput(t *testing.T) {
	in := []model.AnswerCandidate{{Text: "b", Score: 2}, {Text: "a", Score: 1}}
	got, ok := Best(in)
	assert.True(t, ok)
	assert.Equal(t, "b", got.Text)
	assert.Equal(t, "b", in[0].Text)
}

func TestBestEmpty(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)
}
