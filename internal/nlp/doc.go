// Package nlp defines the linguistic annotation consumed by query
// extraction, and the adapters that produce it.
package nlp

import (
	"context"
	"unicode"

	"github.com/rotisserie/eris"
)

// Entity is a named-entity span. Label follows the OntoNotes scheme
// (PERSON, ORG, GPE, DATE, CARDINAL, ...). Start and End are rune offsets.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Token is one token with its universal POS tag and dependency arc. Head is
// the index of the governing token; the root points at itself.
type Token struct {
	Text string `json:"text"`
	POS  string `json:"pos"`
	Dep  string `json:"dep"`
	Head int    `json:"head"`
}

// Doc is the annotation of one text.
type Doc struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
	Tokens   []Token  `json:"tokens"`
}

// Annotator produces entities and a dependency parse for a text.
type Annotator interface {
	Annotate(ctx context.Context, text string) (*Doc, error)
}

// Children returns the indices of tokens whose head is i, in sentence order.
func (d *Doc) Children(i int) []int {
	var out []int
	for j, t := range d.Tokens {
		if j != i && t.Head == i {
			out = append(out, j)
		}
	}
	return out
}

// Validate checks that every head index points inside the token list.
func (d *Doc) Validate() error {
	for i, t := range d.Tokens {
		if t.Head < 0 || t.Head >= len(d.Tokens) {
			return eris.Errorf("nlp: token %d (%q) has head %d outside [0,%d)", i, t.Text, t.Head, len(d.Tokens))
		}
	}
	return nil
}

// IsTitle reports whether s is title-cased: every cased word starts with an
// upper-case letter followed only by lower-case letters, and s has at least
// one cased letter.
func IsTitle(s string) bool {
	cased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased = true
			cased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
			cased = true
		default:
			prevCased = false
		}
	}
	return cased
}
