// Package query decomposes a question into search-query candidates.
package query

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/wikiqa/internal/nlp"
)

// Decomposition is everything derived from a question before searching.
type Decomposition struct {
	Question string
	// Queries are the search candidates, in the order they are tried. Never empty.
	Queries []string
	// Entities are the surface forms of every entity in the question,
	// unfiltered. The slow path uses them to select paragraphs.
	Entities []string
}

// Extractor turns questions into query candidates using an annotator.
type Extractor struct {
	annotator nlp.Annotator
}

// NewExtractor creates an Extractor. A nil annotator limits extraction to
// quoted and title-case spans.
func NewExtractor(a nlp.Annotator) *Extractor {
	return &Extractor{annotator: a}
}

// Extract returns the ordered query candidates for question.
func (e *Extractor) Extract(ctx context.Context, question string) []string {
	return e.Decompose(ctx, question).Queries
}

// Decompose annotates question once and derives both the query candidates
// and the entity list. Annotation failures are logged and leave only the
// annotation-free steps.
func (e *Extractor) Decompose(ctx context.Context, question string) *Decomposition {
	q := collapse(norm.NFC.String(question))
	doc := e.annotate(ctx, q)

	var out []string
	add := func(items []string) {
		for _, s := range items {
			if s != "" && !contains(out, s) {
				out = append(out, s)
			}
		}
	}

	quoted := Quoted(q)
	add(quoted)

	entities := NamedEntities(doc)
	add(entities)

	title := TitleSpans(q)
	add(title)

	phrases := NounPhrases(doc)
	merged := make([]string, 0, len(phrases)+len(entities)+len(quoted)+len(title))
	merged = append(merged, phrases...)
	merged = append(merged, entities...)
	merged = append(merged, quoted...)
	merged = append(merged, title...)
	add(RemoveRepeating(merged))

	if len(out) == 0 {
		out = []string{q}
	}

	all := make([]string, 0, len(doc.Entities))
	for _, ent := range doc.Entities {
		all = append(all, ent.Text)
	}

	zap.L().Debug("query: decomposed question",
		zap.String("question", q),
		zap.Strings("queries", out),
		zap.Strings("entities", all),
	)

	return &Decomposition{Question: q, Queries: out, Entities: all}
}

func (e *Extractor) annotate(ctx context.Context, q string) *nlp.Doc {
	if e.annotator == nil || q == "" {
		return &nlp.Doc{Text: q}
	}
	doc, err := e.annotator.Annotate(ctx, q)
	if err != nil {
		zap.L().Warn("query: annotation failed, using surface heuristics only",
			zap.String("question", q),
			zap.Error(err),
		)
		return &nlp.Doc{Text: q}
	}
	return doc
}

// Normalize collapses whitespace and drops the word "the", which only
// dilutes keyword search.
func Normalize(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if w != "the" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
