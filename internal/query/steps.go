package query

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/nlp"
)

// apostrophe stands in for an apostrophe that is part of a word while
// quotation boundaries are located.
const apostrophe = '\uE000'

// Quoted returns the spans enclosed in single quotes, double quotes or
// guillemets, each wrapped in double quotes so search treats it as a phrase.
// Apostrophes between two letters (contractions, possessives) are not
// boundaries. When double quotes or guillemets are present every single
// quote is treated as an apostrophe. An odd number of remaining single
// quotes is ambiguous and yields nothing.
func Quoted(text string) []string {
	runes := []rune(text)
	for i := 1; i+1 < len(runes); i++ {
		if runes[i] == '\'' && unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]) {
			runes[i] = apostrophe
		}
	}
	s := string(runes)

	hasSingle := strings.ContainsRune(s, '\'')
	hasOther := strings.ContainsRune(s, '"') || strings.ContainsRune(s, '«')
	if !hasSingle && !hasOther {
		return nil
	}
	if hasOther && hasSingle {
		s = strings.ReplaceAll(s, "'", string(apostrophe))
	}
	if strings.Count(s, "'")%2 == 1 {
		zap.L().Warn("query: unbalanced quotation marks", zap.String("question", text))
		return nil
	}

	type span struct {
		at   int
		text string
	}
	var spans []span
	for _, pair := range [][2]string{{"'", "'"}, {`"`, `"`}, {"«", "»"}} {
		open := strings.Index(s, pair[0])
		if open < 0 {
			continue
		}
		from := open + len(pair[0])
		end := strings.LastIndex(s[from:], pair[1])
		if end <= 0 {
			continue
		}
		spans = append(spans, span{at: open, text: s[from : from+end]})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].at < spans[j].at })

	var out []string
	for _, sp := range spans {
		inner := Normalize(strings.ReplaceAll(sp.text, string(apostrophe), "'"))
		if inner == "" {
			continue
		}
		out = append(out, `"`+inner+`"`)
	}
	return out
}

// excludedLabels are entity categories that make poor search keys.
var excludedLabels = map[string]bool{
	"CARDINAL": true,
	"DATE":     true,
	"ORDINAL":  true,
	"NORP":     true,
}

// NamedEntities returns the normalized entities of doc that are useful as
// search keys.
func NamedEntities(doc *nlp.Doc) []string {
	var out []string
	for _, ent := range doc.Entities {
		if excludedLabels[ent.Label] {
			continue
		}
		if s := Normalize(ent.Text); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const titlePunctuation = `.,!?;:()[]{}"'«»`

// openers are capitalized only because they start the question.
var openers = map[string]bool{
	"who": true, "what": true, "when": true, "where": true, "which": true,
	"why": true, "how": true, "whose": true, "whom": true,
	"is": true, "are": true, "was": true, "were": true, "do": true,
	"does": true, "did": true, "can": true, "in": true, "the": true,
	"name": true, "tell": true, "list": true,
}

// TitleSpans returns runs of consecutive capitalized words. The first word
// is skipped because sentence case capitalizes it, unless it opens a run of
// two or more capitalized words and is not a question word. Single-letter
// runs are dropped.
func TitleSpans(text string) []string {
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(titlePunctuation, r) {
			return -1
		}
		return r
	}, text)
	words := strings.Fields(stripped)
	if len(words) == 0 {
		return nil
	}

	start := 1
	if len(words) > 1 && capitalized(words[0]) && capitalized(words[1]) && !openers[strings.ToLower(words[0])] {
		start = 0
	}

	var out []string
	var run []string
	flush := func() {
		if len(run) == 0 {
			return
		}
		span := Normalize(strings.Join(run, " "))
		if len([]rune(span)) > 1 {
			out = append(out, span)
		}
		run = run[:0]
	}
	for _, w := range words[start:] {
		if capitalized(w) {
			run = append(run, w)
			continue
		}
		flush()
	}
	flush()
	return out
}

func capitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// phraseDeps are the dependency relations that attach a modifier to a noun.
var phraseDeps = map[string]bool{
	"compound": true,
	"nmod":     true,
	"nummod":   true,
	"amod":     true,
}

// vagueWords are dropped from noun phrases: "name", "how many", "how much".
var vagueWords = []string{"name", "many", "much"}

// NounPhrases returns, for every noun or proper noun, the noun joined with
// its modifiers in sentence order. A bare noun with no modifiers is kept
// only when it is title-cased.
func NounPhrases(doc *nlp.Doc) []string {
	var out []string
	for i, tok := range doc.Tokens {
		if tok.POS != "PROPN" && tok.POS != "NOUN" {
			continue
		}
		deps := dependents(doc, i)
		if len(deps) == 0 && !nlp.IsTitle(tok.Text) {
			continue
		}

		idx := append(deps, i)
		sort.Ints(idx)

		words := make([]string, 0, len(idx))
		for _, j := range idx {
			w := doc.Tokens[j].Text
			if containsAny(w, vagueWords) {
				continue
			}
			words = append(words, w)
		}
		if phrase := Normalize(strings.Join(words, " ")); phrase != "" {
			out = append(out, phrase)
		}
	}
	return out
}

// dependents collects the modifier subtree of token i into a fresh slice.
func dependents(doc *nlp.Doc, i int) []int {
	var acc []int
	seen := map[int]bool{i: true}
	var walk func(int)
	walk = func(head int) {
		for _, c := range doc.Children(head) {
			if seen[c] || !phraseDeps[doc.Tokens[c].Dep] {
				continue
			}
			seen[c] = true
			acc = append(acc, c)
			walk(c)
		}
	}
	walk(i)
	return acc
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// RemoveRepeating orders items by word count and drops every item that is
// a substring of a later one, which also removes exact duplicates.
//
//	["Hello", "Hello World", "Hello World"] -> ["Hello World"]
func RemoveRepeating(items []string) []string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.Count(sorted[i], " ") < strings.Count(sorted[j], " ")
	})

	var out []string
	for i, s := range sorted {
		covered := false
		for _, later := range sorted[i+1:] {
			if strings.Contains(later, s) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, s)
		}
	}
	return out
}
