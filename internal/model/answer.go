package model

import "strings"

// NoAnswer is returned to callers when no query candidate produced an
// answer that survives the quality gate.
const NoAnswer = "Can't find answer :("

// NothingFoundText is the text of the sentinel answer emitted when a search
// returns no pages.
const NothingFoundText = "wiki finds nothing :("

// Source records which extraction path produced an answer.
type Source string

const (
	SourceFast Source = "fast"
	SourceSlow Source = "slow"
	SourceNone Source = "none"
)

// AnswerCandidate is an extracted span and its confidence. Score is the mean
// of the maximum start and end logits; only relative order is meaningful.
type AnswerCandidate struct {
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Query     string  `json:"query,omitempty"`
	PageTitle string  `json:"page_title,omitempty"`
	PageURL   string  `json:"page_url,omitempty"`
	Source    Source  `json:"source,omitempty"`
}

// NothingFound builds the sentinel candidate for a query that matched no pages.
func NothingFound(query string) AnswerCandidate {
	return AnswerCandidate{
		Text:   NothingFoundText,
		Score:  0,
		Query:  query,
		Source: SourceNone,
	}
}

// IsSentinel reports whether the candidate is a placeholder rather than an
// extracted span.
func (a AnswerCandidate) IsSentinel() bool {
	return a.Source == SourceNone
}

// artifactTokens are reserved model tokens that must never reach the caller.
var artifactTokens = []string{"[CLS]", "[SEP]", "<pad>", "<unk>"}

// ContainsArtifact reports whether text contains a reserved model token.
func ContainsArtifact(text string) bool {
	for _, tok := range artifactTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
