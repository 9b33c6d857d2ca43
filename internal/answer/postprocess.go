// Package answer normalizes decoded model spans and selects the final answer.
package answer

import (
	"regexp"
	"strings"
)

// wordMarker starts a new word in sentencepiece-style vocabularies.
const wordMarker = "▁"

var spacedNumber = regexp.MustCompile(`\d,\s\d|\d\.\s\d`)

// Postprocess turns a space-joined token sequence into readable text.
//
//	"▁wo rd ▁here" -> "word here"
//	"wo ##rd"      -> "word"
//	"word . Word"  -> "word. Word"
//	"2. 3 million" -> "2.3 million"
func Postprocess(s string) string {
	if strings.Contains(s, wordMarker) {
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, wordMarker, " ")
	}
	s = strings.ReplaceAll(s, " ##", "")

	s = strings.ReplaceAll(s, " .", ".")
	s = strings.ReplaceAll(s, " ,", ",")
	s = strings.ReplaceAll(s, " ' ", "'")

	s = spacedNumber.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Join(strings.Fields(m), "")
	})

	return CollapseSpaces(s)
}

// CollapseSpaces replaces whitespace runs with one space and trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
