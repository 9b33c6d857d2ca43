package wiki

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// minBlockLen is the length a paragraph must exceed to be kept.
const minBlockLen = 5

var referenceRe = regexp.MustCompile(`\[[^ ]*\]`)

// stopHeadings end the article body; what follows is navigation.
var stopHeadings = []string{"See also", "References"}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockList
)

type block struct {
	kind blockKind
	text string
}

// StripReferences removes bracketed footnote markers such as "[12]" or
// "[edit]". Brackets containing spaces are left alone.
func StripReferences(s string) string {
	return referenceRe.ReplaceAllString(s, "")
}

// ParseParagraphs splits an article into paragraphs:
//   - the first block as is
//   - a heading followed by a paragraph becomes "heading\nparagraph"
//   - a list after a paragraph or heading becomes list text + previous text
//   - any other paragraph stands alone
//
// Parsing stops at a "See also" or "References" heading. Blocks of five
// characters or fewer are dropped.
func ParseParagraphs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "wiki: parse html")
	}
	return paragraphs(doc), nil
}

func paragraphs(doc *goquery.Document) []string {
	blocks := contentBlocks(doc)
	if len(blocks) == 0 {
		return nil
	}

	raw := []string{blocks[0].text}
	for i := 1; i < len(blocks); i++ {
		now, prev := blocks[i], blocks[i-1]
		switch {
		case now.kind == blockParagraph && prev.kind == blockHeading:
			raw = append(raw, prev.text+"\n"+now.text)
			continue
		case now.kind == blockList && prev.kind != blockList:
			raw = append(raw, now.text+prev.text)
			continue
		case now.kind == blockParagraph:
			raw = append(raw, now.text)
		}
		if now.kind == blockHeading && isStopHeading(now.text) {
			break
		}
	}

	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if utf8.RuneCountInString(p) > minBlockLen {
			out = append(out, StripReferences(p))
		}
	}
	return out
}

// contentBlocks returns the direct p/h2/h3/ul/dl children of the article
// body. Newer skins wrap headings in div.mw-heading.
func contentBlocks(doc *goquery.Document) []block {
	var blocks []block
	doc.Find("div.mw-parser-output").First().Children().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "p":
			blocks = append(blocks, block{kind: blockParagraph, text: s.Text()})
		case "h2", "h3":
			blocks = append(blocks, block{kind: blockHeading, text: s.Text()})
		case "ul", "dl":
			blocks = append(blocks, block{kind: blockList, text: s.Text()})
		case "div":
			if !s.HasClass("mw-heading") {
				return
			}
			h := s.ChildrenFiltered("h2, h3").First()
			if h.Length() == 0 {
				return
			}
			blocks = append(blocks, block{kind: blockHeading, text: h.Text()})
		}
	})
	return blocks
}

func isStopHeading(text string) bool {
	for _, h := range stopHeadings {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}

// ParseInfobox renders the rows of the first table body that have both a
// header and a data cell as " header — value; \n". A page without a table
// body yields "".
func ParseInfobox(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "wiki: parse html")
	}
	return infobox(doc), nil
}

func infobox(doc *goquery.Document) string {
	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return ""
	}

	var sb strings.Builder
	tbody.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		th := tr.Find("th").First()
		td := tr.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(th.Text(), "\n", ""))
		sb.WriteString(" — ")
		sb.WriteString(strings.ReplaceAll(td.Text(), "\n", ""))
		sb.WriteString("; \n")
	})
	return sb.String()
}

// Parse extracts paragraphs and infobox from one rendered article.
func Parse(html string) ([]string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", eris.Wrap(err, "wiki: parse html")
	}
	return paragraphs(doc), infobox(doc), nil
}
