package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyArticle = `<html><body>
<table class="infobox"><tbody>
<tr><th colspan="2">Leo Tolstoy</th></tr>
<tr><th>Born</th><td>9 September 1828
Yasnaya Polyana</td></tr>
<tr><th>Notable works</th><td>War and Peace</td></tr>
<tr><td>caption only</td></tr>
</tbody></table>
<div class="mw-parser-output">
<p>Count Lev Nikolayevich Tolstoy[1] was a Russian writer.</p>
<h2>Life[edit]</h2>
<p>Tolstoy was born at Yasnaya Polyana.[2]</p>
<p>Short</p>
<p>He married Sophia Behrs in 1862.</p>
<ul><li>War and Peace</li><li>Anna Karenina</li></ul>
<div class="note"><p>Nested paragraphs are not direct children.</p></div>
<h2>See also[edit]</h2>
<p>Russian literature is excluded.</p>
</div>
</body></html>`

func TestParseParagraphsLegacy(t *testing.T) {
	got, err := ParseParagraphs(legacyArticle)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Count Lev Nikolayevich Tolstoy was a Russian writer.",
		"Life\nTolstoy was born at Yasnaya Polyana.",
		"He married Sophia Behrs in 1862.",
		"War and PeaceAnna KareninaHe married Sophia Behrs in 1862.",
	}, got)
}

func TestParseParagraphsModernHeadings(t *testing.T) {
	html := `<div class="mw-parser-output">
<p>Python is a high-level programming language.</p>
<div class="mw-heading mw-heading2"><h2 id="History">History</h2><span class="mw-editsection">[edit]</span></div>
<p>Python was conceived in the late 1980s.</p>
<div class="mw-heading mw-heading3"><h3>Versions</h3></div>
<dl><dd>Python 3.0 was released in 2008.</dd></dl>
<div class="mw-heading mw-heading2"><h2>References</h2></div>
<p>Should not appear.</p>
</div>`
	got, err := ParseParagraphs(html)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Python is a high-level programming language.",
		"History\nPython was conceived in the late 1980s.",
		"Python 3.0 was released in 2008.Versions",
	}, got)
}

func TestParseParagraphsShortFirstBlockDropped(t *testing.T) {
	got, err := ParseParagraphs(`<div class="mw-parser-output"><p>Hi</p><p>The second paragraph.</p></div>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"The second paragraph."}, got)
}

func TestParseParagraphsNoBody(t *testing.T) {
	got, err := ParseParagraphs(`<html><body><p>outside the article</p></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseInfobox(t *testing.T) {
	got, err := ParseInfobox(legacyArticle)
	require.NoError(t, err)
	assert.Equal(t, " Born — 9 September 1828Yasnaya Polyana; \n Notable works — War and Peace; \n", got)

	none, err := ParseInfobox(`<div class="mw-parser-output"><p>No table here.</p></div>`)
	require.NoError(t, err)
	assert.Equal(t, "", none)
}

func TestParse(t *testing.T) {
	paras, box, err := Parse(legacyArticle)
	require.NoError(t, err)
	assert.Len(t, paras, 4)
	assert.Contains(t, box, "Notable works — War and Peace")
}

func TestStripReferences(t *testing.T) {
	assert.Equal(t, "History", StripReferences("History[edit]"))
	assert.Equal(t, "Python", StripReferences("Python[231]"))
	assert.Equal(t, "see [note a] here", StripReferences("see [note a] here"))
	assert.Equal(t, "ab", StripReferences("a[1][2]b"))
}
