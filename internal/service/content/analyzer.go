package content

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextStats summarizes the readable text of processed content
type TextStats struct {
	Words      int `json:"words"`
	Characters int `json:"characters"`
}

// Analyzer measures the visible text of sanitized HTML.
//
// Thread-safe for concurrent use.
type Analyzer struct {
	strip *bluemonday.Policy
}

// NewAnalyzer creates an analyzer that strips all markup before counting.
func NewAnalyzer() *Analyzer {
	return &Analyzer{strip: bluemonday.StrictPolicy()}
}

// PlainText returns the visible text of HTML with entities decoded.
// Block boundaries (<br>, </p>, </li>, ...) become spaces so words do not fuse.
func (a *Analyzer) PlainText(htmlContent string) string {
	spaced := blockBoundary.Replace(htmlContent)
	text := html.UnescapeString(a.strip.Sanitize(spaced))
	return strings.Join(strings.Fields(text), " ")
}

// CountWords counts whitespace-separated words in the visible text of HTML
func (a *Analyzer) CountWords(htmlContent string) int {
	return len(strings.FieldsFunc(a.PlainText(htmlContent), unicode.IsSpace))
}

// Analyze returns word and character counts for HTML
func (a *Analyzer) Analyze(htmlContent string) TextStats {
	text := a.PlainText(htmlContent)
	return TextStats{
		Words:      len(strings.FieldsFunc(text, unicode.IsSpace)),
		Characters: utf8.RuneCountInString(text),
	}
}

var blockBoundary = strings.NewReplacer(
	"<br>", " <br>",
	"</p>", "</p> ",
	"</li>", "</li> ",
	"</div>", "</div> ",
	"</blockquote>", "</blockquote> ",
	"</h1>", "</h1> ", "</h2>", "</h2> ", "</h3>", "</h3> ",
	"</h4>", "</h4> ", "</h5>", "</h5> ", "</h6>", "</h6> ",
	"</td>", "</td> ", "</th>", "</th> ",
)
