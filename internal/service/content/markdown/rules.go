// Package markdown converts a constrained markdown subset to HTML.
//
// The converter is an ordered list of text substitutions. Later rules operate
// on the output of earlier ones, so the order of DefaultRules is part of the
// contract:
//
//  1. headings (###, ##, #)
//  2. bold+italic, bold, italic
//  3. fenced code, then inline code
//  4. links
//  5. unordered and ordered list items
//  6. blockquotes
//  7. merging consecutive list items into one list
//  8. blank lines and single newlines to <br>
package markdown

import (
	"regexp"
	"strings"
)

// Rule is a single substitution step
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	// Replacement uses regexp.Expand syntax; ignored when Func is set
	Replacement string
	Func        func(match string) string
}

// Apply runs the rule over input
func (r Rule) Apply(input string) string {
	if r.Func != nil {
		return r.Pattern.ReplaceAllStringFunc(input, r.Func)
	}
	return r.Pattern.ReplaceAllString(input, r.Replacement)
}

var listBlock = regexp.MustCompile(`(?m)^<li>.*</li>(?:\n<li>.*</li>)*`)

// DefaultRules returns the substitution rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "h3", Pattern: regexp.MustCompile(`(?m)^### (.*)$`), Replacement: `<h3>${1}</h3>`},
		{Name: "h2", Pattern: regexp.MustCompile(`(?m)^## (.*)$`), Replacement: `<h2>${1}</h2>`},
		{Name: "h1", Pattern: regexp.MustCompile(`(?m)^# (.*)$`), Replacement: `<h1>${1}</h1>`},

		{Name: "bold_italic", Pattern: regexp.MustCompile(`\*\*\*(.+?)\*\*\*`), Replacement: `<strong><em>${1}</em></strong>`},
		{Name: "bold", Pattern: regexp.MustCompile(`\*\*(.+?)\*\*`), Replacement: `<strong>${1}</strong>`},
		// Opening * must touch a non-space so "* item" list markers survive
		{Name: "italic", Pattern: regexp.MustCompile(`\*([^\s*][^*\n]*?)\*`), Replacement: `<em>${1}</em>`},

		{Name: "fenced_code", Pattern: regexp.MustCompile("(?s)```(.*?)```"), Replacement: `<pre><code>${1}</code></pre>`},
		{Name: "inline_code", Pattern: regexp.MustCompile("`([^`\n]+)`"), Replacement: `<code>${1}</code>`},

		{Name: "link", Pattern: regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), Replacement: `<a href="${2}" target="_blank" rel="noopener noreferrer">${1}</a>`},

		{Name: "unordered_item", Pattern: regexp.MustCompile(`(?m)^\* (.*)$`), Replacement: `<li>${1}</li>`},
		{Name: "ordered_item", Pattern: regexp.MustCompile(`(?m)^\d+\. (.*)$`), Replacement: `<li>${1}</li>`},

		{Name: "blockquote", Pattern: regexp.MustCompile(`(?m)^> (.*)$`), Replacement: `<blockquote>${1}</blockquote>`},

		{Name: "list_wrap", Pattern: listBlock, Func: func(match string) string {
			return "<ul>" + strings.ReplaceAll(match, "\n", "") + "</ul>"
		}},

		{Name: "paragraph_break", Pattern: regexp.MustCompile(`\n\n`), Replacement: `<br><br>`},
		{Name: "line_break", Pattern: regexp.MustCompile(`\n`), Replacement: `<br>`},
	}
}

// detectionPatterns mirror the rule constructs without transforming anything
var detectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\*\*.*?\*\*`),    // bold
	regexp.MustCompile(`\*.*?\*`),        // italic
	regexp.MustCompile("`.*?`"),          // code
	regexp.MustCompile(`\[.*?\]\(.*?\)`), // links
	regexp.MustCompile(`(?m)^#{1,6}\s`),  // headings
	regexp.MustCompile(`(?m)^\* `),       // unordered list
	regexp.MustCompile(`(?m)^\d+\. `),    // ordered list
	regexp.MustCompile(`(?m)^> `),        // blockquote
}

// Converter is the rule-based markdown converter. It is stateless.
type Converter struct {
	rules []Rule
}

// NewConverter creates a converter with DefaultRules.
func NewConverter() *Converter {
	return &Converter{rules: DefaultRules()}
}

// ToHTML converts markdown to HTML. The output is not sanitized.
func (c *Converter) ToHTML(md string) string {
	if md == "" {
		return ""
	}

	out := strings.ReplaceAll(md, "\r\n", "\n")
	for _, rule := range c.rules {
		out = rule.Apply(out)
	}

	return strings.TrimSpace(out)
}

// HasMarkdown reports whether text contains any supported markdown construct.
func (c *Converter) HasMarkdown(text string) bool {
	return HasMarkdown(text)
}

// HasMarkdown reports whether text contains any supported markdown construct.
func HasMarkdown(text string) bool {
	for _, pattern := range detectionPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
