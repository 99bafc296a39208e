package streaming

import (
	"fmt"
	"strings"
	"unicode"

	"chatwidget/internal/domain"
)

// revealStep is one atomic append to the accumulated content
type revealStep struct {
	text string
	// end is the rune offset within the chunk just after this step
	end int
}

// maxEntityLength bounds the search for the ';' closing a character reference
const maxEntityLength = 12

// revealSteps splits a chunk into the appends the reveal loop performs.
//
// Without tag awareness every rune is its own step. With it, a tag from '<'
// to its closing '>' (quotes respected) is a single step, and so is a
// character reference such as "&amp;". A '<' that does not open a tag, or a
// tag that never closes, is revealed rune by rune.
func revealSteps(chunk string, tagAware bool) []revealStep {
	runes := []rune(chunk)
	steps := make([]revealStep, 0, len(runes))

	for i := 0; i < len(runes); {
		if tagAware {
			if end := tagEnd(runes, i); end > 0 {
				steps = append(steps, revealStep{text: string(runes[i:end]), end: end})
				i = end
				continue
			}
			if end := entityEnd(runes, i); end > 0 {
				steps = append(steps, revealStep{text: string(runes[i:end]), end: end})
				i = end
				continue
			}
		}
		steps = append(steps, revealStep{text: string(runes[i]), end: i + 1})
		i++
	}

	return steps
}

// tagEnd returns the offset just past the '>' closing a tag opened at i, or 0.
func tagEnd(runes []rune, i int) int {
	if runes[i] != '<' || i+1 >= len(runes) {
		return 0
	}
	next := runes[i+1]
	if !unicode.IsLetter(next) && next != '/' && next != '!' && next != '?' {
		return 0
	}

	var quote rune
	for j := i + 1; j < len(runes); j++ {
		r := runes[j]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '>':
			return j + 1
		}
	}
	return 0
}

// entityEnd returns the offset just past the ';' of a character reference at i, or 0.
func entityEnd(runes []rune, i int) int {
	if runes[i] != '&' || i+1 >= len(runes) {
		return 0
	}
	if next := runes[i+1]; !unicode.IsLetter(next) && next != '#' {
		return 0
	}
	for j := i + 2; j < len(runes) && j-i <= maxEntityLength; j++ {
		r := runes[j]
		if r == ';' {
			return j + 1
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return 0
		}
	}
	return 0
}

// NormalizeChunks turns a bare string or a list into an ordered chunk slice.
// It accepts string, []string and []any of strings (as decoded from YAML or JSON).
func NormalizeChunks(v any) ([]string, error) {
	switch c := v.(type) {
	case string:
		return []string{c}, nil
	case []string:
		return c, nil
	case []any:
		chunks := make([]string, 0, len(c))
		for i, item := range c {
			s, ok := item.(string)
			if !ok {
				return nil, &domain.ValidationError{Message: fmt.Sprintf("chunk %d is %T, want string", i, item)}
			}
			chunks = append(chunks, s)
		}
		return chunks, nil
	case nil:
		return nil, &domain.ValidationError{Message: "no content to stream"}
	default:
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unsupported chunk container %T", v)}
	}
}

// JoinChunks assembles chunks exactly as a completed stream accumulates them.
func JoinChunks(chunks []string, separator string) string {
	return strings.Join(chunks, separator)
}
