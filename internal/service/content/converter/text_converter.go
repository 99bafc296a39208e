package converter

import (
	"context"
	"html"
	"strings"

	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
)

// textConverter wraps plain text into paragraphs so it renders as block
// content like the other types.
type textConverter struct {
	sanitizer services.Sanitizer
}

// NewTextConverter creates a new text converter.
func NewTextConverter(sanitizer services.Sanitizer) services.ContentConverter {
	return &textConverter{sanitizer: sanitizer}
}

// Convert escapes each non-blank line, wraps it in <p> and sanitizes the result.
// Blank lines are dropped.
func (c *textConverter) Convert(ctx context.Context, input string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")

	var b strings.Builder
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}

	return c.sanitizer.Sanitize(b.String()), nil
}

// Type returns the plain text content type.
func (c *textConverter) Type() models.ContentType {
	return models.ContentTypeText
}

// Name returns the converter name for logging.
func (c *textConverter) Name() string {
	return "plaintext"
}
