package converter

import (
	"context"

	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
)

// markdownConverter converts markdown to HTML in two stages:
// 1. Render markdown constructs to HTML
// 2. Sanitize the rendered HTML (links and raw HTML come from untrusted text)
type markdownConverter struct {
	renderer  services.MarkdownRenderer
	sanitizer services.Sanitizer
}

// NewMarkdownConverter creates a new markdown to HTML converter.
func NewMarkdownConverter(renderer services.MarkdownRenderer, sanitizer services.Sanitizer) services.ContentConverter {
	return &markdownConverter{
		renderer:  renderer,
		sanitizer: sanitizer,
	}
}

// Convert renders then sanitizes.
func (c *markdownConverter) Convert(ctx context.Context, input string) (string, error) {
	return c.sanitizer.Sanitize(c.renderer.ToHTML(input)), nil
}

// Type returns the markdown content type.
func (c *markdownConverter) Type() models.ContentType {
	return models.ContentTypeMarkdown
}

// Name returns the converter name for logging.
func (c *markdownConverter) Name() string {
	return "markdown"
}
