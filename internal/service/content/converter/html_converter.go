package converter

import (
	"context"

	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
)

// htmlConverter sanitizes HTML content directly.
type htmlConverter struct {
	sanitizer services.Sanitizer
}

// NewHTMLConverter creates a converter for content that is already HTML.
func NewHTMLConverter(sanitizer services.Sanitizer) services.ContentConverter {
	return &htmlConverter{sanitizer: sanitizer}
}

// Convert removes <script>, event handlers, javascript: URLs, etc.
func (c *htmlConverter) Convert(ctx context.Context, input string) (string, error) {
	return c.sanitizer.Sanitize(input), nil
}

// Type returns the HTML content type.
func (c *htmlConverter) Type() models.ContentType {
	return models.ContentTypeHTML
}

// Name returns the converter name for logging.
func (c *htmlConverter) Name() string {
	return "html"
}
