package services

import (
	"context"

	"chatwidget/internal/domain/models"
)

// Sanitizer cleans HTML against an allow-list policy.
// Implementations must be safe for concurrent use and never panic.
type Sanitizer interface {
	Sanitize(html string) string
	IsSafeHTML(html string) bool
}

// MarkdownRenderer converts markdown to HTML and detects markdown syntax
type MarkdownRenderer interface {
	ToHTML(markdown string) string
	HasMarkdown(text string) bool
}

// ContentConverter normalizes one content type variant to sanitized HTML.
//
// Implementations should be stateless and thread-safe.
type ContentConverter interface {
	// Convert transforms raw input into sanitized HTML.
	Convert(ctx context.Context, input string) (string, error)

	// Type returns the content type this converter handles.
	Type() models.ContentType

	// Name returns a human-readable converter name for logging/debugging.
	Name() string
}

// ContentProcessor classifies raw content and normalizes it
type ContentProcessor interface {
	DetectContentType(content string) models.ContentType
	// ProcessContent normalizes content. A nil override means detect.
	ProcessContent(ctx context.Context, content string, override *models.ContentType) (models.ProcessedContent, error)
}

// ChunkSource supplies the chunks of one message, e.g. a canned reply catalogue
type ChunkSource interface {
	Chunks(ctx context.Context) ([]string, error)
}
