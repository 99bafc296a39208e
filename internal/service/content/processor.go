// Package content classifies raw chat content and normalizes it to sanitized HTML.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"chatwidget/internal/domain"
	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
	"chatwidget/internal/service/content/converter"
)

// tagPattern matches any tag-like substring
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// HasTags reports whether content contains tag-like syntax
func HasTags(content string) bool {
	return tagPattern.MatchString(content)
}

var _ services.ContentProcessor = (*Processor)(nil)

// Processor implements services.ContentProcessor
type Processor struct {
	sanitizer services.Sanitizer
	renderer  services.MarkdownRenderer
	registry  *converter.ConverterRegistry
	logger    *slog.Logger
}

// NewProcessor creates a content processor using the standard converters
func NewProcessor(sanitizer services.Sanitizer, renderer services.MarkdownRenderer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		sanitizer: sanitizer,
		renderer:  renderer,
		registry:  converter.NewConverterRegistry(renderer, sanitizer),
		logger:    logger,
	}
}

// Registry exposes the converter registry so callers can register extra converters
func (p *Processor) Registry() *converter.ConverterRegistry {
	return p.registry
}

// DetectContentType returns html if any tag is present, else markdown if any
// markdown construct is present, else text.
func (p *Processor) DetectContentType(content string) models.ContentType {
	if content == "" {
		return models.ContentTypeText
	}
	if HasTags(content) {
		return models.ContentTypeHTML
	}
	if p.renderer.HasMarkdown(content) {
		return models.ContentTypeMarkdown
	}
	return models.ContentTypeText
}

// ProcessContent normalizes content to sanitized HTML.
// A non-nil override skips detection; an override with no registered
// converter is a validation error.
func (p *Processor) ProcessContent(ctx context.Context, content string, override *models.ContentType) (models.ProcessedContent, error) {
	var detected models.ContentType
	if override != nil {
		if p.registry.GetConverter(*override) == nil {
			return models.ProcessedContent{}, &domain.ValidationError{
				Message: fmt.Sprintf("unsupported content type override %q", *override),
			}
		}
		detected = *override
	} else {
		detected = p.DetectContentType(content)
	}

	sanitized, err := p.registry.Convert(ctx, detected, content)
	if err != nil {
		return models.ProcessedContent{}, fmt.Errorf("process %s content: %w", detected, err)
	}

	result := models.ProcessedContent{
		SanitizedContent: sanitized,
		OriginalContent:  content,
		DetectedType:     detected,
		IsHTML:           true,
		IsSafe:           p.sanitizer.IsSafeHTML(sanitized),
	}

	p.logger.Debug("content processed",
		"type", detected,
		"input_length", len(content),
		"output_length", len(sanitized),
		"is_safe", result.IsSafe,
	)

	return result, nil
}
