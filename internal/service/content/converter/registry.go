package converter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chatwidget/internal/domain"
	"chatwidget/internal/domain/models"
	"chatwidget/internal/domain/services"
)

// ConverterRegistry manages content converters and routes content by type.
// Each content type variant has exactly one converter; registering again replaces it.
//
// Thread-safe for concurrent access.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[models.ContentType]services.ContentConverter
}

// NewConverterRegistry creates a registry with the html, markdown and text
// converters pre-registered.
func NewConverterRegistry(renderer services.MarkdownRenderer, sanitizer services.Sanitizer) *ConverterRegistry {
	registry := &ConverterRegistry{
		converters: make(map[models.ContentType]services.ContentConverter),
	}

	// Register standard converters
	registry.Register(NewHTMLConverter(sanitizer))
	registry.Register(NewMarkdownConverter(renderer, sanitizer))
	registry.Register(NewTextConverter(sanitizer))

	return registry
}

// Register adds a converter under its content type.
func (r *ConverterRegistry) Register(converter services.ContentConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.converters[converter.Type()] = converter
}

// GetConverter retrieves the converter for a content type.
// Returns nil if no converter is registered for this type.
func (r *ConverterRegistry) GetConverter(contentType models.ContentType) services.ContentConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.converters[contentType]
}

// Convert selects the converter for contentType and performs the conversion.
//
// Returns a NotFoundError if no converter is registered for the type.
func (r *ConverterRegistry) Convert(ctx context.Context, contentType models.ContentType, content string) (string, error) {
	converter := r.GetConverter(contentType)
	if converter == nil {
		return "", &domain.NotFoundError{Message: fmt.Sprintf("no converter for content type: %s", contentType)}
	}

	out, err := converter.Convert(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%s converter: %w", converter.Name(), err)
	}
	return out, nil
}

// SupportedTypes returns all registered content types, sorted.
func (r *ConverterRegistry) SupportedTypes() []models.ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.ContentType, 0, len(r.converters))
	for t := range r.converters {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
