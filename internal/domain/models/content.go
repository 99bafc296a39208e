package models

import (
	"fmt"
	"strings"

	"chatwidget/internal/domain"
)

// ContentType identifies how raw content is normalized to HTML
type ContentType string

const (
	ContentTypeHTML     ContentType = "html"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// ContentTypes lists every supported variant in detection priority order.
var ContentTypes = []ContentType{ContentTypeHTML, ContentTypeMarkdown, ContentTypeText}

// ParseContentType converts a user-supplied name into a ContentType.
// Matching is case-insensitive; unknown names return a validation error.
func ParseContentType(name string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(name))) {
	case ContentTypeHTML:
		return ContentTypeHTML, nil
	case ContentTypeMarkdown:
		return ContentTypeMarkdown, nil
	case ContentTypeText:
		return ContentTypeText, nil
	}
	return "", &domain.ValidationError{
		Message: fmt.Sprintf("unknown content type %q (want html, markdown or text)", name),
	}
}

// String implements fmt.Stringer
func (t ContentType) String() string {
	return string(t)
}

// ProcessedContent is the normalized output of the content processor
type ProcessedContent struct {
	SanitizedContent string      `json:"content"`
	OriginalContent  string      `json:"originalContent"`
	DetectedType     ContentType `json:"type"`
	IsHTML           bool        `json:"isHtml"`
	// IsSafe is true iff sanitizing SanitizedContent again changes nothing
	IsSafe bool `json:"isSafe"`
}
