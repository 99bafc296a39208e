package markdown

import (
	"fmt"
	"log/slog"
	"strings"

	"chatwidget/internal/domain"
	"chatwidget/internal/domain/services"
)

// NewRenderer returns the markdown renderer for the configured engine name.
// An empty name selects the rule-based converter.
func NewRenderer(engine string, logger *slog.Logger) (services.MarkdownRenderer, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineRules:
		return NewConverter(), nil
	case EngineGoldmark:
		return NewGoldmarkConverter(logger), nil
	default:
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("unknown markdown engine %q", engine),
		}
	}
}
