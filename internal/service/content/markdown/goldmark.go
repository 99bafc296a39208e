package markdown

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Engine names accepted by NewRenderer
const (
	EngineRules    = "rules"
	EngineGoldmark = "goldmark"
)

// GoldmarkConverter renders full CommonMark (plus GFM tables and strikethrough)
// with goldmark. Detection still uses the rule patterns so content type
// classification does not depend on the engine.
type GoldmarkConverter struct {
	md     goldmark.Markdown
	logger *slog.Logger
}

// NewGoldmarkConverter creates a goldmark-backed converter.
// Raw HTML in the source is passed through; the content processor sanitizes it afterwards.
func NewGoldmarkConverter(logger *slog.Logger) *GoldmarkConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoldmarkConverter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		logger: logger,
	}
}

// ToHTML converts markdown to HTML. On render failure the input is returned
// unchanged and left for the sanitizer to clean.
func (c *GoldmarkConverter) ToHTML(md string) string {
	if md == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(md), &buf); err != nil {
		c.logger.Warn("goldmark render failed", "error", err)
		return md
	}
	return strings.TrimSpace(buf.String())
}

// HasMarkdown reports whether text contains any supported markdown construct.
func (c *GoldmarkConverter) HasMarkdown(text string) bool {
	return HasMarkdown(text)
}
