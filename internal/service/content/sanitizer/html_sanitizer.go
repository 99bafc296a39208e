package sanitizer

import (
	"html"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedTags is the element allow-list applied to all chat content.
var AllowedTags = []string{
	"p", "br", "strong", "em", "u", "i", "b", "span", "div",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li",
	"a", "img",
	"blockquote", "code", "pre",
	"table", "thead", "tbody", "tr", "th", "td",
}

// AllowedGlobalAttrs are permitted on every allowed element.
// href and src are URL attributes and are only allowed on a and img.
var AllowedGlobalAttrs = []string{
	"title", "alt", "width", "height",
	"class", "id", "style",
	"target", "rel",
}

// AllowedURLSchemes restricts href/src values; relative URLs are also allowed.
var AllowedURLSchemes = []string{"http", "https", "mailto", "tel", "callto", "cid", "xmpp"}

// HTMLSanitizer removes dangerous HTML elements and attributes to prevent XSS attacks.
// script, object, embed, form, input and button are never in the allow-list, and
// inline event handlers (onerror, onload, onclick, ...) are not allowed attributes.
//
// Thread-safe for concurrent use.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
	// clean is the policy entry point, replaceable in tests
	clean  func(string) string
	logger *slog.Logger
}

// Option customizes the sanitizer policy at construction time
type Option func(*bluemonday.Policy)

// WithExtraElements extends the element allow-list
func WithExtraElements(tags ...string) Option {
	return func(p *bluemonday.Policy) {
		p.AllowElements(tags...)
	}
}

// WithExtraAttributes extends the global attribute allow-list
func WithExtraAttributes(attrs ...string) Option {
	return func(p *bluemonday.Policy) {
		p.AllowAttrs(attrs...).Globally()
	}
}

// NewHTMLSanitizer creates a sanitizer with the chat allow-list policy.
func NewHTMLSanitizer(logger *slog.Logger, opts ...Option) *HTMLSanitizer {
	policy := bluemonday.NewPolicy()

	policy.AllowElements(AllowedTags...)
	policy.AllowAttrs(AllowedGlobalAttrs...).Globally()
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowAttrs("src").OnElements("img")

	// URL attributes must parse and use a known scheme or be relative
	policy.RequireParseableURLs(true)
	policy.AllowRelativeURLs(true)
	policy.AllowURLSchemes(AllowedURLSchemes...)

	for _, opt := range opts {
		opt(policy)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HTMLSanitizer{
		policy: policy,
		clean:  policy.Sanitize,
		logger: logger,
	}
}

// Sanitize removes dangerous HTML while preserving safe content.
//
// Removes:
// - <script> tags and their content
// - Event handlers (onclick, onerror, etc.)
// - javascript: and other non allow-listed URLs
//
// If the policy fails the whole input is entity-escaped; raw input is never returned.
func (s *HTMLSanitizer) Sanitize(input string) (out string) {
	if input == "" {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("html sanitization failed, escaping input",
				"error", r,
				"input_length", len(input),
			)
			out = html.EscapeString(input)
		}
	}()

	return s.clean(input)
}

// IsSafeHTML reports whether sanitizing input leaves it unchanged.
func (s *HTMLSanitizer) IsSafeHTML(input string) bool {
	if input == "" {
		return true
	}
	return s.Sanitize(input) == input
}
