// Package render draws streams on a terminal.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/charmbracelet/lipgloss"

	"chatwidget/internal/domain/models"
)

var (
	footerStyle = lipgloss.NewStyle().Faint(true)
	unsafeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Terminal prints streamed content as it is revealed.
//
// In raw mode every revealed byte of HTML is printed as is. Otherwise tags are
// dropped, block boundaries become newlines and character references are decoded,
// so the live output reads like text. Not safe for concurrent use.
type Terminal struct {
	out       io.Writer
	raw       bool
	showFinal bool
	converter *md.Converter

	printed int
	broken  bool
	pending strings.Builder
}

// NewTerminal creates a renderer writing to out.
// showFinal prints the completed message again as markdown.
func NewTerminal(out io.Writer, raw, showFinal bool) *Terminal {
	return &Terminal{
		out:       out,
		raw:       raw,
		showFinal: showFinal,
		converter: md.NewConverter("", true, nil),
	}
}

// Update prints the part of the content not printed yet.
func (t *Terminal) Update(u models.StreamUpdate) {
	if len(u.Content) <= t.printed {
		return
	}
	delta := u.Content[t.printed:]
	t.printed = len(u.Content)

	if t.raw {
		fmt.Fprint(t.out, delta)
		return
	}
	fmt.Fprint(t.out, t.textOf(delta))
}

// Complete finishes the live output and prints a summary footer built from
// the result and its history entry.
func (t *Terminal) Complete(r models.StreamResult, entry models.HistoryEntry) error {
	t.Break()

	if t.showFinal {
		text, err := t.Markdown(r.SanitizedContent)
		if err != nil {
			return err
		}
		fmt.Fprintln(t.out)
		fmt.Fprintln(t.out, titleStyle.Render("Final message"))
		fmt.Fprintln(t.out, text)
	}

	safety := "safe"
	if !r.IsSafe {
		safety = unsafeStyle.Render("sanitized")
	}
	footer := fmt.Sprintf("[%s · %s · %s · %d words · %s]",
		r.ID, r.DetectedType, safety, entry.WordCount, entry.ProcessingTime.Round(time.Millisecond))
	fmt.Fprintln(t.out, footerStyle.Render(footer))
	return nil
}

// Break ends the live output line, if anything was printed.
func (t *Terminal) Break() {
	if t.printed > 0 && !t.broken {
		fmt.Fprintln(t.out)
		t.broken = true
	}
}

// Error prints err to w in the error style
func Error(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("error:"), err.Error())
}

// Markdown converts sanitized HTML to markdown for terminal display
func (t *Terminal) Markdown(htmlContent string) (string, error) {
	text, err := t.converter.ConvertString(htmlContent)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return text, nil
}

// textOf strips markup from delta. A tag or character reference split across
// updates is held in pending until it closes.
func (t *Terminal) textOf(delta string) string {
	var b strings.Builder
	for _, r := range delta {
		if t.pending.Len() > 0 {
			t.pending.WriteRune(r)
			s := t.pending.String()
			switch {
			case s[0] == '<' && r == '>':
				b.WriteString(tagText(s))
				t.pending.Reset()
			case s[0] == '&' && r == ';':
				b.WriteString(html.UnescapeString(s))
				t.pending.Reset()
			case s[0] == '&' && (r == ' ' || len(s) > 12):
				b.WriteString(s)
				t.pending.Reset()
			}
			continue
		}
		if r == '<' || r == '&' {
			t.pending.WriteRune(r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tagText maps a complete tag to the text it stands for on a terminal
func tagText(tag string) string {
	name := strings.ToLower(strings.Trim(tag, "</>"))
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	closing := strings.HasPrefix(tag, "</")

	switch name {
	case "br":
		return "\n"
	case "li":
		if !closing {
			return "  • "
		}
		return "\n"
	case "p", "div", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "pre":
		if closing {
			return "\n"
		}
	}
	return ""
}
