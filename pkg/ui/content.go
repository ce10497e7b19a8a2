package ui

import (
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/metrics"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// contentRenderer turns the active tab into viewport text. The glamour
// renderer is rebuilt only when the wrap width changes.
type contentRenderer struct {
	theme          Theme
	markdown       bool
	markdownStyle  string
	highlightStyle string

	mdWidth int
	md      *glamour.TermRenderer
}

func newContentRenderer(theme Theme, markdown bool, markdownStyle, highlightStyle string) *contentRenderer {
	if markdownStyle == "" {
		markdownStyle = "dark"
	}
	if highlightStyle == "" {
		highlightStyle = "monokai"
	}
	return &contentRenderer{
		theme:          theme,
		markdown:       markdown,
		markdownStyle:  markdownStyle,
		highlightStyle: highlightStyle,
	}
}

// Render returns the text shown for tab at the given width.
func (r *contentRenderer) Render(tab model.Tab, width int) string {
	defer metrics.Timer(metrics.Render)()

	switch {
	case tab.Loading:
		return r.theme.Muted.Render("Loading…")
	case tab.Binary:
		return r.renderBinary(tab)
	case r.markdown && isMarkdown(tab):
		out, err := r.renderMarkdown(tab.Plain, width)
		if err == nil {
			return out
		}
		debug.Log("content: markdown render of %s failed: %v", tab.URL, err)
	}
	return r.highlight(tab)
}

func (r *contentRenderer) renderBinary(tab model.Tab) string {
	var b strings.Builder
	b.WriteString(r.theme.BinaryLabel.Render("Binary file"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s  %s\n", r.theme.Muted.Render("name:"), tab.Name)
	mime := tab.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	fmt.Fprintf(&b, "%s  %s\n", r.theme.Muted.Render("type:"), mime)
	if tab.Base64 != "" {
		size := int64(base64.StdEncoding.DecodedLen(len(tab.Base64)))
		if raw, err := base64.StdEncoding.DecodeString(tab.Base64); err == nil {
			size = int64(len(raw))
		}
		fmt.Fprintf(&b, "%s  %s\n", r.theme.Muted.Render("size:"), formatBytes(size))
	}
	b.WriteString("\n")
	b.WriteString(r.theme.Muted.Render("Press y to copy the URL and open it elsewhere."))
	return b.String()
}

func (r *contentRenderer) renderMarkdown(text string, width int) (string, error) {
	if width < 20 {
		width = 20
	}
	if r.md == nil || r.mdWidth != width {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.markdownStyle),
			glamour.WithWordWrap(width-2),
		)
		if err != nil {
			return "", err
		}
		r.md, r.mdWidth = md, width
	}
	out, err := r.md.Render(text)
	if err != nil {
		return "", err
	}
	// Strip trailing whitespace/newlines that glamour adds
	return strings.TrimRight(out, " \n"), nil
}

// highlight colours tab with chroma, falling back to the plain text when no
// lexer matches.
func (r *contentRenderer) highlight(tab model.Tab) string {
	text := tab.Plain
	if text == "" {
		return r.theme.Muted.Render("(empty file)")
	}

	lexer := lexers.Match(path.Base(tab.Name))
	if lexer == nil {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		return text
	}

	var b strings.Builder
	if err := quick.Highlight(&b, text, lexer.Config().Name, "terminal256", r.highlightStyle); err != nil {
		debug.Log("content: highlight of %s failed: %v", tab.URL, err)
		return text
	}
	return b.String()
}

func isMarkdown(tab model.Tab) bool {
	if tab.MimeType == "text/markdown" || tab.MimeType == "text/x-markdown" {
		return true
	}
	switch strings.ToLower(path.Ext(tab.Name)) {
	case ".md", ".markdown", ".mdown":
		return true
	}
	return false
}
