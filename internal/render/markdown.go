// Package render turns assistant replies into the HTML shown in the panel.
package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown renders GitHub flavored markdown with highlighted code blocks. LaTeX math spans are kept out
// of the markdown pass and emitted as elements the page typesets.
type Markdown struct {
	md goldmark.Markdown
}

var (
	fenceRe       = regexp.MustCompile("(?s)```.*?(?:```|$)")
	displayMathRe = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	inlineMathRe  = regexp.MustCompile(`\$([^$\n]+?)\$`)
)

const mathToken = "MEETASSISTANTMATH"

// NewMarkdown creates a renderer highlighting code with the named chroma style, "monokai" when empty.
func NewMarkdown(style string) Markdown {
	if style == "" {
		style = "monokai"
	}
	return Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle(style)),
			),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Render converts src to HTML. Raw HTML in src is not passed through.
func (m Markdown) Render(src string) (template.HTML, error) {
	protected, spans := extractMath(src)

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(protected), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}

	out := buf.String()
	for i, span := range spans {
		out = strings.Replace(out, placeholder(i), span, 1)
	}
	return template.HTML(out), nil
}

// extractMath swaps math spans outside fenced code for placeholders and returns their HTML.
func extractMath(src string) (string, []string) {
	var spans []string
	var sb strings.Builder

	replace := func(text string) string {
		text = displayMathRe.ReplaceAllStringFunc(text, func(m string) string {
			inner := displayMathRe.FindStringSubmatch(m)[1]
			spans = append(spans, `<span class="math display">\[`+html.EscapeString(inner)+`\]</span>`)
			return placeholder(len(spans) - 1)
		})
		return inlineMathRe.ReplaceAllStringFunc(text, func(m string) string {
			inner := inlineMathRe.FindStringSubmatch(m)[1]
			spans = append(spans, `<span class="math inline">\(`+html.EscapeString(inner)+`\)</span>`)
			return placeholder(len(spans) - 1)
		})
	}

	last := 0
	for _, loc := range fenceRe.FindAllStringIndex(src, -1) {
		sb.WriteString(replace(src[last:loc[0]]))
		sb.WriteString(src[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(replace(src[last:]))

	return sb.String(), spans
}

func placeholder(i int) string {
	return fmt.Sprintf("%s%dX", mathToken, i)
}
