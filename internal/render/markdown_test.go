package render_test

import (
	"strings"
	"testing"

	"github.com/MegaGrindStone/meet-assistant/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRender(t *testing.T) {
	md := render.NewMarkdown("")

	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{
			name:     "emphasis",
			in:       "**bold** and *italic*",
			contains: []string{"<strong>bold</strong>", "<em>italic</em>"},
		},
		{
			name:     "inline math keeps underscores",
			in:       "the value $x_1 + y_1$ here",
			contains: []string{`<span class="math inline">\(x_1 + y_1\)</span>`},
			excludes: []string{"<em>"},
		},
		{
			name:     "display math",
			in:       "$$\\frac{a}{b}$$",
			contains: []string{`<span class="math display">\[\frac{a}{b}\]</span>`},
		},
		{
			name:     "math is escaped",
			in:       "$a<b$",
			contains: []string{`\(a&lt;b\)`},
		},
		{
			name:     "code block untouched",
			in:       "```sh\necho $HOME $PATH\n```",
			contains: []string{"HOME"},
			excludes: []string{"math inline"},
		},
		{
			name:     "raw html dropped",
			in:       "<script>alert(1)</script>",
			excludes: []string{"<script>"},
		},
		{
			name:     "table",
			in:       "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := md.Render(tt.in)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, string(out), want)
			}
			for _, unwanted := range tt.excludes {
				assert.False(t, strings.Contains(string(out), unwanted), "output %q contains %q", out, unwanted)
			}
		})
	}
}
