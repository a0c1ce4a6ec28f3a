// Package preview renders summary markdown to HTML for the preview pane and
// for the HTML part of shared emails.
package preview

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Placeholder is shown while there is nothing to preview.
const Placeholder = "Preview will appear here..."

// goldmark drops raw HTML unless WithUnsafe is set, so output is safe to embed.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Render converts markdown to HTML.
func Render(src string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		src = Placeholder
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
