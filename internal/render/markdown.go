package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// MarkdownRenderer converts the HTML body of a document to GitHub-flavored
// Markdown. It is safe for concurrent use.
type MarkdownRenderer struct {
	converter *md.Converter
}

// NewMarkdownRenderer creates a renderer with the GFM table plugin enabled.
func NewMarkdownRenderer() *MarkdownRenderer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &MarkdownRenderer{converter: converter}
}

// Render returns the Markdown rendition of doc.
func (m *MarkdownRenderer) Render(doc *Document) (string, error) {
	var buf bytes.Buffer
	if err := RenderHTMLFragment(&buf, doc); err != nil {
		return "", err
	}
	out, err := m.converter.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	out = excessiveLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out) + "\n", nil
}

var defaultMarkdown = NewMarkdownRenderer()

// RenderMarkdown renders doc with the shared default renderer.
func RenderMarkdown(doc *Document) (string, error) {
	return defaultMarkdown.Render(doc)
}
