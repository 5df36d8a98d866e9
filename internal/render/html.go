package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var proposalTemplate = template.Must(
	template.New("proposal.gohtml").
		Funcs(template.FuncMap{
			"cssColor":       cssColor,
			"containerStyle": containerStyle,
		}).
		ParseFS(templateFS, "templates/proposal.gohtml"),
)

// RenderHTML writes the document as a standalone HTML page.
func RenderHTML(w io.Writer, doc *Document) error {
	if err := proposalTemplate.ExecuteTemplate(w, "document", doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// RenderHTMLFragment writes only the document body, for embedding.
func RenderHTMLFragment(w io.Writer, doc *Document) error {
	if err := proposalTemplate.ExecuteTemplate(w, "body", doc); err != nil {
		return fmt.Errorf("render html fragment: %w", err)
	}
	return nil
}

// HTML is RenderHTML into a byte slice.
func HTML(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cssColor normalizes any stored color to #rrggbb. The template CSS filter
// rejects the parentheses of rgb(...).
func cssColor(v string) template.CSS {
	r, g, b := domain.ColorChannels(v)
	return template.CSS(fmt.Sprintf("#%02x%02x%02x", r, g, b))
}

func containerStyle(c Container, font string) template.CSS {
	parts := []string{
		"font-family:" + cssFontFamily(font),
		"background:#ffffff",
		"overflow:hidden",
		"margin:0 auto",
	}
	if c.WidthPx > 0 {
		parts = append(parts, "width:"+strconv.Itoa(c.WidthPx)+"px")
	}
	if c.MinHeightPx > 0 {
		parts = append(parts, "min-height:"+strconv.Itoa(c.MinHeightPx)+"px")
	}
	if c.Scale > 0 && c.Scale != 1 {
		parts = append(parts,
			"transform:scale("+strconv.FormatFloat(c.Scale, 'f', -1, 64)+")",
			"transform-origin:top center")
	}
	if c.Rounded {
		parts = append(parts, "border-radius:24px")
	}
	if c.Bordered {
		parts = append(parts, "border:1px solid #e2e8f0", "box-shadow:0 25px 50px -12px rgba(0,0,0,0.25)")
	}
	if c.BaseFontPx > 0 {
		parts = append(parts, "font-size:"+strconv.Itoa(c.BaseFontPx)+"px")
	}
	return template.CSS(strings.Join(parts, ";"))
}

// cssFontFamily keeps only characters that are safe inside a style attribute.
func cssFontFamily(font string) string {
	var b strings.Builder
	for _, r := range font {
		switch {
		case r == '"' || r == '\'':
			b.WriteByte('\'')
		case r == ',' || r == ' ' || r == '-' || r == '_':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
