package render_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/render"
)

func parseHTML(t *testing.T, b []byte) *html.Node {
	t.Helper()
	root, err := html.Parse(bytes.NewReader(b))
	require.NoError(t, err)
	return root
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byClass(root *html.Node, class string) []*html.Node {
	return findAll(root, func(n *html.Node) bool { return hasClass(n, class) })
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestRenderHTML_Content(t *testing.T) {
	out, err := render.HTML(compose(sampleDraft(), sampleCompany(), true))
	require.NoError(t, err)
	root := parseHTML(t, out)

	totals := byClass(root, "totals-amount")
	require.Len(t, totals, 1)
	assert.Equal(t, "R$ 25,50", textOf(totals[0]))
	assert.Contains(t, attr(totals[0], "style"), "#10b981")

	assert.Len(t, byClass(root, "item"), 3)
	assert.Empty(t, byClass(root, "empty"))

	number := byClass(root, "number")
	require.Len(t, number, 1)
	assert.Equal(t, "#007", textOf(number[0]))

	valid := byClass(root, "valid-until")
	require.Len(t, valid, 1)
	assert.Equal(t, "VÁLIDO ATÉ: 09/04/2024", textOf(valid[0]))

	badge := byClass(root, "company-badge")
	require.Len(t, badge, 1)
	assert.Equal(t, "A", textOf(badge[0]))

	container := byClass(root, "proposal")
	require.Len(t, container, 1)
	assert.Equal(t, "print", attr(container[0], "data-mode"))
	assert.Contains(t, attr(container[0], "style"), "width:794px")
	assert.Contains(t, attr(container[0], "style"), "min-height:1122px")
}

func TestRenderHTML_LiveContainer(t *testing.T) {
	out, err := render.HTML(compose(sampleDraft(), sampleCompany(), false))
	require.NoError(t, err)
	root := parseHTML(t, out)

	container := byClass(root, "proposal")
	require.Len(t, container, 1)
	style := attr(container[0], "style")
	assert.Equal(t, "live", attr(container[0], "data-mode"))
	assert.Contains(t, style, "scale(0.85)")
	assert.Contains(t, style, "border-radius:24px")
	assert.NotContains(t, style, "width:794px")
}

func TestRenderHTML_EmptyStateAndDefaultColor(t *testing.T) {
	d := sampleDraft()
	d.Itens = nil
	out, err := render.HTML(compose(d, nil, true))
	require.NoError(t, err)
	root := parseHTML(t, out)

	empty := byClass(root, "empty")
	require.Len(t, empty, 1)
	assert.Equal(t, "Nenhum item adicionado", textOf(empty[0]))
	assert.Equal(t, "4", attr(empty[0], "colspan"))
	assert.Contains(t, attr(empty[0], "style"), "font-style:italic")

	totals := byClass(root, "totals-amount")
	require.Len(t, totals, 1)
	assert.Equal(t, "R$ 0,00", textOf(totals[0]))

	header := byClass(root, "proposal-header")
	require.Len(t, header, 1)
	assert.Contains(t, attr(header[0], "style"), "background-color:#4f46e5")
}

func TestRenderHTML_RGBBrandColor(t *testing.T) {
	c := sampleCompany()
	c.CorPrimaria = "rgb(16, 185, 129)"

	out, err := render.HTML(compose(sampleDraft(), c, true))
	require.NoError(t, err)
	root := parseHTML(t, out)

	header := byClass(root, "proposal-header")
	require.Len(t, header, 1)
	assert.Contains(t, attr(header[0], "style"), "background-color:#10b981")
}

func TestRenderHTML_EscapesUserText(t *testing.T) {
	d := sampleDraft()
	d.ClienteNome = `<script>alert("x")</script>`

	out, err := render.HTML(compose(d, nil, true))
	require.NoError(t, err)
	root := parseHTML(t, out)

	assert.Empty(t, findAll(root, func(n *html.Node) bool { return n.Data == "script" }))
	name := byClass(root, "client-name")
	require.Len(t, name, 1)
	assert.Equal(t, d.ClienteNome, textOf(name[0]))
}

func TestRenderHTML_Logo(t *testing.T) {
	c := sampleCompany()
	c.LogoURL = "https://cdn.example.com/logos/user-1/logo.png"

	out, err := render.HTML(compose(sampleDraft(), c, true))
	require.NoError(t, err)
	root := parseHTML(t, out)

	logo := byClass(root, "company-logo")
	require.Len(t, logo, 1)
	assert.Equal(t, c.LogoURL, attr(logo[0], "src"))
	assert.Empty(t, byClass(root, "company-badge"))
}

func TestRenderHTMLFragment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.RenderHTMLFragment(&buf, compose(sampleDraft(), nil, false)))

	assert.NotContains(t, buf.String(), "<!DOCTYPE html>")
	assert.Contains(t, buf.String(), `class="proposal proposal-live"`)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := render.RenderMarkdown(compose(sampleDraft(), sampleCompany(), true))
	require.NoError(t, err)

	assert.Contains(t, out, "ORÇAMENTO")
	assert.Contains(t, out, "Site Institucional")
	assert.Contains(t, out, "Padaria Pão Quente")
	assert.Contains(t, out, "Investimento Total")
	assert.Contains(t, out, "R$ 25,50")
	assert.Contains(t, out, "|")
	assert.NotContains(t, out, "<div")
	assert.NotContains(t, out, "\n\n\n")
}

func TestRenderMarkdown_EmptyCompany(t *testing.T) {
	d := domain.NewDraft()
	out, err := render.RenderMarkdown(compose(d, nil, false))
	require.NoError(t, err)

	assert.Contains(t, out, "Sua Empresa")
	assert.Contains(t, out, "Cliente não identificado")
	assert.Contains(t, out, "R$ 0,00")
}
