// Package render builds the visual document of a proposal and renders it to
// HTML and Markdown. Compose is pure: it never fetches, persists or reads the
// clock; "now" and "today" are inputs.
package render

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/pricing"
)

// Fixed document copy.
const (
	fallbackCompanyName = "Sua Empresa"
	fallbackInitial     = "S"
	fallbackClientName  = "Cliente não identificado"
	fallbackTitle       = "Serviços Profissionais"
	fallbackDescription = "Item sem descrição"
	emptyItemsText      = "Nenhum item adicionado"
	attribution         = "Gerado via Proposta Fácil"
	fontFamily          = `"Inter", sans-serif`
)

// Input is everything the composer needs. Company may be nil (absent or not
// loaded yet); it renders placeholders.
type Input struct {
	Draft    domain.Draft
	Company  *domain.Company
	FullPage bool
	Now      time.Time
	Today    time.Time
	Locale   Locale
}

// Compose maps a draft and company profile to a document tree.
func Compose(in Input) *Document {
	loc := in.Locale.orDefault()
	today := in.Today
	if today.IsZero() {
		today = in.Now
	}

	derived := pricing.Derive(in.Draft, in.Now, loc.Location)
	company := in.Company
	color := company.BrandColor()

	doc := &Document{
		Mode:       ModeLive,
		Container:  containerFor(in.FullPage),
		FontFamily: fontFamily,
		BrandColor: color,
		Header:     composeHeader(company, color, derived.DisplayNumber, loc.Date(today)),
		Client:     composeClient(in.Draft),
		Project:    composeProject(in.Draft, derived, loc),
		Items:      composeItems(in.Draft.Itens, loc),
		Totals: Totals{
			Label:  "Investimento Total",
			Amount: loc.Money(derived.Total),
			Color:  color,
		},
		Footer: composeFooter(company),
		Derived: DerivedFields{
			Total:         derived.Total,
			DisplayNumber: derived.DisplayNumber,
		},
	}
	if in.FullPage {
		doc.Mode = ModePrint
	}
	if derived.HasValidUntil {
		doc.Derived.ValidUntil = derived.ValidUntil.Format("2006-01-02")
	}
	// Whitespace-only notes count as empty.
	if strings.TrimSpace(in.Draft.Observacoes) != "" {
		doc.Notes = &Notes{Heading: "Notas & Observações", Text: in.Draft.Observacoes}
	}
	return doc
}

func containerFor(fullPage bool) Container {
	if fullPage {
		return Container{WidthPx: PageWidthPx, MinHeightPx: PageHeightPx, Scale: 1}
	}
	return Container{Scale: PreviewScale, Rounded: true, Bordered: true, BaseFontPx: 10}
}

func composeHeader(c *domain.Company, color, number, today string) Header {
	var co domain.Company
	if c != nil {
		co = *c
	}
	h := Header{
		Background:  color,
		CompanyName: textOr(co.Nome, fallbackCompanyName),
		Contacts:    []string{},
		Heading:     "ORÇAMENTO",
		NumberLabel: "PROPOSTA Nº",
		Number:      "#" + number,
		Date:        "DATA: " + today,
	}
	if logo := strings.TrimSpace(co.LogoURL); logo != "" {
		h.Logo = &Logo{URL: logo}
	} else {
		h.Badge = &Badge{Letter: initial(co.Nome)}
	}
	for _, v := range []string{co.Email, co.Telefone} {
		if strings.TrimSpace(v) != "" {
			h.Contacts = append(h.Contacts, v)
		}
	}
	return h
}

func composeClient(d domain.Draft) ClientBlock {
	b := ClientBlock{
		Heading: "Informações do Cliente",
		Name:    textOr(d.ClienteNome, fallbackClientName),
	}
	if strings.TrimSpace(d.ClienteEmail) != "" {
		b.Email = d.ClienteEmail
	}
	if strings.TrimSpace(d.ClienteTelefone) != "" {
		b.Phone = d.ClienteTelefone
	}
	return b
}

func composeProject(d domain.Draft, derived pricing.Derived, loc Locale) ProjectBlock {
	b := ProjectBlock{
		Heading: "Título do Projeto",
		Title:   textOr(d.Titulo, fallbackTitle),
	}
	if derived.HasValidUntil {
		b.ValidUntil = "VÁLIDO ATÉ: " + loc.Date(derived.ValidUntil)
	}
	return b
}

func composeItems(items []domain.LineItem, loc Locale) ItemsTable {
	t := ItemsTable{
		Columns: []Column{
			{Label: "Descrição do Serviço / Produto", Align: AlignLeft},
			{Label: "Qtd", Align: AlignCenter},
			{Label: "Valor Unit.", Align: AlignRight},
			{Label: "Total", Align: AlignRight},
		},
		Rows: []ItemRow{},
	}
	if len(items) == 0 {
		t.Empty = &EmptyRow{Text: emptyItemsText, Italic: true, ColSpan: len(t.Columns)}
		return t
	}
	for _, it := range items {
		t.Rows = append(t.Rows, ItemRow{
			Description: textOr(it.Descricao, fallbackDescription),
			Quantity:    loc.Quantity(it.Quantidade.Float64()),
			UnitValue:   loc.Money(pricing.Amount(it.ValorUnit)),
			Total:       loc.Money(pricing.LineTotal(it)),
		})
	}
	return t
}

func composeFooter(c *domain.Company) Footer {
	f := Footer{Attribution: attribution}
	if c == nil {
		return f
	}
	f.Address = strings.TrimSpace(c.Endereco)
	if cnpj := strings.TrimSpace(c.CNPJ); cnpj != "" {
		f.TaxID = "CNPJ: " + cnpj
	}
	return f
}

func textOr(v, fallback string) Text {
	if strings.TrimSpace(v) == "" {
		return Text{Value: fallback, Placeholder: true}
	}
	return Text{Value: v}
}

func initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackInitial
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// DropLogo replaces the header logo with the initial-letter badge. Used by
// targets that could not load the logo image.
func (d *Document) DropLogo() {
	if d.Header.Logo == nil {
		return
	}
	name := d.Header.CompanyName.Value
	if d.Header.CompanyName.Placeholder {
		name = ""
	}
	d.Header.Logo = nil
	d.Header.Badge = &Badge{Letter: initial(name)}
}
