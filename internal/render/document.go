package render

import "github.com/shopspring/decimal"

// Mode is the render parameterization of a document.
type Mode string

const (
	// ModePrint is the fixed A4 layout used for export (fullPage=true).
	ModePrint Mode = "print"
	// ModeLive is the scaled-down inline preview (fullPage=false).
	ModeLive Mode = "live"
)

// A4 page in CSS pixels at 96 dpi, and the live preview scale.
const (
	PageWidthPx  = 794
	PageHeightPx = 1122
	PreviewScale = 0.85
)

// Align is the horizontal alignment of a cell.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Document is the render tree of a proposal. Only Mode and Container depend
// on the render mode; every other node is identical in both modes.
type Document struct {
	Mode       Mode          `json:"mode"`
	Container  Container     `json:"container"`
	FontFamily string        `json:"font_family"`
	BrandColor string        `json:"brand_color"`
	Header     Header        `json:"header"`
	Client     ClientBlock   `json:"client"`
	Project    ProjectBlock  `json:"project"`
	Items      ItemsTable    `json:"items"`
	Totals     Totals        `json:"totals"`
	Notes      *Notes        `json:"notes,omitempty"`
	Footer     Footer        `json:"footer"`
	Derived    DerivedFields `json:"derived"`
}

// Container is the outer box of the document.
type Container struct {
	WidthPx     int     `json:"width_px,omitempty"`
	MinHeightPx int     `json:"min_height_px,omitempty"`
	Scale       float64 `json:"scale"`
	Rounded     bool    `json:"rounded"`
	Bordered    bool    `json:"bordered"`
	BaseFontPx  int     `json:"base_font_px,omitempty"`
}

// Text is a rendered string. Placeholder marks fallback text shown because
// the underlying field was empty.
type Text struct {
	Value       string `json:"value"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Logo is a company logo reference.
type Logo struct {
	URL string `json:"url"`
}

// Badge is the generated initial-letter logo substitute.
type Badge struct {
	Letter string `json:"letter"`
}

// Header is the branded band at the top of the document.
type Header struct {
	Background  string   `json:"background"`
	Logo        *Logo    `json:"logo,omitempty"`
	Badge       *Badge   `json:"badge,omitempty"`
	CompanyName Text     `json:"company_name"`
	Contacts    []string `json:"contacts"`
	Heading     string   `json:"heading"`
	NumberLabel string   `json:"number_label"`
	Number      string   `json:"number"`
	Date        string   `json:"date"`
}

// ClientBlock holds the client information.
type ClientBlock struct {
	Heading string `json:"heading"`
	Name    Text   `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// ProjectBlock holds the project title and validity badge.
type ProjectBlock struct {
	Heading    string `json:"heading"`
	Title      Text   `json:"title"`
	ValidUntil string `json:"valid_until,omitempty"`
}

// Column is an items table header cell.
type Column struct {
	Label string `json:"label"`
	Align Align  `json:"align"`
}

// ItemRow is one line item, already formatted.
type ItemRow struct {
	Description Text   `json:"description"`
	Quantity    string `json:"quantity"`
	UnitValue   string `json:"unit_value"`
	Total       string `json:"total"`
}

// EmptyRow replaces the item rows when there are no items.
type EmptyRow struct {
	Text    string `json:"text"`
	Italic  bool   `json:"italic"`
	ColSpan int    `json:"colspan"`
}

// ItemsTable is the itemized table. Exactly one of Rows or Empty is set.
type ItemsTable struct {
	Columns []Column  `json:"columns"`
	Rows    []ItemRow `json:"rows"`
	Empty   *EmptyRow `json:"empty,omitempty"`
}

// Totals is the grand total summary row.
type Totals struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Color  string `json:"color"`
}

// Notes is the optional free-text block.
type Notes struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
}

// Footer carries the company address, tax id and attribution.
type Footer struct {
	Address     string `json:"address,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	Attribution string `json:"attribution"`
}

// DerivedFields exposes the computed values the document was built from.
type DerivedFields struct {
	Total         decimal.Decimal `json:"total"`
	DisplayNumber string          `json:"display_number"`
	ValidUntil    string          `json:"valid_until,omitempty"`
}
