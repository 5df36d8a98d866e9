// Package pdf rasterizes composed proposal documents into A4 PDF files.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for logo validation
	_ "image/jpeg" // register decoder for logo validation
	_ "image/png"  // register decoder for logo validation
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/port"
	"github.com/boddenberg/proposta-facil-go/internal/render"

	"github.com/go-pdf/fpdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("pdf")

const contentType = "application/pdf"

// Page geometry in millimetres.
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	margin       = 15.0
	bottomMargin = 22.0
	headerHeight = 46.0
	contentWidth = pageWidth - 2*margin
	lineHeight   = 6.0
)

// Relative widths of the items table columns.
var columnWidths = []float64{0.52, 0.12, 0.18, 0.18}

// Rasterizer draws a Document with fpdf core fonts. Text is translated to
// cp1252 so Portuguese accents survive.
type Rasterizer struct {
	logger *zap.Logger
}

// New creates a Rasterizer.
func New(logger *zap.Logger) *Rasterizer {
	return &Rasterizer{logger: logger}
}

// ContentType implements port.DocumentRasterizer.
func (r *Rasterizer) ContentType() string { return contentType }

// Rasterize renders doc into a PDF. Content that overflows a page continues
// on the next one; the items header row is repeated.
func (r *Rasterizer) Rasterize(ctx context.Context, doc *render.Document, assets port.RasterAssets) ([]byte, error) {
	_, span := tracer.Start(ctx, "Rasterizer.Rasterize")
	defer span.End()
	span.SetAttributes(attribute.Int("items.count", len(doc.Items.Rows)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := *doc
	p := &page{
		pdf:   fpdf.New("P", "mm", "A4", ""),
		doc:   &d,
		brand: rgbOf(doc.BrandColor),
	}
	p.tr = p.pdf.UnicodeTranslatorFromDescriptor("")
	p.pdf.SetTitle(p.tr(doc.Project.Title.Value), false)
	p.pdf.SetCreator("Proposta Facil", false)
	p.pdf.SetMargins(margin, margin, margin)
	p.pdf.SetAutoPageBreak(true, bottomMargin)
	p.pdf.SetFooterFunc(p.footer)

	if len(assets.Logo) > 0 {
		if typ, ok := imageType(assets.Logo); ok {
			p.logoType = typ
			p.pdf.RegisterImageOptionsReader("logo", fpdf.ImageOptions{ImageType: typ, ReadDpi: true}, bytes.NewReader(assets.Logo))
		} else {
			r.logger.Debug("pdf: unsupported logo, drawing badge",
				zap.String("content_type", assets.LogoContentType))
		}
	}
	if p.logoType == "" {
		d.DropLogo()
	}

	p.pdf.AddPage()
	p.header()
	p.parties()
	p.items()
	p.totals()
	p.notes()

	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type rgb struct{ r, g, b int }

func rgbOf(color string) rgb {
	r, g, b := domain.ColorChannels(color)
	return rgb{int(r), int(g), int(b)}
}

type page struct {
	pdf      *fpdf.Fpdf
	doc      *render.Document
	tr       func(string) string
	brand    rgb
	logoType string
}

func (p *page) header() {
	pdf, h := p.pdf, p.doc.Header
	bg := rgbOf(h.Background)

	pdf.SetFillColor(bg.r, bg.g, bg.b)
	pdf.Rect(0, 0, pageWidth, headerHeight, "F")

	nameX := margin
	switch {
	case p.logoType != "":
		pdf.ImageOptions("logo", margin, 10, 0, 22, false, fpdf.ImageOptions{ImageType: p.logoType}, 0, "")
		nameX = margin + 30
	case h.Badge != nil:
		pdf.SetFillColor(255, 255, 255)
		pdf.RoundedRect(margin, 10, 22, 22, 4, "1234", "F")
		pdf.SetTextColor(bg.r, bg.g, bg.b)
		pdf.SetFont("Helvetica", "B", 20)
		pdf.SetXY(margin, 10)
		pdf.CellFormat(22, 22, p.tr(h.Badge.Letter), "", 0, "CM", false, 0, "")
		nameX = margin + 30
	}

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(nameX, 11)
	pdf.CellFormat(90, 8, p.tr(h.CompanyName.Value), "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, c := range h.Contacts {
		pdf.CellFormat(90, 5, p.tr(c), "", 2, "L", false, 0, "")
	}

	right := pageWidth - margin - 70
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(right, 10)
	pdf.CellFormat(70, 9, p.tr(h.Heading), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(70, 5, p.tr(h.NumberLabel+" "+h.Number), "", 2, "R", false, 0, "")
	pdf.CellFormat(70, 5, p.tr(h.Date), "", 2, "R", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(margin, headerHeight+8)
}

func (p *page) parties() {
	pdf, c, pr := p.pdf, p.doc.Client, p.doc.Project
	half := contentWidth / 2
	top := pdf.GetY()

	p.label(margin, top, half, c.Heading)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(margin, top+6)
	pdf.MultiCell(half-4, lineHeight, p.tr(c.Name.Value), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	for _, v := range []string{c.Email, c.Phone} {
		if v != "" {
			pdf.SetX(margin)
			pdf.CellFormat(half-4, 5, p.tr(v), "", 2, "L", false, 0, "")
		}
	}
	leftBottom := pdf.GetY()

	p.label(margin+half, top, half, pr.Heading)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(margin+half, top+6)
	pdf.MultiCell(half, lineHeight, p.tr(pr.Title.Value), "", "L", false)
	if pr.ValidUntil != "" {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetTextColor(p.brand.r, p.brand.g, p.brand.b)
		pdf.SetX(margin + half)
		pdf.CellFormat(half, 5, p.tr(pr.ValidUntil), "", 2, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.SetXY(margin, max(leftBottom, pdf.GetY())+8)
}

func (p *page) label(x, y, w float64, text string) {
	p.pdf.SetFont("Helvetica", "B", 8)
	p.pdf.SetTextColor(120, 120, 130)
	p.pdf.SetXY(x, y)
	p.pdf.CellFormat(w, 5, p.tr(strings.ToUpper(text)), "", 0, "L", false, 0, "")
	p.pdf.SetTextColor(0, 0, 0)
}

func (p *page) itemsHeader() {
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(243, 244, 246)
	for i, col := range p.doc.Items.Columns {
		pdf.CellFormat(contentWidth*columnWidths[i], 8, p.tr(col.Label), "B", 0, alignOf(col.Align), true, 0, "")
	}
	pdf.Ln(-1)
}

func (p *page) items() {
	pdf, t := p.pdf, p.doc.Items
	p.itemsHeader()

	if t.Empty != nil {
		style := ""
		if t.Empty.Italic {
			style = "I"
		}
		pdf.SetFont("Helvetica", style, 9)
		pdf.SetTextColor(150, 150, 160)
		pdf.CellFormat(contentWidth, 12, p.tr(t.Empty.Text), "B", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		return
	}

	descWidth := contentWidth * columnWidths[0]
	for _, row := range t.Rows {
		pdf.SetFont("Helvetica", "", 9)
		// Measure the cp1252 bytes; SplitText would read them as UTF-8.
		lines := pdf.SplitLines([]byte(p.tr(row.Description.Value)), descWidth-2)
		if len(lines) == 0 {
			lines = [][]byte{nil}
		}
		h := float64(len(lines))*5 + 3

		// Manual break so a row never splits across pages.
		if pdf.GetY()+h > pageHeight-bottomMargin {
			pdf.AddPage()
			p.itemsHeader()
			pdf.SetFont("Helvetica", "", 9)
		}

		x, y := pdf.GetX(), pdf.GetY()
		if row.Description.Placeholder {
			pdf.SetTextColor(150, 150, 160)
		}
		pdf.SetXY(x, y+1.5)
		for _, l := range lines {
			pdf.SetX(x)
			pdf.CellFormat(descWidth, 5, string(l), "", 2, "L", false, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)

		pdf.SetXY(x+descWidth, y)
		cells := []string{row.Quantity, row.UnitValue, row.Total}
		for i, v := range cells {
			if i == len(cells)-1 {
				pdf.SetFont("Helvetica", "B", 9)
			}
			pdf.CellFormat(contentWidth*columnWidths[i+1], h, p.tr(v), "", 0, alignOf(p.doc.Items.Columns[i+1].Align), false, 0, "")
		}
		pdf.SetDrawColor(229, 231, 235)
		pdf.Line(x, y+h, x+contentWidth, y+h)
		pdf.SetXY(x, y+h)
	}
}

func (p *page) totals() {
	pdf, t := p.pdf, p.doc.Totals
	if pdf.GetY()+16 > pageHeight-bottomMargin {
		pdf.AddPage()
	}
	pdf.Ln(6)
	c := rgbOf(t.Color)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(120, 120, 130)
	pdf.CellFormat(contentWidth-60, 10, p.tr(strings.ToUpper(t.Label)), "", 0, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(c.r, c.g, c.b)
	pdf.CellFormat(60, 10, p.tr(t.Amount), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (p *page) notes() {
	n := p.doc.Notes
	if n == nil {
		return
	}
	pdf := p.pdf
	pdf.Ln(8)
	p.label(margin, pdf.GetY(), contentWidth, n.Heading)
	pdf.SetXY(margin, pdf.GetY()+6)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(contentWidth, 5, p.tr(n.Text), "", "L", false)
}

func (p *page) footer() {
	pdf, f := p.pdf, p.doc.Footer
	pdf.SetY(-18)
	pdf.SetDrawColor(229, 231, 235)
	pdf.Line(margin, pdf.GetY(), pageWidth-margin, pdf.GetY())
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(120, 120, 130)

	var left []string
	if f.Address != "" {
		left = append(left, f.Address)
	}
	if f.TaxID != "" {
		left = append(left, f.TaxID)
	}
	pdf.SetX(margin)
	pdf.CellFormat(contentWidth*0.7, 8, p.tr(strings.Join(left, " | ")), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentWidth*0.3, 8, p.tr(f.Attribution), "", 0, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func alignOf(a render.Align) string {
	switch a {
	case render.AlignCenter:
		return "C"
	case render.AlignRight:
		return "R"
	default:
		return "L"
	}
}

// imageType maps a logo to an fpdf image type. Formats fpdf cannot embed
// (svg, webp) and undecodable payloads report false.
func imageType(data []byte) (string, bool) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	switch format {
	case "png":
		return "PNG", true
	case "jpeg":
		return "JPG", true
	case "gif":
		return "GIF", true
	}
	return "", false
}

// Noop rejects every export. Used where PDF export is disabled.
type Noop struct{}

func (Noop) ContentType() string { return contentType }

func (Noop) Rasterize(context.Context, *render.Document, port.RasterAssets) ([]byte, error) {
	return nil, domain.ErrRasterizerUnavailable
}
