package export

import (
	"fmt"
	"io"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/jung-kurt/gofpdf/v2"
)

const (
	pageMargin = 15.0
	pageWidth  = 180.0 // A4 minus margins
	lineHeight = 6.0
)

// PDFRenderer lays a report out on A4 pages with a title block, metric tables and notes.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

func (r *PDFRenderer) Extension() string { return "pdf" }
func (r *PDFRenderer) MimeType() string  { return "application/pdf" }

func (r *PDFRenderer) Render(w io.Writer, report *domain.Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, 20, pageMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("{nb}")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(108, 117, 125)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(0, 102, 204)
	pdf.CellFormat(0, 12, tr(report.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(108, 117, 125)
	if report.Subtitle != "" {
		pdf.CellFormat(0, lineHeight, tr(report.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, lineHeight, "Period: "+periodLine(report.Period), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Generated: "+report.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")

	for _, s := range report.Sections {
		sectionHeader(pdf, tr(s.Title))

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(33, 37, 41)
		for _, k := range s.SummaryKeys() {
			pdf.CellFormat(60, lineHeight, tr(k), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, lineHeight, tr(fmt.Sprint(s.Summary[k])), "", 1, "L", false, 0, "")
		}

		if len(s.Details) > 0 {
			widths := []float64{70, 40, 70}
			tableHeader(pdf, widths, []string{"Metric", "Value", "Change"})
			for _, d := range s.Details {
				tableRow(pdf, widths, []string{tr(d.Name), tr(formatValue(d.Value, d.Unit)), tr(d.Description)})
			}
			pdf.Ln(3)
		}

		for _, t := range s.Tables {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(0, lineHeight+1, tr(t.Title), "", 1, "L", false, 0, "")
			if len(t.Columns) == 0 {
				continue
			}
			widths := make([]float64, len(t.Columns))
			for i := range widths {
				widths[i] = pageWidth / float64(len(t.Columns))
			}
			tableHeader(pdf, widths, t.Columns)
			for _, row := range t.Rows {
				cells := make([]string, len(t.Columns))
				for i := range cells {
					if i < len(row) {
						cells[i] = tr(formatCell(row[i]))
					}
				}
				tableRow(pdf, widths, cells)
			}
			pdf.Ln(3)
		}

		pdf.SetFont("Arial", "", 10)
		for _, n := range s.Notes {
			pdf.MultiCell(0, lineHeight, tr("- "+n), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdf.Output(w)
}

func sectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(33, 37, 41)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetLineWidth(0.4)
	pdf.SetDrawColor(0, 102, 204)
	pdf.Line(pageMargin, pdf.GetY(), pageMargin+pageWidth, pdf.GetY())
	pdf.Ln(3)
}

func tableHeader(pdf *gofpdf.Fpdf, widths []float64, titles []string) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(0, 102, 204)
	pdf.SetTextColor(255, 255, 255)
	for i, t := range titles {
		pdf.CellFormat(widths[i], lineHeight+1, t, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(33, 37, 41)
}

func tableRow(pdf *gofpdf.Fpdf, widths []float64, cells []string) {
	for i, c := range cells {
		pdf.CellFormat(widths[i], lineHeight, truncateTo(pdf, c, widths[i]-2), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

// truncateTo shortens s until it fits in width millimetres.
func truncateTo(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
