package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXRenderer writes an overview sheet plus one sheet per section.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

func (r *XLSXRenderer) Extension() string { return "xlsx" }
func (r *XLSXRenderer) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (r *XLSXRenderer) Render(w io.Writer, report *domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const overview = "Overview"
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	sw := &sheetWriter{f: f, sheet: overview, bold: bold}
	sw.header(report.Title)
	sw.row("Period", periodLine(report.Period))
	sw.row("Generated", report.GeneratedAt.Format("2006-01-02 15:04"))

	used := map[string]bool{overview: true}
	for _, s := range report.Sections {
		name := sheetName(s.Title, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
		sw = &sheetWriter{f: f, sheet: name, bold: bold}
		sw.header(s.Title)
		for _, k := range s.SummaryKeys() {
			sw.row(k, s.Summary[k])
		}
		if len(s.Details) > 0 {
			sw.header("Metric", "Value", "Unit", "Change")
			for _, d := range s.Details {
				sw.row(d.Name, d.Value, d.Unit, d.Description)
			}
		}
		for _, t := range s.Tables {
			sw.blank()
			sw.header(t.Title)
			sw.header(t.Columns...)
			for _, row := range t.Rows {
				sw.row(row...)
			}
		}
		for _, n := range s.Notes {
			sw.row(n)
		}
		if sw.err != nil {
			return fmt.Errorf("write sheet %s: %w", name, sw.err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	bold  int
	next  int
	err   error
}

func (s *sheetWriter) row(values ...interface{}) {
	if s.err != nil {
		return
	}
	s.next++
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(s.sheet, cell, &values)
}

func (s *sheetWriter) header(titles ...string) {
	values := make([]interface{}, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	s.row(values...)
	if s.err != nil || len(titles) == 0 {
		return
	}
	from, _ := excelize.CoordinatesToCellName(1, s.next)
	to, _ := excelize.CoordinatesToCellName(len(titles), s.next)
	s.err = s.f.SetCellStyle(s.sheet, from, to, s.bold)
}

func (s *sheetWriter) blank() { s.next++ }

// sheetName trims a title to Excel's limits and keeps it unique.
func sheetName(title string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return ' '
		}
		return r
	}, title)
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Section"
	}
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	name := base
	for i := 2; used[name]; i++ {
		suffix := fmt.Sprintf(" %d", i)
		name = base
		if len(name)+len(suffix) > maxSheetName {
			name = name[:maxSheetName-len(suffix)]
		}
		name += suffix
	}
	used[name] = true
	return name
}
