package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// CSVRenderer flattens every section into blocks of rows separated by a blank line.
type CSVRenderer struct{}

func NewCSVRenderer() *CSVRenderer { return &CSVRenderer{} }

func (r *CSVRenderer) Extension() string { return "csv" }
func (r *CSVRenderer) MimeType() string  { return "text/csv" }

func (r *CSVRenderer) Render(w io.Writer, report *domain.Report) error {
	cw := csv.NewWriter(w)
	write := func(rec ...string) {
		_ = cw.Write(rec)
	}

	write("report", report.Title)
	write("period_start", report.Period.Start.Format("2006-01-02"))
	write("period_end", report.Period.End.Format("2006-01-02"))

	for _, s := range report.Sections {
		write()
		write("section", s.Title)
		for _, k := range s.SummaryKeys() {
			write(k, fmt.Sprint(s.Summary[k]))
		}
		if len(s.Details) > 0 {
			write("metric", "value", "unit", "change")
			for _, d := range s.Details {
				write(d.Name, csvValue(d.Value), d.Unit, d.Description)
			}
		}
		for _, t := range s.Tables {
			write()
			write("table", t.Title)
			write(t.Columns...)
			for _, row := range t.Rows {
				rec := make([]string, len(row))
				for i, c := range row {
					rec[i] = csvValue(c)
				}
				write(rec...)
			}
		}
		for _, n := range s.Notes {
			write("note", n)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvValue(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return formatCell(v)
}
