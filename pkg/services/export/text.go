package export

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

type TableConfig struct {
	NameWidth        int
	ValueWidth       int
	DescriptionWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		NameWidth:        32,
		ValueWidth:       18,
		DescriptionWidth: 44,
	}
}

// TextRenderer prints a report as plain-text tables for terminals and email bodies.
type TextRenderer struct {
	config TableConfig
}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{config: DefaultTableConfig()}
}

func (r *TextRenderer) Extension() string { return "txt" }
func (r *TextRenderer) MimeType() string  { return "text/plain; charset=utf-8" }

const textTemplate = `{{.Title}}
{{if .Subtitle}}{{.Subtitle}}
{{end}}Period: {{period .Period}}
Generated: {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}
{{range .Sections}}
=== {{.Title}} ===
{{$s := .}}{{range .SummaryKeys}}{{.}}: {{index $s.Summary .}}
{{end}}{{if .Details}}{{separator}}
{{formatRow "Name" "Value" "Change"}}
{{separator}}
{{range .Details}}{{formatRow .Name (value .Value .Unit) .Description}}
{{end}}{{separator}}
{{end}}{{range .Tables}}
{{.Title}}
{{grid .}}{{end}}{{range .Notes}}- {{.}}
{{end}}{{end}}`

func (r *TextRenderer) Render(w io.Writer, report *domain.Report) error {
	funcMap := template.FuncMap{
		"formatRow": func(name, value, desc string) string {
			return fmt.Sprintf("| %-*s | %-*s | %-*s |",
				r.config.NameWidth, name,
				r.config.ValueWidth, value,
				r.config.DescriptionWidth, desc)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+",
				strings.Repeat("-", r.config.NameWidth+2),
				strings.Repeat("-", r.config.ValueWidth+2),
				strings.Repeat("-", r.config.DescriptionWidth+2))
		},
		"value":  formatValue,
		"period": periodLine,
		"grid":   grid,
	}

	t, err := template.New("report").Funcs(funcMap).Parse(textTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(w, report)
}

// grid lays out a table with columns sized to their widest cell.
func grid(t domain.ReportTable) string {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(row) {
				cells[i][j] = formatCell(row[j])
			}
			widths[j] = max(widths[j], len(cells[i][j]))
		}
	}

	var b strings.Builder
	line := func(vals []string) {
		for j, v := range vals {
			if j > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", widths[j], v)
		}
		b.WriteString("\n")
	}
	line(t.Columns)
	rule := make([]string, len(widths))
	for j, w := range widths {
		rule[j] = strings.Repeat("-", w)
	}
	line(rule)
	for _, row := range cells {
		line(row)
	}
	if len(t.Rows) == 0 {
		b.WriteString("(no rows)\n")
	}
	return b.String()
}
