package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	reportexport "github.com/de-tools/msp-atlas/pkg/services/export"
)

type TableConfig struct {
	IDWidth     int
	NameWidth   int
	StatusWidth int
	WhenWidth   int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		IDWidth:     6,
		NameWidth:   32,
		StatusWidth: 10,
		WhenWidth:   20,
	}
}

// Reporter writes reports and scheduler state to a terminal.
type Reporter struct {
	writer    io.Writer
	config    TableConfig
	renderers map[domain.ExportFormat]reportexport.Renderer
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer:    writer,
		config:    DefaultTableConfig(),
		renderers: reportexport.Renderers(),
	}
}

// Handle renders the report in format; text is used when format is empty.
func (c *Reporter) Handle(report domain.Report, format domain.ExportFormat) error {
	if format == "" {
		format = domain.ExportText
	}
	r, ok := c.renderers[format]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownExportFormat, format)
	}
	return r.Render(c.writer, &report)
}

func (c *Reporter) funcs() template.FuncMap {
	return template.FuncMap{
		"formatRow": func(id any, name, status, when string) string {
			return fmt.Sprintf("| %-*v | %-*s | %-*s | %-*s |",
				c.config.IDWidth, id,
				c.config.NameWidth, truncate(name, c.config.NameWidth),
				c.config.StatusWidth, status,
				c.config.WhenWidth, when)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+",
				strings.Repeat("-", c.config.IDWidth+2),
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.StatusWidth+2),
				strings.Repeat("-", c.config.WhenWidth+2))
		},
		"when": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format("2006-01-02 15:04")
		},
		"active": func(ok bool) string {
			if ok {
				return "active"
			}
			return "inactive"
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

const schedulesTemplate = `{{separator}}
{{formatRow "ID" "Name" "State" "Next run"}}
{{separator}}
{{range .}}{{formatRow .ID (printf "%s [%s/%s]" .Name .ReportType .Frequency) (active .IsActive) (when .NextRunAt)}}
{{end}}{{separator}}
`

func (c *Reporter) Schedules(schedules []domain.ReportSchedule) error {
	if len(schedules) == 0 {
		_, err := fmt.Fprintln(c.writer, "No report schedules found.")
		return err
	}
	return c.execute("schedules", schedulesTemplate, schedules)
}

const runsTemplate = `{{separator}}
{{formatRow "Sched" "Run" "Status" "Started"}}
{{separator}}
{{range .}}{{formatRow .ScheduleID .ID (printf "%s" .Status) (when .StartedAt)}}
{{if .Error}}  error: {{.Error}}
{{end}}{{end}}{{separator}}
`

func (c *Reporter) Runs(runs []domain.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(c.writer, "No runs recorded.")
		return err
	}
	return c.execute("runs", runsTemplate, runs)
}

const outcomeTemplate = `Due: {{.Due}}  Processed: {{.Processed}}  Succeeded: {{.Succeeded}}  Failed: {{.Failed}}  Skipped: {{.Skipped}}
{{range .Results}}- schedule {{.ScheduleID}}: {{.Status}}{{if .Error}} ({{.Error}}){{end}}
{{end}}`

func (c *Reporter) Outcome(outcome domain.BatchOutcome) error {
	return c.execute("outcome", outcomeTemplate, outcome)
}

func (c *Reporter) Result(res domain.ScheduleResult) error {
	outcome := domain.BatchOutcome{Due: 1}
	outcome.Add(res)
	return c.Outcome(outcome)
}

func (c *Reporter) execute(name, text string, data any) error {
	t, err := template.New(name).Funcs(c.funcs()).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, data)
}
