package domain

import (
	"fmt"
	"strconv"
	"time"
)

// NamedMetric is one metric inside a bundle section.
type NamedMetric struct {
	Name  string      `json:"name" yaml:"name"`
	Label string      `json:"label" yaml:"label"`
	Value MetricValue `json:"value" yaml:"value"`
}

// RowSet is a small tabular result. Cells hold float64, string or nil.
type RowSet struct {
	Columns []string `json:"columns" yaml:"columns"`
	Rows    [][]any  `json:"rows" yaml:"rows"`
}

func (rs RowSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (rs RowSet) Len() int { return len(rs.Rows) }

// Column returns the cells of one column, or nil when it does not exist.
func (rs RowSet) Column(name string) []any {
	idx := rs.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// CellFloat reads a normalized cell as a number.
func CellFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Table is a titled RowSet inside a section.
type Table struct {
	Name   string `json:"name" yaml:"name"`
	Title  string `json:"title" yaml:"title"`
	RowSet `yaml:",inline"`
}

type Section struct {
	Key     string        `json:"key" yaml:"key"`
	Title   string        `json:"title" yaml:"title"`
	Metrics []NamedMetric `json:"metrics" yaml:"metrics"`
	Tables  []Table       `json:"tables,omitempty" yaml:"tables,omitempty"`
}

func (s Section) Metric(name string) (MetricValue, bool) {
	for _, m := range s.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return MetricValue{}, false
}

func (s Section) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ReportBundle is the set of sections computed together for one report view.
type ReportBundle struct {
	Name           string    `json:"name" yaml:"name"`
	Title          string    `json:"title" yaml:"title"`
	TenantID       TenantID  `json:"tenant_id" yaml:"tenant_id"`
	Period         DateRange `json:"period" yaml:"period"`
	PreviousPeriod DateRange `json:"previous_period" yaml:"previous_period"`
	GeneratedAt    time.Time `json:"generated_at" yaml:"generated_at"`
	Sections       []Section `json:"sections" yaml:"sections"`
}

func (b ReportBundle) Section(key string) (Section, bool) {
	for _, s := range b.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

func (b ReportBundle) Metric(section, name string) (MetricValue, bool) {
	s, ok := b.Section(section)
	if !ok {
		return MetricValue{}, false
	}
	return s.Metric(name)
}
