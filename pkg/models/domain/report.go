package domain

import (
	"sort"
	"time"
)

// Report is the format-neutral rendering model handed to exporters.
type Report struct {
	Title       string          `json:"title" yaml:"title"`
	Subtitle    string          `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	TenantID    TenantID        `json:"tenant_id" yaml:"tenant_id"`
	Period      TimePeriod      `json:"period" yaml:"period"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Sections    []ReportSection `json:"sections" yaml:"sections"`
}

// TimePeriod represents a time range for the report
type TimePeriod struct {
	Start    time.Time `json:"start" yaml:"start"`
	End      time.Time `json:"end" yaml:"end"`
	Duration int       `json:"duration_days" yaml:"duration_days"` // in days
}

func NewTimePeriod(r DateRange) TimePeriod {
	return TimePeriod{Start: r.Start, End: r.End, Duration: r.Days()}
}

// ReportSection represents a logical section in the report
type ReportSection struct {
	Title   string                 `json:"title" yaml:"title"`
	Summary map[string]interface{} `json:"summary,omitempty" yaml:"summary,omitempty"`
	Details []ReportDetail         `json:"details,omitempty" yaml:"details,omitempty"`
	Tables  []ReportTable          `json:"tables,omitempty" yaml:"tables,omitempty"`
	Notes   []string               `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// SummaryKeys returns the summary keys in a stable order.
func (s ReportSection) SummaryKeys() []string {
	keys := make([]string, 0, len(s.Summary))
	for k := range s.Summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReportDetail represents detailed information within a section
type ReportDetail struct {
	Name        string      `json:"name" yaml:"name"`
	Value       interface{} `json:"value" yaml:"value"`
	Unit        string      `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

type ReportTable struct {
	Title   string          `json:"title" yaml:"title"`
	Columns []string        `json:"columns" yaml:"columns"`
	Rows    [][]interface{} `json:"rows" yaml:"rows"`
}
