package api

import (
	"encoding/json"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MetricResponse struct {
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	Format domain.Format  `json:"format"`
	Period TimePeriod     `json:"period"`
	Value  *float64       `json:"value,omitempty"`
	Rows   *domain.RowSet `json:"rows,omitempty"`
}

type MetricDefinition struct {
	Name   string        `json:"name"`
	Label  string        `json:"label"`
	Group  string        `json:"group"`
	Kind   string        `json:"kind"`
	Format domain.Format `json:"format"`
}

type TimePeriod struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration_days"`
}

// WidgetRequest carries one widget config; Config is decoded by Kind.
type WidgetRequest struct {
	Kind   domain.WidgetKind `json:"kind"`
	Config json.RawMessage   `json:"config"`
}

type WidgetResponse struct {
	Kind    domain.WidgetKind    `json:"kind"`
	Payload domain.WidgetPayload `json:"payload"`
}

type ScheduleRequest struct {
	Name            string                    `json:"name"`
	ReportType      string                    `json:"report_type"`
	Frequency       string                    `json:"frequency"`
	Parameters      domain.ScheduleParameters `json:"parameters"`
	Recipients      []domain.Recipient        `json:"recipients"`
	Format          string                    `json:"format"`
	NextRunAt       *time.Time                `json:"next_run_at,omitempty"`
	IsActive        *bool                     `json:"is_active,omitempty"`
	DeliveryOptions domain.DeliveryOptions    `json:"delivery_options"`
}

type ActivateRequest struct {
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

type ScheduleList struct {
	Schedules []domain.ReportSchedule `json:"schedules"`
}

type RunList struct {
	Runs []domain.RunRecord `json:"runs"`
}
