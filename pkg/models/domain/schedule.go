package domain

import (
	"fmt"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, s)
}

// Advance moves t forward by one interval of f. It is always applied to the
// previous next_run_at, never to the wall clock. Monthly steps clamp to the
// last day of a shorter month, so a run on the 31st lands on Feb 29 and keeps
// that day afterwards.
func (f Frequency) Advance(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return addMonths(t, 1)
	case FrequencyQuarterly:
		return addMonths(t, 3)
	}
	return t.AddDate(0, 0, 1)
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(t.Day(), last)-1)
}

// Window returns the reporting range a run at t covers by default. It ends
// the day before t; monthly windows start on the first of that day's month and
// quarterly windows two months earlier.
func (f Frequency) Window(t time.Time) DateRange {
	end := truncateDay(t).AddDate(0, 0, -1)
	month := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var start time.Time
	switch f {
	case FrequencyWeekly:
		start = end.AddDate(0, 0, -6)
	case FrequencyMonthly:
		start = month
	case FrequencyQuarterly:
		start = month.AddDate(0, -2, 0)
	default:
		start = end
	}
	return DateRange{Start: start, End: end}
}

type ReportType string

const (
	ReportFinancial       ReportType = "financial"
	ReportTickets         ReportType = "tickets"
	ReportClients         ReportType = "clients"
	ReportAssets          ReportType = "assets"
	ReportProjects        ReportType = "projects"
	ReportUsers           ReportType = "users"
	ReportDashboard       ReportType = "dashboard"
	ReportQuarterlyReview ReportType = "quarterly_review"
	ReportHealthScorecard ReportType = "health_scorecard"
	ReportSLA             ReportType = "sla"
	ReportExecutive       ReportType = "executive_summary"
)

var reportTypes = []ReportType{
	ReportFinancial, ReportTickets, ReportClients, ReportAssets, ReportProjects, ReportUsers,
	ReportDashboard, ReportQuarterlyReview, ReportHealthScorecard, ReportSLA, ReportExecutive,
}

func ReportTypes() []ReportType {
	return append([]ReportType(nil), reportTypes...)
}

func ParseReportType(s string) (ReportType, error) {
	for _, rt := range reportTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReportType, s)
}

type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
	ExportText ExportFormat = "text"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case ExportPDF, ExportCSV, ExportXLSX, ExportJSON, ExportYAML, ExportText:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExportFormat, s)
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Recipient is an email address or a chat webhook destination.
type Recipient struct {
	Channel Channel `json:"channel" yaml:"channel"`
	Address string  `json:"address" yaml:"address"`
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
}

func (r Recipient) String() string {
	return string(r.Channel) + ":" + r.Address
}

type DeliveryOptions struct {
	Subject      string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
	AttachFile   bool   `json:"attach_file" yaml:"attach_file"`
	IncludeLink  bool   `json:"include_link" yaml:"include_link"`
	PublishEvent bool   `json:"publish_event" yaml:"publish_event"`
}

// ScheduleParameters tune what a scheduled run generates.
type ScheduleParameters struct {
	SubType   string `json:"sub_type,omitempty" yaml:"sub_type,omitempty"`
	Period    string `json:"period,omitempty" yaml:"period,omitempty"`
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	ClientID  int64  `json:"client_id,omitempty" yaml:"client_id,omitempty"`
}

type ReportSchedule struct {
	ID              int64              `json:"id"`
	TenantID        TenantID           `json:"tenant_id"`
	Name            string             `json:"name"`
	ReportType      ReportType         `json:"report_type"`
	Frequency       Frequency          `json:"frequency"`
	Parameters      ScheduleParameters `json:"parameters"`
	Recipients      []Recipient        `json:"recipients"`
	Format          ExportFormat       `json:"format"`
	NextRunAt       time.Time          `json:"next_run_at"`
	LastRunAt       *time.Time         `json:"last_run_at,omitempty"`
	IsActive        bool               `json:"is_active"`
	DeliveryOptions DeliveryOptions    `json:"delivery_options"`
	FailureCount    int                `json:"failure_count"`
	LockedUntil     *time.Time         `json:"locked_until,omitempty"`
	LastError       *string            `json:"last_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (s ReportSchedule) Validate() error {
	if s.TenantID <= 0 {
		return fmt.Errorf("%w: tenant is required", ErrInvalidSchedule)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if _, err := ParseReportType(string(s.ReportType)); err != nil {
		return err
	}
	if _, err := ParseFrequency(string(s.Frequency)); err != nil {
		return err
	}
	if _, err := ParseExportFormat(string(s.Format)); err != nil {
		return err
	}
	if len(s.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidSchedule)
	}
	for _, r := range s.Recipients {
		if r.Address == "" || (r.Channel != ChannelEmail && r.Channel != ChannelChat) {
			return fmt.Errorf("%w: bad recipient %s", ErrInvalidSchedule, r)
		}
	}
	if s.NextRunAt.IsZero() {
		return fmt.Errorf("%w: next_run_at is required", ErrInvalidSchedule)
	}
	return nil
}

// Due reports whether the scheduler should pick s up at now.
func (s ReportSchedule) Due(now time.Time) bool {
	if !s.IsActive || s.NextRunAt.After(now) {
		return false
	}
	return s.LockedUntil == nil || !s.LockedUntil.After(now)
}

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryPartial DeliveryStatus = "partial"
	DeliveryFailed  DeliveryStatus = "failed"
)

type RecipientError struct {
	Recipient Recipient `json:"recipient"`
	Error     string    `json:"error"`
}

type DeliveryResult struct {
	Status             DeliveryStatus   `json:"status"`
	RecipientsNotified int              `json:"recipients_notified"`
	Errors             []RecipientError `json:"errors,omitempty"`
}

// NewDeliveryResult derives the status from the per-recipient outcome.
func NewDeliveryResult(notified int, errs []RecipientError) DeliveryResult {
	res := DeliveryResult{RecipientsNotified: notified, Errors: errs}
	switch {
	case len(errs) == 0:
		res.Status = DeliverySuccess
	case notified > 0:
		res.Status = DeliveryPartial
	default:
		res.Status = DeliveryFailed
	}
	return res
}

// ExportedFile is what the export collaborator hands to delivery.
type ExportedFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Content  []byte `json:"-"`
}

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// ScheduleResult is the outcome of processing one due schedule.
type ScheduleResult struct {
	ScheduleID int64           `json:"schedule_id"`
	TenantID   TenantID        `json:"tenant_id"`
	Status     RunStatus       `json:"status"`
	Period     DateRange       `json:"period"`
	File       *ExportedFile   `json:"file,omitempty"`
	Delivery   *DeliveryResult `json:"delivery,omitempty"`
	NextRunAt  time.Time       `json:"next_run_at"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

type ScheduleError struct {
	ScheduleID int64    `json:"schedule_id"`
	TenantID   TenantID `json:"tenant_id"`
	Message    string   `json:"message"`
}

// BatchOutcome accumulates one tick of due-schedule processing.
type BatchOutcome struct {
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	Due          int              `json:"due"`
	Processed    int              `json:"processed"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	Skipped      int              `json:"skipped"`
	Results      []ScheduleResult `json:"results"`
	ErrorDetails []ScheduleError  `json:"error_details"`
}

func (b *BatchOutcome) Add(res ScheduleResult) {
	b.Results = append(b.Results, res)
	switch res.Status {
	case RunSkipped:
		b.Skipped++
		return
	case RunFailed:
		b.Failed++
		b.ErrorDetails = append(b.ErrorDetails, ScheduleError{
			ScheduleID: res.ScheduleID,
			TenantID:   res.TenantID,
			Message:    res.Error,
		})
	default:
		b.Succeeded++
	}
	b.Processed++
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID                 string    `json:"id"`
	ScheduleID         int64     `json:"schedule_id"`
	TenantID           TenantID  `json:"tenant_id"`
	Status             RunStatus `json:"status"`
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	RecipientsNotified int       `json:"recipients_notified"`
	FilePath           string    `json:"file_path,omitempty"`
	Error              *string   `json:"error,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}
