package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMetric       = errors.New("unknown metric")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrUnknownReportType   = errors.New("unknown report type")
	ErrUnknownExportFormat = errors.New("unknown export format")
	ErrInvalidWidgetConfig = errors.New("invalid widget config")
	ErrInvalidSchedule     = errors.New("invalid report schedule")
	ErrNotFound            = errors.New("not found")
	// ErrScheduleClaimed is returned when another scheduler tick already owns the schedule.
	ErrScheduleClaimed = errors.New("schedule already claimed")
)

// DataSourceError wraps a failure of the underlying data store.
type DataSourceError struct {
	Metric string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source error computing %s: %v", e.Metric, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// ScheduleGenerationError is recorded when a scheduled report could not be produced.
type ScheduleGenerationError struct {
	ScheduleID int64
	ReportType string
	Err        error
}

func (e *ScheduleGenerationError) Error() string {
	return fmt.Sprintf("schedule %d: generate %s: %v", e.ScheduleID, e.ReportType, e.Err)
}

func (e *ScheduleGenerationError) Unwrap() error { return e.Err }

// DeliveryError is recorded when no recipient could be reached, or some failed.
type DeliveryError struct {
	ScheduleID int64
	Result     DeliveryResult
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("schedule %d: delivery %s (%d notified, %d failed)",
		e.ScheduleID, e.Result.Status, e.Result.RecipientsNotified, len(e.Result.Errors))
}
