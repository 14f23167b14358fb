package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// Named periods accepted in schedule parameters.
const (
	PeriodLast7Days       = "last_7_days"
	PeriodLast30Days      = "last_30_days"
	PeriodPreviousMonth   = "previous_month"
	PeriodPreviousQuarter = "previous_quarter"
)

// ResolvePeriod picks the reporting range of a run at t: explicit dates win,
// then a named period, then the frequency window ending the day before t.
func ResolvePeriod(s domain.ReportSchedule, t time.Time) (domain.DateRange, error) {
	p := s.Parameters
	if p.StartDate != "" || p.EndDate != "" {
		return domain.ParseDateRange(p.StartDate, p.EndDate)
	}

	day := t.UTC()
	today := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	switch strings.ToLower(strings.TrimSpace(p.Period)) {
	case "":
		return s.Frequency.Window(t), nil
	case PeriodLast7Days:
		return domain.NewDateRange(yesterday.AddDate(0, 0, -6), yesterday)
	case PeriodLast30Days:
		return domain.NewDateRange(yesterday.AddDate(0, 0, -29), yesterday)
	case PeriodPreviousMonth:
		return domain.MonthRange(today.AddDate(0, 0, -today.Day())), nil
	case PeriodPreviousQuarter:
		year, quarter := domain.QuarterOf(today)
		if quarter == 1 {
			return domain.QuarterRange(year-1, 4)
		}
		return domain.QuarterRange(year, quarter-1)
	}
	return domain.DateRange{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidSchedule, p.Period)
}

// backoff is the retry delay after the n-th consecutive failure.
func backoff(base, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return min(d, max)
}
