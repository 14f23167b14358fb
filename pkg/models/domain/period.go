package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// TenantID identifies the company every query is scoped to.
type TenantID int64

// DateRange is an inclusive range of calendar days. Start and End are
// truncated to midnight UTC.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDay(start), End: truncateDay(end)}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidRange, r.Start.Format(dateLayout), r.End.Format(dateLayout))
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: bad start date %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: bad end date %q", ErrInvalidRange, end)
	}
	return NewDateRange(s, e)
}

// MustDateRange is NewDateRange for literals known to be ordered.
func MustDateRange(start, end time.Time) DateRange {
	r, err := NewDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: empty bound", ErrInvalidRange)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidRange, r.Start.Format(dateLayout), r.End.Format(dateLayout))
	}
	return nil
}

// Days is the inclusive number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the range of the same length ending the day before Start.
func (r DateRange) Previous() DateRange {
	end := r.Start.AddDate(0, 0, -1)
	return DateRange{
		Start: end.AddDate(0, 0, -(r.Days() - 1)),
		End:   end,
	}
}

// Bounds returns the half-open [from, to) instants covering the range, the
// shape every SQL predicate in the repo uses.
func (r DateRange) Bounds() (time.Time, time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

func (r DateRange) Contains(t time.Time) bool {
	from, to := r.Bounds()
	return !t.Before(from) && t.Before(to)
}

func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON writes both bounds as YYYY-MM-DD.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{Start: r.StartDate(), End: r.EndDate()})
}

// UnmarshalJSON accepts YYYY-MM-DD or RFC 3339 bounds.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := parseDay(raw.Start)
	if err != nil {
		return err
	}
	end, err := parseDay(raw.End)
	if err != nil {
		return err
	}
	*r = DateRange{Start: start, End: end}
	return nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRange, s)
	}
	return truncateDay(t), nil
}

func (r DateRange) StartDate() string { return r.Start.Format(dateLayout) }
func (r DateRange) EndDate() string   { return r.End.Format(dateLayout) }

// MonthRange covers the calendar month containing t.
func MonthRange(t time.Time) DateRange {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: first, End: first.AddDate(0, 1, -1)}
}

// QuarterRange covers quarter q (1-4) of year.
func QuarterRange(year, quarter int) (DateRange, error) {
	if quarter < 1 || quarter > 4 {
		return DateRange{}, fmt.Errorf("%w: quarter %d out of 1..4", ErrInvalidRange, quarter)
	}
	first := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: first, End: first.AddDate(0, 3, -1)}, nil
}

// QuarterOf returns the year and quarter containing t.
func QuarterOf(t time.Time) (int, int) {
	return t.Year(), (int(t.Month())-1)/3 + 1
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
