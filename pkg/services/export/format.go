package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// formatValue renders a detail value with its unit for human-readable formats.
func formatValue(v interface{}, unit string) string {
	var s string
	switch t := v.(type) {
	case nil:
		return "-"
	case float64:
		s = strconv.FormatFloat(t, 'f', 2, 64)
		if t == float64(int64(t)) && unit != "USD" {
			s = strconv.FormatInt(int64(t), 10)
		}
	case time.Time:
		s = t.Format("2006-01-02")
	default:
		s = fmt.Sprint(v)
	}
	switch unit {
	case "":
		return s
	case "%":
		return s + "%"
	case "USD":
		return "$" + s
	}
	return s + " " + unit
}

// formatCell renders a table cell.
func formatCell(v interface{}) string {
	if v == nil {
		return ""
	}
	return domain.CellString(v)
}

func periodLine(p domain.TimePeriod) string {
	return fmt.Sprintf("%s to %s (%d days)", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"), p.Duration)
}
