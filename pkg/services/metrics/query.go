package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

const defaultRowLimit = 10

// filterColumns maps the generic filters onto a table's columns. An empty
// column means the filter does not apply to that metric.
type filterColumns struct {
	client   string
	assignee string
	priority string
	status   string
}

// query accumulates positional arguments. Placeholders use the $n form,
// which both DuckDB and Postgres accept. tenant() must be called first.
type query struct {
	req  Request
	args []any
}

func newQuery(req Request) *query {
	return &query{req: req}
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) tenant(col string) string {
	return col + " = " + q.arg(int64(q.req.Tenant))
}

func (q *query) during(col string) string {
	from, to := q.req.Range.Bounds()
	return col + " >= " + q.arg(from) + " AND " + col + " < " + q.arg(to)
}

func (q *query) before(col string) string {
	_, to := q.req.Range.Bounds()
	return col + " < " + q.arg(to)
}

func (q *query) filter(cols filterColumns) string {
	var sb strings.Builder
	f := q.req.Filters
	if cols.client != "" && f.ClientID != 0 {
		sb.WriteString(" AND " + cols.client + " = " + q.arg(f.ClientID))
	}
	if cols.assignee != "" && f.AssignedTo != 0 {
		sb.WriteString(" AND " + cols.assignee + " = " + q.arg(f.AssignedTo))
	}
	if cols.priority != "" && f.Priority != "" {
		sb.WriteString(" AND " + cols.priority + " = " + q.arg(f.Priority))
	}
	if cols.status != "" && f.Status != "" {
		sb.WriteString(" AND " + cols.status + " = " + q.arg(f.Status))
	}
	return sb.String()
}

func (q *query) limit() string {
	n := q.req.Filters.Limit
	if n <= 0 {
		n = defaultRowLimit
	}
	return " LIMIT " + q.arg(n)
}

func (e *engine) queryScalar(ctx context.Context, text string, args ...any) (float64, error) {
	var v sql.NullFloat64
	err := e.db.QueryRowContext(ctx, text, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Float64, nil
}

func (e *engine) queryTime(ctx context.Context, text string, args ...any) (*time.Time, error) {
	var v sql.NullTime
	err := e.db.QueryRowContext(ctx, text, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	t := v.Time.UTC()
	return &t, nil
}

func (e *engine) queryRows(ctx context.Context, text string, args ...any) (domain.RowSet, error) {
	rows, err := e.db.QueryContext(ctx, text, args...)
	if err != nil {
		return domain.RowSet{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.RowSet{}, fmt.Errorf("read columns: %w", err)
	}

	rs := domain.RowSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.RowSet{}, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(cols))
		for i, v := range raw {
			row[i] = normalize(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.RowSet{}, err
	}
	return rs, nil
}

// normalize reduces driver values to float64, string or nil.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case int16:
		return float64(t)
	case int8:
		return float64(t)
	case int:
		return float64(t)
	case uint64:
		return float64(t)
	case uint32:
		return float64(t)
	case uint16:
		return float64(t)
	case uint8:
		return float64(t)
	case bool:
		if t {
			return 1.0
		}
		return 0.0
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		t = t.UTC()
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case *big.Int:
		f, _ := new(big.Float).SetInt(t).Float64()
		return f
	case interface{ Float64() float64 }:
		return t.Float64()
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func parseCellTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
