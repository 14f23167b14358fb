package metrics

import (
	"context"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

const groupFinancial = "financial"

var (
	paymentFilters = filterColumns{client: "p.client_id"}
	invoiceFilters = filterColumns{client: "i.client_id", status: "i.status"}
)

func financialMetrics() []Definition {
	return []Definition{
		sqlScalar("total_revenue", "Total Revenue", groupFinancial, domain.FormatCurrency, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(p.amount), 0) AS FLOAT8) FROM payments p WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.during("p.paid_at") + q.filter(paymentFilters)
		}),
		sqlScalar("invoiced_amount", "Invoiced", groupFinancial, domain.FormatCurrency, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(i.amount), 0) AS FLOAT8) FROM invoices i WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.during("i.issued_at") +
				` AND i.status <> 'cancelled'` + q.filter(invoiceFilters)
		}),
		sqlScalar("outstanding_amount", "Outstanding", groupFinancial, domain.FormatCurrency, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(i.amount), 0) AS FLOAT8) FROM invoices i WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.before("i.issued_at") +
				` AND i.status IN ('sent', 'overdue')` + q.filter(invoiceFilters)
		}),
		sqlScalar("overdue_amount", "Overdue", groupFinancial, domain.FormatCurrency, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(i.amount), 0) AS FLOAT8) FROM invoices i WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.before("i.due_at") +
				` AND i.status IN ('sent', 'overdue')` + q.filter(invoiceFilters)
		}),
		sqlScalar("overdue_invoice_count", "Overdue Invoices", groupFinancial, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM invoices i WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.before("i.due_at") +
				` AND i.status IN ('sent', 'overdue')` + q.filter(invoiceFilters)
		}),
		sqlScalar("paid_invoice_count", "Paid Invoices", groupFinancial, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM invoices i WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.during("i.paid_at") +
				` AND i.status = 'paid'` + q.filter(filterColumns{client: "i.client_id"})
		}),
		sqlScalar("average_invoice_value", "Average Invoice", groupFinancial, domain.FormatCurrency, func(q *query) string {
			return `SELECT CAST(COALESCE(AVG(i.amount), 0) AS FLOAT8) FROM invoices i WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.during("i.issued_at") +
				` AND i.status <> 'cancelled'` + q.filter(invoiceFilters)
		}),
		sqlScalar("recurring_revenue", "Recurring Revenue", groupFinancial, domain.FormatCurrency, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(p.amount), 0) AS FLOAT8) FROM payments p ` +
				`JOIN invoices i ON i.id = p.invoice_id AND i.company_id = p.company_id WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.during("p.paid_at") +
				` AND i.is_recurring` + q.filter(paymentFilters)
		}),
		// collected / invoiced; nothing invoiced counts as fully collected
		scalarDef("collection_rate", "Collection Rate", groupFinancial, domain.FormatPercentage,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				collected, err := e.scalarOf(ctx, "total_revenue", req)
				if err != nil {
					return 0, err
				}
				invoiced, err := e.scalarOf(ctx, "invoiced_amount", req)
				if err != nil {
					return 0, err
				}
				return domain.Clamp(domain.Ratio(collected, invoiced, 100), 0, 100), nil
			}),
		// revenue against the previous period of equal length; 0 when that was 0
		scalarDef("revenue_growth", "Revenue Growth", groupFinancial, domain.FormatPercentage,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				current, err := e.scalarOf(ctx, "total_revenue", req)
				if err != nil {
					return 0, err
				}
				prevReq := req
				prevReq.Range = req.Range.Previous()
				previous, err := e.scalarOf(ctx, "total_revenue", prevReq)
				if err != nil {
					return 0, err
				}
				return domain.GrowthPercent(current, previous), nil
			}),
		sqlRows("revenue_by_month", "Revenue by Month", groupFinancial, func(q *query) string {
			return `SELECT date_trunc('month', p.paid_at) AS month, CAST(SUM(p.amount) AS FLOAT8) AS revenue ` +
				`FROM payments p WHERE ` + q.tenant("p.company_id") + ` AND ` + q.during("p.paid_at") +
				q.filter(paymentFilters) + ` GROUP BY 1 ORDER BY 1`
		}),
		sqlRows("top_clients_by_revenue", "Top Clients by Revenue", groupFinancial, func(q *query) string {
			return `SELECT c.id AS client_id, c.name AS client_name, CAST(SUM(p.amount) AS FLOAT8) AS revenue ` +
				`FROM payments p JOIN clients c ON c.id = p.client_id AND c.company_id = p.company_id WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.during("p.paid_at") +
				` GROUP BY c.id, c.name ORDER BY revenue DESC, c.name` + q.limit()
		}),
		sqlRows("overdue_invoices", "Overdue Invoices", groupFinancial, func(q *query) string {
			return `SELECT i.number, c.name AS client_name, CAST(i.amount AS FLOAT8) AS amount, i.due_at ` +
				`FROM invoices i JOIN clients c ON c.id = i.client_id AND c.company_id = i.company_id WHERE ` +
				q.tenant("i.company_id") + ` AND ` + q.before("i.due_at") +
				` AND i.status IN ('sent', 'overdue')` + q.filter(filterColumns{client: "i.client_id"}) +
				` ORDER BY i.due_at, i.number` + q.limit()
		}, addDaysOverdue),
	}
}

// addDaysOverdue appends how many whole days each invoice is past due as of
// the range end. Computed here so the SQL stays dialect-neutral.
func addDaysOverdue(rs *domain.RowSet, req Request) {
	idx := rs.ColumnIndex("due_at")
	if idx < 0 {
		return
	}
	_, asOf := req.Range.Bounds()
	rs.Columns = append(rs.Columns, "days_overdue")
	for i, row := range rs.Rows {
		days := 0.0
		if s, ok := row[idx].(string); ok {
			if due, err := parseCellTime(s); err == nil {
				days = float64(int(asOf.Sub(due).Hours() / 24))
			}
		}
		rs.Rows[i] = append(row, days)
	}
}
