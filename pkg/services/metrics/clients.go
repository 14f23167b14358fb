package metrics

import (
	"context"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

const groupClients = "clients"

func clientMetrics() []Definition {
	return []Definition{
		sqlScalar("active_clients", "Active Clients", groupClients, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM clients c WHERE ` +
				q.tenant("c.company_id") + ` AND ` + q.before("c.created_at") + ` AND c.status = 'active'`
		}),
		sqlScalar("new_clients", "New Clients", groupClients, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM clients c WHERE ` +
				q.tenant("c.company_id") + ` AND ` + q.during("c.created_at")
		}),
		sqlScalar("churned_clients", "Churned Clients", groupClients, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM clients c WHERE ` +
				q.tenant("c.company_id") + ` AND ` + q.during("c.churned_at")
		}),
		// churned during the range over clients on the books when it started
		scalarDef("churn_rate", "Churn Rate", groupClients, domain.FormatPercentage,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				churned, err := e.scalarOf(ctx, "churned_clients", req)
				if err != nil {
					return 0, err
				}
				q := newQuery(req)
				from, _ := req.Range.Bounds()
				text := `SELECT COUNT(*) FROM clients c WHERE ` + q.tenant("c.company_id")
				start := q.arg(from)
				text += ` AND c.created_at < ` + start + ` AND (c.churned_at IS NULL OR c.churned_at >= ` + start + `)`
				base, err := e.queryScalar(ctx, text, q.args...)
				if err != nil {
					return 0, err
				}
				return domain.Ratio(churned, base, 0), nil
			}),
		// whole days between the range end and the most recent ticket,
		// payment or recorded activity
		scalarDef("days_since_activity", "Days Since Activity", groupClients, domain.FormatNumber,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				latest, err := e.latestActivity(ctx, req)
				if err != nil || latest == nil {
					return 0, err
				}
				days := req.Range.End.Sub(truncate(*latest)).Hours() / 24
				if days < 0 {
					return 0, nil
				}
				return float64(int(days)), nil
			}),
		sqlRows("client_directory", "Clients", groupClients, func(q *query) string {
			text := `SELECT c.id AS client_id, c.name AS client_name, c.status FROM clients c WHERE ` +
				q.tenant("c.company_id") + ` AND ` + q.before("c.created_at")
			if q.req.Filters.Status != "" {
				text += ` AND c.status = ` + q.arg(q.req.Filters.Status)
			} else {
				text += ` AND c.status <> 'churned'`
			}
			if q.req.Filters.ClientID != 0 {
				text += ` AND c.id = ` + q.arg(q.req.Filters.ClientID)
			}
			return text + ` ORDER BY c.name, c.id`
		}),
	}
}

func (e *engine) latestActivity(ctx context.Context, req Request) (*time.Time, error) {
	var latest *time.Time
	keep := func(t *time.Time) {
		if t != nil && (latest == nil || t.After(*latest)) {
			latest = t
		}
	}

	q := newQuery(req)
	ticket, err := e.queryTime(ctx, `SELECT MAX(t.created_at) FROM tickets t WHERE `+
		q.tenant("t.company_id")+` AND `+q.before("t.created_at")+q.filter(filterColumns{client: "t.client_id"}), q.args...)
	if err != nil {
		return nil, err
	}
	keep(ticket)

	q = newQuery(req)
	payment, err := e.queryTime(ctx, `SELECT MAX(p.paid_at) FROM payments p WHERE `+
		q.tenant("p.company_id")+` AND `+q.before("p.paid_at")+q.filter(paymentFilters), q.args...)
	if err != nil {
		return nil, err
	}
	keep(payment)

	q = newQuery(req)
	recorded, err := e.queryTime(ctx, `SELECT MAX(COALESCE(c.last_activity_at, c.created_at)) FROM clients c WHERE `+
		q.tenant("c.company_id")+` AND `+q.before("c.created_at")+q.filter(filterColumns{client: "c.id"}), q.args...)
	if err != nil {
		return nil, err
	}
	keep(recorded)

	return latest, nil
}

func truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
