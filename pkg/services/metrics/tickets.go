package metrics

import (
	"context"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

const groupTickets = "tickets"

var ticketFilters = filterColumns{
	client:   "t.client_id",
	assignee: "t.assigned_to",
	priority: "t.priority",
	status:   "t.status",
}

func ticketMetrics() []Definition {
	return []Definition{
		sqlScalar("tickets_created", "Tickets Created", groupTickets, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") + q.filter(ticketFilters)
		}),
		sqlScalar("tickets_resolved", "Tickets Resolved", groupTickets, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.resolved_at") + q.filter(ticketFilters)
		}),
		sqlScalar("open_tickets", "Open Tickets", groupTickets, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.before("t.created_at") +
				` AND t.status NOT IN ('resolved', 'closed')` +
				q.filter(filterColumns{client: "t.client_id", assignee: "t.assigned_to", priority: "t.priority"})
		}),
		sqlScalar("escalated_tickets", "Escalated Tickets", groupTickets, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") +
				` AND t.is_escalated` + q.filter(ticketFilters)
		}),
		sqlScalar("satisfaction_score", "Satisfaction", groupTickets, domain.FormatNumber, func(q *query) string {
			return `SELECT CAST(COALESCE(AVG(t.satisfaction_rating), 0) AS FLOAT8) FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") +
				` AND t.satisfaction_rating IS NOT NULL` + q.filter(ticketFilters)
		}),
		// share of tickets created in the range that are already resolved; 0 with no tickets
		scalarDef("resolution_rate", "Resolution Rate", groupTickets, domain.FormatPercentage,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				timings, err := e.ticketTimings(ctx, req)
				if err != nil {
					return 0, err
				}
				resolved := 0
				for _, t := range timings {
					if t.ResolvedAt != nil {
						resolved++
					}
				}
				return domain.Ratio(float64(resolved), float64(len(timings)), 0), nil
			}),
		scalarDef("avg_resolution_hours", "Avg Resolution Time", groupTickets, domain.FormatHours,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				timings, err := e.ticketTimings(ctx, req)
				if err != nil {
					return 0, err
				}
				var total float64
				var n int
				for _, t := range timings {
					if m, ok := t.ResolutionMinutes(); ok {
						total += m / 60
						n++
					}
				}
				if n == 0 {
					return 0, nil
				}
				return total / float64(n), nil
			}),
		scalarDef("avg_first_response_minutes", "Avg First Response", groupTickets, domain.FormatMinutes,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				timings, err := e.ticketTimings(ctx, req)
				if err != nil {
					return 0, err
				}
				var total float64
				var n int
				for _, t := range timings {
					if m, ok := t.FirstResponseMinutes(); ok {
						total += m
						n++
					}
				}
				if n == 0 {
					return 0, nil
				}
				return total / float64(n), nil
			}),
		// 100 when there is nothing to measure
		scalarDef("sla_compliance", "SLA Compliance", groupTickets, domain.FormatPercentage,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				timings, err := e.ticketTimings(ctx, req)
				if err != nil {
					return 0, err
				}
				if len(timings) == 0 {
					return 100, nil
				}
				policies, err := e.SLAPolicies(ctx, req.Tenant)
				if err != nil {
					return 0, err
				}
				eval := EvaluateSLA(timings, policies, e.now())
				return eval.Overall.OverallCompliance, nil
			}),
		sqlRows("tickets_by_priority", "Tickets by Priority", groupTickets, func(q *query) string {
			return `SELECT t.priority, COUNT(*) AS count FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") +
				q.filter(filterColumns{client: "t.client_id", assignee: "t.assigned_to", status: "t.status"}) +
				` GROUP BY t.priority ORDER BY count DESC, t.priority`
		}),
		sqlRows("tickets_by_status", "Tickets by Status", groupTickets, func(q *query) string {
			return `SELECT t.status, COUNT(*) AS count FROM tickets t WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") +
				q.filter(filterColumns{client: "t.client_id", assignee: "t.assigned_to", priority: "t.priority"}) +
				` GROUP BY t.status ORDER BY count DESC, t.status`
		}),
		sqlRows("technician_workload", "Technician Workload", groupTickets, func(q *query) string {
			return `SELECT u.id AS user_id, u.name AS technician, COUNT(t.id) AS assigned, ` +
				`SUM(CASE WHEN t.resolved_at IS NOT NULL THEN 1 ELSE 0 END) AS resolved, ` +
				`SUM(CASE WHEN t.status NOT IN ('resolved', 'closed') THEN 1 ELSE 0 END) AS open ` +
				`FROM tickets t JOIN users u ON u.id = t.assigned_to AND u.company_id = t.company_id WHERE ` +
				q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") +
				q.filter(filterColumns{client: "t.client_id", priority: "t.priority"}) +
				` GROUP BY u.id, u.name ORDER BY assigned DESC, u.name` + q.limit()
		}),
	}
}
