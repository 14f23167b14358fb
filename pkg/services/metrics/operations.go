package metrics

import (
	"context"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

const (
	groupAssets   = "assets"
	groupProjects = "projects"
	groupUsers    = "users"
)

var (
	assetFilters   = filterColumns{client: "a.client_id", status: "a.status"}
	projectFilters = filterColumns{client: "p.client_id"}
	timeFilters    = filterColumns{assignee: "te.user_id"}
)

func operationsMetrics() []Definition {
	return []Definition{
		sqlScalar("total_assets", "Managed Assets", groupAssets, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM assets a WHERE ` +
				q.tenant("a.company_id") + ` AND ` + q.before("a.created_at") +
				` AND a.status <> 'retired'` + q.filter(assetFilters)
		}),
		// warranties ending between the range start and the warranty window past its end
		scalarDef("warranty_expiring_assets", "Warranties Expiring", groupAssets, domain.FormatNumber,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				q := newQuery(req)
				from, to := req.Range.Bounds()
				text := `SELECT COUNT(*) FROM assets a WHERE ` + q.tenant("a.company_id") +
					` AND a.status <> 'retired'` +
					` AND a.warranty_expires_at >= ` + q.arg(from) +
					` AND a.warranty_expires_at < ` + q.arg(to.Add(e.warranty)) + q.filter(assetFilters)
				return e.queryScalar(ctx, text, q.args...)
			}),
		sqlRows("assets_by_type", "Assets by Type", groupAssets, func(q *query) string {
			return `SELECT a.asset_type, COUNT(*) AS count FROM assets a WHERE ` +
				q.tenant("a.company_id") + ` AND ` + q.before("a.created_at") +
				` AND a.status <> 'retired'` + q.filter(assetFilters) +
				` GROUP BY a.asset_type ORDER BY count DESC, a.asset_type`
		}),

		sqlScalar("active_projects", "Active Projects", groupProjects, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM projects p WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.before("p.created_at") +
				` AND p.status IN ('planning', 'active')` + q.filter(projectFilters)
		}),
		sqlScalar("completed_projects", "Completed Projects", groupProjects, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM projects p WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.during("p.completed_at") + q.filter(projectFilters)
		}),
		sqlScalar("overdue_projects", "Overdue Projects", groupProjects, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM projects p WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.before("p.due_date") +
				` AND p.status NOT IN ('completed', 'cancelled')` + q.filter(projectFilters)
		}),
		sqlScalar("budget_utilization", "Budget Utilization", groupProjects, domain.FormatPercentage, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(p.spent) * 100.0 / NULLIF(SUM(p.budget), 0), 0) AS FLOAT8) FROM projects p WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.before("p.created_at") +
				` AND p.status <> 'cancelled'` + q.filter(projectFilters)
		}),
		sqlRows("project_status", "Projects by Status", groupProjects, func(q *query) string {
			return `SELECT p.status, COUNT(*) AS count, CAST(SUM(p.budget) AS FLOAT8) AS budget, ` +
				`CAST(SUM(p.spent) AS FLOAT8) AS spent FROM projects p WHERE ` +
				q.tenant("p.company_id") + ` AND ` + q.before("p.created_at") + q.filter(projectFilters) +
				` GROUP BY p.status ORDER BY count DESC, p.status`
		}),

		sqlScalar("active_users", "Active Users", groupUsers, domain.FormatNumber, func(q *query) string {
			return `SELECT COUNT(*) FROM users u WHERE ` +
				q.tenant("u.company_id") + ` AND ` + q.before("u.created_at") + ` AND u.is_active`
		}),
		sqlScalar("total_hours", "Hours Logged", groupUsers, domain.FormatHours, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(te.hours), 0) AS FLOAT8) FROM time_entries te WHERE ` +
				q.tenant("te.company_id") + ` AND ` + q.during("te.entry_date") + q.filter(timeFilters)
		}),
		sqlScalar("billable_hours", "Billable Hours", groupUsers, domain.FormatHours, func(q *query) string {
			return `SELECT CAST(COALESCE(SUM(te.hours), 0) AS FLOAT8) FROM time_entries te WHERE ` +
				q.tenant("te.company_id") + ` AND ` + q.during("te.entry_date") +
				` AND te.billable` + q.filter(timeFilters)
		}),
		scalarDef("utilization_rate", "Utilization", groupUsers, domain.FormatPercentage,
			func(ctx context.Context, e *engine, req Request) (float64, error) {
				total, err := e.scalarOf(ctx, "total_hours", req)
				if err != nil {
					return 0, err
				}
				billable, err := e.scalarOf(ctx, "billable_hours", req)
				if err != nil {
					return 0, err
				}
				return domain.Ratio(billable, total, 0), nil
			}),
		sqlRows("hours_by_user", "Hours by User", groupUsers, func(q *query) string {
			return `SELECT u.id AS user_id, u.name AS user_name, CAST(SUM(te.hours) AS FLOAT8) AS total_hours, ` +
				`CAST(SUM(CASE WHEN te.billable THEN te.hours ELSE 0 END) AS FLOAT8) AS billable_hours ` +
				`FROM time_entries te JOIN users u ON u.id = te.user_id AND u.company_id = te.company_id WHERE ` +
				q.tenant("te.company_id") + ` AND ` + q.during("te.entry_date") + q.filter(timeFilters) +
				` GROUP BY u.id, u.name ORDER BY total_hours DESC, u.name` + q.limit()
		}),
	}
}
