package reports

import "github.com/de-tools/msp-atlas/pkg/models/domain"

type metricSpec struct {
	name string
	// compare attaches the previous-period value and trend
	compare bool
}

type tableSpec struct {
	name  string
	limit int
}

type sectionSpec struct {
	key     string
	title   string
	metrics []metricSpec
	tables  []tableSpec
	// post derives extra metrics from the ones already computed
	post func(*domain.Section)
}

func cmp(name string) metricSpec  { return metricSpec{name: name, compare: true} }
func flat(name string) metricSpec { return metricSpec{name: name} }

func table(name string, limit int) tableSpec { return tableSpec{name: name, limit: limit} }

var (
	financialOverview = []sectionSpec{{
		key:   "financial_metrics",
		title: "Financial Overview",
		metrics: []metricSpec{
			cmp("total_revenue"), cmp("invoiced_amount"), flat("outstanding_amount"),
			flat("overdue_amount"), cmp("collection_rate"), flat("revenue_growth"),
		},
		tables: []tableSpec{table("revenue_by_month", 0), table("top_clients_by_revenue", 5)},
	}}

	financialRevenue = []sectionSpec{{
		key:   "revenue",
		title: "Revenue",
		metrics: []metricSpec{
			cmp("total_revenue"), cmp("recurring_revenue"), flat("revenue_growth"), cmp("average_invoice_value"),
		},
		tables: []tableSpec{table("revenue_by_month", 0), table("top_clients_by_revenue", 10)},
	}}

	financialCashFlow = []sectionSpec{{
		key:   "cash_flow",
		title: "Cash Flow",
		metrics: []metricSpec{
			cmp("total_revenue"), cmp("invoiced_amount"), flat("outstanding_amount"),
			flat("overdue_amount"), cmp("collection_rate"),
		},
		tables: []tableSpec{table("revenue_by_month", 0)},
	}}

	financialInvoices = []sectionSpec{{
		key:   "invoices",
		title: "Invoices",
		metrics: []metricSpec{
			cmp("invoiced_amount"), cmp("paid_invoice_count"), cmp("average_invoice_value"),
			flat("overdue_invoice_count"), flat("overdue_amount"),
		},
		tables: []tableSpec{table("overdue_invoices", 20)},
	}}

	financialProfitability = []sectionSpec{{
		key:     "profitability",
		title:   "Recurring vs One-off Revenue",
		metrics: []metricSpec{cmp("total_revenue"), cmp("recurring_revenue")},
		tables:  []tableSpec{table("top_clients_by_revenue", 10)},
		post:    addRevenueMix,
	}}

	ticketOverview = []sectionSpec{{
		key:   "service_metrics",
		title: "Service Desk",
		metrics: []metricSpec{
			cmp("tickets_created"), cmp("tickets_resolved"), flat("open_tickets"), cmp("resolution_rate"),
			cmp("avg_resolution_hours"), cmp("sla_compliance"), cmp("satisfaction_score"),
		},
		tables: []tableSpec{table("tickets_by_priority", 0), table("tickets_by_status", 0)},
	}}

	ticketPerformance = []sectionSpec{{
		key:   "performance",
		title: "Service Performance",
		metrics: []metricSpec{
			cmp("avg_first_response_minutes"), cmp("avg_resolution_hours"), cmp("resolution_rate"),
			cmp("satisfaction_score"), cmp("escalated_tickets"),
		},
	}}

	ticketSLA = []sectionSpec{{
		key:   "sla",
		title: "SLA",
		metrics: []metricSpec{
			cmp("sla_compliance"), cmp("avg_first_response_minutes"), cmp("avg_resolution_hours"), flat("escalated_tickets"),
		},
		tables: []tableSpec{table("tickets_by_priority", 0)},
	}}

	ticketWorkload = []sectionSpec{{
		key:     "workload",
		title:   "Workload",
		metrics: []metricSpec{flat("open_tickets"), cmp("tickets_created")},
		tables:  []tableSpec{table("technician_workload", 20), table("tickets_by_status", 0)},
	}}

	clientOverview = []sectionSpec{{
		key:   "client_metrics",
		title: "Clients",
		metrics: []metricSpec{
			cmp("active_clients"), cmp("new_clients"), cmp("churned_clients"), cmp("churn_rate"),
		},
		tables: []tableSpec{table("top_clients_by_revenue", 10)},
	}}

	clientGrowth = []sectionSpec{{
		key:   "growth",
		title: "Client Growth",
		metrics: []metricSpec{
			cmp("new_clients"), cmp("churned_clients"), cmp("churn_rate"), cmp("active_clients"), flat("revenue_growth"),
		},
	}}

	clientRevenue = []sectionSpec{{
		key:     "client_revenue",
		title:   "Revenue by Client",
		metrics: []metricSpec{cmp("total_revenue"), cmp("recurring_revenue")},
		tables:  []tableSpec{table("top_clients_by_revenue", 20)},
	}}

	assetOverview = []sectionSpec{{
		key:     "asset_metrics",
		title:   "Assets",
		metrics: []metricSpec{cmp("total_assets"), flat("warranty_expiring_assets")},
		tables:  []tableSpec{table("assets_by_type", 0)},
	}}

	assetLifecycle = []sectionSpec{{
		key:     "lifecycle",
		title:   "Asset Lifecycle",
		metrics: []metricSpec{cmp("warranty_expiring_assets"), flat("total_assets")},
		tables:  []tableSpec{table("assets_by_type", 0)},
	}}

	projectOverview = []sectionSpec{{
		key:   "project_metrics",
		title: "Projects",
		metrics: []metricSpec{
			cmp("active_projects"), cmp("completed_projects"), flat("overdue_projects"), cmp("budget_utilization"),
		},
		tables: []tableSpec{table("project_status", 0)},
	}}

	projectBudget = []sectionSpec{{
		key:     "budget",
		title:   "Project Budgets",
		metrics: []metricSpec{cmp("budget_utilization"), flat("overdue_projects")},
		tables:  []tableSpec{table("project_status", 0)},
	}}

	userOverview = []sectionSpec{{
		key:   "team_metrics",
		title: "Team",
		metrics: []metricSpec{
			cmp("active_users"), cmp("total_hours"), cmp("billable_hours"), cmp("utilization_rate"),
		},
		tables: []tableSpec{table("hours_by_user", 20)},
	}}

	userUtilization = []sectionSpec{{
		key:     "utilization",
		title:   "Utilization",
		metrics: []metricSpec{cmp("utilization_rate"), cmp("billable_hours"), cmp("total_hours")},
		tables:  []tableSpec{table("hours_by_user", 20), table("technician_workload", 20)},
	}}

	dashboard = []sectionSpec{
		{
			key:     "financial_metrics",
			title:   "Financial",
			metrics: []metricSpec{cmp("total_revenue"), flat("revenue_growth"), cmp("collection_rate"), flat("outstanding_amount")},
		},
		{
			key:     "service_metrics",
			title:   "Service",
			metrics: []metricSpec{cmp("tickets_created"), flat("open_tickets"), cmp("sla_compliance"), cmp("satisfaction_score")},
		},
		{
			key:     "client_metrics",
			title:   "Clients",
			metrics: []metricSpec{cmp("active_clients"), cmp("new_clients"), cmp("churn_rate")},
		},
		{
			key:     "team_metrics",
			title:   "Team",
			metrics: []metricSpec{cmp("utilization_rate"), cmp("billable_hours")},
		},
	}
)

// addRevenueMix splits revenue into recurring and one-off parts.
func addRevenueMix(s *domain.Section) {
	total, ok1 := s.Metric("total_revenue")
	recurring, ok2 := s.Metric("recurring_revenue")
	if !ok1 || !ok2 {
		return
	}

	oneOff := domain.NewMetricValue(total.Value-recurring.Value, domain.FormatCurrency)
	if total.Previous != nil && recurring.Previous != nil {
		oneOff = domain.Compared(total.Value-recurring.Value, *total.Previous-*recurring.Previous, domain.FormatCurrency)
	}
	share := domain.NewMetricValue(domain.Ratio(recurring.Value, total.Value, 0), domain.FormatPercentage)

	s.Metrics = append(s.Metrics,
		domain.NamedMetric{Name: "one_off_revenue", Label: "One-off Revenue", Value: oneOff},
		domain.NamedMetric{Name: "recurring_share", Label: "Recurring Share", Value: share},
	)
}
