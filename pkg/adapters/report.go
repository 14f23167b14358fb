package adapters

import (
	"fmt"
	"strconv"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

func MapFormatToUnit(f domain.Format) string {
	switch f {
	case domain.FormatCurrency:
		return "USD"
	case domain.FormatPercentage:
		return "%"
	case domain.FormatHours:
		return "h"
	case domain.FormatMinutes:
		return "min"
	default:
		return ""
	}
}

func describeChange(v domain.MetricValue) string {
	if v.Previous == nil || v.ChangePercent == nil {
		return ""
	}
	return fmt.Sprintf("%+.2f%% vs previous (%s)", *v.ChangePercent, strconv.FormatFloat(*v.Previous, 'f', -1, 64))
}

func MapNamedMetricToDetail(m domain.NamedMetric) domain.ReportDetail {
	label := m.Label
	if label == "" {
		label = m.Name
	}
	return domain.ReportDetail{
		Name:        label,
		Value:       m.Value.Value,
		Unit:        MapFormatToUnit(m.Value.Format),
		Description: describeChange(m.Value),
	}
}

func MapRowSetToTable(title string, rs domain.RowSet) domain.ReportTable {
	rows := make([][]interface{}, len(rs.Rows))
	for i, r := range rs.Rows {
		rows[i] = append([]interface{}(nil), r...)
	}
	return domain.ReportTable{
		Title:   title,
		Columns: append([]string(nil), rs.Columns...),
		Rows:    rows,
	}
}

func MapSectionToReportSection(s domain.Section) domain.ReportSection {
	res := domain.ReportSection{
		Title:   s.Title,
		Details: make([]domain.ReportDetail, 0, len(s.Metrics)),
		Tables:  make([]domain.ReportTable, 0, len(s.Tables)),
	}
	for _, m := range s.Metrics {
		res.Details = append(res.Details, MapNamedMetricToDetail(m))
	}
	for _, t := range s.Tables {
		res.Tables = append(res.Tables, MapRowSetToTable(t.Title, t.RowSet))
	}
	return res
}

func MapBundleToReport(b domain.ReportBundle) domain.Report {
	res := domain.Report{
		Title:       b.Title,
		Subtitle:    fmt.Sprintf("Compared with %s", b.PreviousPeriod),
		TenantID:    b.TenantID,
		Period:      domain.NewTimePeriod(b.Period),
		GeneratedAt: b.GeneratedAt,
		Sections:    make([]domain.ReportSection, 0, len(b.Sections)),
	}
	for _, s := range b.Sections {
		res.Sections = append(res.Sections, MapSectionToReportSection(s))
	}
	return res
}

func MapHealthSummaryToMap(s domain.HealthSummary) map[string]interface{} {
	return map[string]interface{}{
		"total_clients": s.TotalClients,
		"healthy":       s.Healthy,
		"at_risk":       s.AtRisk,
		"average_score": s.AverageScore,
	}
}

func MapScorecardToReport(s domain.HealthScorecard) domain.Report {
	table := domain.ReportTable{
		Title: "Clients",
		Columns: []string{
			"client_id", "client_name", "overall_score", "risk_level",
			"ticket_health", "payment_health", "engagement_health", "growth_health",
		},
		Rows: make([][]interface{}, 0, len(s.Clients)),
	}
	for _, c := range s.Clients {
		table.Rows = append(table.Rows, []interface{}{
			float64(c.ClientID), c.ClientName, c.OverallScore, string(c.RiskLevel),
			c.TicketHealth, c.PaymentHealth, c.EngagementHealth, c.GrowthHealth,
		})
	}
	window := domain.MustDateRange(s.AsOf.AddDate(0, 0, -29), s.AsOf)
	return domain.Report{
		Title:       "Client Health Scorecard",
		Subtitle:    "As of " + s.AsOf.Format("2006-01-02"),
		TenantID:    s.TenantID,
		Period:      domain.NewTimePeriod(window),
		GeneratedAt: s.AsOf,
		Sections: []domain.ReportSection{{
			Title:   "Client Health",
			Summary: MapHealthSummaryToMap(s.Summary),
			Tables:  []domain.ReportTable{table},
		}},
	}
}

func MapQuarterlyReviewToReport(q domain.QuarterlyReview) domain.Report {
	metrics := domain.ReportSection{Title: "Key Metrics", Details: make([]domain.ReportDetail, 0, len(q.Metrics))}
	for _, m := range q.Metrics {
		metrics.Details = append(metrics.Details, MapNamedMetricToDetail(m))
	}

	score := domain.ReportSection{
		Title: "Quarter Score",
		Summary: map[string]interface{}{
			"score": q.Score,
			"grade": string(q.Grade),
		},
	}
	for _, c := range q.Components {
		score.Details = append(score.Details, domain.ReportDetail{
			Name:        c.Name,
			Value:       c.Score,
			Description: fmt.Sprintf("weight %.0f%%, input %s", c.Weight*100, strconv.FormatFloat(c.Input, 'f', -1, 64)),
		})
	}

	sections := []domain.ReportSection{metrics, score}
	if q.TopClients.Len() > 0 {
		sections = append(sections, domain.ReportSection{
			Title:  "Top Clients",
			Tables: []domain.ReportTable{MapRowSetToTable("Top Clients by Revenue", q.TopClients)},
		})
	}
	sections = append(sections,
		domain.ReportSection{Title: "Highlights", Notes: q.Highlights},
		domain.ReportSection{Title: "Concerns", Notes: q.Concerns},
		domain.ReportSection{Title: "Recommendations", Notes: q.Recommendations},
	)

	return domain.Report{
		Title:       fmt.Sprintf("Quarterly Business Review Q%d %d", q.Quarter, q.Year),
		Subtitle:    fmt.Sprintf("Compared with %s", q.PreviousPeriod),
		TenantID:    q.TenantID,
		Period:      domain.NewTimePeriod(q.Period),
		GeneratedAt: q.GeneratedAt,
		Sections:    sections,
	}
}

func mapCompliance(c domain.SLACompliance) map[string]interface{} {
	return map[string]interface{}{
		"tickets":               c.Tickets,
		"response_compliance":   c.ResponseCompliance,
		"resolution_compliance": c.ResolutionCompliance,
		"overall_compliance":    c.OverallCompliance,
	}
}

func MapSLAReportToReport(r domain.SLAReport) domain.Report {
	byPriority := domain.ReportTable{
		Title:   "Compliance by Priority",
		Columns: []string{"priority", "tickets", "response_met", "resolution_met", "overall_compliance"},
		Rows:    make([][]interface{}, 0, len(r.ByPriority)),
	}
	for _, c := range r.ByPriority {
		byPriority.Rows = append(byPriority.Rows, []interface{}{
			c.Priority, float64(c.Tickets), float64(c.ResponseMet), float64(c.ResolutionMet), c.OverallCompliance,
		})
	}

	breaches := domain.ReportTable{
		Title:   "Breaches",
		Columns: []string{"ticket_id", "subject", "client_name", "priority", "kind", "elapsed_minutes", "target_minutes"},
		Rows:    make([][]interface{}, 0, len(r.Breaches)),
	}
	for _, b := range r.Breaches {
		breaches.Rows = append(breaches.Rows, []interface{}{
			float64(b.TicketID), b.Subject, b.ClientName, b.Priority, b.Kind, b.ElapsedMinutes, float64(b.TargetMinutes),
		})
	}

	return domain.Report{
		Title:       "SLA Compliance Report",
		TenantID:    r.TenantID,
		Period:      domain.NewTimePeriod(r.Period),
		GeneratedAt: r.GeneratedAt,
		Sections: []domain.ReportSection{
			{Title: "Overall", Summary: mapCompliance(r.Overall), Tables: []domain.ReportTable{byPriority}},
			{Title: "Breaches", Tables: []domain.ReportTable{breaches}},
		},
	}
}

func MapExecutiveSummaryToReport(s domain.ExecutiveSummary) domain.Report {
	dashboard := MapBundleToReport(s.Dashboard)
	sections := []domain.ReportSection{
		{Title: "Headlines", Notes: s.Headlines},
		{Title: "Client Health", Summary: MapHealthSummaryToMap(s.Health)},
		{Title: "SLA", Summary: mapCompliance(s.SLA)},
	}
	return domain.Report{
		Title:       "Executive Summary",
		TenantID:    s.TenantID,
		Period:      domain.NewTimePeriod(s.Period),
		GeneratedAt: s.GeneratedAt,
		Sections:    append(sections, dashboard.Sections...),
	}
}
