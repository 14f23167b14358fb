package adapters

import (
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var january = domain.MustDateRange(
	time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
)

func TestMapBundleToReport(t *testing.T) {
	bundle := domain.ReportBundle{
		Name:           "financial",
		Title:          "Financial Report: Overview",
		TenantID:       1,
		Period:         january,
		PreviousPeriod: january.Previous(),
		Sections: []domain.Section{{
			Key:   "financial_metrics",
			Title: "Financial Overview",
			Metrics: []domain.NamedMetric{
				{Name: "total_revenue", Label: "Total Revenue", Value: domain.Compared(10000, 8000, domain.FormatCurrency)},
				{Name: "revenue_growth", Value: domain.NewMetricValue(25, domain.FormatPercentage)},
			},
			Tables: []domain.Table{{
				Name:   "revenue_by_month",
				Title:  "Revenue by Month",
				RowSet: domain.RowSet{Columns: []string{"month", "revenue"}, Rows: [][]any{{"2024-01-01", 10000.0}}},
			}},
		}},
	}

	r := MapBundleToReport(bundle)
	assert.Equal(t, "Financial Report: Overview", r.Title)
	assert.Equal(t, "Compared with 2023-12-01..2023-12-31", r.Subtitle)
	assert.Equal(t, 31, r.Period.Duration)
	require.Len(t, r.Sections, 1)

	details := r.Sections[0].Details
	assert.Equal(t, domain.ReportDetail{
		Name: "Total Revenue", Value: 10000.0, Unit: "USD", Description: "+25.00% vs previous (8000)",
	}, details[0])
	assert.Equal(t, "revenue_growth", details[1].Name)
	assert.Equal(t, "%", details[1].Unit)
	assert.Empty(t, details[1].Description)

	table := r.Sections[0].Tables[0]
	assert.Equal(t, "Revenue by Month", table.Title)
	assert.Equal(t, [][]interface{}{{"2024-01-01", 10000.0}}, table.Rows)

	// the report owns its rows
	table.Rows[0][1] = 0.0
	assert.Equal(t, 10000.0, bundle.Sections[0].Tables[0].Rows[0][1])
}

func TestMapQuarterlyReviewToReport(t *testing.T) {
	q := domain.QuarterlyReview{
		TenantID: 1, Year: 2024, Quarter: 1,
		Period:     january,
		Score:      55.17,
		Grade:      "D",
		Components: []domain.ScoreComponent{{Name: "service_quality", Weight: 0.4, Input: 33.33, Score: 33.33}},
		Highlights: []string{"Revenue grew"},
		Concerns:   []string{},
	}
	r := MapQuarterlyReviewToReport(q)
	assert.Equal(t, "Quarterly Business Review Q1 2024", r.Title)

	titles := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		titles[i] = s.Title
	}
	assert.Equal(t, []string{"Key Metrics", "Quarter Score", "Highlights", "Concerns", "Recommendations"}, titles)
	assert.Equal(t, "D", r.Sections[1].Summary["grade"])
	assert.Equal(t, "weight 40%, input 33.33", r.Sections[1].Details[0].Description)
}

func TestMapSLAReportToReport(t *testing.T) {
	r := MapSLAReportToReport(domain.SLAReport{
		TenantID: 1,
		Period:   january,
		Overall:  domain.SLACompliance{Tickets: 3, OverallCompliance: 33.33},
		Breaches: []domain.SLABreach{{TicketID: 302, Subject: "Printer offline", Kind: "first_response", ElapsedMinutes: 180, TargetMinutes: 60}},
	})
	assert.Equal(t, 33.33, r.Sections[0].Summary["overall_compliance"])
	breaches := r.Sections[1].Tables[0]
	require.Len(t, breaches.Rows, 1)
	assert.Equal(t, 302.0, breaches.Rows[0][0])
}

func TestMapScorecardToReport(t *testing.T) {
	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	r := MapScorecardToReport(domain.HealthScorecard{
		TenantID: 1,
		AsOf:     asOf,
		Clients:  []domain.ClientHealthScore{{ClientID: 1, ClientName: "Acme Corp", OverallScore: 78.1, RiskLevel: domain.RiskMedium}},
		Summary:  domain.HealthSummary{TotalClients: 1},
	})
	assert.Equal(t, 30, r.Period.Duration)
	assert.Equal(t, "medium", r.Sections[0].Tables[0].Rows[0][3])
	assert.Equal(t, 1, r.Sections[0].Summary["total_clients"])
}

func TestMapFormatToUnit(t *testing.T) {
	assert.Equal(t, "USD", MapFormatToUnit(domain.FormatCurrency))
	assert.Equal(t, "h", MapFormatToUnit(domain.FormatHours))
	assert.Equal(t, "min", MapFormatToUnit(domain.FormatMinutes))
	assert.Empty(t, MapFormatToUnit(domain.FormatNumber))
}
