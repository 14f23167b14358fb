package executive

import (
	"context"
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/cache"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/store/duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	endOfJan = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	january  = domain.MustDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), endOfJan)
	tenant   = domain.TenantID(duckdb.DemoTenant)
)

func setupComposer(t *testing.T, c *cache.Cache) Composer {
	t.Helper()

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, duckdb.SeedDemo(context.Background(), db))

	engine, err := metrics.NewEngine(db, metrics.Options{Now: fixedNow})
	require.NoError(t, err)
	agg := reports.NewAggregator(engine, reports.Options{Cache: c, Now: fixedNow})
	return NewComposer(engine, agg, Options{Cache: c, Now: fixedNow})
}

func TestComposer_ClientHealth(t *testing.T) {
	c := setupComposer(t, nil)
	ctx := context.Background()

	acme, err := c.ClientHealth(ctx, tenant, 1, endOfJan)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", acme.ClientName)
	assert.Equal(t, domain.HealthInputs{
		RecentTickets:     2,
		EscalatedTickets:  1,
		OverdueInvoices:   0,
		DaysSinceActivity: 11,
		RevenueGrowth:     -25,
	}, acme.Inputs)
	assert.Equal(t, 75.0, acme.TicketHealth)
	assert.Equal(t, 78.0, acme.EngagementHealth)
	assert.Equal(t, 25.0, acme.GrowthHealth)
	assert.Equal(t, 78.1, acme.OverallScore)
	assert.Equal(t, domain.RiskMedium, acme.RiskLevel)

	_, err = c.ClientHealth(ctx, tenant, 99, endOfJan)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// clients of another tenant are invisible
	_, err = c.ClientHealth(ctx, tenant, 10, endOfJan)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestComposer_HealthScorecard(t *testing.T) {
	c := setupComposer(t, nil)

	card, err := c.HealthScorecard(context.Background(), tenant, endOfJan)
	require.NoError(t, err)

	require.Len(t, card.Clients, 2)
	assert.Equal(t, "Acme Corp", card.Clients[0].ClientName)
	assert.Equal(t, 78.1, card.Clients[0].OverallScore)
	assert.Equal(t, "Globex", card.Clients[1].ClientName)
	assert.Equal(t, 80.6, card.Clients[1].OverallScore)
	assert.Equal(t, domain.RiskLow, card.Clients[1].RiskLevel)

	assert.Equal(t, domain.HealthSummary{
		TotalClients: 2,
		Healthy:      1,
		AtRisk:       0,
		AverageScore: 79.35,
	}, card.Summary)
}

func TestComposer_HealthScorecardEmptyTenant(t *testing.T) {
	c := setupComposer(t, nil)

	card, err := c.HealthScorecard(context.Background(), 42, endOfJan)
	require.NoError(t, err)
	assert.Empty(t, card.Clients)
	assert.Equal(t, domain.HealthSummary{}, card.Summary)
}

func TestComposer_SLAReport(t *testing.T) {
	c := setupComposer(t, nil)

	r, err := c.SLAReport(context.Background(), tenant, january)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Overall.Tickets)
	assert.Equal(t, 33.33, r.Overall.OverallCompliance)
	assert.Len(t, r.Breaches, 3)
	assert.Equal(t, fixedNow(), r.GeneratedAt)

	_, err = c.SLAReport(context.Background(), tenant, domain.DateRange{})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestComposer_QuarterlyReview(t *testing.T) {
	c := setupComposer(t, nil)

	qbr, err := c.QuarterlyReview(context.Background(), tenant, 2024, 1)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01..2024-03-31", qbr.Period.String())
	assert.Equal(t, "2023-10-02..2023-12-31", qbr.PreviousPeriod.String())
	require.Len(t, qbr.Components, 4)
	assert.Equal(t, 75.0, qbr.Components[0].Score)
	assert.Equal(t, CompositeScore(qbr.Components), qbr.Score)
	assert.Equal(t, LetterGrade(qbr.Score), qbr.Grade)

	assert.NotNil(t, qbr.Highlights)
	assert.NotNil(t, qbr.Concerns)
	assert.NotNil(t, qbr.Recommendations)
	assert.Contains(t, qbr.Highlights, "Revenue grew 25.0% over the previous period")
	assert.Contains(t, qbr.Concerns, "SLA compliance fell to 33.3%")

	require.NotZero(t, qbr.TopClients.Len())
	assert.Equal(t, "Acme Corp", qbr.TopClients.Rows[0][qbr.TopClients.ColumnIndex("client_name")])

	_, err = c.QuarterlyReview(context.Background(), tenant, 2024, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestComposer_ExecutiveSummary(t *testing.T) {
	c := setupComposer(t, cache.New(cache.NewMemoryStore(), nil))

	s, err := c.ExecutiveSummary(context.Background(), tenant, january)
	require.NoError(t, err)

	assert.Len(t, s.Dashboard.Sections, 4)
	assert.Equal(t, 2, s.Health.TotalClients)
	assert.Equal(t, 33.33, s.SLA.OverallCompliance)
	require.NotEmpty(t, s.Headlines)
	assert.Equal(t, "Revenue $10,000.00 (+25.0% vs previous period)", s.Headlines[0])

	again, err := c.ExecutiveSummary(context.Background(), tenant, january)
	require.NoError(t, err)
	assert.Equal(t, s.Headlines, again.Headlines)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", formatMoney(0))
	assert.Equal(t, "$999.50", formatMoney(999.5))
	assert.Equal(t, "$1,234,567.89", formatMoney(1234567.891))
	assert.Equal(t, "-$12,000.00", formatMoney(-12000))
}
