package executive

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/cache"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	cacheBucket = "executive"
	// recentDays is the trailing window client health is measured over
	recentDays = 30
)

// Composer builds scored executive reports on top of the metric engine and
// the report bundles.
type Composer interface {
	ClientHealth(ctx context.Context, tenant domain.TenantID, clientID int64, asOf time.Time) (domain.ClientHealthScore, error)
	HealthScorecard(ctx context.Context, tenant domain.TenantID, asOf time.Time) (domain.HealthScorecard, error)
	QuarterlyReview(ctx context.Context, tenant domain.TenantID, year, quarter int) (domain.QuarterlyReview, error)
	SLAReport(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.SLAReport, error)
	ExecutiveSummary(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.ExecutiveSummary, error)
}

type Options struct {
	Cache       *cache.Cache
	TTL         time.Duration
	Concurrency int
	Now         func() time.Time
}

type composer struct {
	engine      metrics.Engine
	aggregator  reports.Aggregator
	cache       *cache.Cache
	ttl         time.Duration
	concurrency int
	now         func() time.Time
}

func NewComposer(engine metrics.Engine, aggregator reports.Aggregator, opts Options) Composer {
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &composer{
		engine:      engine,
		aggregator:  aggregator,
		cache:       opts.Cache,
		ttl:         opts.TTL,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// recentWindow is the trailing window of recentDays ending on asOf.
func recentWindow(asOf time.Time) (domain.DateRange, error) {
	end := asOf.UTC()
	return domain.NewDateRange(end.AddDate(0, 0, -(recentDays - 1)), end)
}

func (c *composer) ClientHealth(ctx context.Context, tenant domain.TenantID, clientID int64, asOf time.Time) (domain.ClientHealthScore, error) {
	window, err := recentWindow(asOf)
	if err != nil {
		return domain.ClientHealthScore{}, err
	}
	rs, err := c.engine.Rows(ctx, tenant, "client_directory", window, domain.Filters{ClientID: clientID})
	if err != nil {
		return domain.ClientHealthScore{}, err
	}
	if rs.Len() == 0 {
		return domain.ClientHealthScore{}, fmt.Errorf("client %d: %w", clientID, domain.ErrNotFound)
	}
	return c.scoreClient(ctx, tenant, window, clientID, domain.CellString(rs.Rows[0][rs.ColumnIndex("client_name")]))
}

func (c *composer) scoreClient(ctx context.Context, tenant domain.TenantID, window domain.DateRange, clientID int64, name string) (domain.ClientHealthScore, error) {
	f := domain.Filters{ClientID: clientID}
	scalar := func(metric string) (float64, error) {
		return c.engine.Scalar(ctx, tenant, metric, window, f)
	}

	recent, err := scalar("tickets_created")
	if err != nil {
		return domain.ClientHealthScore{}, err
	}
	escalated, err := scalar("escalated_tickets")
	if err != nil {
		return domain.ClientHealthScore{}, err
	}
	overdue, err := scalar("overdue_invoice_count")
	if err != nil {
		return domain.ClientHealthScore{}, err
	}
	idle, err := scalar("days_since_activity")
	if err != nil {
		return domain.ClientHealthScore{}, err
	}
	growth, err := scalar("revenue_growth")
	if err != nil {
		return domain.ClientHealthScore{}, err
	}

	score := ScoreHealth(domain.HealthInputs{
		RecentTickets:     int(recent),
		EscalatedTickets:  int(escalated),
		OverdueInvoices:   int(overdue),
		DaysSinceActivity: int(idle),
		RevenueGrowth:     growth,
	})
	score.ClientID = clientID
	score.ClientName = name
	return score, nil
}

func (c *composer) HealthScorecard(ctx context.Context, tenant domain.TenantID, asOf time.Time) (domain.HealthScorecard, error) {
	window, err := recentWindow(asOf)
	if err != nil {
		return domain.HealthScorecard{}, err
	}
	key := cache.BundleKey(tenant, string(domain.ReportHealthScorecard), "", window)
	return cache.GetOrCompute(ctx, c.cache, cacheBucket, key, c.ttl, func(ctx context.Context) (domain.HealthScorecard, error) {
		rs, err := c.engine.Rows(ctx, tenant, "client_directory", window, domain.Filters{})
		if err != nil {
			return domain.HealthScorecard{}, err
		}
		idIdx, nameIdx := rs.ColumnIndex("client_id"), rs.ColumnIndex("client_name")

		scores := make([]domain.ClientHealthScore, rs.Len())
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for i, row := range rs.Rows {
			id, _ := domain.CellFloat(row[idIdx])
			name := domain.CellString(row[nameIdx])
			g.Go(func() error {
				s, err := c.scoreClient(gctx, tenant, window, int64(id), name)
				if err != nil {
					return fmt.Errorf("score client %d: %w", int64(id), err)
				}
				scores[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return domain.HealthScorecard{}, err
		}

		sort.SliceStable(scores, func(i, j int) bool {
			if scores[i].OverallScore != scores[j].OverallScore {
				return scores[i].OverallScore < scores[j].OverallScore
			}
			return scores[i].ClientName < scores[j].ClientName
		})

		return domain.HealthScorecard{
			TenantID: tenant,
			AsOf:     window.End,
			Clients:  scores,
			Summary:  summarize(scores),
		}, nil
	})
}

func summarize(scores []domain.ClientHealthScore) domain.HealthSummary {
	s := domain.HealthSummary{TotalClients: len(scores)}
	if len(scores) == 0 {
		return s
	}
	var total float64
	for _, sc := range scores {
		total += sc.OverallScore
		switch {
		case sc.OverallScore >= healthyScore:
			s.Healthy++
		case sc.OverallScore < atRiskScore:
			s.AtRisk++
		}
	}
	s.AverageScore = domain.Round(total/float64(len(scores)), 2)
	return s
}

func (c *composer) QuarterlyReview(ctx context.Context, tenant domain.TenantID, year, quarter int) (domain.QuarterlyReview, error) {
	period, err := domain.QuarterRange(year, quarter)
	if err != nil {
		return domain.QuarterlyReview{}, err
	}
	key := cache.BundleKey(tenant, string(domain.ReportQuarterlyReview), "", period)
	return cache.GetOrCompute(ctx, c.cache, cacheBucket, key, c.ttl, func(ctx context.Context) (domain.QuarterlyReview, error) {
		var financial, service, clients domain.ReportBundle
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			financial, err = c.aggregator.Financial(gctx, tenant, period, reports.FinancialOverview)
			return err
		})
		g.Go(func() (err error) {
			service, err = c.aggregator.Tickets(gctx, tenant, period, reports.TicketOverview)
			return err
		})
		g.Go(func() (err error) {
			clients, err = c.aggregator.Clients(gctx, tenant, period, reports.ClientOverview)
			return err
		})
		if err := g.Wait(); err != nil {
			return domain.QuarterlyReview{}, err
		}

		pick := picker{}
		pick.from(financial, "financial_metrics", "total_revenue", "revenue_growth", "collection_rate")
		pick.from(service, "service_metrics", "tickets_created", "resolution_rate", "sla_compliance", "satisfaction_score")
		pick.from(clients, "client_metrics", "active_clients", "new_clients", "churn_rate")

		components := QuarterComponents(
			pick.value("revenue_growth"),
			pick.value("sla_compliance"),
			pick.value("satisfaction_score"),
			pick.value("churn_rate"),
		)
		score := CompositeScore(components)

		qbr := domain.QuarterlyReview{
			TenantID:       tenant,
			Year:           year,
			Quarter:        quarter,
			Period:         period,
			PreviousPeriod: period.Previous(),
			Metrics:        pick.metrics,
			Components:     components,
			Score:          score,
			Grade:          LetterGrade(score),
			GeneratedAt:    c.now().UTC(),
		}
		if section, ok := clients.Section("client_metrics"); ok {
			if t, ok := section.Table("top_clients_by_revenue"); ok {
				qbr.TopClients = t.RowSet
			}
		}
		qbr.Highlights, qbr.Concerns, qbr.Recommendations = narrate(pick)

		zerolog.Ctx(ctx).Debug().
			Int64("tenant", int64(tenant)).
			Str("quarter", fmt.Sprintf("%dQ%d", year, quarter)).
			Float64("score", score).
			Str("grade", string(qbr.Grade)).
			Msg("quarterly review composed")
		return qbr, nil
	})
}

// picker collects named metrics out of bundles in a fixed order.
type picker struct {
	metrics []domain.NamedMetric
}

func (p *picker) from(b domain.ReportBundle, section string, names ...string) {
	s, ok := b.Section(section)
	if !ok {
		return
	}
	for _, name := range names {
		for _, m := range s.Metrics {
			if m.Name == name {
				p.metrics = append(p.metrics, m)
			}
		}
	}
}

func (p *picker) value(name string) float64 {
	for _, m := range p.metrics {
		if m.Name == name {
			return m.Value.Value
		}
	}
	return 0
}

func narrate(p picker) (highlights, concerns, recommendations []string) {
	highlights, concerns, recommendations = []string{}, []string{}, []string{}

	growth := p.value("revenue_growth")
	switch {
	case growth > 0:
		highlights = append(highlights, fmt.Sprintf("Revenue grew %.1f%% over the previous period", growth))
	case growth < 0:
		concerns = append(concerns, fmt.Sprintf("Revenue declined %.1f%% against the previous period", -growth))
		recommendations = append(recommendations, "Review pricing and upsell opportunities with top clients")
	}

	sla := p.value("sla_compliance")
	switch {
	case sla >= 95:
		highlights = append(highlights, fmt.Sprintf("SLA compliance held at %.1f%%", sla))
	case sla < 90:
		concerns = append(concerns, fmt.Sprintf("SLA compliance fell to %.1f%%", sla))
		recommendations = append(recommendations, "Review staffing and escalation paths for breached tickets")
	}

	sat := p.value("satisfaction_score")
	switch {
	case sat >= 4.5:
		highlights = append(highlights, fmt.Sprintf("Customer satisfaction averaged %.1f out of 5", sat))
	case sat > 0 && sat < 4:
		concerns = append(concerns, fmt.Sprintf("Customer satisfaction averaged only %.1f out of 5", sat))
		recommendations = append(recommendations, "Follow up on low-rated tickets with the affected clients")
	}

	churn := p.value("churn_rate")
	switch {
	case churn == 0:
		highlights = append(highlights, "No client churn in the period")
	case churn > 5:
		concerns = append(concerns, fmt.Sprintf("Client churn reached %.1f%%", churn))
		recommendations = append(recommendations, "Start retention reviews with at-risk clients")
	}

	if n := p.value("new_clients"); n > 0 {
		highlights = append(highlights, "Added "+strconv.Itoa(int(n))+" new clients")
	}
	if rate := p.value("collection_rate"); rate < 90 {
		concerns = append(concerns, fmt.Sprintf("Only %.1f%% of invoiced revenue was collected", rate))
		recommendations = append(recommendations, "Tighten collections on overdue invoices")
	}
	return highlights, concerns, recommendations
}

func (c *composer) SLAReport(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.SLAReport, error) {
	if err := rng.Validate(); err != nil {
		return domain.SLAReport{}, err
	}
	key := cache.BundleKey(tenant, string(domain.ReportSLA), "", rng)
	return cache.GetOrCompute(ctx, c.cache, cacheBucket, key, c.ttl, func(ctx context.Context) (domain.SLAReport, error) {
		policies, err := c.engine.SLAPolicies(ctx, tenant)
		if err != nil {
			return domain.SLAReport{}, err
		}
		timings, err := c.engine.TicketTimings(ctx, tenant, rng, domain.Filters{})
		if err != nil {
			return domain.SLAReport{}, err
		}

		now := c.now().UTC()
		eval := metrics.EvaluateSLA(timings, policies, now)
		breaches := eval.Breaches
		if breaches == nil {
			breaches = []domain.SLABreach{}
		}
		return domain.SLAReport{
			TenantID:    tenant,
			Period:      rng,
			Policies:    policies,
			Overall:     eval.Overall,
			ByPriority:  eval.ByPriority,
			Breaches:    breaches,
			GeneratedAt: now,
		}, nil
	})
}

func (c *composer) ExecutiveSummary(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.ExecutiveSummary, error) {
	if err := rng.Validate(); err != nil {
		return domain.ExecutiveSummary{}, err
	}
	key := cache.BundleKey(tenant, string(domain.ReportExecutive), "", rng)
	return cache.GetOrCompute(ctx, c.cache, cacheBucket, key, c.ttl, func(ctx context.Context) (domain.ExecutiveSummary, error) {
		var (
			dash      domain.ReportBundle
			scorecard domain.HealthScorecard
			sla       domain.SLAReport
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			dash, err = c.aggregator.Dashboard(gctx, tenant, rng)
			return err
		})
		g.Go(func() (err error) {
			scorecard, err = c.HealthScorecard(gctx, tenant, rng.End)
			return err
		})
		g.Go(func() (err error) {
			sla, err = c.SLAReport(gctx, tenant, rng)
			return err
		})
		if err := g.Wait(); err != nil {
			return domain.ExecutiveSummary{}, err
		}

		return domain.ExecutiveSummary{
			TenantID:    tenant,
			Period:      rng,
			Dashboard:   dash,
			Health:      scorecard.Summary,
			SLA:         sla.Overall,
			Headlines:   headlines(dash, scorecard.Summary, sla.Overall),
			GeneratedAt: c.now().UTC(),
		}, nil
	})
}

func headlines(dash domain.ReportBundle, health domain.HealthSummary, sla domain.SLACompliance) []string {
	out := []string{}
	if revenue, ok := dash.Metric("financial_metrics", "total_revenue"); ok {
		line := "Revenue " + formatMoney(revenue.Value)
		if revenue.ChangePercent != nil {
			line += fmt.Sprintf(" (%+.1f%% vs previous period)", *revenue.ChangePercent)
		}
		out = append(out, line)
	}
	out = append(out, fmt.Sprintf("SLA compliance %.1f%% across %d tickets", sla.OverallCompliance, sla.Tickets))
	out = append(out, fmt.Sprintf("%d of %d clients at risk, average health %.1f",
		health.AtRisk, health.TotalClients, health.AverageScore))
	return out
}

// formatMoney renders an amount as $1,234,567.89.
func formatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
