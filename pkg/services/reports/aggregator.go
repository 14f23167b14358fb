package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/cache"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const cacheBucket = "bundle"

// Aggregator composes metric computations into report bundles.
type Aggregator interface {
	Financial(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t FinancialType) (domain.ReportBundle, error)
	Tickets(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t TicketType) (domain.ReportBundle, error)
	Clients(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t ClientType) (domain.ReportBundle, error)
	Assets(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t AssetType) (domain.ReportBundle, error)
	Projects(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t ProjectType) (domain.ReportBundle, error)
	Users(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t UserType) (domain.ReportBundle, error)
	// Dashboard is the cross-domain overview. Any failing section fails the bundle.
	Dashboard(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.ReportBundle, error)
	// Generate dispatches on report type for the domain and dashboard bundles.
	Generate(ctx context.Context, tenant domain.TenantID, rt domain.ReportType, subType string, rng domain.DateRange) (domain.ReportBundle, error)
}

type Options struct {
	Cache        *cache.Cache
	DashboardTTL time.Duration
	ReportTTL    time.Duration
	// Concurrency bounds the sections computed at once
	Concurrency int
	Now         func() time.Time
}

type aggregator struct {
	engine       metrics.Engine
	cache        *cache.Cache
	dashboardTTL time.Duration
	reportTTL    time.Duration
	concurrency  int
	now          func() time.Time
}

func NewAggregator(engine metrics.Engine, opts Options) Aggregator {
	if opts.DashboardTTL == 0 {
		opts.DashboardTTL = 300 * time.Second
	}
	if opts.ReportTTL == 0 {
		opts.ReportTTL = 900 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &aggregator{
		engine:       engine,
		cache:        opts.Cache,
		dashboardTTL: opts.DashboardTTL,
		reportTTL:    opts.ReportTTL,
		concurrency:  opts.Concurrency,
		now:          opts.Now,
	}
}

type bundleSpec struct {
	name     string
	subType  string
	title    string
	sections []sectionSpec
	ttl      time.Duration
}

func (a *aggregator) Financial(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t FinancialType) (domain.ReportBundle, error) {
	var sections []sectionSpec
	switch t {
	case FinancialOverview:
		sections = financialOverview
	case FinancialRevenue:
		sections = financialRevenue
	case FinancialCashFlow:
		sections = financialCashFlow
	case FinancialInvoices:
		sections = financialInvoices
	case FinancialProfitability:
		sections = financialProfitability
	default:
		fallback(ctx, domain.ReportFinancial, string(t))
		t, sections = FinancialOverview, financialOverview
	}
	return a.domainBundle(ctx, tenant, rng, domain.ReportFinancial, string(t), "Financial Report", sections)
}

func (a *aggregator) Tickets(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t TicketType) (domain.ReportBundle, error) {
	var sections []sectionSpec
	switch t {
	case TicketOverview:
		sections = ticketOverview
	case TicketPerformance:
		sections = ticketPerformance
	case TicketSLA:
		sections = ticketSLA
	case TicketWorkload:
		sections = ticketWorkload
	default:
		fallback(ctx, domain.ReportTickets, string(t))
		t, sections = TicketOverview, ticketOverview
	}
	return a.domainBundle(ctx, tenant, rng, domain.ReportTickets, string(t), "Service Desk Report", sections)
}

func (a *aggregator) Clients(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t ClientType) (domain.ReportBundle, error) {
	var sections []sectionSpec
	switch t {
	case ClientOverview:
		sections = clientOverview
	case ClientGrowth:
		sections = clientGrowth
	case ClientRevenue:
		sections = clientRevenue
	default:
		fallback(ctx, domain.ReportClients, string(t))
		t, sections = ClientOverview, clientOverview
	}
	return a.domainBundle(ctx, tenant, rng, domain.ReportClients, string(t), "Client Report", sections)
}

func (a *aggregator) Assets(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t AssetType) (domain.ReportBundle, error) {
	var sections []sectionSpec
	switch t {
	case AssetOverview:
		sections = assetOverview
	case AssetLifecycle:
		sections = assetLifecycle
	default:
		fallback(ctx, domain.ReportAssets, string(t))
		t, sections = AssetOverview, assetOverview
	}
	return a.domainBundle(ctx, tenant, rng, domain.ReportAssets, string(t), "Asset Report", sections)
}

func (a *aggregator) Projects(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t ProjectType) (domain.ReportBundle, error) {
	var sections []sectionSpec
	switch t {
	case ProjectOverview:
		sections = projectOverview
	case ProjectBudget:
		sections = projectBudget
	default:
		fallback(ctx, domain.ReportProjects, string(t))
		t, sections = ProjectOverview, projectOverview
	}
	return a.domainBundle(ctx, tenant, rng, domain.ReportProjects, string(t), "Project Report", sections)
}

func (a *aggregator) Users(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, t UserType) (domain.ReportBundle, error) {
	var sections []sectionSpec
	switch t {
	case UserOverview:
		sections = userOverview
	case UserUtilization:
		sections = userUtilization
	default:
		fallback(ctx, domain.ReportUsers, string(t))
		t, sections = UserOverview, userOverview
	}
	return a.domainBundle(ctx, tenant, rng, domain.ReportUsers, string(t), "Team Report", sections)
}

func (a *aggregator) Dashboard(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.ReportBundle, error) {
	return a.bundle(ctx, tenant, rng, bundleSpec{
		name:     string(domain.ReportDashboard),
		title:    "Dashboard",
		sections: dashboard,
		ttl:      a.dashboardTTL,
	})
}

func (a *aggregator) Generate(ctx context.Context, tenant domain.TenantID, rt domain.ReportType, subType string, rng domain.DateRange) (domain.ReportBundle, error) {
	switch rt {
	case domain.ReportFinancial:
		return a.Financial(ctx, tenant, rng, parseSubType(ctx, rt, subType, ParseFinancialType))
	case domain.ReportTickets:
		return a.Tickets(ctx, tenant, rng, parseSubType(ctx, rt, subType, ParseTicketType))
	case domain.ReportClients:
		return a.Clients(ctx, tenant, rng, parseSubType(ctx, rt, subType, ParseClientType))
	case domain.ReportAssets:
		return a.Assets(ctx, tenant, rng, parseSubType(ctx, rt, subType, ParseAssetType))
	case domain.ReportProjects:
		return a.Projects(ctx, tenant, rng, parseSubType(ctx, rt, subType, ParseProjectType))
	case domain.ReportUsers:
		return a.Users(ctx, tenant, rng, parseSubType(ctx, rt, subType, ParseUserType))
	case domain.ReportDashboard:
		return a.Dashboard(ctx, tenant, rng)
	}
	return domain.ReportBundle{}, fmt.Errorf("%w: %q is not a bundle report", domain.ErrUnknownReportType, rt)
}

func (a *aggregator) domainBundle(
	ctx context.Context,
	tenant domain.TenantID,
	rng domain.DateRange,
	rt domain.ReportType,
	subType, title string,
	sections []sectionSpec,
) (domain.ReportBundle, error) {
	return a.bundle(ctx, tenant, rng, bundleSpec{
		name:     string(rt),
		subType:  subType,
		title:    title + ": " + titleCase(subType),
		sections: sections,
		ttl:      a.reportTTL,
	})
}

func (a *aggregator) bundle(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, spec bundleSpec) (domain.ReportBundle, error) {
	if err := rng.Validate(); err != nil {
		return domain.ReportBundle{}, err
	}
	key := cache.BundleKey(tenant, spec.name, spec.subType, rng)
	return cache.GetOrCompute(ctx, a.cache, cacheBucket, key, spec.ttl, func(ctx context.Context) (domain.ReportBundle, error) {
		began := time.Now()
		sections, err := a.computeSections(ctx, tenant, rng, spec.sections)
		if err != nil {
			return domain.ReportBundle{}, fmt.Errorf("%s bundle: %w", spec.name, err)
		}
		zerolog.Ctx(ctx).Debug().
			Int64("tenant", int64(tenant)).
			Str("bundle", spec.name).
			Str("sub_type", spec.subType).
			Str("range", rng.String()).
			Dur("took", time.Since(began)).
			Msg("bundle computed")
		return domain.ReportBundle{
			Name:           spec.name,
			Title:          spec.title,
			TenantID:       tenant,
			Period:         rng,
			PreviousPeriod: rng.Previous(),
			GeneratedAt:    a.now().UTC(),
			Sections:       sections,
		}, nil
	})
}

// computeSections fans sections out on an errgroup; the first error cancels the rest.
func (a *aggregator) computeSections(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, specs []sectionSpec) ([]domain.Section, error) {
	out := make([]domain.Section, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			s, err := a.computeSection(gctx, tenant, rng, spec)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *aggregator) computeSection(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, spec sectionSpec) (domain.Section, error) {
	s := domain.Section{
		Key:     spec.key,
		Title:   spec.title,
		Metrics: make([]domain.NamedMetric, 0, len(spec.metrics)),
	}
	prev := rng.Previous()

	for _, m := range spec.metrics {
		def, err := a.engine.Definition(m.name)
		if err != nil {
			return domain.Section{}, err
		}
		current, err := a.engine.Scalar(ctx, tenant, m.name, rng, domain.Filters{})
		if err != nil {
			return domain.Section{}, err
		}
		value := domain.NewMetricValue(current, def.Format)
		if m.compare {
			previous, err := a.engine.Scalar(ctx, tenant, m.name, prev, domain.Filters{})
			if err != nil {
				return domain.Section{}, err
			}
			value = domain.Compared(current, previous, def.Format)
		}
		s.Metrics = append(s.Metrics, domain.NamedMetric{Name: m.name, Label: def.Label, Value: value})
	}

	for _, t := range spec.tables {
		def, err := a.engine.Definition(t.name)
		if err != nil {
			return domain.Section{}, err
		}
		rs, err := a.engine.Rows(ctx, tenant, t.name, rng, domain.Filters{Limit: t.limit})
		if err != nil {
			return domain.Section{}, err
		}
		s.Tables = append(s.Tables, domain.Table{Name: t.name, Title: def.Label, RowSet: rs})
	}

	if spec.post != nil {
		spec.post(&s)
	}
	return s, nil
}

func fallback(ctx context.Context, rt domain.ReportType, requested string) {
	zerolog.Ctx(ctx).Warn().
		Str("report_type", string(rt)).
		Str("requested", requested).
		Msg("report_subtype_fallback")
}

// parseSubType resolves raw with parse, logging when it falls back to the
// overview.
func parseSubType[T ~string](ctx context.Context, rt domain.ReportType, raw string, parse func(string) (T, bool)) T {
	v, ok := parse(raw)
	if !ok {
		fallback(ctx, rt, raw)
	}
	return v
}

func titleCase(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
