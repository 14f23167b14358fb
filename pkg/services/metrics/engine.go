package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Request is one metric evaluation, always scoped to a single tenant.
type Request struct {
	Tenant  domain.TenantID
	Range   domain.DateRange
	Filters domain.Filters
}

type Result struct {
	Name   string
	Kind   Kind
	Format domain.Format
	Scalar float64
	Rows   domain.RowSet
}

// Engine executes named aggregate metrics. Empty result sets yield each
// metric's documented default, never an error.
type Engine interface {
	Compute(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (Result, error)
	Scalar(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (float64, error)
	Rows(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (domain.RowSet, error)
	Definition(name string) (Definition, error)
	Names() []string
	// SLAPolicies returns the tenant's SLA targets, falling back to the configured default
	SLAPolicies(ctx context.Context, tenant domain.TenantID) (domain.SLAPolicies, error)
	TicketTimings(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, filters domain.Filters) ([]TicketTiming, error)
}

type Options struct {
	Registry       Registry
	SLA            domain.SLAPolicy
	Now            func() time.Time
	WarrantyWindow time.Duration
}

type engine struct {
	db       *sql.DB
	registry Registry
	sla      domain.SLAPolicy
	now      func() time.Time
	warranty time.Duration
}

func NewEngine(db *sql.DB, opts Options) (Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if opts.Registry == nil {
		r, err := DefaultRegistry()
		if err != nil {
			return nil, err
		}
		opts.Registry = r
	}
	if opts.SLA.FirstResponseMinutes <= 0 || opts.SLA.ResolutionMinutes <= 0 {
		opts.SLA = domain.DefaultSLAPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WarrantyWindow <= 0 {
		opts.WarrantyWindow = 90 * 24 * time.Hour
	}
	return &engine{
		db:       db,
		registry: opts.Registry,
		sla:      opts.SLA,
		now:      opts.Now,
		warranty: opts.WarrantyWindow,
	}, nil
}

func (e *engine) Compute(
	ctx context.Context,
	tenant domain.TenantID,
	name string,
	rng domain.DateRange,
	filters domain.Filters,
) (Result, error) {
	def, err := e.Definition(name)
	if err != nil {
		return Result{}, err
	}
	if tenant <= 0 {
		return Result{}, fmt.Errorf("metric %s: tenant is required", name)
	}
	if err := rng.Validate(); err != nil {
		return Result{}, err
	}

	req := Request{Tenant: tenant, Range: rng, Filters: filters}
	res := Result{Name: def.Name, Kind: def.Kind, Format: def.Format}

	start := time.Now()
	switch def.Kind {
	case KindRows:
		res.Rows, err = def.rows(ctx, e, req)
	default:
		res.Scalar, err = def.scalar(ctx, e, req)
		res.Scalar = domain.Round(res.Scalar, 2)
	}
	if err != nil {
		return Result{}, wrapSourceError(def.Name, err)
	}

	zerolog.Ctx(ctx).Debug().
		Int64("tenant", int64(tenant)).
		Str("metric", def.Name).
		Str("range", rng.String()).
		Dur("took", time.Since(start)).
		Msg("metric computed")
	return res, nil
}

func (e *engine) Scalar(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (float64, error) {
	def, err := e.Definition(name)
	if err != nil {
		return 0, err
	}
	if def.Kind != KindScalar {
		return 0, fmt.Errorf("%w: %s is a row-set metric", domain.ErrUnknownMetric, name)
	}
	res, err := e.Compute(ctx, tenant, name, rng, filters)
	if err != nil {
		return 0, err
	}
	return res.Scalar, nil
}

func (e *engine) Rows(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (domain.RowSet, error) {
	def, err := e.Definition(name)
	if err != nil {
		return domain.RowSet{}, err
	}
	if def.Kind != KindRows {
		return domain.RowSet{}, fmt.Errorf("%w: %s is a scalar metric", domain.ErrUnknownMetric, name)
	}
	res, err := e.Compute(ctx, tenant, name, rng, filters)
	if err != nil {
		return domain.RowSet{}, err
	}
	return res.Rows, nil
}

func (e *engine) Definition(name string) (Definition, error) {
	def, ok := e.registry.Lookup(name)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, name)
	}
	return def, nil
}

func (e *engine) Names() []string {
	return e.registry.Names()
}

// scalarOf evaluates another registered scalar metric with the same scope.
func (e *engine) scalarOf(ctx context.Context, name string, req Request) (float64, error) {
	def, err := e.Definition(name)
	if err != nil {
		return 0, err
	}
	if def.scalar == nil {
		return 0, fmt.Errorf("%w: %s is a row-set metric", domain.ErrUnknownMetric, name)
	}
	return def.scalar(ctx, e, req)
}

func wrapSourceError(metric string, err error) error {
	var dse *domain.DataSourceError
	if errors.As(err, &dse) ||
		errors.Is(err, domain.ErrUnknownMetric) ||
		errors.Is(err, domain.ErrInvalidRange) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.DataSourceError{Metric: metric, Err: err}
}
