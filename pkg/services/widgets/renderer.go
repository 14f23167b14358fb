package widgets

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/de-tools/msp-atlas/pkg/cache"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/rs/zerolog"
)

const cacheBucket = "widget"

// Renderer turns widget configs into typed payloads. Every payload is cached
// under a hash of its kind, tenant and full config.
type Renderer interface {
	KPI(ctx context.Context, tenant domain.TenantID, cfg domain.KPIConfig) (domain.KPIPayload, error)
	Chart(ctx context.Context, tenant domain.TenantID, cfg domain.ChartConfig) (domain.ChartPayload, error)
	Table(ctx context.Context, tenant domain.TenantID, cfg domain.TableConfig) (domain.TablePayload, error)
	Gauge(ctx context.Context, tenant domain.TenantID, cfg domain.GaugeConfig) (domain.GaugePayload, error)
	StatList(ctx context.Context, tenant domain.TenantID, cfg domain.StatListConfig) (domain.StatListPayload, error)
	Progress(ctx context.Context, tenant domain.TenantID, cfg domain.ProgressConfig) (domain.ProgressPayload, error)
	Alert(ctx context.Context, tenant domain.TenantID, cfg domain.AlertConfig) (domain.AlertPayload, error)
	Render(ctx context.Context, tenant domain.TenantID, cfg domain.WidgetConfig) (domain.WidgetPayload, error)
}

type renderer struct {
	engine metrics.Engine
	cache  *cache.Cache
}

// NewRenderer builds a Renderer. A nil cache disables caching.
func NewRenderer(engine metrics.Engine, c *cache.Cache) Renderer {
	return &renderer{engine: engine, cache: c}
}

func (r *renderer) Render(ctx context.Context, tenant domain.TenantID, cfg domain.WidgetConfig) (domain.WidgetPayload, error) {
	switch c := cfg.(type) {
	case domain.KPIConfig:
		return r.KPI(ctx, tenant, c)
	case domain.ChartConfig:
		return r.Chart(ctx, tenant, c)
	case domain.TableConfig:
		return r.Table(ctx, tenant, c)
	case domain.GaugeConfig:
		return r.Gauge(ctx, tenant, c)
	case domain.StatListConfig:
		return r.StatList(ctx, tenant, c)
	case domain.ProgressConfig:
		return r.Progress(ctx, tenant, c)
	case domain.AlertConfig:
		return r.Alert(ctx, tenant, c)
	case nil:
		return nil, fmt.Errorf("%w: missing widget config", domain.ErrInvalidWidgetConfig)
	}
	return nil, fmt.Errorf("%w: unsupported widget kind %q", domain.ErrInvalidWidgetConfig, cfg.Kind())
}

// cached validates cfg and serves the payload from cache when possible.
func cached[T any](ctx context.Context, r *renderer, tenant domain.TenantID, cfg domain.WidgetConfig, build func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := cfg.Validate(); err != nil {
		return zero, err
	}
	key, err := cache.WidgetKey(cfg.Kind(), tenant, cfg)
	if err != nil {
		return zero, err
	}

	ctx = zerolog.Ctx(ctx).With().
		Int64("tenant", int64(tenant)).
		Str("widget", string(cfg.Kind())).
		Logger().WithContext(ctx)

	return cache.GetOrCompute(ctx, r.cache, cacheBucket, key, cfg.TTL(), build)
}

func (r *renderer) KPI(ctx context.Context, tenant domain.TenantID, cfg domain.KPIConfig) (domain.KPIPayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.KPIPayload, error) {
		def, err := r.engine.Definition(cfg.Metric)
		if err != nil {
			return domain.KPIPayload{}, err
		}
		current, err := r.engine.Scalar(ctx, tenant, cfg.Metric, cfg.Range, cfg.Filters)
		if err != nil {
			return domain.KPIPayload{}, err
		}
		previous, err := r.engine.Scalar(ctx, tenant, cfg.Metric, cfg.Range.Previous(), cfg.Filters)
		if err != nil {
			return domain.KPIPayload{}, err
		}

		cmp := domain.Compared(current, previous, def.Format)
		delta := domain.Round(current-previous, 2)
		p := domain.KPIPayload{
			Title:         titleOr(cfg.Title, def.Label),
			Value:         cmp.Value,
			Previous:      *cmp.Previous,
			Delta:         delta,
			ChangePercent: *cmp.ChangePercent,
			Direction:     cmp.Trend,
			Trend:         domain.TrendSignalFor(delta, cfg.GoodDirection),
			Format:        def.Format,
			Target:        cfg.Target,
		}
		if cfg.Target != nil && *cfg.Target != 0 {
			progress := domain.Ratio(current, *cfg.Target, 0)
			p.TargetProgress = &progress
		}
		return p, nil
	})
}

func (r *renderer) Chart(ctx context.Context, tenant domain.TenantID, cfg domain.ChartConfig) (domain.ChartPayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.ChartPayload, error) {
		def, err := r.engine.Definition(cfg.Metric)
		if err != nil {
			return domain.ChartPayload{}, err
		}
		rs, err := r.engine.Rows(ctx, tenant, cfg.Metric, cfg.Range, cfg.Filters)
		if err != nil {
			return domain.ChartPayload{}, err
		}

		labelIdx, err := columnIndex(rs, cfg.LabelColumn)
		if err != nil {
			return domain.ChartPayload{}, err
		}
		valueIdx := make([]int, len(cfg.ValueColumns))
		for i, col := range cfg.ValueColumns {
			if valueIdx[i], err = columnIndex(rs, col); err != nil {
				return domain.ChartPayload{}, err
			}
		}

		p := domain.ChartPayload{
			Title:     titleOr(cfg.Title, def.Label),
			ChartType: cfg.ChartType,
			Labels:    make([]string, 0, rs.Len()),
			Datasets:  make([]domain.Dataset, len(cfg.ValueColumns)),
		}
		for i, col := range cfg.ValueColumns {
			p.Datasets[i] = domain.Dataset{Label: col, Data: make([]float64, 0, rs.Len())}
		}
		for _, row := range rs.Rows {
			p.Labels = append(p.Labels, domain.CellString(row[labelIdx]))
			for i, idx := range valueIdx {
				v, _ := domain.CellFloat(row[idx])
				p.Datasets[i].Data = append(p.Datasets[i].Data, v)
			}
		}
		return p, nil
	})
}

func (r *renderer) Table(ctx context.Context, tenant domain.TenantID, cfg domain.TableConfig) (domain.TablePayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.TablePayload, error) {
		def, err := r.engine.Definition(cfg.Metric)
		if err != nil {
			return domain.TablePayload{}, err
		}
		rs, err := r.engine.Rows(ctx, tenant, cfg.Metric, cfg.Range, cfg.Filters)
		if err != nil {
			return domain.TablePayload{}, err
		}

		columns := slices.Clone(cfg.Columns)
		if len(columns) == 0 {
			columns = make([]domain.ColumnSpec, len(rs.Columns))
			for i, c := range rs.Columns {
				columns[i] = domain.ColumnSpec{Key: c, Label: c}
			}
		}
		idx := make([]int, len(columns))
		for i, c := range columns {
			if idx[i], err = columnIndex(rs, c.Key); err != nil {
				return domain.TablePayload{}, err
			}
			if columns[i].Label == "" {
				columns[i].Label = c.Key
			}
		}

		rows := rs.Rows
		var pagination *domain.Pagination
		if cfg.PerPage > 0 {
			page := max(cfg.Page, 1)
			total := len(rows)
			pagination = &domain.Pagination{
				Page:       page,
				PerPage:    cfg.PerPage,
				Total:      total,
				TotalPages: int(math.Ceil(float64(total) / float64(cfg.PerPage))),
			}
			from := min((page-1)*cfg.PerPage, total)
			to := min(from+cfg.PerPage, total)
			rows = rows[from:to]
		}

		p := domain.TablePayload{
			Title:      titleOr(cfg.Title, def.Label),
			Columns:    columns,
			Rows:       make([][]any, 0, len(rows)),
			Pagination: pagination,
		}
		for _, row := range rows {
			out := make([]any, len(idx))
			for i, j := range idx {
				out[i] = row[j]
			}
			p.Rows = append(p.Rows, out)
		}
		return p, nil
	})
}

func (r *renderer) Gauge(ctx context.Context, tenant domain.TenantID, cfg domain.GaugeConfig) (domain.GaugePayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.GaugePayload, error) {
		def, err := r.engine.Definition(cfg.Metric)
		if err != nil {
			return domain.GaugePayload{}, err
		}
		value, err := r.engine.Scalar(ctx, tenant, cfg.Metric, cfg.Range, cfg.Filters)
		if err != nil {
			return domain.GaugePayload{}, err
		}

		pct := domain.Clamp(domain.Ratio(value, cfg.Max, 0), 0, 100)
		ranges := cfg.Thresholds
		if ranges == nil {
			ranges = []domain.ThresholdRange{}
		}
		return domain.GaugePayload{
			Title:      titleOr(cfg.Title, def.Label),
			Value:      value,
			Max:        cfg.Max,
			Percentage: pct,
			Color:      domain.ColorFor(pct, cfg.Thresholds, cfg.FallbackColor),
			Ranges:     ranges,
			Format:     def.Format,
		}, nil
	})
}

func (r *renderer) StatList(ctx context.Context, tenant domain.TenantID, cfg domain.StatListConfig) (domain.StatListPayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.StatListPayload, error) {
		p := domain.StatListPayload{Title: cfg.Title, Items: make([]domain.StatEntry, 0, len(cfg.Items))}
		for _, it := range cfg.Items {
			def, err := r.engine.Definition(it.Metric)
			if err != nil {
				return domain.StatListPayload{}, err
			}
			v, err := r.engine.Scalar(ctx, tenant, it.Metric, cfg.Range, it.Filters)
			if err != nil {
				return domain.StatListPayload{}, err
			}
			p.Items = append(p.Items, domain.StatEntry{
				Label:  titleOr(it.Label, def.Label),
				Value:  v,
				Format: def.Format,
			})
		}
		return p, nil
	})
}

func (r *renderer) Progress(ctx context.Context, tenant domain.TenantID, cfg domain.ProgressConfig) (domain.ProgressPayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.ProgressPayload, error) {
		p := domain.ProgressPayload{Title: cfg.Title, Items: make([]domain.ProgressEntry, 0, len(cfg.Items))}
		for _, it := range cfg.Items {
			def, err := r.engine.Definition(it.Metric)
			if err != nil {
				return domain.ProgressPayload{}, err
			}
			current, err := r.engine.Scalar(ctx, tenant, it.Metric, cfg.Range, it.Filters)
			if err != nil {
				return domain.ProgressPayload{}, err
			}
			pct := domain.Ratio(current, it.Target, 0)
			p.Items = append(p.Items, domain.ProgressEntry{
				Label:      titleOr(it.Label, def.Label),
				Current:    current,
				Target:     it.Target,
				Percentage: pct,
				Color:      domain.ColorFor(pct, cfg.Thresholds, cfg.FallbackColor),
			})
		}
		return p, nil
	})
}

func (r *renderer) Alert(ctx context.Context, tenant domain.TenantID, cfg domain.AlertConfig) (domain.AlertPayload, error) {
	return cached(ctx, r, tenant, cfg, func(ctx context.Context) (domain.AlertPayload, error) {
		def, err := r.engine.Definition(cfg.Metric)
		if err != nil {
			return domain.AlertPayload{}, err
		}
		rs, err := r.engine.Rows(ctx, tenant, cfg.Metric, cfg.Range, cfg.Filters)
		if err != nil {
			return domain.AlertPayload{}, err
		}
		valueIdx, err := columnIndex(rs, cfg.Column)
		if err != nil {
			return domain.AlertPayload{}, err
		}
		labelIdx := -1
		if cfg.LabelColumn != "" {
			if labelIdx, err = columnIndex(rs, cfg.LabelColumn); err != nil {
				return domain.AlertPayload{}, err
			}
		}

		severity := cfg.Severity
		if severity == "" {
			severity = "warning"
		}
		p := domain.AlertPayload{
			Title:    titleOr(cfg.Title, def.Label),
			Severity: severity,
			Items:    []domain.AlertItem{},
		}
		for _, row := range rs.Rows {
			v, ok := domain.CellFloat(row[valueIdx])
			if !ok {
				continue
			}
			hit, err := cfg.Operator.Compare(v, cfg.Threshold)
			if err != nil {
				return domain.AlertPayload{}, err
			}
			if !hit {
				continue
			}
			item := domain.AlertItem{Value: v, Row: make(map[string]any, len(rs.Columns))}
			if labelIdx >= 0 {
				item.Label = domain.CellString(row[labelIdx])
			}
			for i, c := range rs.Columns {
				item.Row[c] = row[i]
			}
			p.Items = append(p.Items, item)
		}
		p.Count = len(p.Items)
		return p, nil
	})
}

func columnIndex(rs domain.RowSet, name string) (int, error) {
	idx := rs.ColumnIndex(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: column %q not in result (have %v)", domain.ErrInvalidWidgetConfig, name, rs.Columns)
	}
	return idx, nil
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}
