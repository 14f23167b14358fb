package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
)

func MapDateRangeToAPIPeriod(r domain.DateRange) api.TimePeriod {
	return api.TimePeriod{Start: r.StartDate(), End: r.EndDate(), Duration: r.Days()}
}

func MapMetricResultToAPI(res metrics.Result, rng domain.DateRange) api.MetricResponse {
	out := api.MetricResponse{
		Name:   res.Name,
		Kind:   res.Kind.String(),
		Format: res.Format,
		Period: MapDateRangeToAPIPeriod(rng),
	}
	if res.Kind == metrics.KindRows {
		rows := res.Rows
		out.Rows = &rows
	} else {
		v := res.Scalar
		out.Value = &v
	}
	return out
}

func MapMetricDefinitionToAPI(d metrics.Definition) api.MetricDefinition {
	return api.MetricDefinition{
		Name:   d.Name,
		Label:  d.Label,
		Group:  d.Group,
		Kind:   d.Kind.String(),
		Format: d.Format,
	}
}

// MapWidgetRequestToConfig decodes the config matching the requested kind
// and validates it.
func MapWidgetRequestToConfig(req api.WidgetRequest) (domain.WidgetConfig, error) {
	var cfg domain.WidgetConfig
	var err error
	switch req.Kind {
	case domain.WidgetKPI:
		cfg, err = decodeWidget[domain.KPIConfig](req.Config)
	case domain.WidgetChart:
		cfg, err = decodeWidget[domain.ChartConfig](req.Config)
	case domain.WidgetTable:
		cfg, err = decodeWidget[domain.TableConfig](req.Config)
	case domain.WidgetGauge:
		cfg, err = decodeWidget[domain.GaugeConfig](req.Config)
	case domain.WidgetStatList:
		cfg, err = decodeWidget[domain.StatListConfig](req.Config)
	case domain.WidgetProgress:
		cfg, err = decodeWidget[domain.ProgressConfig](req.Config)
	case domain.WidgetAlert:
		cfg, err = decodeWidget[domain.AlertConfig](req.Config)
	default:
		return nil, fmt.Errorf("%w: unsupported widget kind %q", domain.ErrInvalidWidgetConfig, req.Kind)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeWidget[T domain.WidgetConfig](raw json.RawMessage) (T, error) {
	var cfg T
	if len(raw) == 0 {
		return cfg, fmt.Errorf("%w: missing config", domain.ErrInvalidWidgetConfig)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrInvalidWidgetConfig, err)
	}
	return cfg, nil
}

func MapScheduleRequestToDomain(tenant domain.TenantID, req api.ScheduleRequest) (domain.ReportSchedule, error) {
	rt, err := domain.ParseReportType(strings.TrimSpace(req.ReportType))
	if err != nil {
		return domain.ReportSchedule{}, err
	}
	freq, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		return domain.ReportSchedule{}, err
	}
	format, err := domain.ParseExportFormat(req.Format)
	if err != nil {
		return domain.ReportSchedule{}, err
	}

	s := domain.ReportSchedule{
		TenantID:        tenant,
		Name:            strings.TrimSpace(req.Name),
		ReportType:      rt,
		Frequency:       freq,
		Parameters:      req.Parameters,
		Recipients:      req.Recipients,
		Format:          format,
		IsActive:        true,
		DeliveryOptions: req.DeliveryOptions,
	}
	if req.NextRunAt != nil {
		s.NextRunAt = req.NextRunAt.UTC()
	}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	return s, nil
}
