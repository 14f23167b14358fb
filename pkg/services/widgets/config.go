package widgets

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// DecodeConfig parses a JSON widget config of the given kind and validates it.
func DecodeConfig(kind domain.WidgetKind, raw json.RawMessage) (domain.WidgetConfig, error) {
	switch kind {
	case domain.WidgetKPI:
		return decode[domain.KPIConfig](raw)
	case domain.WidgetChart:
		return decode[domain.ChartConfig](raw)
	case domain.WidgetTable:
		return decode[domain.TableConfig](raw)
	case domain.WidgetGauge:
		return decode[domain.GaugeConfig](raw)
	case domain.WidgetStatList:
		return decode[domain.StatListConfig](raw)
	case domain.WidgetProgress:
		return decode[domain.ProgressConfig](raw)
	case domain.WidgetAlert:
		return decode[domain.AlertConfig](raw)
	}
	return nil, fmt.Errorf("%w: unknown widget kind %q", domain.ErrInvalidWidgetConfig, kind)
}

func decode[T domain.WidgetConfig](raw json.RawMessage) (domain.WidgetConfig, error) {
	var cfg T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWidgetConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
