package domain

import (
	"fmt"
	"time"
)

type WidgetKind string

const (
	WidgetKPI      WidgetKind = "kpi"
	WidgetChart    WidgetKind = "chart"
	WidgetTable    WidgetKind = "table"
	WidgetGauge    WidgetKind = "gauge"
	WidgetStatList WidgetKind = "stat_list"
	WidgetProgress WidgetKind = "progress"
	WidgetAlert    WidgetKind = "alert"
)

const (
	DefaultWidgetTTL = 300 * time.Second
	DefaultAlertTTL  = 60 * time.Second
	DefaultColor     = "#6c757d"
)

type GoodDirection string

const (
	GoodUp   GoodDirection = "up"
	GoodDown GoodDirection = "down"
)

// TrendSignal says whether a change moved in the good direction.
type TrendSignal string

const (
	TrendPositive TrendSignal = "positive"
	TrendNegative TrendSignal = "negative"
)

// TrendSignalFor returns nil when nothing changed, which is distinct from negative.
func TrendSignalFor(change float64, good GoodDirection) *TrendSignal {
	if change == 0 {
		return nil
	}
	up := change > 0
	signal := TrendNegative
	if (up && good != GoodDown) || (!up && good == GoodDown) {
		signal = TrendPositive
	}
	return &signal
}

// ThresholdRange colours values in [Min, Max).
type ThresholdRange struct {
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Color string  `json:"color" yaml:"color"`
}

// ColorFor returns the colour of the first matching range, else fallback.
func ColorFor(value float64, ranges []ThresholdRange, fallback string) string {
	for _, r := range ranges {
		if value >= r.Min && value < r.Max {
			return r.Color
		}
	}
	if fallback == "" {
		return DefaultColor
	}
	return fallback
}

// Filters narrow a metric query. Zero values mean "no filter".
type Filters struct {
	ClientID   int64  `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	AssignedTo int64  `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`
	Priority   string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
	Limit      int    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// WidgetConfig is implemented by every per-kind widget configuration.
type WidgetConfig interface {
	Kind() WidgetKind
	Validate() error
	TTL() time.Duration
}

// WidgetPayload is implemented by every per-kind rendered widget.
type WidgetPayload interface {
	Kind() WidgetKind
}

type WidgetBase struct {
	Title    string    `json:"title"`
	Range    DateRange `json:"range"`
	CacheTTL int       `json:"cache_ttl,omitempty"`
}

func (b WidgetBase) ttl(def time.Duration) time.Duration {
	if b.CacheTTL > 0 {
		return time.Duration(b.CacheTTL) * time.Second
	}
	return def
}

func (b WidgetBase) validate() error {
	if err := b.Range.Validate(); err != nil {
		return err
	}
	if b.CacheTTL < 0 {
		return fmt.Errorf("%w: negative cache_ttl", ErrInvalidWidgetConfig)
	}
	return nil
}

type KPIConfig struct {
	WidgetBase
	Metric        string        `json:"metric"`
	Filters       Filters       `json:"filters"`
	GoodDirection GoodDirection `json:"good_direction"`
	Target        *float64      `json:"target,omitempty"`
}

func (c KPIConfig) Kind() WidgetKind   { return WidgetKPI }
func (c KPIConfig) TTL() time.Duration { return c.ttl(DefaultWidgetTTL) }
func (c KPIConfig) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("%w: kpi metric is required", ErrInvalidWidgetConfig)
	}
	if err := validDirection(c.GoodDirection); err != nil {
		return err
	}
	return c.validate()
}

type ChartType string

const (
	ChartPie      ChartType = "pie"
	ChartDoughnut ChartType = "doughnut"
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
)

type ChartConfig struct {
	WidgetBase
	ChartType    ChartType `json:"chart_type"`
	Metric       string    `json:"metric"`
	Filters      Filters   `json:"filters"`
	LabelColumn  string    `json:"label_column"`
	ValueColumns []string  `json:"value_columns"`
}

func (c ChartConfig) Kind() WidgetKind   { return WidgetChart }
func (c ChartConfig) TTL() time.Duration { return c.ttl(DefaultWidgetTTL) }
func (c ChartConfig) Validate() error {
	if c.Metric == "" || c.LabelColumn == "" {
		return fmt.Errorf("%w: chart metric and label_column are required", ErrInvalidWidgetConfig)
	}
	switch c.ChartType {
	case ChartPie, ChartDoughnut:
		if len(c.ValueColumns) != 1 {
			return fmt.Errorf("%w: %s chart needs exactly one value column", ErrInvalidWidgetConfig, c.ChartType)
		}
	case ChartLine, ChartBar:
		if len(c.ValueColumns) == 0 {
			return fmt.Errorf("%w: %s chart needs at least one value column", ErrInvalidWidgetConfig, c.ChartType)
		}
	default:
		return fmt.Errorf("%w: unknown chart type %q", ErrInvalidWidgetConfig, c.ChartType)
	}
	return c.validate()
}

type ColumnSpec struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Format Format `json:"format,omitempty"`
}

type TableConfig struct {
	WidgetBase
	Metric  string       `json:"metric"`
	Filters Filters      `json:"filters"`
	Columns []ColumnSpec `json:"columns,omitempty"`
	Page    int          `json:"page,omitempty"`
	PerPage int          `json:"per_page,omitempty"`
}

func (c TableConfig) Kind() WidgetKind   { return WidgetTable }
func (c TableConfig) TTL() time.Duration { return c.ttl(DefaultWidgetTTL) }
func (c TableConfig) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("%w: table metric is required", ErrInvalidWidgetConfig)
	}
	if c.Page < 0 || c.PerPage < 0 {
		return fmt.Errorf("%w: negative pagination", ErrInvalidWidgetConfig)
	}
	return c.validate()
}

type GaugeConfig struct {
	WidgetBase
	Metric        string           `json:"metric"`
	Filters       Filters          `json:"filters"`
	Max           float64          `json:"max"`
	Thresholds    []ThresholdRange `json:"thresholds"`
	FallbackColor string           `json:"fallback_color,omitempty"`
}

func (c GaugeConfig) Kind() WidgetKind   { return WidgetGauge }
func (c GaugeConfig) TTL() time.Duration { return c.ttl(DefaultWidgetTTL) }
func (c GaugeConfig) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("%w: gauge metric is required", ErrInvalidWidgetConfig)
	}
	if c.Max <= 0 {
		return fmt.Errorf("%w: gauge max must be positive", ErrInvalidWidgetConfig)
	}
	return c.validate()
}

type StatItem struct {
	Label   string  `json:"label"`
	Metric  string  `json:"metric"`
	Filters Filters `json:"filters"`
}

type StatListConfig struct {
	WidgetBase
	Items []StatItem `json:"items"`
}

func (c StatListConfig) Kind() WidgetKind   { return WidgetStatList }
func (c StatListConfig) TTL() time.Duration { return c.ttl(DefaultWidgetTTL) }
func (c StatListConfig) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: stat list needs items", ErrInvalidWidgetConfig)
	}
	for _, it := range c.Items {
		if it.Metric == "" {
			return fmt.Errorf("%w: stat item %q has no metric", ErrInvalidWidgetConfig, it.Label)
		}
	}
	return c.validate()
}

type ProgressItem struct {
	Label   string  `json:"label"`
	Metric  string  `json:"metric"`
	Filters Filters `json:"filters"`
	Target  float64 `json:"target"`
}

type ProgressConfig struct {
	WidgetBase
	Items         []ProgressItem   `json:"items"`
	Thresholds    []ThresholdRange `json:"thresholds"`
	FallbackColor string           `json:"fallback_color,omitempty"`
}

func (c ProgressConfig) Kind() WidgetKind   { return WidgetProgress }
func (c ProgressConfig) TTL() time.Duration { return c.ttl(DefaultWidgetTTL) }
func (c ProgressConfig) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: progress widget needs items", ErrInvalidWidgetConfig)
	}
	for _, it := range c.Items {
		if it.Metric == "" {
			return fmt.Errorf("%w: progress item %q has no metric", ErrInvalidWidgetConfig, it.Label)
		}
	}
	return c.validate()
}

type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

func (o Operator) Compare(v, threshold float64) (bool, error) {
	switch o {
	case OpGreater:
		return v > threshold, nil
	case OpGreaterEqual:
		return v >= threshold, nil
	case OpLess:
		return v < threshold, nil
	case OpLessEqual:
		return v <= threshold, nil
	case OpEqual:
		return v == threshold, nil
	case OpNotEqual:
		return v != threshold, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidWidgetConfig, o)
}

type AlertConfig struct {
	WidgetBase
	Metric      string   `json:"metric"`
	Filters     Filters  `json:"filters"`
	LabelColumn string   `json:"label_column"`
	Column      string   `json:"column"`
	Operator    Operator `json:"operator"`
	Threshold   float64  `json:"threshold"`
	Severity    string   `json:"severity,omitempty"`
}

func (c AlertConfig) Kind() WidgetKind   { return WidgetAlert }
func (c AlertConfig) TTL() time.Duration { return c.ttl(DefaultAlertTTL) }
func (c AlertConfig) Validate() error {
	if c.Metric == "" || c.Column == "" {
		return fmt.Errorf("%w: alert metric and column are required", ErrInvalidWidgetConfig)
	}
	if _, err := c.Operator.Compare(0, 0); err != nil {
		return err
	}
	return c.validate()
}

func validDirection(d GoodDirection) error {
	switch d {
	case GoodUp, GoodDown, "":
		return nil
	}
	return fmt.Errorf("%w: good_direction must be up or down, got %q", ErrInvalidWidgetConfig, d)
}

// Payloads

type KPIPayload struct {
	Title          string       `json:"title"`
	Value          float64      `json:"value"`
	Previous       float64      `json:"previous"`
	Delta          float64      `json:"delta"`
	ChangePercent  float64      `json:"change_percent"`
	Direction      Trend        `json:"direction"`
	Trend          *TrendSignal `json:"trend"`
	Format         Format       `json:"format"`
	Target         *float64     `json:"target,omitempty"`
	TargetProgress *float64     `json:"target_progress,omitempty"`
}

func (KPIPayload) Kind() WidgetKind { return WidgetKPI }

type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

type ChartPayload struct {
	Title     string    `json:"title"`
	ChartType ChartType `json:"chart_type"`
	Labels    []string  `json:"labels"`
	Datasets  []Dataset `json:"datasets"`
}

func (ChartPayload) Kind() WidgetKind { return WidgetChart }

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type TablePayload struct {
	Title      string       `json:"title"`
	Columns    []ColumnSpec `json:"columns"`
	Rows       [][]any      `json:"rows"`
	Pagination *Pagination  `json:"pagination,omitempty"`
}

func (TablePayload) Kind() WidgetKind { return WidgetTable }

type GaugePayload struct {
	Title      string           `json:"title"`
	Value      float64          `json:"value"`
	Max        float64          `json:"max"`
	Percentage float64          `json:"percentage"`
	Color      string           `json:"color"`
	Ranges     []ThresholdRange `json:"ranges"`
	Format     Format           `json:"format"`
}

func (GaugePayload) Kind() WidgetKind { return WidgetGauge }

type StatEntry struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Format Format  `json:"format"`
}

type StatListPayload struct {
	Title string      `json:"title"`
	Items []StatEntry `json:"items"`
}

func (StatListPayload) Kind() WidgetKind { return WidgetStatList }

type ProgressEntry struct {
	Label      string  `json:"label"`
	Current    float64 `json:"current"`
	Target     float64 `json:"target"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

type ProgressPayload struct {
	Title string          `json:"title"`
	Items []ProgressEntry `json:"items"`
}

func (ProgressPayload) Kind() WidgetKind { return WidgetProgress }

type AlertItem struct {
	Label string         `json:"label"`
	Value float64        `json:"value"`
	Row   map[string]any `json:"row"`
}

type AlertPayload struct {
	Title    string      `json:"title"`
	Severity string      `json:"severity"`
	Count    int         `json:"count"`
	Items    []AlertItem `json:"items"`
}

func (AlertPayload) Kind() WidgetKind { return WidgetAlert }
