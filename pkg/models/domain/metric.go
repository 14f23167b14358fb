package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

type Format string

const (
	FormatCurrency   Format = "currency"
	FormatPercentage Format = "percentage"
	FormatNumber     Format = "number"
	FormatHours      Format = "hours"
	FormatMinutes    Format = "minutes"
)

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// MetricValue is a computed scalar with its optional period comparison.
type MetricValue struct {
	Value         float64  `json:"value" yaml:"value"`
	Format        Format   `json:"format" yaml:"format"`
	Previous      *float64 `json:"previous,omitempty" yaml:"previous,omitempty"`
	Trend         Trend    `json:"trend,omitempty" yaml:"trend,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty" yaml:"change_percent,omitempty"`
}

func NewMetricValue(value float64, format Format) MetricValue {
	return MetricValue{Value: Round(value, 2), Format: format}
}

// Compared attaches a previous-period value, the change percent and the trend.
func Compared(current, previous float64, format Format) MetricValue {
	prev := Round(previous, 2)
	change := GrowthPercent(current, previous)
	mv := MetricValue{
		Value:         Round(current, 2),
		Format:        format,
		Previous:      &prev,
		ChangePercent: &change,
		Trend:         TrendNeutral,
	}
	switch {
	case current > previous:
		mv.Trend = TrendUp
	case current < previous:
		mv.Trend = TrendDown
	}
	return mv
}

// GrowthPercent is the percent change from previous to current, rounded to 2
// decimals. It is 0 when previous is 0 so callers never see NaN or Inf.
func GrowthPercent(current, previous float64) float64 {
	if previous == 0 || isBad(previous) || isBad(current) {
		return 0
	}
	return Round((current-previous)/previous*100, 2)
}

// Ratio returns numerator/denominator*100, or fallback when denominator is 0.
func Ratio(numerator, denominator, fallback float64) float64 {
	if denominator == 0 || isBad(denominator) || isBad(numerator) {
		return fallback
	}
	return Round(numerator/denominator*100, 2)
}

func Round(v float64, places int32) float64 {
	if isBad(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
