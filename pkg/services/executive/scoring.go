package executive

import (
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/shopspring/decimal"
)

// Health score weights.
var (
	weightTicket     = decimal.RequireFromString("0.4")
	weightPayment    = decimal.RequireFromString("0.3")
	weightEngagement = decimal.RequireFromString("0.2")
	weightGrowth     = decimal.RequireFromString("0.1")
)

const (
	healthyScore = 80.0
	atRiskScore  = 60.0
)

// ScoreHealth turns raw client counters into the four sub-scores, each
// clamped to [0, 100], and their weighted overall score.
func ScoreHealth(in domain.HealthInputs) domain.ClientHealthScore {
	ticket := domain.Clamp(100-5*float64(in.RecentTickets)-15*float64(in.EscalatedTickets), 0, 100)
	payment := domain.Clamp(100-20*float64(in.OverdueInvoices), 0, 100)
	engagement := domain.Clamp(100-2*float64(in.DaysSinceActivity), 0, 100)
	growth := domain.Clamp(50+in.RevenueGrowth, 0, 100)

	overall := decimal.NewFromFloat(ticket).Mul(weightTicket).
		Add(decimal.NewFromFloat(payment).Mul(weightPayment)).
		Add(decimal.NewFromFloat(engagement).Mul(weightEngagement)).
		Add(decimal.NewFromFloat(growth).Mul(weightGrowth)).
		Round(2).InexactFloat64()

	return domain.ClientHealthScore{
		TicketHealth:     ticket,
		PaymentHealth:    payment,
		EngagementHealth: engagement,
		GrowthHealth:     growth,
		OverallScore:     overall,
		RiskLevel:        RiskFor(overall),
		Inputs:           in,
	}
}

func RiskFor(score float64) domain.RiskLevel {
	switch {
	case score >= healthyScore:
		return domain.RiskLow
	case score >= atRiskScore:
		return domain.RiskMedium
	}
	return domain.RiskHigh
}

var gradeBands = []struct {
	min   float64
	grade domain.Grade
}{
	{90, "A+"},
	{85, "A"},
	{80, "A-"},
	{77, "B+"},
	{73, "B"},
	{70, "B-"},
	{67, "C+"},
	{63, "C"},
	{60, "C-"},
	{50, "D"},
}

// LetterGrade maps a 0-100 score onto the eleven grade bands.
func LetterGrade(score float64) domain.Grade {
	for _, b := range gradeBands {
		if score >= b.min {
			return b.grade
		}
	}
	return "F"
}

// Quarter score weights.
const (
	quarterRevenueWeight      = 0.3
	quarterServiceWeight      = 0.4
	quarterSatisfactionWeight = 0.2
	quarterClientWeight       = 0.1
)

// QuarterComponents scores a quarter from revenue growth, SLA compliance,
// satisfaction (on a 5-point scale) and churn, all in percent except
// satisfaction.
func QuarterComponents(revenueGrowth, slaCompliance, satisfaction, churnRate float64) []domain.ScoreComponent {
	return []domain.ScoreComponent{
		{Name: "revenue_performance", Weight: quarterRevenueWeight, Input: revenueGrowth, Score: domain.Clamp(50+revenueGrowth, 0, 100)},
		{Name: "service_quality", Weight: quarterServiceWeight, Input: slaCompliance, Score: domain.Clamp(slaCompliance, 0, 100)},
		{Name: "satisfaction", Weight: quarterSatisfactionWeight, Input: satisfaction, Score: domain.Clamp(satisfaction*20, 0, 100)},
		{Name: "client_growth", Weight: quarterClientWeight, Input: churnRate, Score: domain.Clamp(100-2*churnRate, 0, 100)},
	}
}

// CompositeScore is the weighted sum of components, rounded to 2 decimals.
func CompositeScore(components []domain.ScoreComponent) float64 {
	total := decimal.Zero
	for _, c := range components {
		total = total.Add(decimal.NewFromFloat(c.Score).Mul(decimal.NewFromFloat(c.Weight)))
	}
	return total.Round(2).InexactFloat64()
}
