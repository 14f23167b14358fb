package executive

import (
	"testing"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
)

func TestScoreHealth(t *testing.T) {
	t.Run("weighted overall", func(t *testing.T) {
		s := ScoreHealth(domain.HealthInputs{
			RecentTickets:     10,
			EscalatedTickets:  2,
			OverdueInvoices:   1,
			DaysSinceActivity: 5,
			RevenueGrowth:     10,
		})
		assert.Equal(t, 20.0, s.TicketHealth)
		assert.Equal(t, 80.0, s.PaymentHealth)
		assert.Equal(t, 90.0, s.EngagementHealth)
		assert.Equal(t, 60.0, s.GrowthHealth)
		assert.Equal(t, 56.0, s.OverallScore)
		assert.Equal(t, domain.RiskHigh, s.RiskLevel)
	})

	t.Run("sub-scores stay within bounds", func(t *testing.T) {
		worst := ScoreHealth(domain.HealthInputs{
			RecentTickets: 100, EscalatedTickets: 40, OverdueInvoices: 12, DaysSinceActivity: 400, RevenueGrowth: -300,
		})
		assert.Zero(t, worst.OverallScore)

		best := ScoreHealth(domain.HealthInputs{RevenueGrowth: 900})
		assert.Equal(t, 100.0, best.GrowthHealth)
		assert.Equal(t, 100.0, best.OverallScore)
		assert.Equal(t, domain.RiskLow, best.RiskLevel)
	})
}

func TestRiskFor(t *testing.T) {
	assert.Equal(t, domain.RiskLow, RiskFor(80))
	assert.Equal(t, domain.RiskMedium, RiskFor(79.99))
	assert.Equal(t, domain.RiskMedium, RiskFor(60))
	assert.Equal(t, domain.RiskHigh, RiskFor(59.99))
}

func TestLetterGrade(t *testing.T) {
	cases := map[float64]domain.Grade{
		100: "A+", 90: "A+", 89.99: "A", 85: "A", 82: "A-", 78: "B+", 75: "B",
		71: "B-", 68: "C+", 65: "C", 61: "C-", 55: "D", 49.99: "F", 0: "F",
	}
	for score, want := range cases {
		assert.Equal(t, want, LetterGrade(score), "score %v", score)
	}

	rank := map[domain.Grade]int{}
	for i, b := range gradeBands {
		rank[b.grade] = len(gradeBands) - i
	}
	prev := -1
	for score := 0.0; score <= 100; score += 0.5 {
		r := rank[LetterGrade(score)]
		assert.GreaterOrEqual(t, r, prev, "grade must not drop at %v", score)
		prev = r
	}
}

func TestCompositeScore(t *testing.T) {
	components := QuarterComponents(25, 95, 4.5, 2)
	assert.Len(t, components, 4)

	var weights float64
	for _, c := range components {
		weights += c.Weight
	}
	assert.InDelta(t, 1.0, weights, 1e-9)

	// 75*0.3 + 95*0.4 + 90*0.2 + 96*0.1
	assert.Equal(t, 88.1, CompositeScore(components))
	assert.Equal(t, domain.Grade("A"), LetterGrade(CompositeScore(components)))
	assert.Zero(t, CompositeScore(nil))
}
