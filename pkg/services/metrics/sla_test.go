package metrics

import (
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minutesAfter(t time.Time, m int) *time.Time {
	v := t.Add(time.Duration(m) * time.Minute)
	return &v
}

func TestEvaluateSLA(t *testing.T) {
	created := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	policies := domain.SLAPolicies{
		Default: domain.DefaultSLAPolicy(),
		ByPriority: map[string]domain.SLAPolicy{
			"critical": {Priority: "critical", FirstResponseMinutes: 15, ResolutionMinutes: 240},
		},
	}

	t.Run("no tickets", func(t *testing.T) {
		eval := EvaluateSLA(nil, policies, created)
		assert.Equal(t, 100.0, eval.Overall.OverallCompliance)
		assert.Equal(t, 100.0, eval.Overall.ResponseCompliance)
		assert.Empty(t, eval.ByPriority)
		assert.Empty(t, eval.Breaches)
	})

	t.Run("mixed outcomes", func(t *testing.T) {
		now := created.Add(48 * time.Hour)
		timings := []TicketTiming{
			{ID: 1, Priority: "medium", CreatedAt: created, FirstResponseAt: minutesAfter(created, 30), ResolvedAt: minutesAfter(created, 300)},
			{ID: 2, Priority: "critical", CreatedAt: created, FirstResponseAt: minutesAfter(created, 30), ResolvedAt: minutesAfter(created, 60)},
			{ID: 3, Priority: "medium", CreatedAt: created, FirstResponseAt: minutesAfter(created, 45)},
		}

		eval := EvaluateSLA(timings, policies, now)

		assert.Equal(t, 3, eval.Overall.Tickets)
		assert.Equal(t, 2, eval.Overall.ResponseMet)
		assert.Equal(t, 2, eval.Overall.ResolutionMet)
		assert.Equal(t, 33.33, eval.Overall.OverallCompliance)

		require.Len(t, eval.ByPriority, 2)
		assert.Equal(t, "critical", eval.ByPriority[0].Priority)
		assert.Equal(t, 0.0, eval.ByPriority[0].OverallCompliance)
		assert.Equal(t, "medium", eval.ByPriority[1].Priority)
		assert.Equal(t, 50.0, eval.ByPriority[1].OverallCompliance)

		require.Len(t, eval.Breaches, 2)
		assert.Equal(t, int64(2), eval.Breaches[0].TicketID)
		assert.Equal(t, "first_response", eval.Breaches[0].Kind)
		assert.Equal(t, 15, eval.Breaches[0].TargetMinutes)
		assert.Equal(t, int64(3), eval.Breaches[1].TicketID)
		assert.Equal(t, "resolution", eval.Breaches[1].Kind)
		assert.Equal(t, 2880.0, eval.Breaches[1].ElapsedMinutes)
	})

	t.Run("pending ticket inside its window is not judged", func(t *testing.T) {
		now := created.Add(20 * time.Minute)
		eval := EvaluateSLA([]TicketTiming{{ID: 4, Priority: "low", CreatedAt: created}}, policies, now)

		assert.Equal(t, 1, eval.Overall.Tickets)
		assert.Equal(t, 100.0, eval.Overall.OverallCompliance)
		assert.Empty(t, eval.Breaches)
	})

	t.Run("pending ticket past its window breaches", func(t *testing.T) {
		now := created.Add(90 * time.Minute)
		eval := EvaluateSLA([]TicketTiming{{ID: 5, Priority: "low", CreatedAt: created}}, policies, now)

		assert.Equal(t, 0.0, eval.Overall.OverallCompliance)
		require.Len(t, eval.Breaches, 1)
		assert.Equal(t, "first_response", eval.Breaches[0].Kind)
	})
}
