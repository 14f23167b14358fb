package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// TicketTiming carries the timestamps SLA metrics are measured on.
type TicketTiming struct {
	ID              int64
	Subject         string
	Priority        string
	ClientName      string
	CreatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

func (t TicketTiming) FirstResponseMinutes() (float64, bool) {
	if t.FirstResponseAt == nil {
		return 0, false
	}
	return t.FirstResponseAt.Sub(t.CreatedAt).Minutes(), true
}

func (t TicketTiming) ResolutionMinutes() (float64, bool) {
	if t.ResolvedAt == nil {
		return 0, false
	}
	return t.ResolvedAt.Sub(t.CreatedAt).Minutes(), true
}

// SLAEvaluation is the outcome of measuring tickets against SLA policies.
type SLAEvaluation struct {
	Overall    domain.SLACompliance
	ByPriority []domain.SLACompliance
	Breaches   []domain.SLABreach
}

type slaTally struct {
	tickets                int
	respEvaluated, respMet int
	resEvaluated, resMet   int
	compliant, breached    int
}

func (t slaTally) compliance(priority string) domain.SLACompliance {
	return domain.SLACompliance{
		Priority:             priority,
		Tickets:              t.tickets,
		ResponseMet:          t.respMet,
		ResolutionMet:        t.resMet,
		ResponseCompliance:   domain.Ratio(float64(t.respMet), float64(t.respEvaluated), 100),
		ResolutionCompliance: domain.Ratio(float64(t.resMet), float64(t.resEvaluated), 100),
		OverallCompliance:    domain.Ratio(float64(t.compliant), float64(t.compliant+t.breached), 100),
	}
}

// judge reports whether a target can be judged yet and whether it was met.
// A ticket still waiting inside its target window is not judged.
func judge(created time.Time, at *time.Time, target int, now time.Time) (judged, met bool, elapsed float64) {
	if at != nil {
		elapsed = at.Sub(created).Minutes()
		return true, elapsed <= float64(target), elapsed
	}
	elapsed = now.Sub(created).Minutes()
	if elapsed > float64(target) {
		return true, false, elapsed
	}
	return false, false, elapsed
}

// EvaluateSLA measures every ticket against the policy for its priority.
// With nothing judged, compliance is 100.
func EvaluateSLA(timings []TicketTiming, policies domain.SLAPolicies, now time.Time) SLAEvaluation {
	var overall slaTally
	byPriority := map[string]*slaTally{}
	var breaches []domain.SLABreach

	for _, t := range timings {
		pol := policies.For(t.Priority)
		tally, ok := byPriority[t.Priority]
		if !ok {
			tally = &slaTally{}
			byPriority[t.Priority] = tally
		}
		for _, tl := range []*slaTally{&overall, tally} {
			tl.tickets++
		}

		respJudged, respMet, respElapsed := judge(t.CreatedAt, t.FirstResponseAt, pol.FirstResponseMinutes, now)
		resJudged, resMet, resElapsed := judge(t.CreatedAt, t.ResolvedAt, pol.ResolutionMinutes, now)

		for _, tl := range []*slaTally{&overall, tally} {
			if respJudged {
				tl.respEvaluated++
				if respMet {
					tl.respMet++
				}
			}
			if resJudged {
				tl.resEvaluated++
				if resMet {
					tl.resMet++
				}
			}
			switch {
			case (respJudged && !respMet) || (resJudged && !resMet):
				tl.breached++
			case respJudged && resJudged:
				tl.compliant++
			}
		}

		if respJudged && !respMet {
			breaches = append(breaches, breach(t, "first_response", respElapsed, pol.FirstResponseMinutes))
		}
		if resJudged && !resMet {
			breaches = append(breaches, breach(t, "resolution", resElapsed, pol.ResolutionMinutes))
		}
	}

	priorities := make([]string, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Slice(priorities, func(i, j int) bool {
		return priorityRank(priorities[i]) < priorityRank(priorities[j]) ||
			(priorityRank(priorities[i]) == priorityRank(priorities[j]) && priorities[i] < priorities[j])
	})

	eval := SLAEvaluation{
		Overall:    overall.compliance(""),
		ByPriority: make([]domain.SLACompliance, 0, len(priorities)),
		Breaches:   breaches,
	}
	for _, p := range priorities {
		eval.ByPriority = append(eval.ByPriority, byPriority[p].compliance(p))
	}
	return eval
}

func breach(t TicketTiming, kind string, elapsed float64, target int) domain.SLABreach {
	return domain.SLABreach{
		TicketID:       t.ID,
		Subject:        t.Subject,
		Priority:       t.Priority,
		ClientName:     t.ClientName,
		Kind:           kind,
		ElapsedMinutes: domain.Round(elapsed, 2),
		TargetMinutes:  target,
	}
}

func priorityRank(p string) int {
	switch p {
	case "critical", "urgent":
		return 0
	case "high":
		return 1
	case "medium", "normal":
		return 2
	case "low":
		return 3
	}
	return 4
}

func (e *engine) TicketTimings(ctx context.Context, tenant domain.TenantID, rng domain.DateRange, filters domain.Filters) ([]TicketTiming, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	timings, err := e.ticketTimings(ctx, Request{Tenant: tenant, Range: rng, Filters: filters})
	if err != nil {
		return nil, wrapSourceError("ticket_timings", err)
	}
	return timings, nil
}

func (e *engine) ticketTimings(ctx context.Context, req Request) ([]TicketTiming, error) {
	q := newQuery(req)
	text := `SELECT t.id, t.subject, t.priority, COALESCE(c.name, ''), t.created_at, t.first_response_at, t.resolved_at ` +
		`FROM tickets t LEFT JOIN clients c ON c.id = t.client_id AND c.company_id = t.company_id WHERE ` +
		q.tenant("t.company_id") + ` AND ` + q.during("t.created_at") + q.filter(ticketFilters) +
		` ORDER BY t.created_at, t.id`

	rows, err := e.db.QueryContext(ctx, text, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TicketTiming
	for rows.Next() {
		var (
			t          TicketTiming
			firstResp  sql.NullTime
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Subject, &t.Priority, &t.ClientName, &t.CreatedAt, &firstResp, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		if firstResp.Valid {
			v := firstResp.Time.UTC()
			t.FirstResponseAt = &v
		}
		if resolvedAt.Valid {
			v := resolvedAt.Time.UTC()
			t.ResolvedAt = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (e *engine) SLAPolicies(ctx context.Context, tenant domain.TenantID) (domain.SLAPolicies, error) {
	policies := domain.SLAPolicies{Default: e.sla, ByPriority: map[string]domain.SLAPolicy{}}

	rows, err := e.db.QueryContext(ctx,
		`SELECT priority, first_response_minutes, resolution_minutes FROM sla_policies WHERE company_id = $1`,
		int64(tenant),
	)
	if err != nil {
		return domain.SLAPolicies{}, &domain.DataSourceError{Metric: "sla_policies", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.SLAPolicy
		if err := rows.Scan(&p.Priority, &p.FirstResponseMinutes, &p.ResolutionMinutes); err != nil {
			return domain.SLAPolicies{}, &domain.DataSourceError{Metric: "sla_policies", Err: err}
		}
		if p.FirstResponseMinutes <= 0 || p.ResolutionMinutes <= 0 {
			continue
		}
		if p.Priority == "" {
			policies.Default = p
			continue
		}
		policies.ByPriority[p.Priority] = p
	}
	if err := rows.Err(); err != nil {
		return domain.SLAPolicies{}, &domain.DataSourceError{Metric: "sla_policies", Err: err}
	}
	return policies, nil
}
