package domain

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// HealthInputs are the raw per-client counters a health score is built from.
type HealthInputs struct {
	RecentTickets     int     `json:"recent_tickets" yaml:"recent_tickets"`
	EscalatedTickets  int     `json:"escalated_tickets" yaml:"escalated_tickets"`
	OverdueInvoices   int     `json:"overdue_invoices" yaml:"overdue_invoices"`
	DaysSinceActivity int     `json:"days_since_activity" yaml:"days_since_activity"`
	RevenueGrowth     float64 `json:"revenue_growth" yaml:"revenue_growth"`
}

type ClientHealthScore struct {
	ClientID         int64        `json:"client_id" yaml:"client_id"`
	ClientName       string       `json:"client_name" yaml:"client_name"`
	TicketHealth     float64      `json:"ticket_health" yaml:"ticket_health"`
	PaymentHealth    float64      `json:"payment_health" yaml:"payment_health"`
	EngagementHealth float64      `json:"engagement_health" yaml:"engagement_health"`
	GrowthHealth     float64      `json:"growth_health" yaml:"growth_health"`
	OverallScore     float64      `json:"overall_score" yaml:"overall_score"`
	RiskLevel        RiskLevel    `json:"risk_level" yaml:"risk_level"`
	Inputs           HealthInputs `json:"inputs" yaml:"inputs"`
}

type HealthSummary struct {
	TotalClients int     `json:"total_clients" yaml:"total_clients"`
	Healthy      int     `json:"healthy" yaml:"healthy"`
	AtRisk       int     `json:"at_risk" yaml:"at_risk"`
	AverageScore float64 `json:"average_score" yaml:"average_score"`
}

// HealthScorecard lists clients worst-first.
type HealthScorecard struct {
	TenantID TenantID            `json:"tenant_id" yaml:"tenant_id"`
	AsOf     time.Time           `json:"as_of" yaml:"as_of"`
	Clients  []ClientHealthScore `json:"clients" yaml:"clients"`
	Summary  HealthSummary       `json:"summary" yaml:"summary"`
}

type Grade string

type ScoreComponent struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
	Input  float64 `json:"input" yaml:"input"`
	Score  float64 `json:"score" yaml:"score"`
}

type QuarterlyReview struct {
	TenantID        TenantID         `json:"tenant_id" yaml:"tenant_id"`
	Year            int              `json:"year" yaml:"year"`
	Quarter         int              `json:"quarter" yaml:"quarter"`
	Period          DateRange        `json:"period" yaml:"period"`
	PreviousPeriod  DateRange        `json:"previous_period" yaml:"previous_period"`
	Metrics         []NamedMetric    `json:"metrics" yaml:"metrics"`
	Components      []ScoreComponent `json:"components" yaml:"components"`
	Score           float64          `json:"score" yaml:"score"`
	Grade           Grade            `json:"grade" yaml:"grade"`
	Highlights      []string         `json:"highlights" yaml:"highlights"`
	Concerns        []string         `json:"concerns" yaml:"concerns"`
	Recommendations []string         `json:"recommendations" yaml:"recommendations"`
	TopClients      RowSet           `json:"top_clients" yaml:"top_clients"`
	GeneratedAt     time.Time        `json:"generated_at" yaml:"generated_at"`
}

// SLAPolicy holds response and resolution targets in minutes. An empty
// Priority is the tenant-wide default.
type SLAPolicy struct {
	Priority             string `json:"priority,omitempty" yaml:"priority,omitempty"`
	FirstResponseMinutes int    `json:"first_response_minutes" yaml:"first_response_minutes"`
	ResolutionMinutes    int    `json:"resolution_minutes" yaml:"resolution_minutes"`
}

func DefaultSLAPolicy() SLAPolicy {
	return SLAPolicy{FirstResponseMinutes: 60, ResolutionMinutes: 480}
}

// SLAPolicies resolves the policy for a ticket priority.
type SLAPolicies struct {
	Default    SLAPolicy            `json:"default" yaml:"default"`
	ByPriority map[string]SLAPolicy `json:"by_priority,omitempty" yaml:"by_priority,omitempty"`
}

func (p SLAPolicies) For(priority string) SLAPolicy {
	if pol, ok := p.ByPriority[priority]; ok {
		return pol
	}
	pol := p.Default
	pol.Priority = priority
	return pol
}

type SLACompliance struct {
	Priority             string  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tickets              int     `json:"tickets" yaml:"tickets"`
	ResponseMet          int     `json:"response_met" yaml:"response_met"`
	ResolutionMet        int     `json:"resolution_met" yaml:"resolution_met"`
	ResponseCompliance   float64 `json:"response_compliance" yaml:"response_compliance"`
	ResolutionCompliance float64 `json:"resolution_compliance" yaml:"resolution_compliance"`
	OverallCompliance    float64 `json:"overall_compliance" yaml:"overall_compliance"`
}

type SLABreach struct {
	TicketID       int64   `json:"ticket_id" yaml:"ticket_id"`
	Subject        string  `json:"subject" yaml:"subject"`
	Priority       string  `json:"priority" yaml:"priority"`
	ClientName     string  `json:"client_name" yaml:"client_name"`
	Kind           string  `json:"kind" yaml:"kind"`
	ElapsedMinutes float64 `json:"elapsed_minutes" yaml:"elapsed_minutes"`
	TargetMinutes  int     `json:"target_minutes" yaml:"target_minutes"`
}

type SLAReport struct {
	TenantID    TenantID        `json:"tenant_id" yaml:"tenant_id"`
	Period      DateRange       `json:"period" yaml:"period"`
	Policies    SLAPolicies     `json:"policies" yaml:"policies"`
	Overall     SLACompliance   `json:"overall" yaml:"overall"`
	ByPriority  []SLACompliance `json:"by_priority" yaml:"by_priority"`
	Breaches    []SLABreach     `json:"breaches" yaml:"breaches"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
}

type ExecutiveSummary struct {
	TenantID    TenantID      `json:"tenant_id" yaml:"tenant_id"`
	Period      DateRange     `json:"period" yaml:"period"`
	Dashboard   ReportBundle  `json:"dashboard" yaml:"dashboard"`
	Health      HealthSummary `json:"health" yaml:"health"`
	SLA         SLACompliance `json:"sla" yaml:"sla"`
	Headlines   []string      `json:"headlines" yaml:"headlines"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
}
