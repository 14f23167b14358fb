package reports

import "strings"

// Each report domain has a fixed set of sub-types. Unknown values resolve to
// the domain's overview; see Aggregator.

type FinancialType string

const (
	FinancialOverview      FinancialType = "overview"
	FinancialRevenue       FinancialType = "revenue"
	FinancialCashFlow      FinancialType = "cash_flow"
	FinancialInvoices      FinancialType = "invoices"
	FinancialProfitability FinancialType = "profitability"
)

type TicketType string

const (
	TicketOverview    TicketType = "overview"
	TicketPerformance TicketType = "performance"
	TicketSLA         TicketType = "sla"
	TicketWorkload    TicketType = "workload"
)

type ClientType string

const (
	ClientOverview ClientType = "overview"
	ClientGrowth   ClientType = "growth"
	ClientRevenue  ClientType = "revenue"
)

type AssetType string

const (
	AssetOverview  AssetType = "overview"
	AssetLifecycle AssetType = "lifecycle"
)

type ProjectType string

const (
	ProjectOverview ProjectType = "overview"
	ProjectBudget   ProjectType = "budget"
)

type UserType string

const (
	UserOverview    UserType = "overview"
	UserUtilization UserType = "utilization"
)

// ParseFinancialType reports false, with the overview, for unknown input.
func ParseFinancialType(s string) (FinancialType, bool) {
	return parse(s, FinancialOverview, FinancialRevenue, FinancialCashFlow, FinancialInvoices, FinancialProfitability)
}

func ParseTicketType(s string) (TicketType, bool) {
	return parse(s, TicketOverview, TicketPerformance, TicketSLA, TicketWorkload)
}

func ParseClientType(s string) (ClientType, bool) {
	return parse(s, ClientOverview, ClientGrowth, ClientRevenue)
}

func ParseAssetType(s string) (AssetType, bool) {
	return parse(s, AssetOverview, AssetLifecycle)
}

func ParseProjectType(s string) (ProjectType, bool) {
	return parse(s, ProjectOverview, ProjectBudget)
}

func ParseUserType(s string) (UserType, bool) {
	return parse(s, UserOverview, UserUtilization)
}

// parse matches s against known values; the first one is the fallback.
func parse[T ~string](s string, known ...T) (T, bool) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return known[0], true
	}
	for _, k := range known {
		if v == k {
			return k, true
		}
	}
	return known[0], false
}
