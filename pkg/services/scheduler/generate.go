package scheduler

import (
	"context"

	"github.com/de-tools/msp-atlas/pkg/adapters"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
)

// GenerateReport builds the report for one report type over period.
// Quarterly reviews cover the quarter containing period.Start and the
// health scorecard is taken as of period.End.
func GenerateReport(
	ctx context.Context,
	aggregator reports.Aggregator,
	composer executive.Composer,
	tenant domain.TenantID,
	rt domain.ReportType,
	subType string,
	period domain.DateRange,
) (domain.Report, error) {
	switch rt {
	case domain.ReportQuarterlyReview:
		year, quarter := domain.QuarterOf(period.Start)
		qbr, err := composer.QuarterlyReview(ctx, tenant, year, quarter)
		if err != nil {
			return domain.Report{}, err
		}
		return adapters.MapQuarterlyReviewToReport(qbr), nil
	case domain.ReportHealthScorecard:
		card, err := composer.HealthScorecard(ctx, tenant, period.End)
		if err != nil {
			return domain.Report{}, err
		}
		return adapters.MapScorecardToReport(card), nil
	case domain.ReportSLA:
		sla, err := composer.SLAReport(ctx, tenant, period)
		if err != nil {
			return domain.Report{}, err
		}
		return adapters.MapSLAReportToReport(sla), nil
	case domain.ReportExecutive:
		summary, err := composer.ExecutiveSummary(ctx, tenant, period)
		if err != nil {
			return domain.Report{}, err
		}
		return adapters.MapExecutiveSummaryToReport(summary), nil
	}

	bundle, err := aggregator.Generate(ctx, tenant, rt, subType, period)
	if err != nil {
		return domain.Report{}, err
	}
	return adapters.MapBundleToReport(bundle), nil
}
