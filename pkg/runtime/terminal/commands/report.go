package commands

import (
	"fmt"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/spf13/cobra"
)

type ReportCmd struct {
	tenant   int64
	subType  string
	format   string
	year     int
	quarter  int
	rng      rangeFlags
	provider Provider
	reporter *export.Reporter
}

func NewReportCmd(provider Provider, reporter *export.Reporter) *cobra.Command {
	rc := &ReportCmd{provider: provider, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "report <type>",
		Short: "Generate a report and print it",
		Long: "Generate a report of the given type (financial, tickets, clients, assets, projects, users, " +
			"dashboard, quarterly_review, health_scorecard, sla, executive_summary) and print it.",
		Args: cobra.ExactArgs(1),
		RunE: rc.run,
	}

	addTenantFlag(cmd, &rc.tenant)
	rc.rng.register(cmd)
	cmd.Flags().StringVar(&rc.subType, "sub-type", "", "Report sub-type, e.g. revenue for financial or sla for tickets")
	cmd.Flags().StringVar(&rc.format, "format", string(domain.ExportText), "Output format: text, json, yaml, csv")
	cmd.Flags().IntVar(&rc.year, "year", 0, "Quarter year for quarterly_review")
	cmd.Flags().IntVar(&rc.quarter, "quarter", 0, "Quarter (1-4) for quarterly_review")

	return cmd
}

func (rc *ReportCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := domain.ParseReportType(args[0])
	if err != nil {
		return err
	}
	format, err := domain.ParseExportFormat(rc.format)
	if err != nil {
		return err
	}
	if format == domain.ExportPDF || format == domain.ExportXLSX {
		return fmt.Errorf("%s output is binary, use the schedule or API export instead", format)
	}
	tenant, err := tenantID(rc.tenant)
	if err != nil {
		return err
	}

	svc, err := rc.provider(ctx)
	if err != nil {
		return err
	}

	var period domain.DateRange
	if rt == domain.ReportQuarterlyReview && rc.year > 0 {
		period, err = domain.QuarterRange(rc.year, rc.quarter)
	} else {
		period, err = rc.rng.resolve(svc.Now())
	}
	if err != nil {
		return err
	}

	report, err := scheduler.GenerateReport(ctx, svc.Aggregator, svc.Composer, tenant, rt, rc.subType, period)
	if err != nil {
		return fmt.Errorf("failed to generate %s report: %w", rt, err)
	}
	return rc.reporter.Handle(report, format)
}
