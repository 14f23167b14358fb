package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type SchedulesCmd struct {
	tenant   int64
	provider Provider
	reporter *export.Reporter
}

func NewSchedulesCmd(provider Provider, reporter *export.Reporter) *cobra.Command {
	sc := &SchedulesCmd{provider: provider, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage scheduled report deliveries",
	}
	cmd.PersistentFlags().Int64Var(&sc.tenant, "tenant", 1, "Tenant (company) id")

	cmd.AddCommand(sc.listCmd(), sc.createCmd(), sc.runCmd(), sc.runDueCmd(), sc.runsCmd(), sc.deactivateCmd())
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid schedule id %q", s)
	}
	return id, nil
}

// parseRecipient accepts channel:address, e.g. email:ops@example.com.
func parseRecipient(s string) (domain.Recipient, error) {
	channel, address, ok := strings.Cut(s, ":")
	if !ok || address == "" {
		return domain.Recipient{}, fmt.Errorf("%w: recipient %q must be channel:address", domain.ErrInvalidSchedule, s)
	}
	return domain.Recipient{Channel: domain.Channel(channel), Address: address}, nil
}

func (sc *SchedulesCmd) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tenant's schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tenantID(sc.tenant)
			if err != nil {
				return err
			}
			svc, err := sc.provider(cmd.Context())
			if err != nil {
				return err
			}
			schedules, err := svc.Scheduler.List(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			return sc.reporter.Schedules(schedules)
		},
	}
}

func (sc *SchedulesCmd) createCmd() *cobra.Command {
	var (
		name, reportType, frequency, format string
		subType, period                     string
		recipients                          []string
		attach, link, publish               bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a report schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tenantID(sc.tenant)
			if err != nil {
				return err
			}
			rt, err := domain.ParseReportType(reportType)
			if err != nil {
				return err
			}
			freq, err := domain.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			f, err := domain.ParseExportFormat(format)
			if err != nil {
				return err
			}

			sched := domain.ReportSchedule{
				TenantID:   tenant,
				Name:       name,
				ReportType: rt,
				Frequency:  freq,
				Format:     f,
				IsActive:   true,
				Parameters: domain.ScheduleParameters{SubType: subType, Period: period},
				DeliveryOptions: domain.DeliveryOptions{
					AttachFile:   attach,
					IncludeLink:  link,
					PublishEvent: publish,
				},
			}
			for _, r := range recipients {
				rec, err := parseRecipient(r)
				if err != nil {
					return err
				}
				sched.Recipients = append(sched.Recipients, rec)
			}

			svc, err := sc.provider(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Scheduler.Create(cmd.Context(), &sched); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created schedule %d, first run at %s\n",
				sched.ID, sched.NextRunAt.UTC().Format("2006-01-02 15:04 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&reportType, "type", "", "Report type")
	cmd.Flags().StringVar(&frequency, "frequency", string(domain.FrequencyWeekly), "daily, weekly, monthly or quarterly")
	cmd.Flags().StringVar(&format, "format", string(domain.ExportPDF), "Export format")
	cmd.Flags().StringVar(&subType, "sub-type", "", "Report sub-type")
	cmd.Flags().StringVar(&period, "period", "", "Named period, e.g. last_7_days or previous_month")
	cmd.Flags().StringArrayVar(&recipients, "recipient", nil, "channel:address, repeatable")
	cmd.Flags().BoolVar(&attach, "attach", true, "Attach the exported file to emails")
	cmd.Flags().BoolVar(&link, "link", false, "Include the download link in messages")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish a delivery event")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

func (sc *SchedulesCmd) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Generate and deliver a schedule now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantID(sc.tenant)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := sc.provider(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Scheduler.RunNow(cmd.Context(), tenant, id)
			if err != nil {
				return err
			}
			return sc.reporter.Result(res)
		},
	}
}

func (sc *SchedulesCmd) runDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-due",
		Short: "Process every due schedule once, for all tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := sc.provider(cmd.Context())
			if err != nil {
				return err
			}
			outcome, err := svc.Scheduler.ProcessDueReports(cmd.Context())
			if rerr := sc.reporter.Outcome(outcome); rerr != nil {
				return rerr
			}
			return err
		},
	}
}

func (sc *SchedulesCmd) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs <id>",
		Short: "Show a schedule's run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantID(sc.tenant)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := sc.provider(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := svc.Scheduler.Runs(cmd.Context(), tenant, id, limit)
			if err != nil {
				return err
			}
			return sc.reporter.Runs(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}

func (sc *SchedulesCmd) deactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Stop a schedule from running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantID(sc.tenant)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := sc.provider(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Scheduler.Deactivate(cmd.Context(), tenant, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %d deactivated\n", id)
			return nil
		},
	}
}
