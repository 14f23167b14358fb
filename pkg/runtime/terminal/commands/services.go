package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/spf13/cobra"
)

// Services is what the commands need from a running application.
type Services struct {
	DB         *sql.DB
	Aggregator reports.Aggregator
	Composer   executive.Composer
	Scheduler  scheduler.Scheduler
	Now        func() time.Time
}

// Provider opens the services on first use.
type Provider func(ctx context.Context) (*Services, error)

func addTenantFlag(cmd *cobra.Command, tenant *int64) {
	cmd.Flags().Int64Var(tenant, "tenant", 1, "Tenant (company) id")
}

func tenantID(v int64) (domain.TenantID, error) {
	if v <= 0 {
		return 0, fmt.Errorf("tenant must be a positive id, got %d", v)
	}
	return domain.TenantID(v), nil
}

// rangeFlags resolves --start/--end, defaulting to the 30 days ending today.
type rangeFlags struct {
	start string
	end   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Range end (YYYY-MM-DD)")
}

func (f *rangeFlags) resolve(now time.Time) (domain.DateRange, error) {
	if f.start == "" && f.end == "" {
		today := now.UTC()
		return domain.NewDateRange(today.AddDate(0, 0, -29), today)
	}
	return domain.ParseDateRange(f.start, f.end)
}
