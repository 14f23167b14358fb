package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/msp-atlas/pkg/services/delivery"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/export"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/de-tools/msp-atlas/pkg/store/duckdb"
	"github.com/de-tools/msp-atlas/pkg/store/files"
	"github.com/de-tools/msp-atlas/pkg/store/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	out      *bytes.Buffer
	services *commands.Services
}

func setupFixture(t *testing.T, seed bool) *fixture {
	t.Helper()

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if seed {
		require.NoError(t, duckdb.SeedDemo(context.Background(), db))
	}

	clock := func() time.Time { return now }
	engine, err := metrics.NewEngine(db, metrics.Options{Now: clock})
	require.NoError(t, err)
	agg := reports.NewAggregator(engine, reports.Options{Now: clock})
	composer := executive.NewComposer(engine, agg, executive.Options{Now: clock})

	local, err := files.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	exporter, err := export.NewExporter(local, export.Options{Now: clock})
	require.NoError(t, err)
	store, err := schedule.NewStore(db)
	require.NoError(t, err)

	sched, err := scheduler.NewScheduler(scheduler.Dependencies{
		Store:      store,
		Aggregator: agg,
		Composer:   composer,
		Exporter:   exporter,
		Deliverer:  delivery.NewDeliverer(map[domain.Channel]delivery.Channel{}, nil),
		Now:        clock,
	}, scheduler.DefaultSettings())
	require.NoError(t, err)

	return &fixture{
		out: &bytes.Buffer{},
		services: &commands.Services{
			DB:         db,
			Aggregator: agg,
			Composer:   composer,
			Scheduler:  sched,
			Now:        clock,
		},
	}
}

func (f *fixture) run(args ...string) error {
	cli := NewCLI(Options{
		Output: f.out,
		Provider: func(context.Context) (*commands.Services, error) {
			return f.services, nil
		},
	})
	cli.SetArgs(args)
	return cli.Execute()
}

func TestReportCommand(t *testing.T) {
	f := setupFixture(t, true)

	err := f.run("report", "financial", "--sub-type", "revenue", "--start", "2024-01-01", "--end", "2024-01-31", "--format", "json")
	require.NoError(t, err)

	var report domain.Report
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &report))
	assert.Equal(t, "Financial Report: Revenue", report.Title)
	assert.Equal(t, 31, report.Period.Duration)
	assert.NotEmpty(t, report.Sections)
}

func TestReportCommandTicketSubType(t *testing.T) {
	f := setupFixture(t, true)

	err := f.run("report", "tickets", "--sub-type", "sla", "--start", "2024-01-01", "--end", "2024-01-31", "--format", "json")
	require.NoError(t, err)

	var report domain.Report
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &report))
	assert.Equal(t, "Service Desk Report: Sla", report.Title)
}

func TestReportCommandText(t *testing.T) {
	f := setupFixture(t, true)

	require.NoError(t, f.run("report", "sla", "--start", "2024-01-01", "--end", "2024-01-31"))
	assert.Contains(t, f.out.String(), "SLA Compliance Report")
	assert.Contains(t, f.out.String(), "=== Overall ===")
}

func TestReportCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown type", args: []string{"report", "payroll"}},
		{name: "binary format", args: []string{"report", "dashboard", "--format", "pdf"}},
		{name: "bad range", args: []string{"report", "dashboard", "--start", "2024-02-01", "--end", "2024-01-01"}},
		{name: "bad tenant", args: []string{"report", "dashboard", "--tenant", "0"}},
		{name: "missing type", args: []string{"report"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t, false)
			assert.Error(t, f.run(tt.args...))
		})
	}
}

func TestSchedulesLifecycle(t *testing.T) {
	f := setupFixture(t, true)

	require.NoError(t, f.run("schedules", "create",
		"--name", "monthly revenue",
		"--type", "financial",
		"--sub-type", "revenue",
		"--frequency", "monthly",
		"--format", "csv",
		"--period", "previous_month",
		"--recipient", "chat:https://chat.example.com/hook",
	))
	assert.Contains(t, f.out.String(), "Created schedule 1")

	f.out.Reset()
	require.NoError(t, f.run("schedules", "list"))
	assert.Contains(t, f.out.String(), "monthly revenue [financial/monthly]")
	assert.Contains(t, f.out.String(), "active")

	f.out.Reset()
	err := f.run("schedules", "run", "1")
	require.Error(t, err, "chat channel is not configured so delivery fails")

	f.out.Reset()
	require.NoError(t, f.run("schedules", "runs", "1"))
	assert.Contains(t, f.out.String(), "failed")

	f.out.Reset()
	require.NoError(t, f.run("schedules", "deactivate", "1"))
	assert.Contains(t, f.out.String(), "Schedule 1 deactivated")

	f.out.Reset()
	require.NoError(t, f.run("schedules", "list", "--tenant", "2"))
	assert.Contains(t, f.out.String(), "No report schedules found.")
}

func TestSchedulesCreateValidation(t *testing.T) {
	f := setupFixture(t, false)

	err := f.run("schedules", "create", "--name", "x", "--type", "sla", "--recipient", "pager")
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	err = f.run("schedules", "create", "--name", "x", "--type", "sla", "--frequency", "hourly", "--recipient", "email:a@b.c")
	assert.Error(t, err)
}

func TestRunDueWithNothingDue(t *testing.T) {
	f := setupFixture(t, false)

	require.NoError(t, f.run("schedules", "run-due"))
	assert.Contains(t, f.out.String(), "Due: 0  Processed: 0")
}

func TestHealthCommand(t *testing.T) {
	f := setupFixture(t, true)

	require.NoError(t, f.run("health", "1", "--as-of", "2024-01-31"))
	assert.Contains(t, f.out.String(), "overall_score")
}

func TestSeedCommand(t *testing.T) {
	f := setupFixture(t, false)

	require.NoError(t, f.run("seed"))
	assert.Contains(t, f.out.String(), "Demo data loaded for tenant 1")

	var clients int
	require.NoError(t, f.services.DB.QueryRow("SELECT count(*) FROM clients WHERE company_id = 1").Scan(&clients))
	assert.Positive(t, clients)
}
