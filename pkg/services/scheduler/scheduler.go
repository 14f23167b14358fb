package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/services/delivery"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/export"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/store/schedule"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler turns due report schedules into delivered files.
type Scheduler interface {
	// ProcessDueReports handles every due schedule once. A failing schedule is
	// recorded in the outcome and never stops the rest of the batch.
	ProcessDueReports(ctx context.Context) (domain.BatchOutcome, error)
	// RunNow generates and delivers a schedule immediately without moving its
	// next_run_at.
	RunNow(ctx context.Context, tenant domain.TenantID, id int64) (domain.ScheduleResult, error)

	Create(ctx context.Context, s *domain.ReportSchedule) error
	Get(ctx context.Context, tenant domain.TenantID, id int64) (domain.ReportSchedule, error)
	List(ctx context.Context, tenant domain.TenantID) ([]domain.ReportSchedule, error)
	Deactivate(ctx context.Context, tenant domain.TenantID, id int64) error
	// Activate re-enables a schedule. A zero nextRunAt keeps the stored one.
	Activate(ctx context.Context, tenant domain.TenantID, id int64, nextRunAt time.Time) error
	Runs(ctx context.Context, tenant domain.TenantID, id int64, limit int) ([]domain.RunRecord, error)
}

type Observer interface {
	ScheduleRun(reportType, status string, notified int)
	BatchProcessed(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ScheduleRun(string, string, int) {}
func (nopObserver) BatchProcessed(time.Duration)    {}

type Settings struct {
	// Lease is how long a claimed schedule is hidden from other ticks.
	Lease     time.Duration
	RetryBase time.Duration
	RetryMax  time.Duration
	BatchSize int
}

func DefaultSettings() Settings {
	return Settings{
		Lease:     10 * time.Minute,
		RetryBase: time.Minute,
		RetryMax:  time.Hour,
		BatchSize: 100,
	}
}

type Dependencies struct {
	Store      schedule.Store
	Aggregator reports.Aggregator
	Composer   executive.Composer
	Exporter   export.Exporter
	Deliverer  delivery.Deliverer
	Observer   Observer
	Now        func() time.Time
}

type scheduler struct {
	store      schedule.Store
	aggregator reports.Aggregator
	composer   executive.Composer
	exporter   export.Exporter
	deliverer  delivery.Deliverer
	observer   Observer
	settings   Settings
	now        func() time.Time
}

func NewScheduler(deps Dependencies, settings Settings) (Scheduler, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("schedule store is nil")
	case deps.Aggregator == nil || deps.Composer == nil:
		return nil, fmt.Errorf("report generators are required")
	case deps.Exporter == nil:
		return nil, fmt.Errorf("exporter is nil")
	case deps.Deliverer == nil:
		return nil, fmt.Errorf("deliverer is nil")
	}

	defaults := DefaultSettings()
	if settings.Lease <= 0 {
		settings.Lease = defaults.Lease
	}
	if settings.RetryBase <= 0 {
		settings.RetryBase = defaults.RetryBase
	}
	if settings.RetryMax < settings.RetryBase {
		settings.RetryMax = max(defaults.RetryMax, settings.RetryBase)
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaults.BatchSize
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &scheduler{
		store:      deps.Store,
		aggregator: deps.Aggregator,
		composer:   deps.Composer,
		exporter:   deps.Exporter,
		deliverer:  deps.Deliverer,
		observer:   deps.Observer,
		settings:   settings,
		now:        deps.Now,
	}, nil
}

func (s *scheduler) ProcessDueReports(ctx context.Context) (domain.BatchOutcome, error) {
	logger := zerolog.Ctx(ctx)
	now := s.now().UTC()
	outcome := domain.BatchOutcome{
		StartedAt:    now,
		Results:      []domain.ScheduleResult{},
		ErrorDetails: []domain.ScheduleError{},
	}

	due, err := s.store.ListDue(ctx, now, s.settings.BatchSize)
	if err != nil {
		outcome.FinishedAt = s.now().UTC()
		return outcome, fmt.Errorf("list due schedules: %w", err)
	}
	outcome.Due = len(due)

	for _, sched := range due {
		if ctx.Err() != nil {
			break
		}
		outcome.Add(s.process(ctx, sched))
	}

	outcome.FinishedAt = s.now().UTC()
	s.observer.BatchProcessed(outcome.FinishedAt.Sub(outcome.StartedAt))
	logger.Info().
		Int("due", outcome.Due).
		Int("succeeded", outcome.Succeeded).
		Int("failed", outcome.Failed).
		Int("skipped", outcome.Skipped).
		Msg("due reports processed")
	return outcome, ctx.Err()
}

// process claims, runs and settles one due schedule. The lease starts when
// the claim is taken, not when the batch started.
func (s *scheduler) process(ctx context.Context, sched domain.ReportSchedule) domain.ScheduleResult {
	logger := scheduleLogger(ctx, sched)
	ctx = logger.WithContext(ctx)

	now := s.now().UTC()
	until := now.Add(s.settings.Lease)
	if err := s.store.Claim(ctx, sched, now, until); err != nil {
		if errors.Is(err, domain.ErrScheduleClaimed) {
			logger.Debug().Msg("schedule claimed elsewhere, skipping")
			return domain.ScheduleResult{
				ScheduleID: sched.ID,
				TenantID:   sched.TenantID,
				Status:     domain.RunSkipped,
				NextRunAt:  sched.NextRunAt,
			}
		}
		logger.Error().Err(err).Msg("failed to claim schedule")
		res := domain.ScheduleResult{
			ScheduleID: sched.ID,
			TenantID:   sched.TenantID,
			Status:     domain.RunFailed,
			NextRunAt:  sched.NextRunAt,
			Error:      err.Error(),
		}
		s.observer.ScheduleRun(string(sched.ReportType), string(res.Status), 0)
		return res
	}
	sched.LockedUntil = &until

	res, runErr := s.run(ctx, sched, sched.NextRunAt)
	finished := s.now().UTC()

	if runErr != nil {
		failures := sched.FailureCount + 1
		retryAt := finished.Add(backoff(s.settings.RetryBase, s.settings.RetryMax, failures))
		logger.Error().Err(runErr).
			Int("failures", failures).
			Time("retry_at", retryAt).
			Msg("scheduled report failed")

		res.Status = domain.RunFailed
		res.Error = runErr.Error()
		res.NextRunAt = sched.NextRunAt
		err := s.store.InTx(ctx, func(ctx context.Context) error {
			if err := s.store.Fail(ctx, sched, runErr.Error(), finished, retryAt); err != nil {
				return err
			}
			return s.store.RecordRun(ctx, runRecord(sched, res, now, finished))
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to record schedule failure")
		}
	} else {
		err := s.store.InTx(ctx, func(ctx context.Context) error {
			next, err := s.store.Complete(ctx, sched, finished)
			if err != nil {
				return err
			}
			res.NextRunAt = next
			return s.store.RecordRun(ctx, runRecord(sched, res, now, finished))
		})
		if err != nil {
			if errors.Is(err, domain.ErrScheduleClaimed) {
				logger.Warn().Time("locked_until", until).Msg("schedule lease expired before the run finished")
			} else {
				logger.Error().Err(err).Msg("failed to advance schedule")
			}
			res.Status = domain.RunFailed
			res.Error = fmt.Sprintf("advance schedule: %v", err)
			res.NextRunAt = sched.NextRunAt
		} else {
			logger.Info().Time("next_run_at", res.NextRunAt).Msg("scheduled report delivered")
		}
	}

	res.Duration = finished.Sub(now)
	notified := 0
	if res.Delivery != nil {
		notified = res.Delivery.RecipientsNotified
	}
	s.observer.ScheduleRun(string(sched.ReportType), string(res.Status), notified)
	return res
}

func (s *scheduler) RunNow(ctx context.Context, tenant domain.TenantID, id int64) (domain.ScheduleResult, error) {
	sched, err := s.store.Get(ctx, tenant, id)
	if err != nil {
		return domain.ScheduleResult{}, err
	}
	logger := scheduleLogger(ctx, sched)
	ctx = logger.WithContext(ctx)

	started := s.now().UTC()
	res, runErr := s.run(ctx, sched, started)
	finished := s.now().UTC()
	res.Duration = finished.Sub(started)
	res.NextRunAt = sched.NextRunAt
	if runErr != nil {
		res.Status = domain.RunFailed
		res.Error = runErr.Error()
	}

	if err := s.store.RecordRun(ctx, runRecord(sched, res, started, finished)); err != nil {
		logger.Error().Err(err).Msg("failed to record manual run")
	}
	notified := 0
	if res.Delivery != nil {
		notified = res.Delivery.RecipientsNotified
	}
	s.observer.ScheduleRun(string(sched.ReportType), string(res.Status), notified)
	return res, runErr
}

// run generates, exports and delivers one schedule for the period covering at.
func (s *scheduler) run(ctx context.Context, sched domain.ReportSchedule, at time.Time) (domain.ScheduleResult, error) {
	res := domain.ScheduleResult{
		ScheduleID: sched.ID,
		TenantID:   sched.TenantID,
		Status:     domain.RunSucceeded,
	}

	period, err := ResolvePeriod(sched, at)
	if err != nil {
		return res, generationError(sched, err)
	}
	res.Period = period

	report, err := GenerateReport(ctx, s.aggregator, s.composer, sched.TenantID, sched.ReportType, sched.Parameters.SubType, period)
	if err != nil {
		return res, generationError(sched, err)
	}

	file, err := s.exporter.Export(ctx, report, sched.Format)
	if err != nil {
		return res, fmt.Errorf("schedule %d: export %s: %w", sched.ID, sched.Format, err)
	}
	res.File = &file

	delivered := s.deliverer.Deliver(ctx, delivery.Request{
		TenantID:   sched.TenantID,
		ScheduleID: sched.ID,
		Title:      report.Title,
		Period:     period,
		File:       file,
		Recipients: sched.Recipients,
		Options:    sched.DeliveryOptions,
	})
	res.Delivery = &delivered

	switch delivered.Status {
	case domain.DeliveryFailed:
		return res, &domain.DeliveryError{ScheduleID: sched.ID, Result: delivered}
	case domain.DeliveryPartial:
		res.Status = domain.RunPartial
		zerolog.Ctx(ctx).Warn().Err(&domain.DeliveryError{ScheduleID: sched.ID, Result: delivered}).Msg("some recipients were not notified")
	}
	return res, nil
}

func (s *scheduler) Create(ctx context.Context, sched *domain.ReportSchedule) error {
	if sched.NextRunAt.IsZero() {
		sched.NextRunAt = sched.Frequency.Advance(s.now().UTC().Truncate(time.Minute))
	}
	if _, err := ResolvePeriod(*sched, sched.NextRunAt); err != nil {
		return err
	}
	return s.store.Create(ctx, sched)
}

func (s *scheduler) Get(ctx context.Context, tenant domain.TenantID, id int64) (domain.ReportSchedule, error) {
	return s.store.Get(ctx, tenant, id)
}

func (s *scheduler) List(ctx context.Context, tenant domain.TenantID) ([]domain.ReportSchedule, error) {
	return s.store.List(ctx, tenant)
}

func (s *scheduler) Deactivate(ctx context.Context, tenant domain.TenantID, id int64) error {
	return s.store.Deactivate(ctx, tenant, id)
}

func (s *scheduler) Activate(ctx context.Context, tenant domain.TenantID, id int64, nextRunAt time.Time) error {
	if nextRunAt.IsZero() {
		sched, err := s.store.Get(ctx, tenant, id)
		if err != nil {
			return err
		}
		nextRunAt = sched.NextRunAt
	}
	return s.store.Activate(ctx, tenant, id, nextRunAt)
}

func (s *scheduler) Runs(ctx context.Context, tenant domain.TenantID, id int64, limit int) ([]domain.RunRecord, error) {
	return s.store.ListRuns(ctx, tenant, id, limit)
}

func scheduleLogger(ctx context.Context, sched domain.ReportSchedule) zerolog.Logger {
	return zerolog.Ctx(ctx).With().
		Int64("tenant", int64(sched.TenantID)).
		Int64("schedule", sched.ID).
		Str("report_type", string(sched.ReportType)).
		Logger()
}

func generationError(sched domain.ReportSchedule, err error) error {
	return &domain.ScheduleGenerationError{ScheduleID: sched.ID, ReportType: string(sched.ReportType), Err: err}
}

func runRecord(sched domain.ReportSchedule, res domain.ScheduleResult, started, finished time.Time) domain.RunRecord {
	rec := domain.RunRecord{
		ID:          uuid.NewString(),
		ScheduleID:  sched.ID,
		TenantID:    sched.TenantID,
		Status:      res.Status,
		PeriodStart: res.Period.Start,
		PeriodEnd:   res.Period.End,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if res.Delivery != nil {
		rec.RecipientsNotified = res.Delivery.RecipientsNotified
	}
	if res.File != nil {
		rec.FilePath = res.File.Path
	}
	if res.Error != "" {
		msg := res.Error
		rec.Error = &msg
	}
	return rec
}
