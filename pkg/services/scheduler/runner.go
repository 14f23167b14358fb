package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const DefaultSpec = "@every 1m"

// Runner triggers ProcessDueReports on a cron spec. Ticks never overlap
// within one process; schedule claims cover overlap across processes.
type Runner struct {
	scheduler Scheduler
	cron      *cron.Cron
	spec      string
	timeout   time.Duration
	progress  chan domain.BatchOutcome
	jobs      []job
}

type job struct {
	name string
	spec string
	fn   func(ctx context.Context) error
}

type RunnerConfig struct {
	Spec string
	// TickTimeout bounds one tick. Keep it within the scheduler lease; zero
	// uses the default lease.
	TickTimeout time.Duration
}

func NewRunner(s Scheduler, cfg RunnerConfig) (*Runner, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = DefaultSettings().Lease
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", cfg.Spec, err)
	}
	return &Runner{
		scheduler: s,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:      cfg.Spec,
		timeout:   cfg.TickTimeout,
		progress:  make(chan domain.BatchOutcome, 16),
	}, nil
}

// Progress yields the outcome of every tick. Outcomes are dropped when
// nobody reads them.
func (r *Runner) Progress() <-chan domain.BatchOutcome {
	return r.progress
}

// AddJob runs fn on its own cron spec next to the report ticks, for
// housekeeping such as cache purging. Call it before Start.
func (r *Runner) AddJob(name, spec string, fn func(ctx context.Context) error) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid %s spec %q: %w", name, spec, err)
	}
	r.jobs = append(r.jobs, job{name: name, spec: spec, fn: fn})
	return nil
}

// Start schedules ticks until ctx is cancelled, then waits for the running
// tick and closes Progress.
func (r *Runner) Start(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	if _, err := r.cron.AddFunc(r.spec, func() { r.Tick(ctx) }); err != nil {
		return err
	}
	for _, j := range r.jobs {
		if _, err := r.cron.AddFunc(j.spec, func() { r.runJob(ctx, j) }); err != nil {
			return err
		}
	}
	r.cron.Start()
	logger.Info().Str("spec", r.spec).Msg("report scheduler started")

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
		close(r.progress)
		logger.Info().Msg("report scheduler stopped")
	}()
	return nil
}

// Tick processes due reports once.
func (r *Runner) Tick(ctx context.Context) domain.BatchOutcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	outcome, err := r.scheduler.ProcessDueReports(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("scheduler tick failed")
	}

	select {
	case r.progress <- outcome:
	default:
	}
	return outcome
}

func (r *Runner) runJob(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := j.fn(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job", j.name).Msg("scheduler job failed")
	}
}
