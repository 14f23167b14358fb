// Package app assembles the reporting services from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/de-tools/msp-atlas/pkg/cache"
	"github.com/de-tools/msp-atlas/pkg/config"
	handlers "github.com/de-tools/msp-atlas/pkg/handlers/reports"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/observability"
	"github.com/de-tools/msp-atlas/pkg/services/delivery"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/export"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/de-tools/msp-atlas/pkg/services/widgets"
	"github.com/de-tools/msp-atlas/pkg/store/duckdb"
	"github.com/de-tools/msp-atlas/pkg/store/files"
	"github.com/de-tools/msp-atlas/pkg/store/postgres"
	"github.com/de-tools/msp-atlas/pkg/store/schedule"
	"github.com/rs/zerolog"
)

type App struct {
	Config     config.Config
	DB         *sql.DB
	Metrics    *observability.Metrics
	Engine     metrics.Engine
	Widgets    widgets.Renderer
	Aggregator reports.Aggregator
	Composer   executive.Composer
	Exporter   export.Exporter
	Scheduler  scheduler.Scheduler

	// CachePurger is set when the cache store keeps expired rows around.
	CachePurger cache.Purger

	closers []io.Closer
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// New opens the datastore and wires every service. Close releases what it
// opened, in reverse order.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := zerolog.Ctx(ctx)
	a := &App{Config: cfg, Metrics: observability.NewMetrics()}

	db, err := a.openDatastore(ctx)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db)

	c, err := a.openCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Engine, err = metrics.NewEngine(db, metrics.Options{SLA: cfg.SLA.Policy()})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create metric engine: %w", err)
	}
	a.Widgets = widgets.NewRenderer(a.Engine, c)
	a.Aggregator = reports.NewAggregator(a.Engine, reports.Options{
		Cache:        c,
		DashboardTTL: cfg.Reports.DashboardTTL,
		ReportTTL:    cfg.Reports.ReportTTL,
		Concurrency:  cfg.Reports.Concurrency,
	})
	a.Composer = executive.NewComposer(a.Engine, a.Aggregator, executive.Options{
		Cache:       c,
		TTL:         cfg.Reports.ExecutiveTTL,
		Concurrency: cfg.Reports.Concurrency,
	})

	fileStore, err := a.openFileStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Exporter, err = export.NewExporter(fileStore, export.Options{DefaultFormat: domain.ExportFormat(cfg.Export.DefaultFormat)})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	deliverer, err := a.newDeliverer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := schedule.NewStore(db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create schedule store: %w", err)
	}
	a.Scheduler, err = scheduler.NewScheduler(scheduler.Dependencies{
		Store:      store,
		Aggregator: a.Aggregator,
		Composer:   a.Composer,
		Exporter:   a.Exporter,
		Deliverer:  deliverer,
		Observer:   a.Metrics,
	}, scheduler.Settings{
		Lease:     cfg.Scheduler.Lease,
		RetryBase: cfg.Scheduler.RetryBase,
		RetryMax:  cfg.Scheduler.RetryMax,
		BatchSize: cfg.Scheduler.BatchSize,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	logger.Info().
		Str("datastore", cfg.Datastore.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("storage", cfg.Export.Storage).
		Msg("services initialized")
	return a, nil
}

func (a *App) openDatastore(ctx context.Context) (*sql.DB, error) {
	ds := a.Config.Datastore
	switch ds.Driver {
	case "postgres":
		settings := postgres.DefaultSettings()
		settings.DSN = ds.DSN
		settings.Migrate = ds.Migrate
		if ds.MaxConns > 0 {
			settings.MaxConns = ds.MaxConns
		}
		db, _, err := postgres.NewDB(ctx, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	default:
		db, err := duckdb.NewDB(duckdb.Settings{DbPath: ds.Path, Threads: ds.Threads})
		if err != nil {
			return nil, fmt.Errorf("failed to create DuckDB instance: %w", err)
		}
		return db, nil
	}
}

// openCache returns nil when caching is disabled.
func (a *App) openCache() (*cache.Cache, error) {
	var store cache.Store
	switch a.Config.Cache.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		s, err := cache.OpenSQLite(a.Config.Cache.Path)
		if err != nil {
			return nil, err
		}
		store = s
		a.CachePurger = s
	default:
		store = cache.NewMemoryStore()
	}
	a.closers = append(a.closers, store)
	return cache.New(store, a.Metrics), nil
}

func (a *App) openFileStore(ctx context.Context) (files.Store, error) {
	ec := a.Config.Export
	if ec.Storage == "s3" {
		s, err := files.NewS3Store(ctx, files.S3Settings{
			Bucket:          ec.S3.Bucket,
			Region:          ec.S3.Region,
			Prefix:          ec.S3.Prefix,
			Endpoint:        ec.S3.Endpoint,
			AccessKeyID:     ec.S3.AccessKeyID,
			SecretAccessKey: ec.S3.SecretAccessKey,
			PublicURL:       ec.S3.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		return s, nil
	}
	return files.NewLocalStore(ec.Dir, ec.PublicURL)
}

// newDeliverer registers email only when an API key is configured and
// publishes events only when brokers are.
func (a *App) newDeliverer(ctx context.Context) (delivery.Deliverer, error) {
	dc := a.Config.Delivery
	channels := map[domain.Channel]delivery.Channel{
		domain.ChannelChat: delivery.NewChatChannel(dc.WebhookTimeout),
	}

	if dc.SendGridAPIKey != "" {
		email, err := delivery.NewEmailChannel(delivery.EmailSettings{
			APIKey:    dc.SendGridAPIKey,
			FromEmail: dc.FromEmail,
			FromName:  dc.FromName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create email channel: %w", err)
		}
		channels[domain.ChannelEmail] = email
	} else {
		zerolog.Ctx(ctx).Warn().Msg("sendgrid api key not set, email delivery disabled")
	}

	var publisher delivery.Publisher
	if len(dc.KafkaBrokers) > 0 {
		p, err := delivery.NewKafkaPublisher(delivery.KafkaSettings{Brokers: dc.KafkaBrokers, Topic: dc.KafkaTopic})
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		a.closers = append(a.closers, p)
		publisher = p
	}
	return delivery.NewDeliverer(channels, publisher), nil
}

// HandlerDependencies exposes the services to the HTTP layer.
func (a *App) HandlerDependencies() handlers.Dependencies {
	return handlers.Dependencies{
		Engine:     a.Engine,
		Widgets:    a.Widgets,
		Aggregator: a.Aggregator,
		Composer:   a.Composer,
		Exporter:   a.Exporter,
		Scheduler:  a.Scheduler,
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
