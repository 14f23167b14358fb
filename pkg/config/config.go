package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/spf13/viper"
)

const EnvPrefix = "MSPATLAS"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Datastore DatastoreConfig `mapstructure:"datastore"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	SLA       SLAConfig       `mapstructure:"sla"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit is requests per second per client; zero disables limiting
	RateLimit   float64  `mapstructure:"rate_limit"`
	RateBurst   int      `mapstructure:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type DatastoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Threads  int    `mapstructure:"threads"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type CacheConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type ReportsConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	DashboardTTL time.Duration `mapstructure:"dashboard_ttl"`
	ReportTTL    time.Duration `mapstructure:"report_ttl"`
	ExecutiveTTL time.Duration `mapstructure:"executive_ttl"`
}

type SLAConfig struct {
	FirstResponseMinutes int `mapstructure:"first_response_minutes"`
	ResolutionMinutes    int `mapstructure:"resolution_minutes"`
}

func (c SLAConfig) Policy() domain.SLAPolicy {
	return domain.SLAPolicy{FirstResponseMinutes: c.FirstResponseMinutes, ResolutionMinutes: c.ResolutionMinutes}
}

type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Spec        string        `mapstructure:"spec"`
	Lease       time.Duration `mapstructure:"lease"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
	RetryMax    time.Duration `mapstructure:"retry_max"`
	BatchSize   int           `mapstructure:"batch_size"`
	TickTimeout time.Duration `mapstructure:"tick_timeout"`
}

type ExportConfig struct {
	DefaultFormat string   `mapstructure:"default_format"`
	Storage       string   `mapstructure:"storage"`
	Dir           string   `mapstructure:"dir"`
	PublicURL     string   `mapstructure:"public_url"`
	S3            S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicURL       string `mapstructure:"public_url"`
}

type DeliveryConfig struct {
	SendGridAPIKey string        `mapstructure:"sendgrid_api_key"`
	FromEmail      string        `mapstructure:"from_email"`
	FromName       string        `mapstructure:"from_name"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	KafkaBrokers   []string      `mapstructure:"kafka_brokers"`
	KafkaTopic     string        `mapstructure:"kafka_topic"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
			CORSOrigins:     []string{"*"},
		},
		Log:       LogConfig{Level: "info"},
		Datastore: DatastoreConfig{Driver: "duckdb", Path: "msp-atlas.duckdb", Threads: 4, MaxConns: 10, Migrate: true},
		Cache:     CacheConfig{Driver: "memory", Path: "msp-atlas-cache.db"},
		Reports: ReportsConfig{
			Concurrency:  4,
			DashboardTTL: 5 * time.Minute,
			ReportTTL:    15 * time.Minute,
			ExecutiveTTL: time.Hour,
		},
		SLA: SLAConfig{FirstResponseMinutes: 60, ResolutionMinutes: 480},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Spec:        "@every 1m",
			Lease:       10 * time.Minute,
			RetryBase:   time.Minute,
			RetryMax:    time.Hour,
			BatchSize:   100,
			TickTimeout: 10 * time.Minute,
		},
		Export: ExportConfig{
			DefaultFormat: string(domain.ExportPDF),
			Storage:       "local",
			Dir:           "reports",
		},
		Delivery: DeliveryConfig{
			FromName:       "MSP Atlas Reports",
			WebhookTimeout: 10 * time.Second,
			KafkaTopic:     "report-deliveries",
		},
	}
}

// Load reads path (optional) over the defaults, then applies MSPATLAS_*
// environment overrides, e.g. MSPATLAS_SERVER_PORT.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]any{
		"server.host":                 d.Server.Host,
		"server.port":                 d.Server.Port,
		"server.shutdown_timeout":     d.Server.ShutdownTimeout,
		"server.rate_limit":           d.Server.RateLimit,
		"server.rate_burst":           d.Server.RateBurst,
		"server.cors_origins":         d.Server.CORSOrigins,
		"log.level":                   d.Log.Level,
		"log.pretty":                  d.Log.Pretty,
		"datastore.driver":            d.Datastore.Driver,
		"datastore.path":              d.Datastore.Path,
		"datastore.threads":           d.Datastore.Threads,
		"datastore.dsn":               d.Datastore.DSN,
		"datastore.max_conns":         d.Datastore.MaxConns,
		"datastore.migrate":           d.Datastore.Migrate,
		"cache.driver":                d.Cache.Driver,
		"cache.path":                  d.Cache.Path,
		"reports.concurrency":         d.Reports.Concurrency,
		"reports.dashboard_ttl":       d.Reports.DashboardTTL,
		"reports.report_ttl":          d.Reports.ReportTTL,
		"reports.executive_ttl":       d.Reports.ExecutiveTTL,
		"sla.first_response_minutes":  d.SLA.FirstResponseMinutes,
		"sla.resolution_minutes":      d.SLA.ResolutionMinutes,
		"scheduler.enabled":           d.Scheduler.Enabled,
		"scheduler.spec":              d.Scheduler.Spec,
		"scheduler.lease":             d.Scheduler.Lease,
		"scheduler.retry_base":        d.Scheduler.RetryBase,
		"scheduler.retry_max":         d.Scheduler.RetryMax,
		"scheduler.batch_size":        d.Scheduler.BatchSize,
		"scheduler.tick_timeout":      d.Scheduler.TickTimeout,
		"export.default_format":       d.Export.DefaultFormat,
		"export.storage":              d.Export.Storage,
		"export.dir":                  d.Export.Dir,
		"export.public_url":           d.Export.PublicURL,
		"export.s3.bucket":            d.Export.S3.Bucket,
		"export.s3.region":            d.Export.S3.Region,
		"export.s3.prefix":            d.Export.S3.Prefix,
		"export.s3.endpoint":          d.Export.S3.Endpoint,
		"export.s3.access_key_id":     d.Export.S3.AccessKeyID,
		"export.s3.secret_access_key": d.Export.S3.SecretAccessKey,
		"export.s3.public_url":        d.Export.S3.PublicURL,
		"delivery.sendgrid_api_key":   d.Delivery.SendGridAPIKey,
		"delivery.from_email":         d.Delivery.FromEmail,
		"delivery.from_name":          d.Delivery.FromName,
		"delivery.webhook_timeout":    d.Delivery.WebhookTimeout,
		"delivery.kafka_brokers":      d.Delivery.KafkaBrokers,
		"delivery.kafka_topic":        d.Delivery.KafkaTopic,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Datastore.Driver {
	case "duckdb":
		if c.Datastore.Path == "" {
			errs = append(errs, errors.New("datastore.path is required for duckdb"))
		}
	case "postgres":
		if c.Datastore.DSN == "" {
			errs = append(errs, errors.New("datastore.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown datastore driver %q", c.Datastore.Driver))
	}

	switch c.Cache.Driver {
	case "memory", "none":
	case "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}

	switch c.Export.Storage {
	case "local":
	case "s3":
		if c.Export.S3.Bucket == "" {
			errs = append(errs, errors.New("export.s3.bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown export storage %q", c.Export.Storage))
	}
	if c.Export.DefaultFormat != "" {
		if _, err := domain.ParseExportFormat(c.Export.DefaultFormat); err != nil {
			errs = append(errs, err)
		}
	}

	if c.SLA.FirstResponseMinutes <= 0 || c.SLA.ResolutionMinutes <= 0 {
		errs = append(errs, errors.New("sla targets must be positive"))
	}
	if c.Scheduler.TickTimeout > c.Scheduler.Lease {
		errs = append(errs, errors.New("scheduler.tick_timeout must not exceed scheduler.lease"))
	}
	if c.Reports.Concurrency <= 0 {
		errs = append(errs, errors.New("reports.concurrency must be positive"))
	}
	return errors.Join(errs...)
}
