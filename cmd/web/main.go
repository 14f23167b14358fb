package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/msp-atlas/pkg/config"
	"github.com/de-tools/msp-atlas/pkg/runtime/app"
	"github.com/de-tools/msp-atlas/pkg/server"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the MSP Atlas reporting API and scheduler",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a config file (yaml, json or toml); MSPATLAS_* variables override it")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	web := server.NewWebAPI(logger, server.Config{
		Addr:            net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Dependencies: server.Dependencies{
			Reports: a.HandlerDependencies(),
			Metrics: a.Metrics,
		},
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return web.Start(ctx) })

	if cfg.Scheduler.Enabled {
		runner, err := scheduler.NewRunner(a.Scheduler, scheduler.RunnerConfig{
			Spec:        cfg.Scheduler.Spec,
			TickTimeout: cfg.Scheduler.TickTimeout,
		})
		if err != nil {
			return err
		}
		if a.CachePurger != nil {
			err := runner.AddJob("cache purge", "@every 15m", func(ctx context.Context) error {
				n, err := a.CachePurger.Purge(ctx)
				if err == nil && n > 0 {
					zerolog.Ctx(ctx).Debug().Int64("entries", n).Msg("expired cache entries purged")
				}
				return err
			})
			if err != nil {
				return err
			}
		}
		g.Go(func() error { return runner.Start(ctx) })
		g.Go(func() error { return drain(ctx, runner) })
	} else {
		logger.Info().Msg("report scheduler disabled")
	}

	return g.Wait()
}

// drain logs tick outcomes until the runner closes its progress channel.
func drain(ctx context.Context, runner *scheduler.Runner) error {
	for outcome := range runner.Progress() {
		if outcome.Processed == 0 {
			continue
		}
		zerolog.Ctx(ctx).Info().
			Int("processed", outcome.Processed).
			Int("succeeded", outcome.Succeeded).
			Int("failed", outcome.Failed).
			Int("skipped", outcome.Skipped).
			Msg("scheduled reports processed")
	}
	return nil
}
