package terminal

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/de-tools/msp-atlas/pkg/config"
	"github.com/de-tools/msp-atlas/pkg/runtime/app"
	"github.com/de-tools/msp-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/msp-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	reporter *export.Reporter
	rootCmd  *cobra.Command
	cfgPath  string
	provider commands.Provider
	app      *app.App
	services *commands.Services
}

// Options contain configuration for the CLI
type Options struct {
	Output io.Writer
	// Provider replaces the config-driven services, mainly for tests
	Provider commands.Provider
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cli := &CLI{reporter: export.NewReporter(opts.Output)}
	cli.provider = opts.Provider
	if cli.provider == nil {
		cli.provider = cli.open
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.ExecuteContext(context.Background())
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	defer cli.close()
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

// open loads the configuration and wires the services once per process.
func (cli *CLI) open(ctx context.Context) (*commands.Services, error) {
	if cli.services != nil {
		return cli.services, nil
	}

	cfg, err := config.Load(cli.cfgPath)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.Log)
	a, err := app.New(logger.WithContext(ctx), cfg)
	if err != nil {
		return nil, err
	}

	cli.app = a
	cli.services = &commands.Services{
		DB:         a.DB,
		Aggregator: a.Aggregator,
		Composer:   a.Composer,
		Scheduler:  a.Scheduler,
		Now:        time.Now,
	}
	return cli.services, nil
}

func (cli *CLI) close() {
	if cli.app != nil {
		_ = cli.app.Close()
		cli.app = nil
		cli.services = nil
	}
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "msp-atlas",
		Short:         "MSP reporting and scheduled delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cli.cfgPath, "config", "c", "",
		"Path to a config file; MSPATLAS_* variables override it")

	cmd.AddCommand(commands.NewReportCmd(cli.provider, cli.reporter))
	cmd.AddCommand(commands.NewHealthCmd(cli.provider))
	cmd.AddCommand(commands.NewSchedulesCmd(cli.provider, cli.reporter))
	cmd.AddCommand(commands.NewSeedCmd(cli.provider))

	return cmd
}
