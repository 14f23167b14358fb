package commands

import (
	"fmt"

	"github.com/de-tools/msp-atlas/pkg/store/duckdb"
	"github.com/spf13/cobra"
)

func NewSeedCmd(provider Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset into the configured datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := provider(cmd.Context())
			if err != nil {
				return err
			}
			if err := duckdb.SeedDemo(cmd.Context(), svc.DB); err != nil {
				return fmt.Errorf("failed to seed demo data: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Demo data loaded for tenant %d\n", duckdb.DemoTenant)
			return nil
		},
	}
}
