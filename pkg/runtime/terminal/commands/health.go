package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewHealthCmd(provider Provider) *cobra.Command {
	var (
		tenant int64
		asOf   string
	)
	cmd := &cobra.Command{
		Use:   "health <client-id>",
		Short: "Score one client's health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tenantID(tenant)
			if err != nil {
				return err
			}
			clientID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid client id %q", args[0])
			}

			svc, err := provider(cmd.Context())
			if err != nil {
				return err
			}
			at := svc.Now().UTC()
			if asOf != "" {
				if at, err = time.Parse("2006-01-02", asOf); err != nil {
					return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
			}

			score, err := svc.Composer.ClientHealth(cmd.Context(), t, clientID, at)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(score); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	addTenantFlag(cmd, &tenant)
	cmd.Flags().StringVar(&asOf, "as-of", "", "Score date (YYYY-MM-DD), defaults to today")
	return cmd
}
