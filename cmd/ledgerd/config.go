// cmd/ledgerd/config.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect ledgerd configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Displays the ledgerd settings after merging defaults, file and environment variables.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Effective ledgerd configuration:")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "[ledgerd]")
			fmt.Fprintf(w, "  listen              = %q\n", cfg.Ledgerd.Listen)
			fmt.Fprintf(w, "  data_dir            = %q\n", cfg.LedgerDataDir())
			fmt.Fprintf(w, "  share_reward_amount = %d\n", cfg.Ledgerd.ShareRewardAmount)
			fmt.Fprintf(w, "  metrics             = %v\n", cfg.Ledgerd.Metrics)
			fmt.Fprintf(w, "  shutdown_timeout    = %s\n", cfg.Ledgerd.ShutdownTimeout)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "[client]")
			fmt.Fprintf(w, "  log_level           = %q\n", cfg.Client.LogLevel)
			return nil
		},
	}
}
