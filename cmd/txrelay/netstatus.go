// cmd/txrelay/netstatus.go
package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/netmon"
	"github.com/altuslabsxyz/txrelay/internal/output"
)

func newNetStatusCmd() *cobra.Command {
	var watch time.Duration

	cmd := &cobra.Command{
		Use:   "netstatus",
		Short: "Show network connectivity as seen by the submitter",
		Long: `Probes the configured endpoint and prints the connectivity status. With
--watch, keeps printing status changes for the given duration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if watch > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, watch)
				defer cancel()
			}

			if err := printStatus(s.Monitor.Check(ctx)); err != nil || watch <= 0 {
				return err
			}

			updates := s.Monitor.Observe(ctx)
			<-updates
			for st := range updates {
				if err := printStatus(st); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&watch, "watch", 0, "Keep printing status changes for this long")
	return cmd
}

func printStatus(st netmon.Status) error {
	if flagJSON {
		return output.DefaultLogger.JSON(map[string]interface{}{
			"offline":          st.Offline,
			"just_reconnected": st.JustReconnected,
			"attempt":          st.Attempt,
			"next_retry_in":    st.NextRetryIn.String(),
		})
	}
	switch {
	case st.Offline:
		output.Warn("offline, re-checking in %s (attempt %d)", output.Countdown(st.NextRetryIn), st.Attempt)
	case st.JustReconnected:
		output.Success("back online")
	default:
		output.Success("online")
	}
	return nil
}
