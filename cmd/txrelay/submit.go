// cmd/txrelay/submit.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/output"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

func newSubmitCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "submit <base64-tx|->",
		Short: "Sign, send and confirm a serialized transaction",
		Long: `Submits an unsigned base64 transaction with the configured retry policy.
Use - to read the transaction from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded := args[0]
			if encoded == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read transaction: %w", err)
				}
				encoded = string(data)
			}
			encoded = strings.TrimSpace(encoded)

			s, p, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			defer p.done()

			w, err := s.Wallet()
			if err != nil {
				return err
			}
			out, err := s.Submitter.Submit(cmd.Context(), txsubmit.Descriptor{
				Base64: encoded,
				Signer: w.Signer,
				Label:  label,
			})
			if err != nil {
				return err
			}
			p.done()

			if flagJSON {
				return output.DefaultLogger.JSON(out)
			}
			output.Success("Transaction confirmed")
			output.Info("  signature: %s", out.Signature)
			output.Info("  slot:      %d", out.Slot)
			output.Info("  retries:   %d", out.Retries)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "transaction", "Name shown in progress and metrics")
	return cmd
}
