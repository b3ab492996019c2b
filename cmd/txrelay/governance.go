// cmd/txrelay/governance.go
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/governance"
	"github.com/altuslabsxyz/txrelay/internal/output"
)

func newVoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote <proposal> <for|against>",
		Short: "Vote on a governance proposal",
		Long: `Casts the wallet's voting power on a proposal. The vote transaction is
prepared by the backend, signed by the wallet and retried on transient failures.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var support bool
			switch strings.ToLower(args[1]) {
			case "for", "yes":
				support = true
			case "against", "no":
				support = false
			default:
				return fmt.Errorf("invalid side %q: use for or against", args[1])
			}

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
			res, err := s.Governance.CastVote(cmd.Context(), w, args[0], support)
			if err != nil {
				return err
			}
			p.done()
			return printResult(fmt.Sprintf("Vote cast on %s", args[0]), res)
		},
	}
	return cmd
}

func newProposeCmd() *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Create a governance proposal",
		Long: fmt.Sprintf(`Creates a proposal. Requires at least the configured voting power
(default %d). Titles are limited to %d characters and descriptions to %d.`,
			governance.DefaultProposalCreateThreshold, governance.MaxTitleLength, governance.MaxDescriptionLength),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			res, err := s.Governance.CreateProposal(cmd.Context(), w, title, description)
			if err != nil {
				return err
			}
			p.done()
			return printResult(fmt.Sprintf("Proposal %q created", title), res)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Proposal title")
	cmd.Flags().StringVar(&description, "description", "", "Proposal description")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newMemeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meme",
		Short: "Meme contest actions",
	}

	vote := &cobra.Command{
		Use:   "vote <meme>",
		Short: "Vote for a contest entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			res, err := s.Governance.VoteMeme(cmd.Context(), w, args[0])
			if err != nil {
				return err
			}
			p.done()
			return printResult(fmt.Sprintf("Voted for meme %s", args[0]), res)
		},
	}

	var sub governance.MemeSubmission
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit a contest entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			res, err := s.Governance.SubmitMeme(cmd.Context(), w, sub)
			if err != nil {
				return err
			}
			p.done()
			return printResult(fmt.Sprintf("Meme %q submitted", sub.Title), res)
		},
	}
	submit.Flags().StringVar(&sub.Title, "title", "", "Entry title")
	submit.Flags().StringVar(&sub.Description, "description", "", "Entry description")
	submit.Flags().StringVar(&sub.IPFSHash, "ipfs", "", "IPFS hash of the image")
	_ = submit.MarkFlagRequired("title")
	_ = submit.MarkFlagRequired("ipfs")

	cmd.AddCommand(vote, submit)
	return cmd
}

func newProposalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proposals",
		Short: "List governance proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			proposals, err := s.Governance.RefreshProposals(cmd.Context(), s.Address())
			if err != nil {
				return err
			}
			if flagJSON {
				return output.DefaultLogger.JSON(proposals)
			}
			if len(proposals) == 0 {
				output.Info("No proposals")
				return nil
			}

			tw := tabwriter.NewWriter(output.DefaultLogger.Writer(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROPOSAL\tTITLE\tFOR\tAGAINST\tQUORUM\tSTATUS\tYOUR VOTE")
			for _, pr := range proposals {
				vote := "-"
				if pr.Voted {
					vote = pr.YourVote
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					pr.ID, output.ShortSignature(pr.PublicKey), pr.Title,
					pr.ForVotes, pr.AgainstVotes,
					output.Percent(pr.ForVotes+pr.AgainstVotes, pr.Quorum),
					pr.Status, vote)
			}
			return tw.Flush()
		},
	}
}

func newPowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "power",
		Short: "Show the wallet's voting power",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.Address() == "" {
				return governance.ErrWalletNotConnected
			}
			vp, err := s.Governance.RefreshVotingPower(cmd.Context(), s.Address())
			if err != nil {
				return err
			}
			if flagJSON {
				return output.DefaultLogger.JSON(vp)
			}

			output.Bold("Wallet %s", s.Address())
			output.Info("  voting power:     %d", vp.VotingPower)
			output.Info("  active proposals: %d", vp.ActiveProposals)
			if vp.VotingPower >= s.Config.Governance.ProposalCreateThreshold {
				output.Success("Can create proposals")
			} else {
				output.Info("  needs %d to create proposals", s.Config.Governance.ProposalCreateThreshold)
			}
			return nil
		},
	}
}

// printResult reports a confirmed governance action.
func printResult(headline string, res *governance.Result) error {
	if flagJSON {
		return output.DefaultLogger.JSON(res)
	}
	output.Success("%s", headline)
	output.Info("  signature: %s", res.Signature)
	output.Info("  slot:      %d", res.Slot)
	if res.Retries > 0 {
		output.Info("  retries:   %d", res.Retries)
	}
	if res.ProposalPublicKey != "" {
		output.Info("  proposal:  %s", res.ProposalPublicKey)
	}
	if res.Reward != nil && res.Reward.Record != nil {
		output.Cyan("  reward:    +%d", res.Reward.Record.Amount)
	}
	return nil
}
