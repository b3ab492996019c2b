// cmd/txrelay/rewards.go
package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/governance"
	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/output"
)

func newShareCmd() *cobra.Command {
	var (
		data      ledger.ShareData
		afterMint bool
		noGrant   bool
	)

	cmd := &cobra.Command{
		Use:   "share <twitter|telegram>",
		Short: "Build a share link and record the share reward",
		Long: `Prints the share intent URL for an NFT or transaction and credits the
share reward once per NFT and platform. Sharing the same NFT again is not rewarded.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{ledger.PlatformTwitter, ledger.PlatformTelegram},
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := args[0]
			link, err := ledger.ShareURL(ledger.DefaultShareConfig(), platform, data)
			if err != nil {
				return err
			}

			ref := shareReference(platform, afterMint, data)
			if noGrant || ref == "" {
				if flagJSON {
					return output.DefaultLogger.JSON(map[string]string{"url": link})
				}
				output.Info("%s", link)
				return nil
			}

			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			wallet := s.Address()
			if wallet == "" {
				return governance.ErrWalletNotConnected
			}
			if _, err := s.Ledger.RefreshHistory(cmd.Context(), wallet); err != nil {
				output.Warn("could not load reward history: %v", err)
			}

			res, err := s.Ledger.Grant(cmd.Context(), ledger.GrantRequest{
				Wallet:      wallet,
				ReferenceID: ref,
				RewardType:  ledger.ShareRewardType(platform, afterMint),
				Amount:      s.Config.Ledgerd.ShareRewardAmount,
				MintAddress: data.MintAddress,
				Proof:       data.TxSignature,
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return output.DefaultLogger.JSON(map[string]interface{}{"url": link, "grant": res})
			}
			output.Info("%s", link)
			if res.Duplicate {
				output.Warn("this share was already rewarded")
				return nil
			}
			output.Success("Share reward recorded: +%d", res.Record.Amount)
			return nil
		},
	}

	cmd.Flags().StringVar(&data.NFTID, "nft", "", "NFT number")
	cmd.Flags().StringVar(&data.Tier, "tier", "", "NFT tier")
	cmd.Flags().StringVar(&data.MintAddress, "mint", "", "Mint address")
	cmd.Flags().StringVar(&data.TxSignature, "tx", "", "Transaction signature")
	cmd.Flags().BoolVar(&afterMint, "after-mint", false, "Share made right after minting")
	cmd.Flags().BoolVar(&noGrant, "no-reward", false, "Only print the share link")
	return cmd
}

// shareReference picks the dedup reference for a share: the NFT when known,
// otherwise the transaction.
func shareReference(platform string, afterMint bool, data ledger.ShareData) string {
	if data.NFTID == "" {
		return data.TxSignature
	}
	switch {
	case platform == ledger.PlatformTelegram:
		return ledger.TelegramReference(data.NFTID)
	case afterMint:
		return ledger.MintReference(data.NFTID)
	default:
		return ledger.TweetReference(data.NFTID)
	}
}

func newRewardsCmd() *cobra.Command {
	var nftID string

	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Show reward totals and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			wallet := s.Address()
			if wallet == "" {
				return governance.ErrWalletNotConnected
			}
			sum, err := s.Ledger.Summary(cmd.Context(), wallet)
			if err != nil {
				return err
			}

			if nftID != "" {
				st := s.Ledger.NFTStatus(wallet, nftID)
				if flagJSON {
					return output.DefaultLogger.JSON(st)
				}
				output.Bold("NFT #%s", ledger.NormalizeNFTID(nftID))
				output.Info("  tweet:      %v", st.Tweet)
				output.Info("  mint tweet: %v", st.MintTweet)
				output.Info("  telegram:   %v", st.Telegram)
				return nil
			}

			if flagJSON {
				return output.DefaultLogger.JSON(sum)
			}
			output.Bold("Claimable: %d (%d rewards)", sum.TotalRewards, len(sum.Claimable))
			if len(sum.History) == 0 {
				return nil
			}
			output.Println("")

			tw := tabwriter.NewWriter(output.DefaultLogger.Writer(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTYPE\tREFERENCE\tAMOUNT\tCLAIMED")
			for _, r := range sum.History {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.RewardType,
					output.ShortSignature(r.ReferenceID), r.Amount, r.Claimed)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(sum.Claims) == 0 {
				return nil
			}
			output.Println("")
			output.Bold("Claims")
			for _, c := range sum.Claims {
				output.Info("  %s  %-8s %d  %s", c.CreatedAt.Format("2006-01-02 15:04"), c.Status, c.Amount, c.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&nftID, "nft", "", "Show share status of one NFT")
	return cmd
}

func newClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim every unclaimed reward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			wallet := s.Address()
			if wallet == "" {
				return governance.ErrWalletNotConnected
			}
			claim, err := s.Ledger.Claim(cmd.Context(), wallet)
			if err != nil {
				if errors.Is(err, ledger.ErrNothingToClaim) && !flagJSON {
					output.Info("Nothing to claim")
					return nil
				}
				return err
			}
			if flagJSON {
				return output.DefaultLogger.JSON(claim)
			}
			output.Success("Claimed %d (claim %s, %s)", claim.Amount, claim.ID, claim.Status)
			return nil
		},
	}
}
