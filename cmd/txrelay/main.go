// cmd/txrelay/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/altuslabsxyz/txrelay/internal/config"
	"github.com/altuslabsxyz/txrelay/internal/governance"
	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/output"
	"github.com/altuslabsxyz/txrelay/internal/session"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
	"github.com/altuslabsxyz/txrelay/internal/version"
)

// Flag variables for CLI overrides
var (
	flagConfigPath string
	flagDataDir    string
	flagLogLevel   string
	flagRPC        string
	flagBackend    string
	flagWallet     string
	flagKeypair    string
	flagNoConfirm  bool
	flagDevMode    bool

	flagJSON    bool
	flagNoColor bool
	flagVerbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		output.Error("%s", describeError(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "txrelay",
		Short:         "Wallet-side transaction relay",
		Long:          `txrelay signs, submits and confirms governance and contest transactions and tracks off-chain rewards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.DefaultLogger.SetJSONMode(flagJSON)
			output.DefaultLogger.SetNoColor(flagNoColor)
			output.DefaultLogger.SetVerbose(flagVerbose)
		},
	}

	defaults := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "Config file path (default: ~/.txrelay/txrelay.toml)")
	pf.StringVar(&flagDataDir, "data-dir", "", fmt.Sprintf("Data directory (default: %s)", defaults.Client.DataDir))
	pf.StringVar(&flagLogLevel, "log-level", "", fmt.Sprintf("Log level: debug, info, warn, error (default: %s)", defaults.Client.LogLevel))
	pf.StringVar(&flagRPC, "rpc", "", fmt.Sprintf("Solana RPC endpoint (default: %s)", defaults.RPC.Endpoint))
	pf.StringVar(&flagBackend, "backend", "", fmt.Sprintf("Backend API base URL (default: %s)", defaults.Backend.BaseURL))
	pf.StringVar(&flagWallet, "wallet", "", "Wallet address (default: keypair address)")
	pf.StringVar(&flagKeypair, "keypair", "", fmt.Sprintf("Keypair file (default: %s)", defaults.Client.Keypair))
	pf.BoolVar(&flagNoConfirm, "yes", false, "Sign without asking for confirmation")
	pf.BoolVar(&flagDevMode, "dev", false, "Development mode: no periodic connectivity probe")
	pf.BoolVar(&flagJSON, "json", false, "Output in JSON format")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newVoteCmd(),
		newProposeCmd(),
		newMemeCmd(),
		newProposalsCmd(),
		newPowerCmd(),
		newShareCmd(),
		newRewardsCmd(),
		newClaimCmd(),
		newSubmitCmd(),
		newNetStatusCmd(),
		newConfigCmd(),
		version.NewCmd("txrelay", "txrelay"),
	)
	return rootCmd
}

// loadConfig loads defaults < file < env < flags and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dataDir := config.DefaultDataDir()
	if flagDataDir != "" {
		dataDir = flagDataDir
	}

	loader := config.NewLoader(dataDir, flagConfigPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyFlagOverrides(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides applies CLI flags to config (highest priority).
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Client.DataDir = flagDataDir
	}
	if flags.Changed("log-level") {
		cfg.Client.LogLevel = flagLogLevel
	}
	if flags.Changed("rpc") {
		cfg.RPC.Endpoint = flagRPC
	}
	if flags.Changed("backend") {
		cfg.Backend.BaseURL = flagBackend
	}
	if flags.Changed("wallet") {
		cfg.Client.Wallet = flagWallet
	}
	if flags.Changed("keypair") {
		cfg.Client.Keypair = flagKeypair
	}
	if flags.Changed("yes") {
		cfg.Client.ConfirmSign = !flagNoConfirm
	}
	if flags.Changed("dev") {
		cfg.Client.DevMode = flagDevMode
	}
}

// openSession loads config and wires a session whose submissions are shown
// on the terminal.
func openSession(cmd *cobra.Command) (*session.Session, *progress, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	p := newProgress(output.DefaultLogger, flagJSON || !term.IsTerminal(int(os.Stderr.Fd())))
	s, err := session.Open(session.Options{
		Config:   cfg,
		Observer: p.observe,
		Logger:   session.NewLogger(cfg, os.Stderr),
	})
	if err != nil {
		return nil, nil, err
	}
	return s, p, nil
}

// describeError turns the typed failures into the message shown to users.
func describeError(err error) string {
	switch {
	case txsubmit.IsUserCancelled(err):
		return "transaction cancelled: the signature request was declined"
	case txsubmit.IsCancelled(err):
		return "transaction cancelled"
	case txsubmit.IsExhausted(err):
		return fmt.Sprintf("transaction failed after all retries: %v", err)
	case txsubmit.IsOnChain(err):
		return fmt.Sprintf("transaction failed on chain: %v", err)
	case errors.Is(err, governance.ErrWalletNotConnected):
		return "no wallet connected: set --keypair or client.keypair"
	case errors.Is(err, ledger.ErrNothingToClaim):
		return "no claimable rewards"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return err.Error()
	}
}
