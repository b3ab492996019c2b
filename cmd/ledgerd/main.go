// cmd/ledgerd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/config"
	"github.com/altuslabsxyz/txrelay/internal/ledger/server"
	"github.com/altuslabsxyz/txrelay/internal/ledger/store"
	"github.com/altuslabsxyz/txrelay/internal/metrics"
	"github.com/altuslabsxyz/txrelay/internal/session"
	"github.com/altuslabsxyz/txrelay/internal/version"
)

// DBFileName is the bolt database file inside the ledger data directory.
const DBFileName = "ledger.db"

// Flag variables for CLI overrides
var (
	flagConfigPath  string
	flagListen      string
	flagDataDir     string
	flagLogLevel    string
	flagShareAmount int64
	flagNoMetrics   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Reward ledger service",
		Long:          `ledgerd records off-chain rewards and claims and enforces one reward per wallet, reference and reward class.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLedger,
	}

	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file path (default: ~/.txrelay/txrelay.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", fmt.Sprintf("Data directory holding %s (default: %s)", DBFileName, defaults.LedgerDataDir()))

	rootCmd.Flags().StringVar(&flagListen, "listen", "", fmt.Sprintf("Listen address (default: %s)", defaults.Ledgerd.Listen))
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", fmt.Sprintf("Log level: debug, info, warn, error (default: %s)", defaults.Client.LogLevel))
	rootCmd.Flags().Int64Var(&flagShareAmount, "share-amount", 0, fmt.Sprintf("Reward amount when a grant carries none (default: %d)", defaults.Ledgerd.ShareRewardAmount))
	rootCmd.Flags().BoolVar(&flagNoMetrics, "no-metrics", false, "Disable the /metrics endpoint")

	rootCmd.AddCommand(version.NewCmd("txrelay", "ledgerd"))
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig loads defaults < file < env < flags and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader(config.DefaultDataDir(), flagConfigPath)
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

func runLedger(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := session.NewLogger(cfg, os.Stderr).With("component", "ledgerd")

	dir := cfg.LedgerDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.NewBoltStore(filepath.Join(dir, DBFileName))
	if err != nil {
		return err
	}
	defer st.Close()

	srvCfg := server.Config{
		Addr:            cfg.Ledgerd.Listen,
		DefaultAmount:   cfg.Ledgerd.ShareRewardAmount,
		ShutdownTimeout: cfg.Ledgerd.ShutdownTimeout,
		Logger:          logger,
	}
	if cfg.Ledgerd.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		srvCfg.Gatherer = reg
		srvCfg.Metrics = metrics.NewServer(reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting ledgerd",
		"version", version.Version,
		"listen", cfg.Ledgerd.Listen,
		"db", filepath.Join(dir, DBFileName),
		"metrics", cfg.Ledgerd.Metrics)

	return server.New(st, srvCfg).Run(ctx)
}

// applyFlagOverrides applies CLI flags to config (highest priority).
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Ledgerd.Listen = flagListen
	}
	if flags.Changed("data-dir") {
		cfg.Ledgerd.DataDir = flagDataDir
	}
	if flags.Changed("log-level") {
		cfg.Client.LogLevel = flagLogLevel
	}
	if flags.Changed("share-amount") {
		cfg.Ledgerd.ShareRewardAmount = flagShareAmount
	}
	if flags.Changed("no-metrics") {
		cfg.Ledgerd.Metrics = !flagNoMetrics
	}
}
