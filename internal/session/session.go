// Package session wires configuration into a ready wallet session: chain
// client, network monitor, submitter, reward ledger and governance.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/altuslabsxyz/txrelay/internal/chain"
	"github.com/altuslabsxyz/txrelay/internal/config"
	"github.com/altuslabsxyz/txrelay/internal/governance"
	"github.com/altuslabsxyz/txrelay/internal/httpapi"
	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/metrics"
	"github.com/altuslabsxyz/txrelay/internal/netmon"
	"github.com/altuslabsxyz/txrelay/internal/signer"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// Options holds the configuration and optional overrides for Open.
type Options struct {
	Config *config.Config

	// Registerer receives submit and ledger metrics. Nil disables them.
	Registerer prometheus.Registerer

	// Observer sees every submission's transitions.
	Observer txsubmit.Observer

	// Overrides; nil values are built from Config.
	RPC    txsubmit.RPC
	Signal netmon.Signal
	Signer txsubmit.Signer
	Clock  clock.Clock
	Logger *slog.Logger
}

// Session holds the wired components for one wallet.
type Session struct {
	Config     *config.Config
	API        *httpapi.Client
	Monitor    *netmon.Monitor
	Submitter  *txsubmit.Submitter
	Ledger     *ledger.Client
	Governance *governance.Coordinator

	wallet governance.Wallet
	logger *slog.Logger
}

// NewLogger builds the slog text logger for cfg.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// Open builds every component from opts. The session must be closed.
func Open(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("session: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg, os.Stderr)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	wallet, err := loadWallet(cfg, opts.Signer)
	if err != nil {
		return nil, err
	}

	rpc := opts.RPC
	if rpc == nil {
		rpc = chain.New(chain.Config{
			Endpoint:       cfg.RPC.Endpoint,
			PollInterval:   cfg.RPC.PollInterval,
			ConfirmTimeout: cfg.RPC.ConfirmTimeout,
			Logger:         logger.With("component", "chain"),
		})
	}

	signal := opts.Signal
	if signal == nil {
		signal = netmon.NewProbeSignal(netmon.ProbeConfig{
			URL:    cfg.ProbeURL(),
			Logger: logger.With("component", "probe"),
		})
	}
	monCfg := netmon.Config{
		BaseDelay:         cfg.Netmon.BaseBackoff,
		MaxDelay:          cfg.Netmon.MaxBackoff,
		ReconnectedWindow: cfg.Netmon.ReconnectedWindow,
		ProbeInterval:     cfg.Netmon.ProbeInterval,
		Clock:             clk,
		Logger:            logger.With("component", "netmon"),
	}
	if cfg.Client.DevMode {
		monCfg.ProbeInterval = 0
	}
	monitor := netmon.NewMonitor(signal, monCfg)

	var (
		submitMetrics *metrics.Submit
		ledgerMetrics *metrics.Ledger
	)
	if opts.Registerer != nil {
		submitMetrics = metrics.NewSubmit(opts.Registerer)
		ledgerMetrics = metrics.NewLedger(opts.Registerer)
	}

	var subOpts []txsubmit.Option
	if opts.Observer != nil {
		subOpts = append(subOpts, txsubmit.WithObserver(opts.Observer))
	}
	submitter := txsubmit.New(rpc, txsubmit.Config{
		MaxRetries:  cfg.Submit.MaxRetries,
		RetryDelays: cfg.Submit.RetryDelays,
		Commitment:  txsubmit.Commitment(cfg.RPC.Commitment),
		Clock:       clk,
		Gate:        monitor,
		Metrics:     submitMetrics,
		Logger:      logger.With("component", "submit"),
	}, subOpts...)

	api := httpapi.New(httpapi.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger.With("component", "api"),
	})

	rewards := ledger.NewClient(ledger.NewHTTPBackend(api), ledger.Config{
		Metrics: ledgerMetrics,
		Logger:  logger.With("component", "ledger"),
	})

	gov := governance.New(governance.NewHTTPBackend(api), submitter, governance.Config{
		ProposalCreateThreshold: cfg.Governance.ProposalCreateThreshold,
		RefreshDelay:            cfg.Governance.RefreshDelay,
		HistorySize:             cfg.Governance.HistorySize,
		Rewards:                 rewards,
		VoteReward:              cfg.Governance.VoteReward,
		ProposalReward:          cfg.Governance.ProposalReward,
		Clock:                   clk,
		Logger:                  logger.With("component", "governance"),
	})

	logger.Debug("session opened",
		"wallet", wallet.Address,
		"rpc", cfg.RPC.Endpoint,
		"backend", cfg.Backend.BaseURL,
		"dev_mode", cfg.Client.DevMode)

	return &Session{
		Config:     cfg,
		API:        api,
		Monitor:    monitor,
		Submitter:  submitter,
		Ledger:     rewards,
		Governance: gov,
		wallet:     wallet,
		logger:     logger,
	}, nil
}

// Address returns the session's wallet address, which may be set without
// a signer for read-only use.
func (s *Session) Address() string {
	return s.wallet.Address
}

// Wallet returns the signing wallet.
func (s *Session) Wallet() (governance.Wallet, error) {
	if s.wallet.Address == "" || s.wallet.Signer == nil {
		return governance.Wallet{}, governance.ErrWalletNotConnected
	}
	return s.wallet, nil
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Close stops pending refreshes, cancels in-flight retry waits, drops the
// wallet's cached reward history and stops the monitor.
func (s *Session) Close() error {
	s.Governance.Close()
	s.Submitter.Cancel()
	if s.wallet.Address != "" {
		s.Ledger.Forget(s.wallet.Address)
	}
	return s.Monitor.Close()
}

// loadWallet resolves the signer and address. A missing keypair file is
// not an error; the session is then read-only.
func loadWallet(cfg *config.Config, override txsubmit.Signer) (governance.Wallet, error) {
	w := governance.Wallet{Address: cfg.Client.Wallet, Signer: override}
	if override != nil || cfg.Client.Keypair == "" {
		return w, nil
	}

	if _, err := os.Stat(cfg.Client.Keypair); err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return w, fmt.Errorf("failed to stat keypair: %w", err)
	}
	kp, err := signer.LoadKeypair(cfg.Client.Keypair)
	if err != nil {
		return w, err
	}
	if w.Address == "" {
		w.Address = kp.Address()
	} else if w.Address != kp.Address() {
		return w, fmt.Errorf("keypair %s belongs to %s, not configured wallet %s",
			cfg.Client.Keypair, kp.Address(), w.Address)
	}

	w.Signer = kp
	if cfg.Client.ConfirmSign && signer.Interactive() {
		w.Signer = signer.NewPromptSigner(kp)
	}
	return w, nil
}
