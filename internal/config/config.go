// Package config loads txrelay and ledgerd configuration.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the single source of truth for txrelay configuration.
// Priority: defaults < config file < environment variables < CLI flags
type Config struct {
	Client     ClientConfig     `toml:"client"`
	RPC        RPCConfig        `toml:"rpc"`
	Backend    BackendConfig    `toml:"backend"`
	Submit     SubmitConfig     `toml:"submit"`
	Netmon     NetmonConfig     `toml:"netmon"`
	Governance GovernanceConfig `toml:"governance"`
	Ledgerd    LedgerdConfig    `toml:"ledgerd"`
}

// ClientConfig holds wallet session settings.
type ClientConfig struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	// Wallet is the address to act for. Empty uses the keypair's address.
	Wallet  string `toml:"wallet"`
	Keypair string `toml:"keypair"`

	// ConfirmSign asks before every signature when stdin is a terminal.
	ConfirmSign bool `toml:"confirm_sign"`

	// DevMode disables the periodic connectivity probe.
	DevMode bool `toml:"dev_mode"`
}

// RPCConfig holds Solana RPC settings.
type RPCConfig struct {
	Endpoint       string        `toml:"endpoint"`
	Commitment     string        `toml:"commitment"`
	ConfirmTimeout time.Duration `toml:"confirm_timeout"`
	PollInterval   time.Duration `toml:"poll_interval"`
}

// BackendConfig holds the preparation and reward API settings.
type BackendConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// SubmitConfig holds the transaction retry policy.
type SubmitConfig struct {
	MaxRetries  int             `toml:"max_retries"`
	RetryDelays []time.Duration `toml:"retry_delays"`
}

// NetmonConfig holds connectivity monitor settings.
type NetmonConfig struct {
	// ProbeURL defaults to the RPC endpoint.
	ProbeURL          string        `toml:"probe_url"`
	ProbeInterval     time.Duration `toml:"probe_interval"`
	ReconnectedWindow time.Duration `toml:"reconnected_window"`
	BaseBackoff       time.Duration `toml:"base_backoff"`
	MaxBackoff        time.Duration `toml:"max_backoff"`
}

// GovernanceConfig holds voting coordinator settings.
type GovernanceConfig struct {
	ProposalCreateThreshold int64         `toml:"proposal_create_threshold"`
	RefreshDelay            time.Duration `toml:"refresh_delay"`
	HistorySize             int           `toml:"history_size"`
	VoteReward              int64         `toml:"vote_reward"`
	ProposalReward          int64         `toml:"proposal_reward"`
}

// LedgerdConfig holds reference reward-ledger server settings.
type LedgerdConfig struct {
	Listen string `toml:"listen"`

	// DataDir holds ledger.db. Empty uses the client data dir.
	DataDir           string        `toml:"data_dir"`
	ShareRewardAmount int64         `toml:"share_reward_amount"`
	Metrics           bool          `toml:"metrics"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout"`
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".txrelay")
}

// DefaultKeypairPath returns the Solana CLI default keypair path.
func DefaultKeypairPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "solana", "id.json")
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			DataDir:     DefaultDataDir(),
			LogLevel:    "info",
			Keypair:     DefaultKeypairPath(),
			ConfirmSign: true,
		},
		RPC: RPCConfig{
			Endpoint:       "https://api.devnet.solana.com",
			Commitment:     "confirmed",
			ConfirmTimeout: 30 * time.Second,
			PollInterval:   500 * time.Millisecond,
		},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8787",
			Timeout: 15 * time.Second,
		},
		Submit: SubmitConfig{
			MaxRetries:  3,
			RetryDelays: []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
		},
		Netmon: NetmonConfig{
			ProbeInterval:     300 * time.Second,
			ReconnectedWindow: 5 * time.Second,
			BaseBackoff:       5 * time.Second,
			MaxBackoff:        300 * time.Second,
		},
		Governance: GovernanceConfig{
			ProposalCreateThreshold: 10,
			RefreshDelay:            1500 * time.Millisecond,
			HistorySize:             10,
		},
		Ledgerd: LedgerdConfig{
			Listen:            "127.0.0.1:8787",
			ShareRewardAmount: 5,
			Metrics:           true,
			ShutdownTimeout:   10 * time.Second,
		},
	}
}

// LedgerDataDir returns the directory holding ledger.db.
func (c *Config) LedgerDataDir() string {
	if c.Ledgerd.DataDir != "" {
		return c.Ledgerd.DataDir
	}
	return c.Client.DataDir
}

// ProbeURL returns the connectivity probe target.
func (c *Config) ProbeURL() string {
	if c.Netmon.ProbeURL != "" {
		return c.Netmon.ProbeURL
	}
	return c.RPC.Endpoint
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Client.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
