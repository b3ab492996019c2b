package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "txrelay.toml"

// Environment variable names
const (
	EnvDataDir           = "TXRELAY_DATA_DIR"
	EnvLogLevel          = "TXRELAY_LOG_LEVEL"
	EnvWallet            = "TXRELAY_WALLET"
	EnvKeypair           = "TXRELAY_KEYPAIR"
	EnvConfirmSign       = "TXRELAY_CONFIRM_SIGN"
	EnvDevMode           = "TXRELAY_DEV_MODE"
	EnvRPCEndpoint       = "TXRELAY_RPC_ENDPOINT"
	EnvCommitment        = "TXRELAY_COMMITMENT"
	EnvConfirmTimeout    = "TXRELAY_CONFIRM_TIMEOUT"
	EnvBackendURL        = "TXRELAY_BACKEND_URL"
	EnvBackendTimeout    = "TXRELAY_BACKEND_TIMEOUT"
	EnvMaxRetries        = "TXRELAY_MAX_RETRIES"
	EnvRetryDelays       = "TXRELAY_RETRY_DELAYS"
	EnvProbeURL          = "TXRELAY_PROBE_URL"
	EnvLedgerdListen     = "TXRELAY_LEDGERD_LISTEN"
	EnvLedgerdDataDir    = "TXRELAY_LEDGERD_DATA_DIR"
	EnvShareRewardAmount = "TXRELAY_SHARE_REWARD_AMOUNT"
)

// Loader loads configuration from file, environment, and applies defaults.
type Loader struct {
	dataDir    string
	configPath string // explicit config path (empty = use default)
}

// NewLoader creates a new config loader.
// dataDir is the base data directory (for finding txrelay.toml).
// configPath is an explicit config file path (empty = use dataDir/txrelay.toml).
func NewLoader(dataDir, configPath string) *Loader {
	return &Loader{
		dataDir:    dataDir,
		configPath: configPath,
	}
}

// Load loads configuration with priority: defaults < file < env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	if l.dataDir != "" {
		cfg.Client.DataDir = l.dataDir
	}

	fileCfg, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergeFileConfig(cfg, fileCfg); err != nil {
			return nil, fmt.Errorf("invalid value in %s: %w", l.path(), err)
		}
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file path the loader reads.
func (l *Loader) Path() string {
	return l.path()
}

func (l *Loader) path() string {
	if l.configPath != "" {
		return l.configPath
	}
	dir := l.dataDir
	if dir == "" {
		dir = DefaultDataDir()
	}
	return filepath.Join(dir, ConfigFileName)
}

// loadFile loads and parses the config file.
// Returns nil if no config file exists (not an error).
func (l *Loader) loadFile() (*FileConfig, error) {
	configPath := l.path()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg FileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("invalid TOML in %s: %w", configPath, err)
	}
	return &fileCfg, nil
}

// Write renders cfg as TOML to path, creating parent directories.
func Write(path string, cfg *Config) error {
	data, err := toml.Marshal(ToFile(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// durationSetter parses TOML duration strings, keeping the first error.
type durationSetter struct {
	err error
}

func (d *durationSetter) set(dst *time.Duration, key string, v *string) {
	if v == nil || d.err != nil {
		return
	}
	parsed, err := time.ParseDuration(*v)
	if err != nil {
		d.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = parsed
}

// mergeFileConfig merges non-nil FileConfig values into Config.
func mergeFileConfig(cfg *Config, file *FileConfig) error {
	var d durationSetter

	// Client
	if file.Client.DataDir != nil {
		cfg.Client.DataDir = *file.Client.DataDir
	}
	if file.Client.LogLevel != nil {
		cfg.Client.LogLevel = *file.Client.LogLevel
	}
	if file.Client.Wallet != nil {
		cfg.Client.Wallet = *file.Client.Wallet
	}
	if file.Client.Keypair != nil {
		cfg.Client.Keypair = *file.Client.Keypair
	}
	if file.Client.ConfirmSign != nil {
		cfg.Client.ConfirmSign = *file.Client.ConfirmSign
	}
	if file.Client.DevMode != nil {
		cfg.Client.DevMode = *file.Client.DevMode
	}

	// RPC
	if file.RPC.Endpoint != nil {
		cfg.RPC.Endpoint = *file.RPC.Endpoint
	}
	if file.RPC.Commitment != nil {
		cfg.RPC.Commitment = *file.RPC.Commitment
	}
	d.set(&cfg.RPC.ConfirmTimeout, "rpc.confirm_timeout", file.RPC.ConfirmTimeout)
	d.set(&cfg.RPC.PollInterval, "rpc.poll_interval", file.RPC.PollInterval)

	// Backend
	if file.Backend.BaseURL != nil {
		cfg.Backend.BaseURL = *file.Backend.BaseURL
	}
	d.set(&cfg.Backend.Timeout, "backend.timeout", file.Backend.Timeout)

	// Submit
	if file.Submit.MaxRetries != nil {
		cfg.Submit.MaxRetries = *file.Submit.MaxRetries
	}
	if len(file.Submit.RetryDelays) > 0 {
		delays, err := parseDelays(file.Submit.RetryDelays)
		if err != nil {
			return fmt.Errorf("submit.retry_delays: %w", err)
		}
		cfg.Submit.RetryDelays = delays
	}

	// Netmon
	if file.Netmon.ProbeURL != nil {
		cfg.Netmon.ProbeURL = *file.Netmon.ProbeURL
	}
	d.set(&cfg.Netmon.ProbeInterval, "netmon.probe_interval", file.Netmon.ProbeInterval)
	d.set(&cfg.Netmon.ReconnectedWindow, "netmon.reconnected_window", file.Netmon.ReconnectedWindow)
	d.set(&cfg.Netmon.BaseBackoff, "netmon.base_backoff", file.Netmon.BaseBackoff)
	d.set(&cfg.Netmon.MaxBackoff, "netmon.max_backoff", file.Netmon.MaxBackoff)

	// Governance
	if file.Governance.ProposalCreateThreshold != nil {
		cfg.Governance.ProposalCreateThreshold = *file.Governance.ProposalCreateThreshold
	}
	d.set(&cfg.Governance.RefreshDelay, "governance.refresh_delay", file.Governance.RefreshDelay)
	if file.Governance.HistorySize != nil {
		cfg.Governance.HistorySize = *file.Governance.HistorySize
	}
	if file.Governance.VoteReward != nil {
		cfg.Governance.VoteReward = *file.Governance.VoteReward
	}
	if file.Governance.ProposalReward != nil {
		cfg.Governance.ProposalReward = *file.Governance.ProposalReward
	}

	// Ledgerd
	if file.Ledgerd.Listen != nil {
		cfg.Ledgerd.Listen = *file.Ledgerd.Listen
	}
	if file.Ledgerd.DataDir != nil {
		cfg.Ledgerd.DataDir = *file.Ledgerd.DataDir
	}
	if file.Ledgerd.ShareRewardAmount != nil {
		cfg.Ledgerd.ShareRewardAmount = *file.Ledgerd.ShareRewardAmount
	}
	if file.Ledgerd.Metrics != nil {
		cfg.Ledgerd.Metrics = *file.Ledgerd.Metrics
	}
	d.set(&cfg.Ledgerd.ShutdownTimeout, "ledgerd.shutdown_timeout", file.Ledgerd.ShutdownTimeout)

	return d.err
}

// applyEnvVars applies environment variable overrides to config.
func applyEnvVars(cfg *Config) error {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Client.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Client.LogLevel = v
	}
	if v := os.Getenv(EnvWallet); v != "" {
		cfg.Client.Wallet = v
	}
	if v := os.Getenv(EnvKeypair); v != "" {
		cfg.Client.Keypair = v
	}
	if v := os.Getenv(EnvConfirmSign); v != "" {
		cfg.Client.ConfirmSign = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvDevMode); v != "" {
		cfg.Client.DevMode = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvRPCEndpoint); v != "" {
		cfg.RPC.Endpoint = v
	}
	if v := os.Getenv(EnvCommitment); v != "" {
		cfg.RPC.Commitment = v
	}
	if v := os.Getenv(EnvConfirmTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConfirmTimeout, err)
		}
		cfg.RPC.ConfirmTimeout = d
	}
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvBackendTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBackendTimeout, err)
		}
		cfg.Backend.Timeout = d
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRetries, err)
		}
		cfg.Submit.MaxRetries = i
	}
	if v := os.Getenv(EnvRetryDelays); v != "" {
		delays, err := parseDelays(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetryDelays, err)
		}
		cfg.Submit.RetryDelays = delays
	}
	if v := os.Getenv(EnvProbeURL); v != "" {
		cfg.Netmon.ProbeURL = v
	}
	if v := os.Getenv(EnvLedgerdListen); v != "" {
		cfg.Ledgerd.Listen = v
	}
	if v := os.Getenv(EnvLedgerdDataDir); v != "" {
		cfg.Ledgerd.DataDir = v
	}
	if v := os.Getenv(EnvShareRewardAmount); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvShareRewardAmount, err)
		}
		cfg.Ledgerd.ShareRewardAmount = i
	}
	return nil
}

func parseDelays(values []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(values))
	for _, v := range values {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
