package config

import "time"

// FileConfig represents the raw txrelay.toml file contents.
// All fields are pointers to distinguish "not set" from "set to zero/false".
// Durations are strings since TOML cannot decode directly to time.Duration.
type FileConfig struct {
	Client     FileClientConfig     `toml:"client"`
	RPC        FileRPCConfig        `toml:"rpc"`
	Backend    FileBackendConfig    `toml:"backend"`
	Submit     FileSubmitConfig     `toml:"submit"`
	Netmon     FileNetmonConfig     `toml:"netmon"`
	Governance FileGovernanceConfig `toml:"governance"`
	Ledgerd    FileLedgerdConfig    `toml:"ledgerd"`
}

// FileClientConfig is the TOML representation of ClientConfig.
type FileClientConfig struct {
	DataDir     *string `toml:"data_dir,omitempty"`
	LogLevel    *string `toml:"log_level,omitempty"`
	Wallet      *string `toml:"wallet,omitempty"`
	Keypair     *string `toml:"keypair,omitempty"`
	ConfirmSign *bool   `toml:"confirm_sign,omitempty"`
	DevMode     *bool   `toml:"dev_mode,omitempty"`
}

// FileRPCConfig is the TOML representation of RPCConfig.
type FileRPCConfig struct {
	Endpoint       *string `toml:"endpoint,omitempty"`
	Commitment     *string `toml:"commitment,omitempty"`
	ConfirmTimeout *string `toml:"confirm_timeout,omitempty"`
	PollInterval   *string `toml:"poll_interval,omitempty"`
}

// FileBackendConfig is the TOML representation of BackendConfig.
type FileBackendConfig struct {
	BaseURL *string `toml:"base_url,omitempty"`
	Timeout *string `toml:"timeout,omitempty"`
}

// FileSubmitConfig is the TOML representation of SubmitConfig.
type FileSubmitConfig struct {
	MaxRetries  *int     `toml:"max_retries,omitempty"`
	RetryDelays []string `toml:"retry_delays,omitempty"`
}

// FileNetmonConfig is the TOML representation of NetmonConfig.
type FileNetmonConfig struct {
	ProbeURL          *string `toml:"probe_url,omitempty"`
	ProbeInterval     *string `toml:"probe_interval,omitempty"`
	ReconnectedWindow *string `toml:"reconnected_window,omitempty"`
	BaseBackoff       *string `toml:"base_backoff,omitempty"`
	MaxBackoff        *string `toml:"max_backoff,omitempty"`
}

// FileGovernanceConfig is the TOML representation of GovernanceConfig.
type FileGovernanceConfig struct {
	ProposalCreateThreshold *int64  `toml:"proposal_create_threshold,omitempty"`
	RefreshDelay            *string `toml:"refresh_delay,omitempty"`
	HistorySize             *int    `toml:"history_size,omitempty"`
	VoteReward              *int64  `toml:"vote_reward,omitempty"`
	ProposalReward          *int64  `toml:"proposal_reward,omitempty"`
}

// FileLedgerdConfig is the TOML representation of LedgerdConfig.
type FileLedgerdConfig struct {
	Listen            *string `toml:"listen,omitempty"`
	DataDir           *string `toml:"data_dir,omitempty"`
	ShareRewardAmount *int64  `toml:"share_reward_amount,omitempty"`
	Metrics           *bool   `toml:"metrics,omitempty"`
	ShutdownTimeout   *string `toml:"shutdown_timeout,omitempty"`
}

// IsEmpty returns true if no configuration values are set.
func (f *FileConfig) IsEmpty() bool {
	return f.Client == FileClientConfig{} &&
		f.RPC == FileRPCConfig{} &&
		f.Backend == FileBackendConfig{} &&
		f.Submit.MaxRetries == nil &&
		len(f.Submit.RetryDelays) == 0 &&
		f.Netmon == FileNetmonConfig{} &&
		f.Governance == FileGovernanceConfig{} &&
		f.Ledgerd == FileLedgerdConfig{}
}

// ToFile renders cfg with every field set, for writing or display.
func ToFile(cfg *Config) *FileConfig {
	str := func(s string) *string { return &s }
	dur := func(d time.Duration) *string { return str(d.String()) }
	delays := make([]string, 0, len(cfg.Submit.RetryDelays))
	for _, d := range cfg.Submit.RetryDelays {
		delays = append(delays, d.String())
	}

	return &FileConfig{
		Client: FileClientConfig{
			DataDir:     str(cfg.Client.DataDir),
			LogLevel:    str(cfg.Client.LogLevel),
			Wallet:      str(cfg.Client.Wallet),
			Keypair:     str(cfg.Client.Keypair),
			ConfirmSign: &cfg.Client.ConfirmSign,
			DevMode:     &cfg.Client.DevMode,
		},
		RPC: FileRPCConfig{
			Endpoint:       str(cfg.RPC.Endpoint),
			Commitment:     str(cfg.RPC.Commitment),
			ConfirmTimeout: dur(cfg.RPC.ConfirmTimeout),
			PollInterval:   dur(cfg.RPC.PollInterval),
		},
		Backend: FileBackendConfig{
			BaseURL: str(cfg.Backend.BaseURL),
			Timeout: dur(cfg.Backend.Timeout),
		},
		Submit: FileSubmitConfig{
			MaxRetries:  &cfg.Submit.MaxRetries,
			RetryDelays: delays,
		},
		Netmon: FileNetmonConfig{
			ProbeURL:          str(cfg.Netmon.ProbeURL),
			ProbeInterval:     dur(cfg.Netmon.ProbeInterval),
			ReconnectedWindow: dur(cfg.Netmon.ReconnectedWindow),
			BaseBackoff:       dur(cfg.Netmon.BaseBackoff),
			MaxBackoff:        dur(cfg.Netmon.MaxBackoff),
		},
		Governance: FileGovernanceConfig{
			ProposalCreateThreshold: &cfg.Governance.ProposalCreateThreshold,
			RefreshDelay:            dur(cfg.Governance.RefreshDelay),
			HistorySize:             &cfg.Governance.HistorySize,
			VoteReward:              &cfg.Governance.VoteReward,
			ProposalReward:          &cfg.Governance.ProposalReward,
		},
		Ledgerd: FileLedgerdConfig{
			Listen:            str(cfg.Ledgerd.Listen),
			DataDir:           str(cfg.Ledgerd.DataDir),
			ShareRewardAmount: &cfg.Ledgerd.ShareRewardAmount,
			Metrics:           &cfg.Ledgerd.Metrics,
			ShutdownTimeout:   dur(cfg.Ledgerd.ShutdownTimeout),
		},
	}
}
