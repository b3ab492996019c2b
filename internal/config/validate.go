package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidCommitments are the allowed commitment levels.
var ValidCommitments = []string{"processed", "confirmed", "finalized"}

// Validate validates the configuration and returns an error if invalid.
func Validate(cfg *Config) error {
	var errs []string

	if !contains(ValidLogLevels, cfg.Client.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level %q (must be one of: %s)",
			cfg.Client.LogLevel, strings.Join(ValidLogLevels, ", ")))
	}

	// RPC
	if err := checkURL(cfg.RPC.Endpoint); err != nil {
		errs = append(errs, fmt.Sprintf("invalid rpc endpoint: %v", err))
	}
	if !contains(ValidCommitments, cfg.RPC.Commitment) {
		errs = append(errs, fmt.Sprintf("invalid commitment %q (must be one of: %s)",
			cfg.RPC.Commitment, strings.Join(ValidCommitments, ", ")))
	}
	if cfg.RPC.ConfirmTimeout <= 0 {
		errs = append(errs, "confirm_timeout must be positive")
	}
	if cfg.RPC.PollInterval <= 0 {
		errs = append(errs, "poll_interval must be positive")
	}

	// Backend
	if err := checkURL(cfg.Backend.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid backend base_url: %v", err))
	}
	if cfg.Backend.Timeout <= 0 {
		errs = append(errs, "backend timeout must be positive")
	}

	// Submit
	if cfg.Submit.MaxRetries < 0 {
		errs = append(errs, "max_retries must be non-negative")
	}
	if cfg.Submit.MaxRetries > 0 && len(cfg.Submit.RetryDelays) == 0 {
		errs = append(errs, "retry_delays must not be empty when max_retries is set")
	}
	for _, d := range cfg.Submit.RetryDelays {
		if d <= 0 {
			errs = append(errs, "retry_delays must all be positive")
			break
		}
	}

	// Netmon
	if cfg.Netmon.ProbeURL != "" {
		if err := checkURL(cfg.Netmon.ProbeURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid probe_url: %v", err))
		}
	}
	if cfg.Netmon.ProbeInterval < 0 {
		errs = append(errs, "probe_interval must be non-negative")
	}
	if cfg.Netmon.ReconnectedWindow < 0 {
		errs = append(errs, "reconnected_window must be non-negative")
	}
	if cfg.Netmon.BaseBackoff <= 0 {
		errs = append(errs, "base_backoff must be positive")
	}
	if cfg.Netmon.MaxBackoff < cfg.Netmon.BaseBackoff {
		errs = append(errs, "max_backoff must not be less than base_backoff")
	}

	// Governance
	if cfg.Governance.ProposalCreateThreshold < 1 {
		errs = append(errs, "proposal_create_threshold must be at least 1")
	}
	if cfg.Governance.RefreshDelay < 0 {
		errs = append(errs, "refresh_delay must be non-negative")
	}
	if cfg.Governance.HistorySize < 1 {
		errs = append(errs, "history_size must be at least 1")
	}
	if cfg.Governance.VoteReward < 0 || cfg.Governance.ProposalReward < 0 {
		errs = append(errs, "governance rewards must be non-negative")
	}

	// Ledgerd
	if cfg.Ledgerd.Listen == "" {
		errs = append(errs, "ledgerd listen address is required")
	}
	if cfg.Ledgerd.ShareRewardAmount < 1 {
		errs = append(errs, "share_reward_amount must be at least 1")
	}
	if cfg.Ledgerd.ShutdownTimeout < 0 {
		errs = append(errs, "shutdown_timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func checkURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}
