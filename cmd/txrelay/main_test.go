package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/config"
	"github.com/altuslabsxyz/txrelay/internal/governance"
	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/output"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

func TestShareReference(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		afterMint bool
		data      ledger.ShareData
		want      string
	}{
		{"tweet", ledger.PlatformTwitter, false, ledger.ShareData{NFTID: "12"}, "nft_tweet_0012"},
		{"mint tweet", ledger.PlatformTwitter, true, ledger.ShareData{NFTID: "12"}, "mint_0012"},
		{"telegram", ledger.PlatformTelegram, true, ledger.ShareData{NFTID: "12"}, "nft_telegram_0012"},
		{"transaction", ledger.PlatformTwitter, false, ledger.ShareData{TxSignature: "sig"}, "sig"},
		{"nothing", ledger.PlatformTwitter, false, ledger.ShareData{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shareReference(tt.platform, tt.afterMint, tt.data); got != tt.want {
				t.Errorf("shareReference() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&txsubmit.Error{Kind: txsubmit.KindUserCancelled}, "declined"},
		{fmt.Errorf("vote: %w", governance.ErrWalletNotConnected), "no wallet connected"},
		{ledger.ErrNothingToClaim, "no claimable rewards"},
		{fmt.Errorf("plain failure"), "plain failure"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("describeError(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&flagRPC, "rpc", "", "")
	cmd.Flags().StringVar(&flagBackend, "backend", "", "")
	cmd.Flags().BoolVar(&flagNoConfirm, "yes", false, "")
	if err := cmd.Flags().Set("rpc", "http://127.0.0.1:8899"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("yes", "true"); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	applyFlagOverrides(cmd, cfg)

	if cfg.RPC.Endpoint != "http://127.0.0.1:8899" {
		t.Errorf("expected rpc override, got %q", cfg.RPC.Endpoint)
	}
	if cfg.Backend.BaseURL != config.DefaultConfig().Backend.BaseURL {
		t.Errorf("unchanged flag must not override, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Client.ConfirmSign {
		t.Error("expected --yes to disable sign confirmation")
	}
}

func TestVoteRejectsUnknownSide(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"vote", "PropP111", "maybe"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid side") {
		t.Errorf("expected invalid side error, got %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	output.DefaultLogger = output.NewLoggerTo(&strings.Builder{}, &strings.Builder{})
	dir := t.TempDir()

	root := newRootCmd()
	root.SetArgs([]string{"config", "init", "--data-dir", dir, "--rpc", "http://127.0.0.1:8899"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	path := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	cfg, err := config.NewLoader(dir, "").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPC.Endpoint != "http://127.0.0.1:8899" {
		t.Errorf("expected flag value in written config, got %q", cfg.RPC.Endpoint)
	}

	root = newRootCmd()
	root.SetArgs([]string{"config", "init", "--data-dir", dir})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected already exists error, got %v", err)
	}

	root = newRootCmd()
	root.SetArgs([]string{"config", "show", "--data-dir", dir})
	if err := root.Execute(); err != nil {
		t.Errorf("config show: %v", err)
	}
}

func TestProgress(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newProgress(output.NewLoggerTo(&out, &errOut), false)

	p.observe(txsubmit.Transition{Label: "vote", To: txsubmit.StateSigning})
	p.observe(txsubmit.Transition{Label: "vote", To: txsubmit.StateConfirming, Signature: "sig"})
	if got := p.spin.Message(); got != "Confirming vote sig" {
		t.Errorf("unexpected spinner message %q", got)
	}
	p.observe(txsubmit.Transition{Label: "vote", To: txsubmit.StateFailed, RetryIn: 2 * time.Second})
	p.done()

	if !strings.Contains(out.String(), "Waiting for signature on vote") {
		t.Errorf("expected signing prompt on stdout, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "Confirming vote sig") {
		t.Errorf("expected spinner line on stderr, got %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), "retrying vote in 2s") {
		t.Errorf("expected retry warning, got %q", errOut.String())
	}
}

func TestProgress_Quiet(t *testing.T) {
	var out, errOut bytes.Buffer
	log := output.NewLoggerTo(&out, &errOut)
	log.SetVerbose(true)
	p := newProgress(log, true)

	p.observe(txsubmit.Transition{Label: "vote", To: txsubmit.StateSubmitting})
	p.done()

	if out.Len() != 0 {
		t.Errorf("expected no stdout in quiet mode, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[DEBUG] Sending vote") {
		t.Errorf("expected debug line, got %q", errOut.String())
	}
}
