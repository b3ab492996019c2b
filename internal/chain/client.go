// Package chain adapts the Solana JSON-RPC API to the submitter's RPC
// contract.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// ErrConfirmTimeout is returned when a signature does not reach the
// requested commitment in time.
var ErrConfirmTimeout = errors.New("confirmation timed out")

// Config configures a Client.
type Config struct {
	// Endpoint is the JSON-RPC URL.
	Endpoint string

	// PollInterval is the delay between status polls while confirming.
	PollInterval time.Duration

	// ConfirmTimeout bounds ConfirmTransaction.
	ConfirmTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:       rpc.DevNet_RPC,
		PollInterval:   500 * time.Millisecond,
		ConfirmTimeout: 30 * time.Second,
	}
}

// Client implements txsubmit.RPC over solana-go.
type Client struct {
	rpc    *rpc.Client
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Client for cfg.Endpoint.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		rpc:    rpc.New(cfg.Endpoint),
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: logger,
	}
}

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// SendRawTransaction broadcasts signed bytes.
func (c *Client) SendRawTransaction(ctx context.Context, signed []byte, opts txsubmit.SendOptions) (string, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: rpc.CommitmentType(opts.PreflightCommitment),
	})
	if err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}

	c.logger.Debug("transaction sent", "signature", sig.String())
	return sig.String(), nil
}

// ConfirmTransaction polls the signature until it reaches commitment, fails
// on chain, or ConfirmTimeout elapses.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string, commitment txsubmit.Commitment) (*txsubmit.Confirmation, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	timeout := c.clock.Timer(c.cfg.ConfirmTimeout)
	defer timeout.Stop()
	ticker := c.clock.Ticker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		st, err := c.status(ctx, sig, false)
		if err != nil {
			c.logger.Debug("status poll failed", "signature", signature, "error", err)
		} else if st != nil {
			if st.Err != nil {
				return &txsubmit.Confirmation{Slot: st.Slot, Err: formatTxErr(st.Err)}, nil
			}
			if reached(st, commitment) {
				return &txsubmit.Confirmation{Slot: st.Slot}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, fmt.Errorf("%s at %s: %w", signature, commitment, ErrConfirmTimeout)
		case <-ticker.C:
		}
	}
}

// GetSignatureStatus looks the signature up, searching transaction history.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*txsubmit.SignatureStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	st, err := c.status(ctx, sig, true)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &txsubmit.SignatureStatus{Found: false}, nil
	}

	out := &txsubmit.SignatureStatus{
		Found:      true,
		Slot:       st.Slot,
		Commitment: commitmentOf(st),
	}
	if st.Err != nil {
		out.Err = formatTxErr(st.Err)
	}
	return out, nil
}

func (c *Client) status(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error) {
	res, err := c.rpc.GetSignatureStatuses(ctx, searchHistory, sig)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}

var commitmentRank = map[txsubmit.Commitment]int{
	txsubmit.CommitmentProcessed: 1,
	txsubmit.CommitmentConfirmed: 2,
	txsubmit.CommitmentFinalized: 3,
}

func commitmentOf(st *rpc.SignatureStatusesResult) txsubmit.Commitment {
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return txsubmit.CommitmentFinalized
	case rpc.ConfirmationStatusConfirmed:
		return txsubmit.CommitmentConfirmed
	case rpc.ConfirmationStatusProcessed:
		return txsubmit.CommitmentProcessed
	}
	// Rooted statuses from older nodes carry no confirmation count.
	if st.Confirmations == nil {
		return txsubmit.CommitmentFinalized
	}
	return txsubmit.CommitmentProcessed
}

func reached(st *rpc.SignatureStatusesResult, want txsubmit.Commitment) bool {
	need, ok := commitmentRank[want]
	if !ok {
		need = commitmentRank[txsubmit.CommitmentConfirmed]
	}
	return commitmentRank[commitmentOf(st)] >= need
}

func formatTxErr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
