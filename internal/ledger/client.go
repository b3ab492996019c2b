// Package ledger grants off-chain rewards exactly once per qualifying action
// and keeps a per-wallet read cache of reward history for dedup checks.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/altuslabsxyz/txrelay/internal/cache"
	"github.com/altuslabsxyz/txrelay/internal/metrics"
)

// Config configures a Client.
type Config struct {
	Metrics *metrics.Ledger
	Logger  *slog.Logger
}

// Client wraps a Backend with client-side dedup. The cache is only an
// optimization; the backend remains the authority on uniqueness.
type Client struct {
	backend Backend
	metrics *metrics.Ledger
	logger  *slog.Logger

	mu        sync.Mutex
	histories map[string]*cache.Versioned[[]Record]
}

// NewClient creates a Client.
func NewClient(backend Backend, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:   backend,
		metrics:   cfg.Metrics,
		logger:    logger,
		histories: make(map[string]*cache.Versioned[[]Record]),
	}
}

func (c *Client) history(wallet string) *cache.Versioned[[]Record] {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.histories[wallet]
	if !ok {
		h = &cache.Versioned[[]Record]{}
		c.histories[wallet] = h
	}
	return h
}

// History returns the cached reward history of wallet.
func (c *Client) History(wallet string) []Record {
	return append([]Record(nil), c.history(wallet).Load()...)
}

// HasGranted reports, from the cache only, whether wallet already holds a
// reward for ref in the class of t.
func (c *Client) HasGranted(wallet, ref string, t RewardType) bool {
	return HasGrantedIn(c.history(wallet).Load(), ref, t)
}

// NFTStatus reports the cached per-platform share state of an NFT.
func (c *Client) NFTStatus(wallet, nftID string) NFTRewardStatus {
	return NFTStatusIn(c.history(wallet).Load(), nftID)
}

// Grant credits a reward. A reward already present locally or rejected as
// a duplicate by the backend yields Duplicate=true and no error. Other
// backend errors are returned unchanged.
func (c *Client) Grant(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if c.HasGranted(req.Wallet, req.ReferenceID, req.RewardType) {
		c.logger.Debug("reward already in history, skipping grant",
			"wallet", req.Wallet,
			"reference", req.ReferenceID,
			"type", req.RewardType)
		c.metrics.Grant(string(req.RewardType), "duplicate")
		return &GrantResult{Duplicate: true}, nil
	}

	rec, err := c.backend.Grant(ctx, req)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			c.logger.Info("ledger reported duplicate reward",
				"wallet", req.Wallet,
				"reference", req.ReferenceID,
				"type", req.RewardType)
			c.metrics.Grant(string(req.RewardType), "duplicate")
			c.refreshQuietly(ctx, req.Wallet)
			return &GrantResult{Duplicate: true}, nil
		}
		c.metrics.Grant(string(req.RewardType), "error")
		return nil, err
	}

	// Reflect the grant before returning so no reader sees it as missing.
	c.history(req.Wallet).Update(func(old []Record) []Record {
		next := make([]Record, 0, len(old)+1)
		next = append(next, *rec)
		return append(next, old...)
	})

	c.logger.Info("reward granted",
		"wallet", req.Wallet,
		"reference", req.ReferenceID,
		"type", req.RewardType,
		"amount", rec.Amount)
	c.metrics.Grant(string(req.RewardType), "granted")

	c.refreshQuietly(ctx, req.Wallet)
	return &GrantResult{Record: rec}, nil
}

// RefreshHistory replaces the cached history of wallet with the ledger's.
// A result is discarded if a newer refresh or grant was applied meanwhile.
func (c *Client) RefreshHistory(ctx context.Context, wallet string) ([]Record, error) {
	s, err := c.Summary(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.History, nil
}

// Summary fetches the wallet's totals and history, refreshing the cache.
func (c *Client) Summary(ctx context.Context, wallet string) (*Summary, error) {
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet is required", ErrInvalidRequest)
	}
	h := c.history(wallet)
	ticket := h.Begin()

	s, err := c.backend.History(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if !h.Commit(ticket, append([]Record(nil), s.History...)) {
		c.logger.Debug("discarding stale reward history", "wallet", wallet, "ticket", ticket)
	}
	return s, nil
}

// Claim claims every unclaimed reward of wallet and refreshes the cache.
func (c *Client) Claim(ctx context.Context, wallet string) (*Claim, error) {
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet is required", ErrInvalidRequest)
	}
	claim, err := c.backend.Claim(ctx, wallet)
	if err != nil {
		if errors.Is(err, ErrNothingToClaim) {
			c.metrics.Claim("empty")
		} else {
			c.metrics.Claim("error")
		}
		return nil, err
	}

	c.logger.Info("rewards claimed", "wallet", wallet, "amount", claim.Amount, "claim", claim.ID)
	c.metrics.Claim("ok")

	c.refreshQuietly(ctx, wallet)
	return claim, nil
}

// Forget drops the cached history of wallet.
func (c *Client) Forget(wallet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.histories, wallet)
}

func (c *Client) refreshQuietly(ctx context.Context, wallet string) {
	if _, err := c.RefreshHistory(ctx, wallet); err != nil {
		c.logger.Warn("failed to refresh reward history", "wallet", wallet, "error", err)
	}
}
