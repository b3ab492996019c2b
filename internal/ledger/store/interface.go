// Package store persists reward records and claims for the reward-ledger
// service.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
)

// Store defines reward persistence.
type Store interface {
	// CreateReward stores rec, assigning ID and CreatedAt when empty. It
	// fails with an AlreadyExistsError when the wallet already holds a
	// reward for the same reference in the same class.
	CreateReward(ctx context.Context, rec *ledger.Record) error

	// ListRewards returns the wallet's rewards, newest first.
	ListRewards(ctx context.Context, wallet string) ([]*ledger.Record, error)

	// ClaimRewards marks every unclaimed reward of wallet as claimed and
	// records one pending claim for their total. With nothing to claim it
	// returns ledger.ErrNothingToClaim.
	ClaimRewards(ctx context.Context, wallet string, now time.Time) (*ledger.Claim, error)

	// ListClaims returns the wallet's claims, newest first.
	ListClaims(ctx context.Context, wallet string) ([]*ledger.Claim, error)

	// Close closes the store.
	Close() error
}

// RewardKey is the uniqueness key of a reward: one record per wallet,
// reference and reward class.
func RewardKey(wallet, reference string, t ledger.RewardType) string {
	return strings.Join([]string{wallet, ledger.CanonicalClass(t), reference}, "\x00")
}
