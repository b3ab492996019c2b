package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
)

// MemoryStore implements Store in memory. Used by tests and by ledgerd
// when no data directory is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	rewards map[string][]*ledger.Record // wallet -> oldest first
	keys    map[string]string
	claims  map[string][]*ledger.Claim
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rewards: make(map[string][]*ledger.Record),
		keys:    make(map[string]string),
		claims:  make(map[string][]*ledger.Claim),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateReward stores a new reward.
func (s *MemoryStore) CreateReward(ctx context.Context, rec *ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := RewardKey(rec.Wallet, rec.ReferenceID, rec.RewardType)
	if _, exists := s.keys[key]; exists {
		return &AlreadyExistsError{
			Resource: "reward",
			Name:     fmt.Sprintf("%s/%s", ledger.CanonicalClass(rec.RewardType), rec.ReferenceID),
		}
	}
	if err := assignID(rec); err != nil {
		return err
	}

	cp := *rec
	s.rewards[rec.Wallet] = append(s.rewards[rec.Wallet], &cp)
	s.keys[key] = rec.ID
	return nil
}

// ListRewards lists the wallet's rewards, newest first.
func (s *MemoryStore) ListRewards(ctx context.Context, wallet string) ([]*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.rewards[wallet]
	out := make([]*ledger.Record, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		cp := *recs[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ClaimRewards claims every unclaimed reward.
func (s *MemoryStore) ClaimRewards(ctx context.Context, wallet string, now time.Time) (*ledger.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	var pending []*ledger.Record
	for _, rec := range s.rewards[wallet] {
		if !rec.Claimed {
			pending = append(pending, rec)
			total += rec.Amount
		}
	}
	if len(pending) == 0 {
		return nil, ledger.ErrNothingToClaim
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate claim id: %w", err)
	}
	for _, rec := range pending {
		rec.Claimed = true
	}

	claim := &ledger.Claim{
		ID:        id.String(),
		Amount:    total,
		Status:    ledger.ClaimStatusPending,
		CreatedAt: now.UTC(),
	}
	s.claims[wallet] = append(s.claims[wallet], claim)

	cp := *claim
	return &cp, nil
}

// ListClaims lists the wallet's claims, newest first.
func (s *MemoryStore) ListClaims(ctx context.Context, wallet string) ([]*ledger.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := s.claims[wallet]
	out := make([]*ledger.Claim, 0, len(claims))
	for i := len(claims) - 1; i >= 0; i-- {
		cp := *claims[i]
		out = append(out, &cp)
	}
	return out, nil
}
