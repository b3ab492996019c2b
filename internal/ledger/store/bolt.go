package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
)

// Bucket names
var (
	bucketRewards    = []byte("rewards")     // wallet \x00 id -> record
	bucketRewardKeys = []byte("reward_keys") // RewardKey -> id
	bucketClaims     = []byte("claims")      // wallet \x00 id -> claim
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRewards, bucketRewardKeys, bucketClaims} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateReward stores a new reward.
func (s *BoltStore) CreateReward(ctx context.Context, rec *ledger.Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		keys := tx.Bucket(bucketRewardKeys)
		rewards := tx.Bucket(bucketRewards)

		key := []byte(RewardKey(rec.Wallet, rec.ReferenceID, rec.RewardType))
		if keys.Get(key) != nil {
			return &AlreadyExistsError{
				Resource: "reward",
				Name:     fmt.Sprintf("%s/%s", ledger.CanonicalClass(rec.RewardType), rec.ReferenceID),
			}
		}

		if err := assignID(rec); err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := rewards.Put(walletKey(rec.Wallet, rec.ID), data); err != nil {
			return err
		}
		return keys.Put(key, []byte(rec.ID))
	})
}

// ListRewards lists the wallet's rewards, newest first.
func (s *BoltStore) ListRewards(ctx context.Context, wallet string) ([]*ledger.Record, error) {
	var out []*ledger.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanNewestFirst(tx.Bucket(bucketRewards), wallet, func(_, v []byte) error {
			var rec ledger.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimRewards claims every unclaimed reward in one transaction.
func (s *BoltStore) ClaimRewards(ctx context.Context, wallet string, now time.Time) (*ledger.Claim, error) {
	var claim *ledger.Claim
	err := s.db.Update(func(tx *bolt.Tx) error {
		rewards := tx.Bucket(bucketRewards)

		var total int64
		var updates [][2][]byte
		err := scanNewestFirst(rewards, wallet, func(k, v []byte) error {
			var rec ledger.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Claimed {
				return nil
			}
			rec.Claimed = true
			total += rec.Amount
			data, err := json.Marshal(&rec)
			if err != nil {
				return err
			}
			updates = append(updates, [2][]byte{append([]byte(nil), k...), data})
			return nil
		})
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return ledger.ErrNothingToClaim
		}

		for _, u := range updates {
			if err := rewards.Put(u[0], u[1]); err != nil {
				return err
			}
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate claim id: %w", err)
		}
		claim = &ledger.Claim{
			ID:        id.String(),
			Amount:    total,
			Status:    ledger.ClaimStatusPending,
			CreatedAt: now.UTC(),
		}
		data, err := json.Marshal(claim)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketClaims).Put(walletKey(wallet, claim.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// ListClaims lists the wallet's claims, newest first.
func (s *BoltStore) ListClaims(ctx context.Context, wallet string) ([]*ledger.Claim, error) {
	var out []*ledger.Claim
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanNewestFirst(tx.Bucket(bucketClaims), wallet, func(_, v []byte) error {
			var c ledger.Claim
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// walletKey prefixes a time-ordered id with the wallet.
func walletKey(wallet, id string) []byte {
	return []byte(wallet + "\x00" + id)
}

// scanNewestFirst visits every key under wallet in reverse order. IDs are
// UUIDv7, so reverse key order is newest first.
func scanNewestFirst(b *bolt.Bucket, wallet string, fn func(k, v []byte) error) error {
	prefix := []byte(wallet + "\x00")
	end := append(append([]byte(nil), prefix[:len(prefix)-1]...), 0x01)

	c := b.Cursor()
	k, v := c.Seek(end)
	if k == nil {
		k, v = c.Last()
	} else {
		k, v = c.Prev()
	}
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func assignID(rec *ledger.Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate reward id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}
