package ledger

import (
	"errors"
	"time"
)

// RewardType identifies why a reward was granted.
type RewardType string

const (
	RewardTweet           RewardType = "tweet"
	RewardTelegramShare   RewardType = "telegram_share"
	RewardMintTweet       RewardType = "mint_tweet"
	RewardVote            RewardType = "vote"
	RewardProposalCreated RewardType = "proposal_created"
	RewardClaim           RewardType = "claim"
)

// KnownRewardTypes lists every reward type the ledger accepts.
var KnownRewardTypes = []RewardType{
	RewardTweet,
	RewardTelegramShare,
	RewardMintTweet,
	RewardVote,
	RewardProposalCreated,
	RewardClaim,
}

// Valid reports whether t is a known reward type.
func (t RewardType) Valid() bool {
	for _, k := range KnownRewardTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Sentinel errors
var (
	// ErrDuplicate means the backend already holds a reward for the tuple.
	ErrDuplicate = errors.New("reward already granted")

	// ErrNothingToClaim means the wallet has no unclaimed rewards.
	ErrNothingToClaim = errors.New("no claimable rewards")

	// ErrInvalidRequest means a required field is missing.
	ErrInvalidRequest = errors.New("invalid reward request")
)

// Record is one reward held by the ledger. Records are never mutated by
// the client and never deleted.
type Record struct {
	ID          string     `json:"id"`
	Wallet      string     `json:"wallet_address"`
	ReferenceID string     `json:"reference_id"`
	TxSignature string     `json:"tx_signature,omitempty"`
	RewardType  RewardType `json:"reward_type"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description,omitempty"`
	MintAddress string     `json:"mint_address,omitempty"`
	Claimed     bool       `json:"claimed"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GrantRequest asks the ledger to credit a reward.
type GrantRequest struct {
	Wallet      string     `json:"wallet"`
	ReferenceID string     `json:"reference_id"`
	RewardType  RewardType `json:"reward_type"`

	// Amount of zero lets the ledger apply its default.
	Amount int64 `json:"amount,omitempty"`

	MintAddress string `json:"mint_address,omitempty"`

	// Proof is supporting evidence, such as a transaction signature or a
	// post URL.
	Proof string `json:"proof,omitempty"`
}

// Validate checks required fields.
func (r GrantRequest) Validate() error {
	switch {
	case r.Wallet == "":
		return errors.Join(ErrInvalidRequest, errors.New("wallet is required"))
	case r.ReferenceID == "":
		return errors.Join(ErrInvalidRequest, errors.New("reference id is required"))
	case r.RewardType == "":
		return errors.Join(ErrInvalidRequest, errors.New("reward type is required"))
	case r.Amount < 0:
		return errors.Join(ErrInvalidRequest, errors.New("amount must not be negative"))
	}
	return nil
}

// GrantResult is the outcome of a grant. A duplicate is a successful no-op.
type GrantResult struct {
	Record    *Record `json:"record,omitempty"`
	Duplicate bool    `json:"duplicate"`
}

// Summary is a wallet's reward history as served by the ledger.
type Summary struct {
	// TotalRewards is the sum of unclaimed amounts.
	TotalRewards int64    `json:"totalRewards"`
	Claimable    []Record `json:"claimableRewards"`
	History      []Record `json:"rewardHistory"`
	Claims       []Claim  `json:"claims,omitempty"`
}

// Claim is a claim-all request recorded by the ledger.
type Claim struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ClaimStatusPending is the status of a newly recorded claim.
const ClaimStatusPending = "pending"
