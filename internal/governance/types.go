package governance

import (
	"time"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// Vote sides as reported per wallet.
const (
	SideFor     = "for"
	SideAgainst = "against"
)

// History labels.
const (
	EntryFor            = "For"
	EntryAgainst        = "Against"
	EntryCreated        = "Created Proposal"
	EntryMemeVote       = "Meme Vote"
	EntryMemeSubmission = "Meme Submission"
)

// Proposal is a governance proposal with the calling wallet's projection.
type Proposal struct {
	ID           string    `json:"id"`
	PublicKey    string    `json:"publicKey"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ForVotes     int64     `json:"forVotes"`
	AgainstVotes int64     `json:"againstVotes"`
	Quorum       int64     `json:"quorum"`
	Status       string    `json:"status"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	Creator      string    `json:"creator,omitempty"`

	Voted    bool   `json:"voted"`
	YourVote string `json:"yourVote,omitempty"`
	CanVote  bool   `json:"canVote"`
}

// VotingPower is the externally computed governance capacity of a wallet.
type VotingPower struct {
	Wallet            string `json:"wallet"`
	VotingPower       int64  `json:"votingPower"`
	CanCreateProposal bool   `json:"canCreateProposal"`
	ActiveProposals   int    `json:"activeProposals"`
}

// HistoryEntry is one local governance action.
type HistoryEntry struct {
	ID            string    `json:"id"`
	ProposalTitle string    `json:"proposalTitle"`
	Vote          string    `json:"vote"`
	Signature     string    `json:"signature"`
	Timestamp     time.Time `json:"timestamp"`
}

// MemeSubmission is a contest entry.
type MemeSubmission struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IPFSHash    string `json:"ipfsHash"`
}

// Prepared is an unsigned transaction built by the preparation service.
type Prepared struct {
	TransactionBase64 string `json:"transactionBase64"`
	ProposalPublicKey string `json:"proposalPublicKey,omitempty"`
	ProposalID        string `json:"proposalId,omitempty"`
	MemePDA           string `json:"memePDA,omitempty"`
	VotingPower       int64  `json:"votingPower,omitempty"`
}

// Wallet is a connected wallet: its address and the signer that holds its
// key.
type Wallet struct {
	Address string
	Signer  txsubmit.Signer
}

func (w Wallet) connected() bool {
	return w.Address != "" && w.Signer != nil
}

// Result is a confirmed governance action.
type Result struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Retries   int    `json:"retries"`

	// ProposalPublicKey is set by CreateProposal.
	ProposalPublicKey string `json:"proposalPublicKey,omitempty"`
	ProposalID        string `json:"proposalId,omitempty"`

	// Reward is the reward grant that followed, if any.
	Reward *ledger.GrantResult `json:"reward,omitempty"`
}
