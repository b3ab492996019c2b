package txsubmit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a transaction attempt.
type State int

const (
	StateIdle State = iota
	StateSigning
	StateSubmitting
	StateConfirming
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSigning:
		return "Signing"
	case StateSubmitting:
		return "Submitting"
	case StateConfirming:
		return "Confirming"
	case StateConfirmed:
		return "Confirmed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Commitment is a confirmation depth requested from the chain.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Signer signs a serialized transaction. Returning an error or no bytes
// means the user declined; the submitter never retries that.
type Signer interface {
	SignTransaction(ctx context.Context, raw []byte) ([]byte, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, raw []byte) ([]byte, error)

// SignTransaction calls f.
func (f SignerFunc) SignTransaction(ctx context.Context, raw []byte) ([]byte, error) {
	return f(ctx, raw)
}

// SendOptions control a broadcast.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment Commitment
}

// Confirmation is the result of waiting for a signature. A non-empty Err
// means the transaction landed but failed on chain.
type Confirmation struct {
	Slot uint64
	Err  string
}

// SignatureStatus is a point-in-time settlement status.
type SignatureStatus struct {
	Found      bool
	Slot       uint64
	Commitment Commitment
	Err        string
}

// RPC is the subset of the chain RPC used by the submitter.
type RPC interface {
	// SendRawTransaction broadcasts signed bytes and returns the signature.
	SendRawTransaction(ctx context.Context, signed []byte, opts SendOptions) (string, error)

	// ConfirmTransaction blocks until signature reaches commitment.
	ConfirmTransaction(ctx context.Context, signature string, commitment Commitment) (*Confirmation, error)

	// GetSignatureStatus queries the settlement status of signature.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}

// Gate defers retries while the network is unusable.
type Gate interface {
	WaitOnline(ctx context.Context) error
}

// Descriptor is one logical transaction to submit.
type Descriptor struct {
	// Raw is the unsigned serialized transaction. Base64 is used when Raw
	// is empty.
	Raw    []byte
	Base64 string

	Signer Signer

	// Label names the intent (vote, proposal, ...) in logs and metrics.
	Label string

	// Observer receives this submission's transitions in addition to the
	// submitter-wide observers.
	Observer Observer
}

func (d Descriptor) raw() ([]byte, error) {
	if len(d.Raw) > 0 {
		return append([]byte(nil), d.Raw...), nil
	}
	if d.Base64 == "" {
		return nil, errors.New("empty transaction")
	}
	raw, err := base64.StdEncoding.DecodeString(d.Base64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 transaction: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("empty transaction")
	}
	return raw, nil
}

// Attempt is the state of one submission lifecycle. It is owned by the
// goroutine running Submit.
type Attempt struct {
	Label string

	// Raw is the unsigned transaction, re-signed every round.
	Raw []byte

	// Signed holds the current round's signed bytes; dropped on retry.
	Signed []byte

	Signature  string
	State      State
	RetryCount int
	LastError  error
}

// Transition is emitted on every state change.
type Transition struct {
	Label      string
	From       State
	To         State
	RetryCount int
	Signature  string

	// Err is set on transitions into StateFailed.
	Err error

	// RetryIn is set when a retry has been scheduled.
	RetryIn time.Duration

	At time.Time
}

// Observer receives transitions. Observers must not block; they cannot
// affect the submission.
type Observer func(Transition)

// Outcome is a confirmed submission.
type Outcome struct {
	Signature string
	Slot      uint64
	Retries   int
}
