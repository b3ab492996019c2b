package txsubmit

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrEmptySignature    = errors.New("signer returned no transaction")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoSigner          = errors.New("no signer")
)

// Kind classifies a terminal submission failure.
type Kind int

const (
	// KindUserCancelled means the signer declined. Never retried.
	KindUserCancelled Kind = iota + 1

	// KindExhaustedRetries means every round failed.
	KindExhaustedRetries

	// KindInvalidTransaction means the descriptor could not be decoded.
	KindInvalidTransaction

	// KindCancelled means Cancel was called or the context ended.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUserCancelled:
		return "UserCancelled"
	case KindExhaustedRetries:
		return "ExhaustedRetries"
	case KindInvalidTransaction:
		return "InvalidTransaction"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the terminal failure of a submission.
type Error struct {
	Kind      Kind
	Label     string
	Signature string
	Retries   int
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Label, e.Kind)
	if e.Kind == KindExhaustedRetries {
		msg = fmt.Sprintf("%s after %d retries", msg, e.Retries)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the last underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// OnChainError means the transaction was confirmed but failed execution.
type OnChainError struct {
	Signature string
	Slot      uint64
	Reason    string
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %s", e.Signature, e.Reason)
}

// IsUserCancelled reports whether err is a signer rejection.
func IsUserCancelled(err error) bool {
	return hasKind(err, KindUserCancelled)
}

// IsExhausted reports whether err is an exhausted-retries failure.
func IsExhausted(err error) bool {
	return hasKind(err, KindExhaustedRetries)
}

// IsCancelled reports whether err is a cancelled submission.
func IsCancelled(err error) bool {
	return hasKind(err, KindCancelled)
}

// IsOnChain reports whether err wraps an on-chain execution failure.
func IsOnChain(err error) bool {
	var oc *OnChainError
	return errors.As(err, &oc)
}

func hasKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
