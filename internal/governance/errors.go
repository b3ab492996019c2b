package governance

import (
	"errors"
	"fmt"
)

// Local rejections. None of them reaches the network.
var (
	ErrWalletNotConnected      = errors.New("wallet not connected")
	ErrNoVotingPower           = errors.New("no voting power: stake NFTs to gain voting power")
	ErrAlreadyVoted            = errors.New("already voted on this proposal")
	ErrOperationInFlight       = errors.New("another governance operation is in progress")
	ErrInsufficientVotingPower = errors.New("insufficient voting power to create a proposal")
	ErrInvalidProposal         = errors.New("invalid proposal")
	ErrClosed                  = errors.New("coordinator closed")
)

// PreparationError means the backend refused to build a transaction. It is
// terminal: no transaction exists to retry.
type PreparationError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *PreparationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("prepare %s: %s (status %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("prepare %s: %s", e.Op, msg)
}

func (e *PreparationError) Unwrap() error {
	return e.Err
}

// IsPreparationError returns true if err is a PreparationError.
func IsPreparationError(err error) bool {
	var e *PreparationError
	return errors.As(err, &e)
}
