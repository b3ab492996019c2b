package output

import (
	"fmt"

	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// TransitionMessage renders a submission transition as a status line.
func TransitionMessage(tr txsubmit.Transition) string {
	name := tr.Label
	if name == "" {
		name = "transaction"
	}
	switch tr.To {
	case txsubmit.StateSigning:
		if tr.RetryCount > 0 {
			return fmt.Sprintf("Waiting for signature on %s (retry %d)", name, tr.RetryCount)
		}
		return fmt.Sprintf("Waiting for signature on %s", name)
	case txsubmit.StateSubmitting:
		return fmt.Sprintf("Sending %s", name)
	case txsubmit.StateConfirming:
		return fmt.Sprintf("Confirming %s %s", name, ShortSignature(tr.Signature))
	case txsubmit.StateConfirmed:
		return fmt.Sprintf("Confirmed %s %s", name, ShortSignature(tr.Signature))
	case txsubmit.StateFailed:
		if tr.RetryIn > 0 {
			return fmt.Sprintf("Attempt failed, retrying %s in %s", name, Countdown(tr.RetryIn))
		}
		if tr.Err != nil {
			return fmt.Sprintf("%s failed: %v", name, tr.Err)
		}
		return fmt.Sprintf("%s failed", name)
	default:
		return tr.To.String()
	}
}

// SpinnerObserver shows every transition on the spinner.
func SpinnerObserver(s *StatusSpinner) txsubmit.Observer {
	return func(tr txsubmit.Transition) {
		s.Update(TransitionMessage(tr))
	}
}
