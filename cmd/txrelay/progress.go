// cmd/txrelay/progress.go
package main

import (
	"github.com/altuslabsxyz/txrelay/internal/output"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// progress shows submission transitions on a spinner. The spinner is
// stopped while a signature is requested so the prompt owns the terminal.
type progress struct {
	log    output.LoggerInterface
	spin   *output.StatusSpinner
	follow txsubmit.Observer
	quiet  bool
}

func newProgress(log output.LoggerInterface, quiet bool) *progress {
	spin := output.NewStatusSpinnerTo(log.ErrWriter())
	return &progress{
		log:    log,
		spin:   spin,
		follow: output.SpinnerObserver(spin),
		quiet:  quiet,
	}
}

func (p *progress) observe(tr txsubmit.Transition) {
	msg := output.TransitionMessage(tr)
	if p.quiet {
		p.log.Debug("%s", msg)
		return
	}
	switch tr.To {
	case txsubmit.StateSigning:
		p.spin.Stop()
		p.log.Info("%s", msg)
	case txsubmit.StateConfirmed:
		p.spin.Stop()
	case txsubmit.StateFailed:
		p.spin.Stop()
		if tr.RetryIn > 0 {
			p.log.Warn("%s", msg)
		}
	default:
		p.spin.Start(msg)
		p.follow(tr)
	}
}

func (p *progress) done() {
	p.spin.Stop()
}
