// Package txsubmit drives a transaction through sign, broadcast and confirm
// with a bounded, fixed retry schedule.
package txsubmit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/altuslabsxyz/txrelay/internal/metrics"
)

// Defaults
const (
	DefaultMaxRetries = 3
)

// DefaultRetryDelays is the wait before retry 1, 2 and 3. The last delay
// repeats when MaxRetries exceeds the list.
var DefaultRetryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Config configures a Submitter. Start from DefaultConfig; a zero
// MaxRetries disables retry.
type Config struct {
	MaxRetries  int
	RetryDelays []time.Duration

	// Commitment is awaited after broadcast.
	Commitment Commitment

	// PreflightCommitment is used for broadcast simulation.
	PreflightCommitment Commitment

	// Clock drives retry delays.
	Clock clock.Clock

	// Gate, if set, holds a due retry until the network is usable.
	Gate Gate

	Metrics *metrics.Submit
	Logger  *slog.Logger
}

// DefaultConfig returns the standard retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          DefaultMaxRetries,
		RetryDelays:         append([]time.Duration(nil), DefaultRetryDelays...),
		Commitment:          CommitmentConfirmed,
		PreflightCommitment: CommitmentConfirmed,
	}
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithObserver adds an observer that sees every submission's transitions.
func WithObserver(o Observer) Option {
	return func(s *Submitter) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Submitter runs submissions. It is safe for concurrent use; each Submit
// call owns its attempt and runs its rounds strictly in sequence.
type Submitter struct {
	rpc       RPC
	cfg       Config
	clock     clock.Clock
	logger    *slog.Logger
	observers []Observer

	mu     sync.Mutex
	runs   map[uint64]*run
	nextID uint64
}

// run tracks one active Submit call for Cancel.
type run struct {
	// wait is cancelled by Cancel; it only interrupts backoff waits.
	wait      context.Context
	stop      context.CancelFunc
	cancelled atomic.Bool
}

// New creates a Submitter.
func New(rpc RPC, cfg Config, opts ...Option) *Submitter {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = append([]time.Duration(nil), DefaultRetryDelays...)
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentConfirmed
	}
	if cfg.PreflightCommitment == "" {
		cfg.PreflightCommitment = cfg.Commitment
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Submitter{
		rpc:    rpc,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: logger,
		runs:   make(map[uint64]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RetryDelay returns the wait before the given retry (1-based).
func (s *Submitter) RetryDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	i := retry - 1
	if i >= len(s.cfg.RetryDelays) {
		i = len(s.cfg.RetryDelays) - 1
	}
	return s.cfg.RetryDelays[i]
}

// Cancel stops every active submission from starting another round. Calls
// already in flight are awaited and their results discarded, except a
// completed confirmation, which is still reported as confirmed.
func (s *Submitter) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		r.cancelled.Store(true)
		r.stop()
	}
}

// Active returns the number of submissions in progress.
func (s *Submitter) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Submit signs, broadcasts and confirms d, retrying transient and on-chain
// failures. It returns the confirmed signature or an *Error.
func (s *Submitter) Submit(ctx context.Context, d Descriptor) (*Outcome, error) {
	label := d.Label
	if label == "" {
		label = "transaction"
	}
	started := s.clock.Now()

	raw, err := d.raw()
	if err == nil && d.Signer == nil {
		err = ErrNoSigner
	}
	if err != nil {
		s.cfg.Metrics.Outcome(label, KindInvalidTransaction.String(), 0, 0)
		return nil, &Error{Kind: KindInvalidTransaction, Label: label, Err: err}
	}

	r, id := s.register(ctx)
	defer s.unregister(id)

	att := &Attempt{Label: label, Raw: raw, State: StateIdle}
	observers := s.observers
	if d.Observer != nil {
		observers = append(append([]Observer(nil), s.observers...), d.Observer)
	}

	for {
		slot, err := s.round(ctx, r, att, d.Signer, observers)
		if err == nil {
			s.logger.Info("transaction confirmed",
				"label", label,
				"signature", att.Signature,
				"slot", slot,
				"retries", att.RetryCount)
			s.cfg.Metrics.Outcome(label, "confirmed", att.RetryCount, s.clock.Since(started))
			return &Outcome{Signature: att.Signature, Slot: slot, Retries: att.RetryCount}, nil
		}

		var terminal *Error
		if errors.As(err, &terminal) {
			s.cfg.Metrics.Outcome(label, terminal.Kind.String(), att.RetryCount, s.clock.Since(started))
			return nil, terminal
		}

		if att.RetryCount >= s.cfg.MaxRetries {
			s.set(att, observers, StateFailed, err, 0)
			s.logger.Error("transaction failed",
				"label", label,
				"signature", att.Signature,
				"retries", att.RetryCount,
				"error", err)
			s.cfg.Metrics.Outcome(label, KindExhaustedRetries.String(), att.RetryCount, s.clock.Since(started))
			return nil, s.terminal(att, KindExhaustedRetries, err)
		}

		delay := s.RetryDelay(att.RetryCount + 1)
		timer := s.clock.Timer(delay)
		s.set(att, observers, StateFailed, err, delay)
		s.logger.Warn("transaction round failed, retrying",
			"label", label,
			"retry", att.RetryCount+1,
			"maxRetries", s.cfg.MaxRetries,
			"delay", delay,
			"error", err)

		if err := s.backoff(ctx, r, timer); err != nil {
			s.cfg.Metrics.Outcome(label, KindCancelled.String(), att.RetryCount, s.clock.Since(started))
			return nil, s.terminal(att, KindCancelled, err)
		}
		att.RetryCount++
	}
}

// round runs sign, broadcast and confirm once. It returns a *Error for
// terminal failures and any other error for retryable ones.
func (s *Submitter) round(ctx context.Context, r *run, att *Attempt, signer Signer, obs []Observer) (uint64, error) {
	att.LastError = nil
	att.Signed = nil
	att.Signature = ""

	s.set(att, obs, StateSigning, nil, 0)
	signed, err := signer.SignTransaction(ctx, append([]byte(nil), att.Raw...))
	if cerr := s.interrupted(ctx, r); cerr != nil {
		return 0, s.terminal(att, KindCancelled, cerr)
	}
	if err == nil && len(signed) == 0 {
		err = ErrEmptySignature
	}
	if err != nil {
		s.set(att, obs, StateFailed, err, 0)
		s.cfg.Metrics.Round(att.Label, "rejected")
		s.logger.Info("signing declined", "label", att.Label, "error", err)
		return 0, s.terminal(att, KindUserCancelled, err)
	}
	att.Signed = signed

	s.set(att, obs, StateSubmitting, nil, 0)
	sig, err := s.rpc.SendRawTransaction(ctx, signed, SendOptions{
		SkipPreflight:       false,
		PreflightCommitment: s.cfg.PreflightCommitment,
	})
	if cerr := s.interrupted(ctx, r); cerr != nil {
		att.Signature = sig
		return 0, s.terminal(att, KindCancelled, cerr)
	}
	if err != nil {
		s.cfg.Metrics.Round(att.Label, "transient")
		return 0, s.recordFailure(att, fmt.Errorf("broadcast failed: %w", err))
	}
	att.Signature = sig

	s.set(att, obs, StateConfirming, nil, 0)
	conf, cerr := s.rpc.ConfirmTransaction(ctx, sig, s.cfg.Commitment)
	if cerr == nil && conf != nil && conf.Err == "" {
		s.set(att, obs, StateConfirmed, nil, 0)
		s.cfg.Metrics.Round(att.Label, "confirmed")
		return conf.Slot, nil
	}
	if ierr := s.interrupted(ctx, r); ierr != nil {
		return 0, s.terminal(att, KindCancelled, ierr)
	}
	if cerr == nil {
		if conf == nil {
			cerr = errors.New("empty confirmation")
		} else {
			s.cfg.Metrics.Round(att.Label, "on_chain")
			return 0, s.recordFailure(att, &OnChainError{Signature: sig, Slot: conf.Slot, Reason: conf.Err})
		}
	}

	s.logger.Warn("confirmation failed, checking signature status",
		"label", att.Label,
		"signature", sig,
		"error", cerr)

	st, ferr := s.rpc.GetSignatureStatus(ctx, sig)
	if ierr := s.interrupted(ctx, r); ierr != nil {
		return 0, s.terminal(att, KindCancelled, ierr)
	}
	switch {
	case ferr != nil:
		s.cfg.Metrics.Round(att.Label, "transient")
		return 0, s.recordFailure(att, fmt.Errorf("confirmation failed: %w (status check: %v)", cerr, ferr))
	case st == nil || !st.Found:
		s.cfg.Metrics.Round(att.Label, "transient")
		return 0, s.recordFailure(att, fmt.Errorf("confirmation failed: %v: %w", cerr, ErrSignatureNotFound))
	case st.Err != "":
		s.cfg.Metrics.Round(att.Label, "on_chain")
		return 0, s.recordFailure(att, &OnChainError{Signature: sig, Slot: st.Slot, Reason: st.Err})
	}

	s.logger.Info("signature settled per status check", "label", att.Label, "signature", sig, "slot", st.Slot)
	s.set(att, obs, StateConfirmed, nil, 0)
	s.cfg.Metrics.Round(att.Label, "confirmed")
	return st.Slot, nil
}

// backoff waits for timer and then for the gate. It returns non-nil when the
// submission was cancelled meanwhile.
func (s *Submitter) backoff(ctx context.Context, r *run, timer *clock.Timer) error {
	select {
	case <-timer.C:
	case <-r.wait.Done():
		timer.Stop()
		return s.interrupted(ctx, r)
	}

	if s.cfg.Gate != nil {
		if err := s.cfg.Gate.WaitOnline(r.wait); err != nil {
			if ierr := s.interrupted(ctx, r); ierr != nil {
				return ierr
			}
			s.logger.Debug("network gate unavailable, retrying anyway", "error", err)
		}
	}
	return s.interrupted(ctx, r)
}

// interrupted reports why the submission must stop, if it must.
func (s *Submitter) interrupted(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.cancelled.Load() {
		return context.Canceled
	}
	return nil
}

func (s *Submitter) recordFailure(att *Attempt, err error) error {
	att.LastError = err
	return err
}

func (s *Submitter) terminal(att *Attempt, kind Kind, err error) *Error {
	att.LastError = err
	return &Error{
		Kind:      kind,
		Label:     att.Label,
		Signature: att.Signature,
		Retries:   att.RetryCount,
		Err:       err,
	}
}

func (s *Submitter) set(att *Attempt, obs []Observer, to State, err error, retryIn time.Duration) {
	from := att.State
	att.State = to
	if err != nil {
		att.LastError = err
	}

	tr := Transition{
		Label:      att.Label,
		From:       from,
		To:         to,
		RetryCount: att.RetryCount,
		Signature:  att.Signature,
		Err:        err,
		RetryIn:    retryIn,
		At:         s.clock.Now(),
	}
	s.logger.Debug("transaction state", "label", att.Label, "from", from, "to", to)

	for _, o := range obs {
		s.notify(o, tr)
	}
}

func (s *Submitter) notify(o Observer, tr Transition) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Warn("transition observer panicked", "label", tr.Label, "to", tr.To, "panic", p)
		}
	}()
	o(tr)
}

func (s *Submitter) register(ctx context.Context) (*run, uint64) {
	wait, stop := context.WithCancel(ctx)
	r := &run{wait: wait, stop: stop}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.runs[s.nextID] = r
	return r, s.nextID
}

func (s *Submitter) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		r.stop()
		delete(s.runs, id)
	}
}
