// Package governance coordinates proposal voting, proposal creation and meme
// contest actions: prepare, submit through the retrying submitter, then
// reconcile local state optimistically until an authoritative refresh lands.
package governance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/altuslabsxyz/txrelay/internal/cache"
	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/sched"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// Defaults
const (
	DefaultProposalCreateThreshold int64 = 10
	DefaultRefreshDelay                  = 1500 * time.Millisecond
	DefaultHistorySize                   = 10

	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
)

// Submitter signs, broadcasts and confirms a prepared transaction.
type Submitter interface {
	Submit(ctx context.Context, d txsubmit.Descriptor) (*txsubmit.Outcome, error)
}

// Rewarder credits governance rewards.
type Rewarder interface {
	Grant(ctx context.Context, req ledger.GrantRequest) (*ledger.GrantResult, error)
	RefreshHistory(ctx context.Context, wallet string) ([]ledger.Record, error)
}

// Config configures a Coordinator.
type Config struct {
	// ProposalCreateThreshold is the minimum voting power to create a
	// proposal.
	ProposalCreateThreshold int64

	// RefreshDelay is how long to wait after a confirmed action before the
	// authoritative refresh.
	RefreshDelay time.Duration

	// HistorySize caps the local history per wallet.
	HistorySize int

	// Rewards, when set, is refreshed after every confirmed action.
	// VoteReward and ProposalReward > 0 also grant a reward.
	Rewards        Rewarder
	VoteReward     int64
	ProposalReward int64

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		ProposalCreateThreshold: DefaultProposalCreateThreshold,
		RefreshDelay:            DefaultRefreshDelay,
		HistorySize:             DefaultHistorySize,
	}
}

// walletState is the per-wallet session state. Proposals and power are
// replaced wholesale; optimistic patches go through Update so only refreshes
// begun after the patch can replace it.
type walletState struct {
	proposals cache.Versioned[[]Proposal]
	power     cache.Versioned[VotingPower]
	refresh   *sched.Slot

	mu       sync.Mutex
	inFlight bool
	history  []HistoryEntry
}

func (s *walletState) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *walletState) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Coordinator runs governance actions for any number of wallets.
type Coordinator struct {
	backend   Backend
	submitter Submitter
	cfg       Config
	clock     clock.Clock
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	wallets map[string]*walletState
	closed  bool
}

// New creates a Coordinator.
func New(backend Backend, submitter Submitter, cfg Config) *Coordinator {
	if cfg.ProposalCreateThreshold <= 0 {
		cfg.ProposalCreateThreshold = DefaultProposalCreateThreshold
	}
	if cfg.RefreshDelay <= 0 {
		cfg.RefreshDelay = DefaultRefreshDelay
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		backend:   backend,
		submitter: submitter,
		cfg:       cfg,
		clock:     cfg.Clock,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		wallets:   make(map[string]*walletState),
	}
}

func (c *Coordinator) state(wallet string) (*walletState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	st, ok := c.wallets[wallet]
	if !ok {
		st = &walletState{refresh: sched.NewSlot(c.clock)}
		c.wallets[wallet] = st
	}
	return st, nil
}

// Proposals returns the cached proposals for wallet.
func (c *Coordinator) Proposals(wallet string) []Proposal {
	st, err := c.state(wallet)
	if err != nil {
		return nil
	}
	return append([]Proposal(nil), st.proposals.Load()...)
}

// VotingPower returns the cached voting power of wallet.
func (c *Coordinator) VotingPower(wallet string) VotingPower {
	st, err := c.state(wallet)
	if err != nil {
		return VotingPower{}
	}
	return st.power.Load()
}

// History returns the wallet's local history, newest first.
func (c *Coordinator) History(wallet string) []HistoryEntry {
	st, err := c.state(wallet)
	if err != nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]HistoryEntry(nil), st.history...)
}

// RefreshProposals replaces the cached proposals of wallet. A result is
// dropped if a newer refresh or patch was applied meanwhile.
func (c *Coordinator) RefreshProposals(ctx context.Context, wallet string) ([]Proposal, error) {
	st, err := c.state(wallet)
	if err != nil {
		return nil, err
	}
	ticket := st.proposals.Begin()
	proposals, err := c.backend.Proposals(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proposals: %w", err)
	}
	if !st.proposals.Commit(ticket, proposals) {
		c.logger.Debug("discarding stale proposals", "wallet", wallet, "ticket", ticket)
	}
	return append([]Proposal(nil), proposals...), nil
}

// RefreshVotingPower replaces the cached voting power of wallet.
func (c *Coordinator) RefreshVotingPower(ctx context.Context, wallet string) (*VotingPower, error) {
	st, err := c.state(wallet)
	if err != nil {
		return nil, err
	}
	ticket := st.power.Begin()
	vp, err := c.backend.VotingPower(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voting power: %w", err)
	}
	if !st.power.Commit(ticket, *vp) {
		c.logger.Debug("discarding stale voting power", "wallet", wallet, "ticket", ticket)
	}
	return vp, nil
}

// Refresh reloads proposals and voting power concurrently.
func (c *Coordinator) Refresh(ctx context.Context, wallet string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.RefreshProposals(gctx, wallet)
		return err
	})
	g.Go(func() error {
		_, err := c.RefreshVotingPower(gctx, wallet)
		return err
	})
	return g.Wait()
}

// CastVote votes on proposal with the wallet's full voting power.
func (c *Coordinator) CastVote(ctx context.Context, w Wallet, proposal string, support bool) (*Result, error) {
	if !w.connected() {
		return nil, ErrWalletNotConnected
	}
	st, err := c.state(w.Address)
	if err != nil {
		return nil, err
	}
	if !st.acquire() {
		return nil, ErrOperationInFlight
	}
	defer st.release()

	p, known := findProposal(st.proposals.Load(), proposal)
	if known && p.Voted {
		return nil, ErrAlreadyVoted
	}
	if err := c.ensurePower(ctx, w.Address, st); err != nil {
		return nil, err
	}
	power := st.power.Load().VotingPower
	if power <= 0 {
		return nil, ErrNoVotingPower
	}
	if st.proposals.Version() == 0 {
		// A failed proposals fetch does not block the vote.
		if _, err := c.RefreshProposals(ctx, w.Address); err != nil {
			c.logger.Warn("voting without proposal list", "wallet", w.Address, "error", err)
		}
		if p, known = findProposal(st.proposals.Load(), proposal); known && p.Voted {
			return nil, ErrAlreadyVoted
		}
	}

	prep, err := c.backend.PrepareVote(ctx, w.Address, proposal, support)
	if err != nil {
		return nil, err
	}
	out, err := c.submit(ctx, w, prep, "vote")
	if err != nil {
		return nil, err
	}

	title := proposal
	if known {
		title = p.Title
	}
	side, entry := SideAgainst, EntryAgainst
	if support {
		side, entry = SideFor, EntryFor
	}

	c.addHistory(st, title, entry, out.Signature)
	st.power.Update(func(vp VotingPower) VotingPower {
		if vp.VotingPower > 0 {
			vp.VotingPower--
		}
		return vp
	})
	st.proposals.Update(func(old []Proposal) []Proposal {
		return patchVote(old, proposal, side, power)
	})
	c.logger.Info("vote confirmed",
		"wallet", w.Address,
		"proposal", proposal,
		"side", side,
		"power", power,
		"signature", out.Signature)

	c.scheduleRefresh(w.Address, st)

	res := resultOf(out)
	res.Reward = c.reward(ctx, w.Address, proposal, ledger.RewardVote, c.cfg.VoteReward)
	return res, nil
}

// CreateProposal creates a proposal. The wallet needs at least
// ProposalCreateThreshold voting power.
func (c *Coordinator) CreateProposal(ctx context.Context, w Wallet, title, description string) (*Result, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if !w.connected() {
		return nil, ErrWalletNotConnected
	}
	if err := validateProposal(title, description); err != nil {
		return nil, err
	}
	st, err := c.state(w.Address)
	if err != nil {
		return nil, err
	}
	if !st.acquire() {
		return nil, ErrOperationInFlight
	}
	defer st.release()

	if err := c.ensurePower(ctx, w.Address, st); err != nil {
		return nil, err
	}
	power := st.power.Load().VotingPower
	if power <= 0 {
		return nil, ErrNoVotingPower
	}
	if power < c.cfg.ProposalCreateThreshold {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientVotingPower, power, c.cfg.ProposalCreateThreshold)
	}

	prep, err := c.backend.PrepareCreateProposal(ctx, w.Address, title, description)
	if err != nil {
		return nil, err
	}
	out, err := c.submit(ctx, w, prep, "proposal")
	if err != nil {
		return nil, err
	}

	c.addHistory(st, title, EntryCreated, out.Signature)
	c.logger.Info("proposal created",
		"wallet", w.Address,
		"proposal", prep.ProposalPublicKey,
		"signature", out.Signature)

	c.scheduleRefresh(w.Address, st)

	res := resultOf(out)
	res.ProposalPublicKey = prep.ProposalPublicKey
	res.ProposalID = prep.ProposalID
	ref := prep.ProposalPublicKey
	if ref == "" {
		ref = out.Signature
	}
	res.Reward = c.reward(ctx, w.Address, ref, ledger.RewardProposalCreated, c.cfg.ProposalReward)
	return res, nil
}

// VoteMeme votes for a meme contest entry.
func (c *Coordinator) VoteMeme(ctx context.Context, w Wallet, meme string) (*Result, error) {
	if meme == "" {
		return nil, fmt.Errorf("%w: meme public key is required", ErrInvalidProposal)
	}
	return c.contest(ctx, w, "meme vote", meme, EntryMemeVote, func() (*Prepared, error) {
		return c.backend.PrepareMemeVote(ctx, w.Address, meme)
	})
}

// SubmitMeme submits a meme contest entry.
func (c *Coordinator) SubmitMeme(ctx context.Context, w Wallet, sub MemeSubmission) (*Result, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	if sub.Title == "" || sub.IPFSHash == "" {
		return nil, fmt.Errorf("%w: title and IPFS hash are required", ErrInvalidProposal)
	}
	return c.contest(ctx, w, "meme submission", sub.Title, EntryMemeSubmission, func() (*Prepared, error) {
		return c.backend.PrepareMemeSubmission(ctx, w.Address, sub)
	})
}

func (c *Coordinator) contest(ctx context.Context, w Wallet, label, title, entry string, prepare func() (*Prepared, error)) (*Result, error) {
	if !w.connected() {
		return nil, ErrWalletNotConnected
	}
	st, err := c.state(w.Address)
	if err != nil {
		return nil, err
	}
	if !st.acquire() {
		return nil, ErrOperationInFlight
	}
	defer st.release()

	prep, err := prepare()
	if err != nil {
		return nil, err
	}
	out, err := c.submit(ctx, w, prep, label)
	if err != nil {
		return nil, err
	}

	c.addHistory(st, title, entry, out.Signature)
	c.logger.Info("contest action confirmed", "wallet", w.Address, "action", label, "signature", out.Signature)
	c.scheduleRefresh(w.Address, st)
	return resultOf(out), nil
}

// Close cancels pending refreshes. Later calls fail with ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	wallets := c.wallets
	c.mu.Unlock()

	c.cancel()
	for _, st := range wallets {
		st.refresh.Stop()
	}
}

func (c *Coordinator) submit(ctx context.Context, w Wallet, prep *Prepared, label string) (*txsubmit.Outcome, error) {
	return c.submitter.Submit(ctx, txsubmit.Descriptor{
		Base64: prep.TransactionBase64,
		Signer: w.Signer,
		Label:  label,
	})
}

// ensurePower fetches voting power the first time a wallet acts.
func (c *Coordinator) ensurePower(ctx context.Context, wallet string, st *walletState) error {
	if st.power.Version() != 0 {
		return nil
	}
	_, err := c.RefreshVotingPower(ctx, wallet)
	return err
}

// scheduleRefresh replaces any pending refresh of wallet.
func (c *Coordinator) scheduleRefresh(wallet string, st *walletState) {
	st.refresh.Schedule(c.cfg.RefreshDelay, func() {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		defer cancel()
		if err := c.Refresh(ctx, wallet); err != nil {
			c.logger.Warn("governance refresh failed", "wallet", wallet, "error", err)
		}
	})
}

func (c *Coordinator) addHistory(st *walletState, title, vote, signature string) {
	entry := HistoryEntry{
		ID:            uuid.NewString(),
		ProposalTitle: title,
		Vote:          vote,
		Signature:     signature,
		Timestamp:     c.clock.Now(),
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.history = append([]HistoryEntry{entry}, st.history...)
	if len(st.history) > c.cfg.HistorySize {
		st.history = st.history[:c.cfg.HistorySize]
	}
}

// reward grants amount when configured and refreshes reward history.
// Failures are logged; the governance action already succeeded.
func (c *Coordinator) reward(ctx context.Context, wallet, ref string, t ledger.RewardType, amount int64) *ledger.GrantResult {
	if c.cfg.Rewards == nil {
		return nil
	}
	if amount <= 0 {
		if _, err := c.cfg.Rewards.RefreshHistory(ctx, wallet); err != nil {
			c.logger.Warn("failed to refresh reward history", "wallet", wallet, "error", err)
		}
		return nil
	}
	res, err := c.cfg.Rewards.Grant(ctx, ledger.GrantRequest{
		Wallet:      wallet,
		ReferenceID: ref,
		RewardType:  t,
		Amount:      amount,
	})
	if err != nil {
		c.logger.Warn("failed to grant governance reward", "wallet", wallet, "type", t, "error", err)
		return nil
	}
	return res
}

func resultOf(out *txsubmit.Outcome) *Result {
	return &Result{
		Signature: out.Signature,
		Slot:      out.Slot,
		Retries:   out.Retries,
	}
}

func findProposal(proposals []Proposal, key string) (Proposal, bool) {
	for _, p := range proposals {
		if p.PublicKey == key || p.ID == key {
			return p, true
		}
	}
	return Proposal{}, false
}

// patchVote returns a copy of proposals with the vote applied to key.
func patchVote(proposals []Proposal, key, side string, power int64) []Proposal {
	out := make([]Proposal, len(proposals))
	copy(out, proposals)
	for i := range out {
		if out[i].PublicKey != key && out[i].ID != key {
			continue
		}
		out[i].Voted = true
		out[i].CanVote = false
		out[i].YourVote = side
		if side == SideFor {
			out[i].ForVotes += power
		} else {
			out[i].AgainstVotes += power
		}
	}
	return out
}

func validateProposal(title, description string) error {
	switch {
	case title == "" || description == "":
		return fmt.Errorf("%w: title and description are required", ErrInvalidProposal)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidProposal, MaxTitleLength)
	case utf8.RuneCountInString(description) > MaxDescriptionLength:
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidProposal, MaxDescriptionLength)
	}
	return nil
}
