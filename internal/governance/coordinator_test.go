package governance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

const proposalP = "PropP111"

type fakeBackend struct {
	mu         sync.Mutex
	proposals  []Proposal
	power      VotingPower
	prepareErr error
	listErr    error

	prepares, proposalCalls, powerCalls int
}

func (b *fakeBackend) prepared() (*Prepared, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prepares++
	if b.prepareErr != nil {
		return nil, b.prepareErr
	}
	return &Prepared{TransactionBase64: "dHg=", ProposalPublicKey: "NewProp1", ProposalID: "7"}, nil
}

func (b *fakeBackend) PrepareVote(ctx context.Context, wallet, proposal string, support bool) (*Prepared, error) {
	return b.prepared()
}

func (b *fakeBackend) PrepareCreateProposal(ctx context.Context, wallet, title, description string) (*Prepared, error) {
	return b.prepared()
}

func (b *fakeBackend) PrepareMemeVote(ctx context.Context, wallet, meme string) (*Prepared, error) {
	return b.prepared()
}

func (b *fakeBackend) PrepareMemeSubmission(ctx context.Context, wallet string, sub MemeSubmission) (*Prepared, error) {
	return b.prepared()
}

func (b *fakeBackend) Proposals(ctx context.Context, wallet string) ([]Proposal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.proposalCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]Proposal(nil), b.proposals...), nil
}

func (b *fakeBackend) VotingPower(ctx context.Context, wallet string) (*VotingPower, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.powerCalls++
	vp := b.power
	return &vp, nil
}

func (b *fakeBackend) setProposals(p []Proposal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.proposals = p
}

func (b *fakeBackend) powerFetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.powerCalls
}

func (b *fakeBackend) counts() (prepares, proposals int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prepares, b.proposalCalls
}

// chainRPC broadcasts as signature S, times out on confirm and finds the
// signature settled in the fallback status check.
type chainRPC struct {
	mu    sync.Mutex
	sends int
}

func (r *chainRPC) SendRawTransaction(ctx context.Context, signed []byte, opts txsubmit.SendOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends++
	return "S", nil
}

func (r *chainRPC) ConfirmTransaction(ctx context.Context, sig string, c txsubmit.Commitment) (*txsubmit.Confirmation, error) {
	return nil, errors.New("confirmation timeout")
}

func (r *chainRPC) GetSignatureStatus(ctx context.Context, sig string) (*txsubmit.SignatureStatus, error) {
	return &txsubmit.SignatureStatus{Found: true, Slot: 42, Commitment: txsubmit.CommitmentConfirmed}, nil
}

func (r *chainRPC) sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends
}

type fakeRewarder struct {
	mu        sync.Mutex
	grants    []ledger.GrantRequest
	refreshes int
}

func (f *fakeRewarder) Grant(ctx context.Context, req ledger.GrantRequest) (*ledger.GrantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants = append(f.grants, req)
	return &ledger.GrantResult{Record: &ledger.Record{ReferenceID: req.ReferenceID, Amount: req.Amount}}, nil
}

func (f *fakeRewarder) RefreshHistory(ctx context.Context, wallet string) ([]ledger.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil, nil
}

var echoSigner = txsubmit.SignerFunc(func(ctx context.Context, raw []byte) ([]byte, error) {
	return append(append([]byte(nil), raw...), 's'), nil
})

type fixture struct {
	backend *fakeBackend
	rpc     *chainRPC
	clock   *clock.Mock
	coord   *Coordinator
	wallet  Wallet
}

func newFixture(t *testing.T, power int64, cfg Config) *fixture {
	t.Helper()
	backend := &fakeBackend{
		proposals: []Proposal{{
			ID:           "proposal1",
			PublicKey:    proposalP,
			Title:        "Treasury Allocation",
			ForVotes:     10,
			AgainstVotes: 2,
			Quorum:       100,
			Status:       "active",
			CanVote:      true,
		}},
		power: VotingPower{Wallet: "W", VotingPower: power},
	}
	rpc := &chainRPC{}
	mock := clock.NewMock()
	cfg.Clock = mock

	sub := txsubmit.New(rpc, txsubmit.DefaultConfig())
	coord := New(backend, sub, cfg)
	t.Cleanup(coord.Close)

	return &fixture{
		backend: backend,
		rpc:     rpc,
		clock:   mock,
		coord:   coord,
		wallet:  Wallet{Address: "W", Signer: echoSigner},
	}
}

func TestCastVote_ConfirmsViaFallbackAndReconciles(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	ctx := context.Background()

	res, err := f.coord.CastVote(ctx, f.wallet, proposalP, true)
	require.NoError(t, err)
	assert.Equal(t, "S", res.Signature)
	assert.Equal(t, uint64(42), res.Slot)
	assert.Equal(t, 0, res.Retries)

	// Optimistic patch is visible immediately.
	p := f.coord.Proposals("W")
	require.Len(t, p, 1)
	assert.True(t, p[0].Voted)
	assert.Equal(t, SideFor, p[0].YourVote)
	assert.Equal(t, int64(13), p[0].ForVotes)
	assert.Equal(t, int64(2), f.coord.VotingPower("W").VotingPower)

	hist := f.coord.History("W")
	require.Len(t, hist, 1)
	assert.Equal(t, "Treasury Allocation", hist[0].ProposalTitle)
	assert.Equal(t, EntryFor, hist[0].Vote)
	assert.Equal(t, "S", hist[0].Signature)

	// The chain settles differently from the optimistic guess.
	f.backend.setProposals([]Proposal{{
		ID:        "proposal1",
		PublicKey: proposalP,
		Title:     "Treasury Allocation",
		ForVotes:  14,
		Voted:     true,
		YourVote:  SideFor,
	}})

	_, before := f.backend.counts()
	f.clock.Add(1499 * time.Millisecond)
	_, calls := f.backend.counts()
	assert.Equal(t, before, calls, "no refresh before the delay")

	f.clock.Add(time.Millisecond)
	require.Eventually(t, func() bool {
		p := f.coord.Proposals("W")
		return len(p) == 1 && p[0].ForVotes == 14
	}, time.Second, 5*time.Millisecond)
}

func TestCastVote_AlreadyVotedMakesNoNetworkCall(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	ctx := context.Background()

	f.backend.proposals[0].Voted = true
	f.backend.proposals[0].YourVote = SideAgainst
	require.NoError(t, f.coord.Refresh(ctx, "W"))

	prepares, proposals := f.backend.counts()
	_, err := f.coord.CastVote(ctx, f.wallet, proposalP, true)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	prepares2, proposals2 := f.backend.counts()
	assert.Equal(t, prepares, prepares2)
	assert.Equal(t, proposals, proposals2)
	assert.Equal(t, 0, f.rpc.sent())
}

func TestCastVote_CachedVoteRejectsBeforePowerFetch(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	ctx := context.Background()

	f.backend.proposals[0].Voted = true
	_, err := f.coord.RefreshProposals(ctx, "W")
	require.NoError(t, err)

	_, err = f.coord.CastVote(ctx, f.wallet, proposalP, true)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	prepares, proposals := f.backend.counts()
	assert.Equal(t, 0, prepares)
	assert.Equal(t, 1, proposals)
	assert.Equal(t, 0, f.backend.powerFetches())
}

func TestCastVote_ProposalListOutage(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	f.backend.listErr = errors.New("proposals endpoint down")

	res, err := f.coord.CastVote(context.Background(), f.wallet, proposalP, false)
	require.NoError(t, err)
	assert.Equal(t, "S", res.Signature)

	prepares, _ := f.backend.counts()
	assert.Equal(t, 1, prepares)
	assert.Equal(t, int64(2), f.coord.VotingPower("W").VotingPower)

	hist := f.coord.History("W")
	require.Len(t, hist, 1)
	assert.Equal(t, proposalP, hist[0].ProposalTitle)
	assert.Equal(t, EntryAgainst, hist[0].Vote)
}

func TestCastVote_LocalRejections(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, 3, DefaultConfig())
	_, err := f.coord.CastVote(ctx, Wallet{}, proposalP, true)
	assert.ErrorIs(t, err, ErrWalletNotConnected)
	_, err = f.coord.CastVote(ctx, Wallet{Address: "W"}, proposalP, true)
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	f = newFixture(t, 0, DefaultConfig())
	_, err = f.coord.CastVote(ctx, f.wallet, proposalP, true)
	assert.ErrorIs(t, err, ErrNoVotingPower)
	prepares, _ := f.backend.counts()
	assert.Equal(t, 0, prepares)
}

func TestCastVote_OneInFlightPerWallet(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := txsubmit.SignerFunc(func(ctx context.Context, raw []byte) ([]byte, error) {
		once.Do(func() { close(entered) })
		<-release
		return raw, nil
	})
	w := Wallet{Address: "W", Signer: blocking}

	done := make(chan error, 1)
	go func() {
		_, err := f.coord.CastVote(ctx, w, proposalP, true)
		done <- err
	}()
	<-entered

	_, err := f.coord.CastVote(ctx, w, "Other", false)
	assert.ErrorIs(t, err, ErrOperationInFlight)
	_, err = f.coord.VoteMeme(ctx, w, "Meme1")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	// Other wallets are independent.
	other := Wallet{Address: "W2", Signer: echoSigner}
	_, err = f.coord.VoteMeme(ctx, other, "Meme1")
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestCastVote_FailuresLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()

	t.Run("preparation", func(t *testing.T) {
		f := newFixture(t, 3, DefaultConfig())
		f.backend.prepareErr = &PreparationError{Op: "vote", StatusCode: 400, Message: "already voted"}

		_, err := f.coord.CastVote(ctx, f.wallet, proposalP, true)
		var perr *PreparationError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "already voted", perr.Message)
		assert.Equal(t, 0, f.rpc.sent())
		assert.Empty(t, f.coord.History("W"))
		assert.Equal(t, int64(3), f.coord.VotingPower("W").VotingPower)
	})

	t.Run("signer rejected", func(t *testing.T) {
		f := newFixture(t, 3, DefaultConfig())
		rejecting := txsubmit.SignerFunc(func(ctx context.Context, raw []byte) ([]byte, error) {
			return nil, errors.New("user rejected the request")
		})

		_, err := f.coord.CastVote(ctx, Wallet{Address: "W", Signer: rejecting}, proposalP, false)
		assert.True(t, txsubmit.IsUserCancelled(err))
		assert.Empty(t, f.coord.History("W"))
		p := f.coord.Proposals("W")
		require.Len(t, p, 1)
		assert.False(t, p[0].Voted)
		assert.Equal(t, int64(2), p[0].AgainstVotes)
	})
}

func TestCastVote_GrantsReward(t *testing.T) {
	rewards := &fakeRewarder{}
	cfg := DefaultConfig()
	cfg.Rewards = rewards
	cfg.VoteReward = 1
	f := newFixture(t, 3, cfg)

	res, err := f.coord.CastVote(context.Background(), f.wallet, proposalP, true)
	require.NoError(t, err)
	require.NotNil(t, res.Reward)

	require.Len(t, rewards.grants, 1)
	assert.Equal(t, ledger.RewardVote, rewards.grants[0].RewardType)
	assert.Equal(t, proposalP, rewards.grants[0].ReferenceID)
}

func TestCreateProposal(t *testing.T) {
	ctx := context.Background()

	t.Run("below threshold", func(t *testing.T) {
		f := newFixture(t, 5, DefaultConfig())
		_, err := f.coord.CreateProposal(ctx, f.wallet, "Title", "Body")
		assert.ErrorIs(t, err, ErrInsufficientVotingPower)
		prepares, _ := f.backend.counts()
		assert.Equal(t, 0, prepares)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, 20, DefaultConfig())
		long := make([]byte, MaxTitleLength+1)
		for i := range long {
			long[i] = 'x'
		}
		_, err := f.coord.CreateProposal(ctx, f.wallet, string(long), "Body")
		assert.ErrorIs(t, err, ErrInvalidProposal)
		_, err = f.coord.CreateProposal(ctx, f.wallet, "  ", "Body")
		assert.ErrorIs(t, err, ErrInvalidProposal)
	})

	t.Run("created", func(t *testing.T) {
		rewards := &fakeRewarder{}
		cfg := DefaultConfig()
		cfg.Rewards = rewards
		cfg.ProposalReward = 3
		f := newFixture(t, 12, cfg)

		res, err := f.coord.CreateProposal(ctx, f.wallet, " New Fund ", "Details")
		require.NoError(t, err)
		assert.Equal(t, "NewProp1", res.ProposalPublicKey)
		assert.Equal(t, "7", res.ProposalID)

		hist := f.coord.History("W")
		require.Len(t, hist, 1)
		assert.Equal(t, "New Fund", hist[0].ProposalTitle)
		assert.Equal(t, EntryCreated, hist[0].Vote)
		assert.Equal(t, int64(12), f.coord.VotingPower("W").VotingPower)

		require.Len(t, rewards.grants, 1)
		assert.Equal(t, ledger.RewardProposalCreated, rewards.grants[0].RewardType)
		assert.Equal(t, "NewProp1", rewards.grants[0].ReferenceID)
	})
}

func TestContest_HistoryIsCapped(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.coord.VoteMeme(ctx, f.wallet, fmt.Sprintf("meme-%d", i))
		require.NoError(t, err)
	}
	_, err := f.coord.SubmitMeme(ctx, f.wallet, MemeSubmission{Title: "Cat", IPFSHash: "Qm123"})
	require.NoError(t, err)

	hist := f.coord.History("W")
	require.Len(t, hist, DefaultHistorySize)
	assert.Equal(t, EntryMemeSubmission, hist[0].Vote)
	assert.Equal(t, "meme-11", hist[1].ProposalTitle)

	_, err = f.coord.SubmitMeme(ctx, f.wallet, MemeSubmission{Title: "Cat"})
	assert.ErrorIs(t, err, ErrInvalidProposal)
}

func TestClose_CancelsPendingRefresh(t *testing.T) {
	f := newFixture(t, 3, DefaultConfig())
	ctx := context.Background()

	_, err := f.coord.CastVote(ctx, f.wallet, proposalP, true)
	require.NoError(t, err)
	_, before := f.backend.counts()

	f.coord.Close()
	f.clock.Add(2 * time.Second)
	time.Sleep(20 * time.Millisecond)

	_, after := f.backend.counts()
	assert.Equal(t, before, after)

	_, err = f.coord.CastVote(ctx, f.wallet, proposalP, true)
	assert.ErrorIs(t, err, ErrClosed)
}
