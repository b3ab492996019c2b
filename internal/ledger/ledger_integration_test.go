package ledger_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txrelay/internal/httpapi"
	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/ledger/server"
	"github.com/altuslabsxyz/txrelay/internal/ledger/store"
)

func newLedger(t *testing.T) (*ledger.Client, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	srv := httptest.NewServer(server.New(st, server.DefaultConfig()).Handler())
	t.Cleanup(srv.Close)

	api := httpapi.New(httpapi.Config{BaseURL: srv.URL})
	return ledger.NewClient(ledger.NewHTTPBackend(api), ledger.Config{}), st
}

func TestGrant_DoubleClick(t *testing.T) {
	client, st := newLedger(t)
	ctx := context.Background()
	req := ledger.GrantRequest{
		Wallet:      "W1",
		ReferenceID: "txSig123",
		RewardType:  ledger.RewardTweet,
	}

	var wg sync.WaitGroup
	results := make([]*ledger.GrantResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.Grant(ctx, req)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	granted := 0
	for _, r := range results {
		if !r.Duplicate {
			granted++
		}
	}
	assert.Equal(t, 1, granted, "exactly one click is credited")

	recs, err := st.ListRewards(ctx, "W1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.True(t, client.HasGranted("W1", "txSig123", ledger.RewardTweet))
}

func TestGrant_DuplicateAcrossClients(t *testing.T) {
	st := store.NewMemoryStore()
	srv := httptest.NewServer(server.New(st, server.DefaultConfig()).Handler())
	defer srv.Close()

	newClient := func() *ledger.Client {
		api := httpapi.New(httpapi.Config{BaseURL: srv.URL})
		return ledger.NewClient(ledger.NewHTTPBackend(api), ledger.Config{})
	}
	first, second := newClient(), newClient()
	ctx := context.Background()
	req := ledger.GrantRequest{Wallet: "W1", ReferenceID: "mint_0042", RewardType: ledger.RewardMintTweet}

	res, err := first.Grant(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	// The second client has an empty cache; the ledger rejects the grant.
	req.RewardType = ledger.RewardTweet
	res, err = second.Grant(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.True(t, second.HasGranted("W1", "mint_0042", ledger.RewardTweet), "duplicate refreshes history")
}

func TestClaim_RoundTrip(t *testing.T) {
	client, _ := newLedger(t)
	ctx := context.Background()

	_, err := client.Claim(ctx, "W1")
	assert.ErrorIs(t, err, ledger.ErrNothingToClaim)

	for _, ref := range []string{"p1", "p2"} {
		_, err := client.Grant(ctx, ledger.GrantRequest{Wallet: "W1", ReferenceID: ref, RewardType: ledger.RewardVote, Amount: 2})
		require.NoError(t, err)
	}

	s, err := client.Summary(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.TotalRewards)

	claim, err := client.Claim(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), claim.Amount)
	assert.Equal(t, ledger.ClaimStatusPending, claim.Status)

	s, err = client.Summary(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.TotalRewards)
	assert.Len(t, s.History, 2)
}
