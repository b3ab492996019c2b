package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/ledger/store"
	"github.com/altuslabsxyz/txrelay/internal/metrics"
)

func newTestServer(t *testing.T) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	cfg := DefaultConfig()
	cfg.Clock = mock
	cfg.Gatherer = reg
	cfg.Metrics = metrics.NewServer(reg)

	srv := httptest.NewServer(New(store.NewMemoryStore(), cfg).Handler())
	t.Cleanup(srv.Close)
	return srv, reg
}

func post(t *testing.T, url string, body interface{}) (int, map[string]json.RawMessage) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]json.RawMessage{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getSummary(t *testing.T, url string) ledger.Summary {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s ledger.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func errorOf(t *testing.T, out map[string]json.RawMessage) string {
	t.Helper()
	var msg string
	require.NoError(t, json.Unmarshal(out["error"], &msg))
	return msg
}

func TestGrant(t *testing.T) {
	srv, _ := newTestServer(t)

	code, out := post(t, srv.URL+ledger.PathGrant, map[string]interface{}{
		"wallet":       "W1",
		"reference_id": "sig-1",
		"reward_type":  "tweet",
	})
	require.Equal(t, http.StatusOK, code)

	var rec ledger.Record
	require.NoError(t, json.Unmarshal(out["reward"], &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "W1", rec.Wallet)
	assert.Equal(t, DefaultRewardAmount, rec.Amount)
	assert.Equal(t, "Reward for sharing on Twitter", rec.Description)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rec.CreatedAt)
	assert.False(t, rec.Claimed)
}

func TestGrant_Duplicate(t *testing.T) {
	srv, _ := newTestServer(t)
	body := map[string]interface{}{"wallet": "W1", "reference_id": "sig-1", "reward_type": "tweet"}

	code, _ := post(t, srv.URL+ledger.PathGrant, body)
	require.Equal(t, http.StatusOK, code)

	code, out := post(t, srv.URL+ledger.PathGrant, body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Reward already claimed for this reference", errorOf(t, out))

	// mint_tweet is the same class as tweet.
	body["reward_type"] = "mint_tweet"
	code, _ = post(t, srv.URL+ledger.PathGrant, body)
	assert.Equal(t, http.StatusConflict, code)

	s := getSummary(t, srv.URL+ledger.PathHistory+"?wallet=W1")
	assert.Len(t, s.History, 1)
}

func TestGrant_LegacyFields(t *testing.T) {
	srv, _ := newTestServer(t)

	code, out := post(t, srv.URL+ledger.PathGrant, map[string]interface{}{
		"wallet":      "W1",
		"txSignature": "sig-legacy",
		"amount":      7,
	})
	require.Equal(t, http.StatusOK, code)

	var rec ledger.Record
	require.NoError(t, json.Unmarshal(out["reward"], &rec))
	assert.Equal(t, "sig-legacy", rec.ReferenceID)
	assert.Equal(t, "sig-legacy", rec.TxSignature)
	assert.Equal(t, ledger.RewardTweet, rec.RewardType)
	assert.Equal(t, int64(7), rec.Amount)
}

func TestGrant_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
		msg  string
	}{
		{"missing wallet", map[string]interface{}{"reference_id": "r"}, "Missing required parameters"},
		{"missing reference", map[string]interface{}{"wallet": "W1"}, "Missing required parameters"},
		{"unknown type", map[string]interface{}{"wallet": "W1", "reference_id": "r", "reward_type": "bogus"}, "Unknown reward type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := post(t, srv.URL+ledger.PathGrant, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.msg, errorOf(t, out))
		})
	}

	resp, err := http.Post(srv.URL+ledger.PathGrant, "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaimAndRewards(t *testing.T) {
	srv, _ := newTestServer(t)

	code, out := post(t, srv.URL+ledger.PathClaim, map[string]string{"wallet": "W1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No claimable rewards found", errorOf(t, out))

	for _, ref := range []string{"a", "b"} {
		code, _ := post(t, srv.URL+ledger.PathGrant, map[string]interface{}{
			"wallet": "W1", "reference_id": ref, "reward_type": "vote", "amount": 3,
		})
		require.Equal(t, http.StatusOK, code)
	}

	s := getSummary(t, srv.URL+ledger.PathHistory+"?wallet=W1")
	assert.Equal(t, int64(6), s.TotalRewards)
	assert.Len(t, s.Claimable, 2)
	require.Len(t, s.History, 2)
	assert.Equal(t, "b", s.History[0].ReferenceID, "newest first")

	code, out = post(t, srv.URL+ledger.PathClaim, map[string]string{"wallet": "W1"})
	require.Equal(t, http.StatusOK, code)
	var claim ledger.Claim
	require.NoError(t, json.Unmarshal(out["claim"], &claim))
	assert.Equal(t, int64(6), claim.Amount)
	assert.Equal(t, ledger.ClaimStatusPending, claim.Status)

	s = getSummary(t, srv.URL+ledger.PathHistory+"?wallet=W1")
	assert.Equal(t, int64(0), s.TotalRewards)
	assert.Empty(t, s.Claimable)
	assert.Len(t, s.History, 2)
	require.Len(t, s.Claims, 1)
	assert.Equal(t, claim.ID, s.Claims[0].ID)
	assert.Equal(t, int64(6), s.Claims[0].Amount)
}

func TestRewards_RequiresWallet(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + ledger.PathHistory)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + ledger.PathGrant)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	post(t, srv.URL+ledger.PathGrant, map[string]interface{}{"wallet": "W1", "reference_id": "r"})
	post(t, srv.URL+ledger.PathGrant, map[string]interface{}{"wallet": "W1", "reference_id": "r"})

	count, err := testutil.GatherAndCount(reg, "txrelay_ledgerd_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per status class")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `route="/api/recordTweetReward"`)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(store.NewMemoryStore(), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
