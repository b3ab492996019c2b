package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/altuslabsxyz/txrelay/internal/httpapi"
)

// Backend is the reward ledger service of record. It enforces uniqueness
// per (wallet, reference, class) regardless of what the client has cached.
type Backend interface {
	// Grant creates a reward. A duplicate returns an error matching
	// ErrDuplicate.
	Grant(ctx context.Context, req GrantRequest) (*Record, error)

	// History returns every reward of wallet, newest first.
	History(ctx context.Context, wallet string) (*Summary, error)

	// Claim marks every unclaimed reward of wallet as claimed. With
	// nothing to claim it returns an error matching ErrNothingToClaim.
	Claim(ctx context.Context, wallet string) (*Claim, error)
}

// Reward API paths.
const (
	PathGrant   = "/api/recordTweetReward"
	PathClaim   = "/api/claimRewards"
	PathHistory = "/api/getRewards"
)

// HTTPBackend talks to the reward API.
type HTTPBackend struct {
	api *httpapi.Client
}

// NewHTTPBackend creates a Backend over api.
func NewHTTPBackend(api *httpapi.Client) *HTTPBackend {
	return &HTTPBackend{api: api}
}

type grantResponse struct {
	Success bool    `json:"success"`
	Reward  *Record `json:"reward"`
}

type claimRequest struct {
	Wallet string `json:"wallet"`
}

type claimResponse struct {
	Success bool   `json:"success"`
	Claim   *Claim `json:"claim"`
}

// Grant posts a reward grant.
func (b *HTTPBackend) Grant(ctx context.Context, req GrantRequest) (*Record, error) {
	var resp grantResponse
	if err := b.api.Post(ctx, PathGrant, req, &resp); err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%s/%s: %w", req.RewardType, req.ReferenceID, ErrDuplicate)
		}
		return nil, err
	}
	if resp.Reward == nil {
		return nil, errors.New("grant response carried no reward")
	}
	return resp.Reward, nil
}

// History fetches the wallet's rewards.
func (b *HTTPBackend) History(ctx context.Context, wallet string) (*Summary, error) {
	var s Summary
	if err := b.api.Get(ctx, PathHistory, url.Values{"wallet": {wallet}}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Claim posts a claim-all request.
func (b *HTTPBackend) Claim(ctx context.Context, wallet string) (*Claim, error) {
	var resp claimResponse
	if err := b.api.Post(ctx, PathClaim, claimRequest{Wallet: wallet}, &resp); err != nil {
		var se *httpapi.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(se.Message), "no claimable") {
			return nil, ErrNothingToClaim
		}
		return nil, err
	}
	if resp.Claim == nil {
		return nil, errors.New("claim response carried no claim")
	}
	return resp.Claim, nil
}

// isDuplicate recognizes the ledger's duplicate responses: 409, or the
// legacy 400 "already claimed" reply.
func isDuplicate(err error) bool {
	var se *httpapi.StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusConflict {
		return true
	}
	return se.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(se.Message), "already")
}
