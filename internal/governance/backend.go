package governance

import (
	"context"
	"errors"
	"net/url"

	"github.com/altuslabsxyz/txrelay/internal/httpapi"
)

// Backend builds unsigned governance transactions and serves proposal and
// voting-power reads.
type Backend interface {
	PrepareVote(ctx context.Context, wallet, proposal string, support bool) (*Prepared, error)
	PrepareCreateProposal(ctx context.Context, wallet, title, description string) (*Prepared, error)
	PrepareMemeVote(ctx context.Context, wallet, meme string) (*Prepared, error)
	PrepareMemeSubmission(ctx context.Context, wallet string, sub MemeSubmission) (*Prepared, error)

	Proposals(ctx context.Context, wallet string) ([]Proposal, error)
	VotingPower(ctx context.Context, wallet string) (*VotingPower, error)
}

// Governance API paths.
const (
	PathPrepareVote           = "/api/governance/prepareVote"
	PathPrepareCreateProposal = "/api/governance/prepareCreateProposal"
	PathProposals             = "/api/governance/getProposals"
	PathVotingPower           = "/api/governance/getUserVotingPower"
	PathMemeVote              = "/api/contest/voteMeme"
	PathMemeSubmit            = "/api/contest/submitMeme"
)

// HTTPBackend talks to the governance API.
type HTTPBackend struct {
	api *httpapi.Client
}

// NewHTTPBackend creates a Backend over api.
func NewHTTPBackend(api *httpapi.Client) *HTTPBackend {
	return &HTTPBackend{api: api}
}

type prepareResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Prepared
}

type proposalsResponse struct {
	Proposals []Proposal `json:"proposals"`
}

// PrepareVote requests an unsigned vote transaction.
func (b *HTTPBackend) PrepareVote(ctx context.Context, wallet, proposal string, support bool) (*Prepared, error) {
	return b.prepare(ctx, "vote", PathPrepareVote, map[string]interface{}{
		"wallet":            wallet,
		"proposalPublicKey": proposal,
		"support":           support,
	})
}

// PrepareCreateProposal requests an unsigned proposal-creation transaction.
func (b *HTTPBackend) PrepareCreateProposal(ctx context.Context, wallet, title, description string) (*Prepared, error) {
	return b.prepare(ctx, "proposal", PathPrepareCreateProposal, map[string]interface{}{
		"wallet":      wallet,
		"title":       title,
		"description": description,
	})
}

// PrepareMemeVote requests an unsigned meme-vote transaction.
func (b *HTTPBackend) PrepareMemeVote(ctx context.Context, wallet, meme string) (*Prepared, error) {
	return b.prepare(ctx, "meme vote", PathMemeVote, map[string]interface{}{
		"wallet":        wallet,
		"memePublicKey": meme,
	})
}

// PrepareMemeSubmission requests an unsigned meme-submission transaction.
func (b *HTTPBackend) PrepareMemeSubmission(ctx context.Context, wallet string, sub MemeSubmission) (*Prepared, error) {
	return b.prepare(ctx, "meme submission", PathMemeSubmit, map[string]interface{}{
		"wallet":      wallet,
		"title":       sub.Title,
		"description": sub.Description,
		"ipfsHash":    sub.IPFSHash,
	})
}

// Proposals lists proposals projected for wallet.
func (b *HTTPBackend) Proposals(ctx context.Context, wallet string) ([]Proposal, error) {
	var resp proposalsResponse
	if err := b.api.Get(ctx, PathProposals, url.Values{"wallet": {wallet}}, &resp); err != nil {
		return nil, err
	}
	return resp.Proposals, nil
}

// VotingPower fetches the voting power of wallet.
func (b *HTTPBackend) VotingPower(ctx context.Context, wallet string) (*VotingPower, error) {
	var vp VotingPower
	if err := b.api.Get(ctx, PathVotingPower, url.Values{"wallet": {wallet}}, &vp); err != nil {
		return nil, err
	}
	return &vp, nil
}

// prepare posts body and classifies every failure as a PreparationError.
func (b *HTTPBackend) prepare(ctx context.Context, op, path string, body interface{}) (*Prepared, error) {
	var resp prepareResponse
	if err := b.api.Post(ctx, path, body, &resp); err != nil {
		perr := &PreparationError{Op: op, Err: err}
		var se *httpapi.StatusError
		if errors.As(err, &se) {
			perr.StatusCode = se.StatusCode
			perr.Message = se.Message
		}
		return nil, perr
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "backend refused to build the transaction"
		}
		return nil, &PreparationError{Op: op, Message: msg}
	}
	if resp.TransactionBase64 == "" {
		return nil, &PreparationError{Op: op, Message: "response carried no transaction"}
	}
	p := resp.Prepared
	return &p, nil
}
