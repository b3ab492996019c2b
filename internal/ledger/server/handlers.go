package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/altuslabsxyz/txrelay/internal/ledger"
	"github.com/altuslabsxyz/txrelay/internal/ledger/store"
)

// grantBody accepts both the current field names and the older txSignature
// form used by share flows.
type grantBody struct {
	Wallet      string            `json:"wallet"`
	ReferenceID string            `json:"reference_id"`
	TxSignature string            `json:"txSignature"`
	RewardType  ledger.RewardType `json:"reward_type"`
	Amount      int64             `json:"amount"`
	MintAddress string            `json:"mint_address"`
	Proof       string            `json:"proof"`
}

type walletBody struct {
	Wallet string `json:"wallet"`
}

var descriptions = map[ledger.RewardType]string{
	ledger.RewardTweet:           "Reward for sharing on Twitter",
	ledger.RewardMintTweet:       "Reward for sharing a mint on Twitter",
	ledger.RewardTelegramShare:   "Reward for sharing on Telegram",
	ledger.RewardVote:            "Reward for voting on a proposal",
	ledger.RewardProposalCreated: "Reward for creating a proposal",
	ledger.RewardClaim:           "Reward claim",
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var body grantBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ref := body.ReferenceID
	if ref == "" {
		ref = body.TxSignature
	}
	if body.RewardType == "" {
		body.RewardType = ledger.RewardTweet
	}
	if body.Wallet == "" || ref == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	if !body.RewardType.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown reward type")
		return
	}

	amount := body.Amount
	if amount <= 0 {
		amount = s.cfg.DefaultAmount
	}

	rec := &ledger.Record{
		Wallet:      body.Wallet,
		ReferenceID: ref,
		TxSignature: body.TxSignature,
		RewardType:  body.RewardType,
		Amount:      amount,
		Description: descriptions[body.RewardType],
		MintAddress: body.MintAddress,
		CreatedAt:   s.clock.Now().UTC(),
	}

	if err := s.store.CreateReward(r.Context(), rec); err != nil {
		if store.IsAlreadyExists(err) {
			s.logger.Info("duplicate reward rejected",
				"wallet", body.Wallet,
				"reference", ref,
				"type", body.RewardType)
			writeError(w, http.StatusConflict, "Reward already claimed for this reference")
			return
		}
		s.logger.Error("failed to record reward", "wallet", body.Wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to record reward")
		return
	}

	s.logger.Info("reward recorded",
		"wallet", rec.Wallet,
		"reference", rec.ReferenceID,
		"type", rec.RewardType,
		"amount", rec.Amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"reward":  rec,
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var body walletBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Wallet == "" {
		writeError(w, http.StatusBadRequest, "Wallet address is required")
		return
	}

	claim, err := s.store.ClaimRewards(r.Context(), body.Wallet, s.clock.Now())
	if err != nil {
		if errors.Is(err, ledger.ErrNothingToClaim) {
			writeError(w, http.StatusBadRequest, "No claimable rewards found")
			return
		}
		s.logger.Error("failed to claim rewards", "wallet", body.Wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to claim rewards")
		return
	}

	s.logger.Info("rewards claimed", "wallet", body.Wallet, "amount", claim.Amount, "claim", claim.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"claim":   claim,
	})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "Wallet address is required")
		return
	}

	recs, err := s.store.ListRewards(r.Context(), wallet)
	if err != nil {
		s.logger.Error("failed to list rewards", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch rewards")
		return
	}
	claims, err := s.store.ListClaims(r.Context(), wallet)
	if err != nil {
		s.logger.Error("failed to list claims", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch rewards")
		return
	}

	summary := ledger.Summary{
		Claimable: []ledger.Record{},
		History:   make([]ledger.Record, 0, len(recs)),
	}
	for _, rec := range recs {
		summary.History = append(summary.History, *rec)
		if !rec.Claimed {
			summary.Claimable = append(summary.Claimable, *rec)
			summary.TotalRewards += rec.Amount
		}
	}
	for _, c := range claims {
		summary.Claims = append(summary.Claims, *c)
	}
	writeJSON(w, http.StatusOK, summary)
}
