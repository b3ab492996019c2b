package ledger

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalClass(t *testing.T) {
	assert.Equal(t, CanonicalClass(RewardTweet), CanonicalClass(RewardMintTweet))
	assert.True(t, SameClass(RewardMintTweet, RewardTweet))
	assert.False(t, SameClass(RewardTweet, RewardTelegramShare))
	assert.False(t, SameClass(RewardVote, RewardProposalCreated))
	assert.Equal(t, "vote", CanonicalClass(RewardVote))
}

func TestReferenceMatches(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		ref  string
		want bool
	}{
		{"exact", Record{ReferenceID: "sig123"}, "sig123", true},
		{"tx signature", Record{ReferenceID: "other", TxSignature: "sig123"}, "sig123", true},
		{"record has mint prefix", Record{ReferenceID: "mint_0042"}, "0042", true},
		{"query has mint prefix", Record{ReferenceID: "0042"}, "mint_0042", true},
		{"record has nft prefix", Record{ReferenceID: "nft_0042"}, "0042", true},
		{"query has nft prefix", Record{ReferenceID: "0042"}, "nft_0042", true},
		{"substring only", Record{ReferenceID: "mint_00420"}, "0042", false},
		{"different", Record{ReferenceID: "sig999"}, "sig123", false},
		{"empty query", Record{ReferenceID: ""}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferenceMatches(tt.rec, tt.ref))
		})
	}
}

func TestHasGrantedIn(t *testing.T) {
	history := []Record{
		{ReferenceID: "txSig123", RewardType: RewardTweet},
		{ReferenceID: "mint_0007", RewardType: RewardMintTweet},
		{ReferenceID: "nft_telegram_0007", RewardType: RewardTelegramShare},
	}

	assert.True(t, HasGrantedIn(history, "txSig123", RewardTweet))
	assert.True(t, HasGrantedIn(history, "txSig123", RewardMintTweet), "tweet and mint_tweet are one class")
	assert.True(t, HasGrantedIn(history, "0007", RewardTweet), "mint_ variant matches")
	assert.False(t, HasGrantedIn(history, "txSig123", RewardTelegramShare))
	assert.False(t, HasGrantedIn(history, "txSig456", RewardTweet))
	assert.False(t, HasGrantedIn(nil, "txSig123", RewardTweet))
}

func TestNFTStatusIn(t *testing.T) {
	history := []Record{
		{ReferenceID: "nft_tweet_0012", RewardType: RewardTweet},
		{ReferenceID: "nft_telegram_0012", RewardType: RewardTelegramShare},
	}

	st := NFTStatusIn(history, "12")
	assert.Equal(t, NFTRewardStatus{Tweet: true, Telegram: true}, st)
	assert.Equal(t, NFTRewardStatus{}, NFTStatusIn(history, ""))
	assert.Equal(t, "0012", NormalizeNFTID("12"))
	assert.Equal(t, "12345", NormalizeNFTID("12345"))
	assert.Equal(t, "mint_0003", MintReference("3"))
}

func TestShareURL(t *testing.T) {
	cfg := DefaultShareConfig()

	u, err := ShareURL(cfg, PlatformTwitter, ShareData{NFTID: "42", Tier: "Legendary", MintAddress: "Mint111"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "https://twitter.com/intent/tweet?"))

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	text := parsed.Query().Get("text")
	assert.Contains(t, text, "SOLARA #42")
	assert.Contains(t, text, "https://solscan.io/token/Mint111?cluster=devnet")
	assert.Contains(t, text, "https://tesola.xyz/solara/42")

	u, err = ShareURL(cfg, PlatformTelegram, ShareData{TxSignature: "sigABC"})
	require.NoError(t, err)
	parsed, err = url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, cfg.CommunityURL, parsed.Query().Get("url"))
	assert.Contains(t, parsed.Query().Get("text"), "https://solscan.io/tx/sigABC")
	assert.Contains(t, parsed.Query().Get("text"), "Join our community")

	_, err = ShareURL(cfg, "myspace", ShareData{})
	assert.Error(t, err)
}

func TestShareRewardType(t *testing.T) {
	assert.Equal(t, RewardTelegramShare, ShareRewardType(PlatformTelegram, true))
	assert.Equal(t, RewardMintTweet, ShareRewardType(PlatformTwitter, true))
	assert.Equal(t, RewardTweet, ShareRewardType(PlatformTwitter, false))
}

func TestGrantRequest_Validate(t *testing.T) {
	assert.NoError(t, GrantRequest{Wallet: "W", ReferenceID: "r", RewardType: RewardTweet}.Validate())
	assert.ErrorIs(t, GrantRequest{ReferenceID: "r", RewardType: RewardTweet}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, GrantRequest{Wallet: "W", RewardType: RewardTweet}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, GrantRequest{Wallet: "W", ReferenceID: "r"}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, GrantRequest{Wallet: "W", ReferenceID: "r", RewardType: RewardTweet, Amount: -1}.Validate(), ErrInvalidRequest)
}
