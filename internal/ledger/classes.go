package ledger

import (
	"fmt"
	"strings"
)

// classTable maps reward types that are aliases of each other onto one
// canonical class. Types absent from the table are their own class.
var classTable = map[RewardType]string{
	RewardTweet:     "social_tweet",
	RewardMintTweet: "social_tweet",
}

// CanonicalClass returns the dedup class of t. At most one record may exist
// per (wallet, reference, class).
func CanonicalClass(t RewardType) string {
	if c, ok := classTable[t]; ok {
		return c
	}
	return string(t)
}

// SameClass reports whether a and b dedupe against each other.
func SameClass(a, b RewardType) bool {
	return CanonicalClass(a) == CanonicalClass(b)
}

// referencePrefixes are the variants a reference may be recorded under.
var referencePrefixes = []string{"mint_", "nft_"}

// ReferenceMatches reports whether r was granted for ref: the reference or
// transaction signature matches exactly, or one side is the other with a
// mint_ or nft_ prefix.
func ReferenceMatches(r Record, ref string) bool {
	if ref == "" {
		return false
	}
	if r.ReferenceID == ref || (r.TxSignature != "" && r.TxSignature == ref) {
		return true
	}
	if r.ReferenceID == "" {
		return false
	}
	for _, p := range referencePrefixes {
		if r.ReferenceID == p+ref || ref == p+r.ReferenceID {
			return true
		}
	}
	return false
}

// HasGrantedIn reports whether history holds a reward for ref in the same
// class as t.
func HasGrantedIn(history []Record, ref string, t RewardType) bool {
	for _, r := range history {
		if SameClass(r.RewardType, t) && ReferenceMatches(r, ref) {
			return true
		}
	}
	return false
}

// NFTRewardStatus is the per-platform share state of one NFT.
type NFTRewardStatus struct {
	Tweet     bool `json:"tweet"`
	MintTweet bool `json:"mintTweet"`
	Telegram  bool `json:"telegram"`
}

// NormalizeNFTID left-pads an NFT number to four digits.
func NormalizeNFTID(id string) string {
	id = strings.TrimSpace(id)
	if n := len(id); n < 4 {
		id = strings.Repeat("0", 4-n) + id
	}
	return id
}

// NFT share references, keyed by the normalized NFT id.
func TweetReference(nftID string) string    { return fmt.Sprintf("nft_tweet_%s", NormalizeNFTID(nftID)) }
func MintReference(nftID string) string     { return fmt.Sprintf("mint_%s", NormalizeNFTID(nftID)) }
func TelegramReference(nftID string) string { return fmt.Sprintf("nft_telegram_%s", NormalizeNFTID(nftID)) }

// NFTStatusIn computes the share state of nftID from history.
func NFTStatusIn(history []Record, nftID string) NFTRewardStatus {
	if nftID == "" {
		return NFTRewardStatus{}
	}
	has := func(ref string, t RewardType) bool {
		for _, r := range history {
			if r.ReferenceID == ref && r.RewardType == t {
				return true
			}
		}
		return false
	}
	return NFTRewardStatus{
		Tweet:     has(TweetReference(nftID), RewardTweet),
		MintTweet: has(MintReference(nftID), RewardMintTweet),
		Telegram:  has(TelegramReference(nftID), RewardTelegramShare),
	}
}
