package ledger

import (
	"fmt"
	"net/url"
	"strings"
)

// Share platforms.
const (
	PlatformTwitter  = "twitter"
	PlatformTelegram = "telegram"
)

// ShareConfig holds the links embedded in share text.
type ShareConfig struct {
	// Network is the cluster name appended to explorer links.
	Network string

	// CollectionMint is linked when neither a mint nor a transaction is known.
	CollectionMint string

	SiteURL      string
	CommunityURL string
}

// DefaultShareConfig returns the stock share links.
func DefaultShareConfig() ShareConfig {
	return ShareConfig{
		Network:      "devnet",
		SiteURL:      "https://tesola.xyz",
		CommunityURL: "https://t.me/TESLAINSOLANA",
	}
}

// ShareData describes what is being shared.
type ShareData struct {
	NFTID       string
	Tier        string
	MintAddress string
	TxSignature string
}

// ShareURL builds the intent URL for sharing data on platform.
func ShareURL(cfg ShareConfig, platform string, data ShareData) (string, error) {
	text := shareText(cfg, data)

	switch platform {
	case PlatformTwitter:
		return "https://twitter.com/intent/tweet?" + url.Values{"text": {text}}.Encode(), nil
	case PlatformTelegram:
		text += "\n\nJoin our community: " + cfg.CommunityURL
		q := url.Values{"url": {cfg.CommunityURL}, "text": {text}}
		return "https://t.me/share/url?" + q.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported share platform %q", platform)
	}
}

// ShareRewardType returns the reward type for sharing on platform.
func ShareRewardType(platform string, afterMint bool) RewardType {
	if platform == PlatformTelegram {
		return RewardTelegramShare
	}
	if afterMint {
		return RewardMintTweet
	}
	return RewardTweet
}

func shareText(cfg ShareConfig, data ShareData) string {
	var explorer string
	switch {
	case data.MintAddress != "":
		explorer = fmt.Sprintf("https://solscan.io/token/%s?cluster=%s", data.MintAddress, cfg.Network)
	case data.TxSignature != "":
		explorer = fmt.Sprintf("https://solscan.io/tx/%s?cluster=%s", data.TxSignature, cfg.Network)
	default:
		explorer = fmt.Sprintf("https://solscan.io/address/%s?cluster=%s", cfg.CollectionMint, cfg.Network)
	}

	market := fmt.Sprintf("https://magiceden.io/marketplace/slr?cluster=%s", cfg.Network)
	if data.MintAddress != "" {
		market = fmt.Sprintf("https://magiceden.io/item-details/%s?cluster=%s", data.MintAddress, cfg.Network)
	}

	site := cfg.SiteURL
	if data.NFTID != "" {
		site = fmt.Sprintf("%s/solara/%s", strings.TrimRight(cfg.SiteURL, "/"), data.NFTID)
	}

	var b strings.Builder
	if data.NFTID != "" && data.Tier != "" {
		fmt.Fprintf(&b, "I just minted SOLARA #%s – %s tier! 🚀\n\n", data.NFTID, data.Tier)
		fmt.Fprintf(&b, "View on Solscan: %s\n", explorer)
		fmt.Fprintf(&b, "View on Magic Eden: %s\n", market)
	} else {
		b.WriteString("Check out my SOLARA transaction! 🚀\n\n")
		fmt.Fprintf(&b, "View on Solscan: %s\n", explorer)
	}
	fmt.Fprintf(&b, "Visit: %s\n\n", site)
	b.WriteString("#SOLARA #NFT #Solana")
	return b.String()
}
