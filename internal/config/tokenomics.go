package config

import (
	"github.com/spf13/viper"
)

// SystemAccountIDs holds the reserved wallet ids, one per role. All ids are
// validated (UUID syntax, pairwise distinct) by the registry at startup.
type SystemAccountIDs struct {
	Pool        string
	Peer        string
	Burn        string
	BridgePool  string
	InviterBank string
	Mint        string
}

// Tokenomics is the injected fee/mint policy. Rates are decimal strings so
// they can be parsed into exact fixed-point amounts without float drift.
type Tokenomics struct {
	PoolFee    string
	PeerFee    string
	BurnFee    string
	InviterFee string

	// DailyMintBudget is the fixed number of tokens emitted per mint day.
	DailyMintBudget string

	// GemsReturns maps action names to the gems credited per action.
	// Dislikes carry a negative return.
	GemsReturns map[string]string

	Accounts SystemAccountIDs
}

// LoadTokenomics reads the token policy from viper with production defaults.
func LoadTokenomics() *Tokenomics {
	viper.SetDefault("tokenomics.pool_fee", "0.01")
	viper.SetDefault("tokenomics.peer_fee", "0.02")
	viper.SetDefault("tokenomics.burn_fee", "0.01")
	viper.SetDefault("tokenomics.inviter_fee", "0.01")
	viper.SetDefault("tokenomics.daily_mint_budget", "5000")

	viper.SetDefault("tokenomics.gems.view", "0.25")
	viper.SetDefault("tokenomics.gems.like", "5")
	viper.SetDefault("tokenomics.gems.dislike", "-3")
	viper.SetDefault("tokenomics.gems.comment", "2")
	viper.SetDefault("tokenomics.gems.post", "0")

	return &Tokenomics{
		PoolFee:         viper.GetString("tokenomics.pool_fee"),
		PeerFee:         viper.GetString("tokenomics.peer_fee"),
		BurnFee:         viper.GetString("tokenomics.burn_fee"),
		InviterFee:      viper.GetString("tokenomics.inviter_fee"),
		DailyMintBudget: viper.GetString("tokenomics.daily_mint_budget"),
		GemsReturns: map[string]string{
			"view":    viper.GetString("tokenomics.gems.view"),
			"like":    viper.GetString("tokenomics.gems.like"),
			"dislike": viper.GetString("tokenomics.gems.dislike"),
			"comment": viper.GetString("tokenomics.gems.comment"),
			"post":    viper.GetString("tokenomics.gems.post"),
		},
		Accounts: SystemAccountIDs{
			Pool:        viper.GetString("accounts.pool"),
			Peer:        viper.GetString("accounts.peer"),
			Burn:        viper.GetString("accounts.burn"),
			BridgePool:  viper.GetString("accounts.bridge_pool"),
			InviterBank: viper.GetString("accounts.inviter_bank"),
			Mint:        viper.GetString("accounts.mint"),
		},
	}
}
