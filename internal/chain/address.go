// Package chain recognises wallet address formats by shape only; no
// checksum or network lookup is performed.
package chain

import (
	"regexp"
	"strings"
)

const (
	Ethereum = "ethereum"
	Solana   = "solana"
	Bitcoin  = "bitcoin"
	Polkadot = "polkadot"
	Unknown  = "unknown"
)

type rule struct {
	chain   string
	pattern *regexp.Regexp
}

// Order matters: base58 Solana keys overlap with legacy Bitcoin and
// Polkadot shapes, so the first match wins.
var rules = []rule{
	{Ethereum, regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)},
	{Solana, regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)},
	{Bitcoin, regexp.MustCompile(`^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,39}$`)},
	{Polkadot, regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{46,48}$`)},
}

// Detect returns the chain an address belongs to, or Unknown.
func Detect(address string) string {
	address = strings.TrimSpace(address)
	for _, r := range rules {
		if r.pattern.MatchString(address) {
			return r.chain
		}
	}
	return Unknown
}

func IsValid(address string) bool {
	return Detect(address) != Unknown
}

// Asset describes a coin that can appear in a simulated wallet import.
type Asset struct {
	Symbol        string
	Name          string
	PurchasePrice float64
	CurrentPrice  float64
	MaxQuantity   float64
}

var natives = map[string]Asset{
	Ethereum: {Symbol: "ETH", Name: "Ethereum", PurchasePrice: 3000, CurrentPrice: 3500, MaxQuantity: 50},
	Bitcoin:  {Symbol: "BTC", Name: "Bitcoin", PurchasePrice: 45000, CurrentPrice: 50000, MaxQuantity: 2},
	Solana:   {Symbol: "SOL", Name: "Solana", PurchasePrice: 100, CurrentPrice: 120, MaxQuantity: 50},
	Polkadot: {Symbol: "DOT", Name: "Polkadot", PurchasePrice: 20, CurrentPrice: 25, MaxQuantity: 50},
}

// NativeAsset returns the chain's own coin.
func NativeAsset(chain string) (Asset, bool) {
	a, ok := natives[chain]
	return a, ok
}

// Tokens lists the ERC-20 tokens an Ethereum import may contain, in the
// order they are added.
func Tokens(chain string) []Asset {
	if chain != Ethereum {
		return nil
	}
	return []Asset{
		{Symbol: "LINK", Name: "Chainlink", PurchasePrice: 15.2 * 0.9, CurrentPrice: 15.2, MaxQuantity: 100},
		{Symbol: "UNI", Name: "Uniswap", PurchasePrice: 7.8 * 0.9, CurrentPrice: 7.8, MaxQuantity: 100},
		{Symbol: "AAVE", Name: "Aave", PurchasePrice: 95.4 * 0.9, CurrentPrice: 95.4, MaxQuantity: 100},
	}
}
