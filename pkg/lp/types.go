// Package lp implements the intermediary registry and HTTP client (spec
// §4.2): liquidity-provider discovery, per-token reputation and
// liquidity caches, and the typed request/response surface a
// SwapWrapper drives its quoting phase through.
package lp

import "math/big"

// ServiceOffer is one entry in an Intermediary's advertised services map
// (SwapType -> offer), spec §3.
type ServiceOffer struct {
	SwapBaseFee *big.Int
	SwapFeePPM  int64
	Tokens      []string
}

// Reputation is the per-token success/failure/coop-close tally an
// Intermediary accrues across swaps (spec §3).
type Reputation struct {
	SuccessVolume   *big.Int
	SuccessCount    int64
	FailVolume      *big.Int
	FailCount       int64
	CoopCloseVolume *big.Int
	CoopCloseCount  int64
}

// LiquidityEntry is a cached on-chain balance reading for one token an
// Intermediary offers, refreshed by the registry's liquidity check.
type LiquidityEntry struct {
	Balance *big.Int
	AsOf    int64
}

// LightningNode is an Intermediary's optional published Lightning node
// identity, used by the FromBTCLN validator to check graph capacity.
type LightningNode struct {
	PublicKey string
	Capacity  *big.Int // sats, as published in the public LN graph
}

// Intermediary is a discovered liquidity provider.
type Intermediary struct {
	URL string

	// AddressForChain maps a chain id to this LP's address on that chain.
	AddressForChain map[string]string

	// Services maps a swap type ("ToBTC", "ToBTCLN", "FromBTC", "FromBTCLN")
	// to its advertised offer.
	Services map[string]ServiceOffer

	// Reputation maps token -> accumulated reputation for that token.
	Reputation map[string]Reputation

	// Liquidity maps token -> cached liquidity reading.
	Liquidity map[string]LiquidityEntry

	LightningNode *LightningNode

	// Blacklisted is set for the remainder of the session once
	// Registry.Blacklist is called for this LP, directly or by
	// RecordStrike after more than maxStrikesPerWindow rejected or failed
	// quotes within strikeWindow. It is not persisted.
	Blacklisted bool
}

// OfferFor returns the advertised offer for swapType, if any.
func (i *Intermediary) OfferFor(swapType string) (ServiceOffer, bool) {
	offer, ok := i.Services[swapType]
	return offer, ok
}
