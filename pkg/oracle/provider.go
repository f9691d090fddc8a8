// Package oracle implements the redundant price oracle (spec §4.1): a
// set of exchange-backed PriceProvider leaves, a tri-state fail-over
// dispatcher, and the price-deviation checks the response validator
// calls into.
package oracle

import "context"

// PriceProvider is a leaf price source (Binance, OKX, CoinGecko,
// CoinPaprika, ...). Implementations issue their own HTTP requests; the
// oracle only sequences and races them.
type PriceProvider interface {
	// Name identifies the provider for health tracking and logging.
	Name() string

	// GetPrice returns the price of token on chain, in micro-satoshis
	// per token (uSat/token). A fixed-price marker is handled by the
	// oracle before a provider is ever consulted.
	GetPrice(ctx context.Context, chain, token string) (uSatPerToken int64, err error)

	// GetUSDPrice returns the BTC/USD price.
	GetUSDPrice(ctx context.Context) (usdPerBTC float64, err error)
}

// fixedPricePrefix marks a token whose price is a caller-supplied
// constant rather than a market quote (spec §3 PriceEntry).
const fixedPricePrefix = "$fixed-"

// ignorePriceMarker excludes a token from price-dependent checks entirely.
const ignorePriceMarker = "$ignore"
