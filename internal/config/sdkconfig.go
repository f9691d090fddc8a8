// Package config defines SDKConfig, the embedder-supplied knobs that
// parameterize the swap core, in the teacher's style of a plain struct
// with an explicit NewX constructor and Validate method
// (internal/app/config.go's NewAppConfig; provider/config.go's ValidateAPIKey).
package config

import (
	"fmt"
	"time"
)

// SDKConfig is the top-level configuration every swap-core component
// reads from. It is immutable after construction; callers that need to
// change a value build a new SDKConfig.
type SDKConfig struct {
	// RegistryURL is the intermediary registry endpoint used to discover LPs.
	RegistryURL string

	// RequestTimeout bounds a single HTTP round trip to an intermediary.
	RequestTimeout time.Duration

	// QuoteValidity is how long a quote's authorization signature is
	// honored before the core refuses to commit against it.
	QuoteValidity time.Duration

	// MaxPriceDeviationPPM is the maximum allowed difference, in parts
	// per million, between an LP's quoted price and the oracle's.
	MaxPriceDeviationPPM int64

	// MaxRoutingFeePPM caps the Lightning routing fee an LP may charge,
	// expressed in parts per million of the swap amount.
	MaxRoutingFeePPM int64

	// MinConfirmations is the default confirmation depth required before
	// a FromBTC/ToBTC escrow is considered final, absent a per-swap override.
	MinConfirmations int

	// WatchdogPollInterval is how often the core polls chain/LN status
	// for swaps it has no live event subscription for.
	WatchdogPollInterval time.Duration

	// PriceCacheTTL bounds how long a cached oracle price is reused
	// before a fresh fetch is required.
	PriceCacheTTL time.Duration
}

// DefaultSDKConfig returns the configuration the teacher's own deployment
// would start from: conservative timeouts, a tight price-deviation band.
func DefaultSDKConfig(registryURL string) *SDKConfig {
	return &SDKConfig{
		RegistryURL:          registryURL,
		RequestTimeout:       10 * time.Second,
		QuoteValidity:        2 * time.Minute,
		MaxPriceDeviationPPM: 20_000, // 2%
		MaxRoutingFeePPM:     10_000, // 1%
		MinConfirmations:     1,
		WatchdogPollInterval: 5 * time.Second,
		PriceCacheTTL:        10 * time.Second,
	}
}

// Validate checks the configuration for internally-inconsistent or
// unusable values before the core wires any component against it.
func (c *SDKConfig) Validate() error {
	if c.RegistryURL == "" {
		return fmt.Errorf("config: RegistryURL is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: RequestTimeout must be positive")
	}
	if c.QuoteValidity <= 0 {
		return fmt.Errorf("config: QuoteValidity must be positive")
	}
	if c.MaxPriceDeviationPPM <= 0 || c.MaxPriceDeviationPPM > 1_000_000 {
		return fmt.Errorf("config: MaxPriceDeviationPPM must be in (0, 1000000]")
	}
	if c.MaxRoutingFeePPM < 0 || c.MaxRoutingFeePPM > 1_000_000 {
		return fmt.Errorf("config: MaxRoutingFeePPM must be in [0, 1000000]")
	}
	if c.MinConfirmations < 0 {
		return fmt.Errorf("config: MinConfirmations must be non-negative")
	}
	if c.WatchdogPollInterval <= 0 {
		return fmt.Errorf("config: WatchdogPollInterval must be positive")
	}
	if c.PriceCacheTTL <= 0 {
		return fmt.Errorf("config: PriceCacheTTL must be positive")
	}
	return nil
}
