package oracle

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arcsign/swapcore/internal/retryutil"
	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// transportRetryPolicy allows 3 attempts (the first call plus 2
// retries). The first wait is about 500ms; later waits grow
// exponentially with randomization and are capped at 3s.
var transportRetryPolicy = retryutil.Policy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     3 * time.Second,
	MaxElapsedTime:  10 * time.Second,
	MaxRetries:      2,
}

// PriceOracle dispatches price lookups across PriceProvider leaves with
// the tri-state fail-over algorithm of spec §4.1, caching the result per
// (chain, token) and deduplicating concurrent misses with singleflight.
type PriceOracle struct {
	providers []PriceProvider
	order     []string
	byName    map[string]PriceProvider
	health    *HealthTracker

	cacheTTL time.Duration
	sf       singleflight.Group

	// logger is nil by default; an embedder wires one in with SetLogger.
	// Every call site nil-checks it rather than requiring it at
	// construction, matching pkg/wrapper's deps.Metrics convention.
	logger *zap.SugaredLogger

	mu    sync.Mutex
	cache map[string]cacheEntry

	// fixedPrices overrides the oracle for tokens using the
	// "$fixed-<amount>" marker (spec §3 PriceEntry).
	fixedPrices map[string]int64
	// ignoredTokens are excluded from price-dependent checks entirely.
	ignoredTokens map[string]bool
}

type cacheEntry struct {
	value int64
	asOf  time.Time
}

// New creates a PriceOracle over the given providers, consulted in the
// order given when more than one is eligible.
func New(providers []PriceProvider, cacheTTL time.Duration) *PriceOracle {
	order := make([]string, 0, len(providers))
	byName := make(map[string]PriceProvider, len(providers))
	for _, p := range providers {
		order = append(order, p.Name())
		byName[p.Name()] = p
	}
	return &PriceOracle{
		providers:     providers,
		order:         order,
		byName:        byName,
		health:        NewHealthTracker(order),
		cacheTTL:      cacheTTL,
		cache:         make(map[string]cacheEntry),
		fixedPrices:   make(map[string]int64),
		ignoredTokens: make(map[string]bool),
	}
}

// SetLogger wires a structured logger into the oracle for fail-over and
// exhaustion events. Safe to leave unset; every log call site nil-checks.
func (o *PriceOracle) SetLogger(l *zap.SugaredLogger) {
	o.logger = l
}

// SetFixedPrice registers a $fixed-<amount> marker for chain:token.
func (o *PriceOracle) SetFixedPrice(chain, token string, uSatPerToken int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fixedPrices[chain+":"+token] = uSatPerToken
}

// SetIgnored marks chain:token as excluded from price-dependent checks.
func (o *PriceOracle) SetIgnored(chain, token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ignoredTokens[chain+":"+token] = true
}

// IsIgnored reports whether chain:token carries the "$ignore" marker.
func (o *PriceOracle) IsIgnored(chain, token string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ignoredTokens[chain+":"+token]
}

// GetPrice returns chain:token's price in uSat/token, honoring fixed
// prices, the read-through cache, and the fail-over algorithm.
func (o *PriceOracle) GetPrice(ctx context.Context, chain, token string) (int64, error) {
	key := chain + ":" + token

	o.mu.Lock()
	if fixed, ok := o.fixedPrices[key]; ok {
		o.mu.Unlock()
		return fixed, nil
	}
	if entry, ok := o.cache[key]; ok && time.Since(entry.asOf) < o.cacheTTL {
		o.mu.Unlock()
		return entry.value, nil
	}
	o.mu.Unlock()

	v, err, _ := o.sf.Do(key, func() (interface{}, error) {
		price, err := o.dispatch(ctx, func(ctx context.Context, p PriceProvider) (int64, error) {
			return p.GetPrice(ctx, chain, token)
		})
		if err != nil {
			return int64(0), err
		}
		o.mu.Lock()
		o.cache[key] = cacheEntry{value: price, asOf: time.Now()}
		o.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// GetUSDPrice returns the current BTC/USD price.
func (o *PriceOracle) GetUSDPrice(ctx context.Context) (float64, error) {
	const key = "$usd"
	v, err, _ := o.sf.Do(key, func() (interface{}, error) {
		return o.dispatch(ctx, func(ctx context.Context, p PriceProvider) (float64, error) {
			return p.GetUSDPrice(ctx)
		})
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// dispatch implements spec §4.1's fail-over algorithm generically over
// the leaf call fn.
func dispatch[T any](ctx context.Context, o *PriceOracle, fn func(context.Context, PriceProvider) (T, error)) (T, error) {
	var zero T

	if name, ok := o.health.SoleOperational(o.order); ok {
		result, err := callWithRetry(ctx, o.byName[name], fn)
		if err == nil {
			return result, nil
		}
		o.health.MarkFailed(name)
		if o.logger != nil {
			o.logger.Warnw("oracle: sole operational provider failed, falling back to fan-out", "provider", name, "error", err)
		}
		// fall through to the racing fan-out below
	}

	candidates := o.health.Candidates(o.order)
	if len(candidates) == 0 {
		if o.logger != nil {
			o.logger.Error("oracle: no price providers configured")
		}
		return zero, swaperrors.NewRequestError(0, "oracle: no price providers configured")
	}

	type outcome struct {
		name   string
		result T
		err    error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(candidates))
	for _, name := range candidates {
		p := o.byName[name]
		go func(name string, p PriceProvider) {
			result, err := callWithRetry(raceCtx, p, fn)
			results <- outcome{name: name, result: result, err: err}
		}(name, p)
	}

	var firstTransportErr, firstOtherErr error
	for i := 0; i < len(candidates); i++ {
		out := <-results
		if out.err == nil {
			o.health.MarkOperational(out.name)
			cancel()
			return out.result, nil
		}
		o.health.MarkFailed(out.name)
		if _, isNetErr := out.err.(*swaperrors.NetworkError); isNetErr {
			if firstTransportErr == nil {
				firstTransportErr = out.err
			}
		} else if firstOtherErr == nil {
			firstOtherErr = out.err
		}
	}

	if o.logger != nil {
		o.logger.Warnw("oracle: all candidate providers failed", "candidates", candidates)
	}
	if firstOtherErr != nil {
		return zero, firstOtherErr
	}
	return zero, firstTransportErr
}

func (o *PriceOracle) dispatch(ctx context.Context, fn func(context.Context, PriceProvider) (int64, error)) (int64, error) {
	return dispatch(ctx, o, fn)
}

func callWithRetry[T any](ctx context.Context, p PriceProvider, fn func(context.Context, PriceProvider) (T, error)) (T, error) {
	var result T
	err := retryutil.Do(ctx, transportRetryPolicy, func(ctx context.Context) error {
		r, err := fn(ctx, p)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// AmountCheck is the pricing-check result spec §4.1 requires every
// ToBTC*/FromBTC* quote to carry: {isValid, differencePPM, satsBaseFee, feePPM}.
type AmountCheck struct {
	IsValid       bool
	DifferencePPM int64
	SatsBaseFee   *big.Int
	FeePPM        int64
}

// IsValidAmountSend validates a pay-in quote's implied price against the
// market, for the send-side directions (ToBTC/ToBTCLN): the user sends
// tokenAmount of token to be paid amountSats (net of baseFee and feePPM).
func (o *PriceOracle) IsValidAmountSend(ctx context.Context, chain, token string, amountSats *big.Int, baseFee *big.Int, feePPM int64, tokenAmount *big.Int, maxAllowedDiffPPM int64) (*AmountCheck, error) {
	return o.checkAmount(ctx, chain, token, amountSats, baseFee, feePPM, tokenAmount, maxAllowedDiffPPM)
}

// IsValidAmountReceive validates a pay-out quote the same way, for the
// receive-side directions (FromBTC/FromBTCLN).
func (o *PriceOracle) IsValidAmountReceive(ctx context.Context, chain, token string, amountSats *big.Int, baseFee *big.Int, feePPM int64, tokenAmount *big.Int, maxAllowedDiffPPM int64) (*AmountCheck, error) {
	return o.checkAmount(ctx, chain, token, amountSats, baseFee, feePPM, tokenAmount, maxAllowedDiffPPM)
}

func (o *PriceOracle) checkAmount(ctx context.Context, chain, token string, amountSats, baseFee *big.Int, feePPM int64, tokenAmount *big.Int, maxAllowedDiffPPM int64) (*AmountCheck, error) {
	if o.IsIgnored(chain, token) {
		return &AmountCheck{IsValid: true, SatsBaseFee: baseFee, FeePPM: feePPM}, nil
	}

	uSatPerToken, err := o.GetPrice(ctx, chain, token)
	if err != nil {
		return nil, err
	}
	if uSatPerToken <= 0 {
		return nil, fmt.Errorf("oracle: non-positive price for %s:%s", chain, token)
	}

	netSats := new(big.Int).Sub(amountSats, baseFee)
	netSats = new(big.Int).Sub(netSats, mulDivPPM(amountSats, feePPM))

	marketTokenAmount := new(big.Float).Quo(
		new(big.Float).Mul(new(big.Float).SetInt(netSats), big.NewFloat(1_000_000)),
		new(big.Float).SetInt64(uSatPerToken),
	)
	quotedF := new(big.Float).SetInt(tokenAmount)

	diff := new(big.Float).Sub(marketTokenAmount, quotedF)
	diff.Abs(diff)

	var differencePPM int64
	if marketTokenAmount.Sign() != 0 {
		ratio := new(big.Float).Quo(diff, marketTokenAmount)
		ratio.Mul(ratio, big.NewFloat(1_000_000))
		ppmFloat, _ := ratio.Float64()
		differencePPM = int64(math.Round(ppmFloat))
	}

	return &AmountCheck{
		IsValid:       differencePPM <= maxAllowedDiffPPM,
		DifferencePPM: differencePPM,
		SatsBaseFee:   baseFee,
		FeePPM:        feePPM,
	}, nil
}

func mulDivPPM(amount *big.Int, ppm int64) *big.Int {
	num := new(big.Int).Mul(amount, big.NewInt(ppm))
	return num.Div(num, big.NewInt(1_000_000))
}

// parseFloatField is a small helper shared by the REST providers to
// parse a JSON numeric-or-string field into a float64.
func parseFloatField(s string) (float64, error) {
	s = strings.TrimSpace(s)
	return strconv.ParseFloat(s, 64)
}
