package oracle

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable PriceProvider test double: each call pops
// the next entry off a results queue, so tests can script a fail-then-
// succeed sequence per spec §8 scenario 4.
type fakeProvider struct {
	name    string
	results []fakeResult

	mu    sync.Mutex
	calls int
}

type fakeResult struct {
	price int64
	err   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) GetPrice(ctx context.Context, chain, token string) (int64, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	f.mu.Unlock()
	r := f.results[idx]
	return r.price, r.err
}

func (f *fakeProvider) GetUSDPrice(ctx context.Context) (float64, error) {
	return 50000, nil
}

func TestGetPrice_FailOverToSuccessfulProvider(t *testing.T) {
	// Scenario from spec §8.4: Binance and OKX fail, CoinGecko succeeds,
	// CoinPaprika fails. getPrice must return CoinGecko's price and mark
	// it operational.
	binance := &fakeProvider{name: "binance", results: []fakeResult{{err: assertErr("binance down")}}}
	okx := &fakeProvider{name: "okx", results: []fakeResult{{err: assertErr("okx down")}}}
	coingecko := &fakeProvider{name: "coingecko", results: []fakeResult{{price: 4200}}}
	coinpaprika := &fakeProvider{name: "coinpaprika", results: []fakeResult{{err: assertErr("coinpaprika down")}}}

	o := New([]PriceProvider{binance, okx, coingecko, coinpaprika}, time.Minute)

	price, err := o.GetPrice(context.Background(), "sc-chain", "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), price)

	status := o.health.Status("coingecko")
	require.NotNil(t, status)
	assert.True(t, *status, "coingecko must be marked operational after success")
}

func TestGetPrice_SoleOperationalIsTriedExclusively(t *testing.T) {
	a := &fakeProvider{name: "a", results: []fakeResult{{price: 1}, {price: 2}}}
	b := &fakeProvider{name: "b", results: []fakeResult{{price: 999}}}

	o := New([]PriceProvider{a, b}, 0) // TTL 0: always refetch, never serve from cache

	_, err := o.GetPrice(context.Background(), "chain", "tok")
	require.NoError(t, err)
	o.health.MarkOperational("a")
	callsBeforeSecondFetch := b.callCount()

	_, err = o.GetPrice(context.Background(), "chain", "tok")
	require.NoError(t, err)
	assert.Equal(t, callsBeforeSecondFetch, b.callCount(), "once a is operational=true, b must not be consulted again")
}

func TestGetPrice_AllProvidersFailSurfacesError(t *testing.T) {
	a := &fakeProvider{name: "a", results: []fakeResult{{err: assertErr("a down")}}}
	b := &fakeProvider{name: "b", results: []fakeResult{{err: assertErr("b down")}}}

	o := New([]PriceProvider{a, b}, time.Minute)
	_, err := o.GetPrice(context.Background(), "chain", "tok")
	assert.Error(t, err)
}

func TestGetPrice_FixedPriceShortCircuits(t *testing.T) {
	o := New(nil, time.Minute)
	o.SetFixedPrice("chain", "STABLE", 7_000_000)

	price, err := o.GetPrice(context.Background(), "chain", "STABLE")
	require.NoError(t, err)
	assert.Equal(t, int64(7_000_000), price)
}

func TestIsValidAmountSend_WithinDeviationBand(t *testing.T) {
	a := &fakeProvider{name: "a", results: []fakeResult{{price: 1_000_000}}} // 1e6 uSat/token == 1 sat/token
	o := New([]PriceProvider{a}, time.Minute)

	check, err := o.IsValidAmountSend(context.Background(), "chain", "tok",
		big.NewInt(100_000), big.NewInt(0), 0, big.NewInt(100_000), 20_000)
	require.NoError(t, err)
	assert.True(t, check.IsValid)
	assert.LessOrEqual(t, check.DifferencePPM, int64(20_000))
}

func TestIsValidAmountSend_RejectsOutsideDeviationBand(t *testing.T) {
	a := &fakeProvider{name: "a", results: []fakeResult{{price: 1_000_000}}}
	o := New([]PriceProvider{a}, time.Minute)

	check, err := o.IsValidAmountSend(context.Background(), "chain", "tok",
		big.NewInt(100_000), big.NewInt(0), 0, big.NewInt(50_000), 20_000)
	require.NoError(t, err)
	assert.False(t, check.IsValid)
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func assertErr(msg string) error { return &testErr{msg: msg} }
