package reactor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/chainkit/mock"
	"github.com/arcsign/swapcore/pkg/metrics"
	"github.com/arcsign/swapcore/pkg/storage"
	"github.com/arcsign/swapcore/pkg/swap"
)

const testChainID = "BTC_SC"

func seedSwap(t *testing.T, idx *storage.SwapIndex, direction swap.Direction, state swap.State, hashByte byte) (*swap.Swap, *chainkit.EscrowData) {
	t.Helper()
	var hash [32]byte
	hash[0] = hashByte
	data := &chainkit.EscrowData{
		Offerer: "offerer", Claimer: "claimer", Token: "USDX",
		Amount: big.NewInt(1000), Hash: hash, Type: chainkit.EscrowChainNonced,
	}
	s := &swap.Swap{
		PaymentHash: hash,
		Direction:   direction,
		State:       state,
		Data:        data,
		FeeRate:     &chainkit.FeeRate{ChainID: testChainID, Value: big.NewInt(1)},
		Version:     swap.CurrentVersion,
	}
	require.NoError(t, idx.Put(s))
	return s, data
}

// startDraining subscribes to contract's events synchronously (so no
// event fired immediately after this returns can be dropped for lack
// of a listener) and starts the reactor's processing loop in the
// background.
func startDraining(t *testing.T, ctx context.Context, r *Reactor, contract *mock.Contract) {
	t.Helper()
	events, err := contract.Subscribe(ctx)
	require.NoError(t, err)
	go func() { _ = r.drain(ctx, events) }()
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true within %s", timeout)
}

func TestReactor_InitializeEventAdvancesCreatedToCommitted(t *testing.T) {
	contract := mock.New(testChainID)
	idx := storage.NewSwapIndex(storage.NewMemoryKVStore())
	require.NoError(t, idx.LoadAll())
	s, data := seedSwap(t, idx, swap.DirectionToBTC, swap.StateCreated, 1)

	r := New(contract, idx, metrics.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startDraining(t, ctx, r, contract)

	_, err := contract.InitPayIn(context.Background(), data, &chainkit.AuthorizationSignature{}, nil)
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool {
		got, _ := idx.Get(s.PaymentHash)
		return got.State == swap.StateCommitted
	})

	got, _ := idx.Get(s.PaymentHash)
	assert.NotEmpty(t, got.CommitTxID)
}

func TestReactor_ClaimEventAdvancesCommittedToClaimed(t *testing.T) {
	contract := mock.New(testChainID)
	idx := storage.NewSwapIndex(storage.NewMemoryKVStore())
	require.NoError(t, idx.LoadAll())
	s, data := seedSwap(t, idx, swap.DirectionToBTC, swap.StateCreated, 2)

	txID, err := contract.InitPayIn(context.Background(), data, &chainkit.AuthorizationSignature{}, nil)
	require.NoError(t, err)
	s.State = swap.StateCommitted
	s.CommitTxID = txID
	require.NoError(t, idx.Put(s))

	r := New(contract, idx, metrics.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startDraining(t, ctx, r, contract)

	_, err = contract.Claim(context.Background(), s.PaymentHash, nil)
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool {
		got, _ := idx.Get(s.PaymentHash)
		return got.State == swap.StateClaimed
	})

	got, _ := idx.Get(s.PaymentHash)
	assert.NotEmpty(t, got.ClaimTxID)
}

func TestReactor_RefundEventPassesThroughRefundableOnTheWayToRefunded(t *testing.T) {
	contract := mock.New(testChainID)
	idx := storage.NewSwapIndex(storage.NewMemoryKVStore())
	require.NoError(t, idx.LoadAll())
	s, data := seedSwap(t, idx, swap.DirectionToBTC, swap.StateCreated, 3)

	txID, err := contract.InitPayIn(context.Background(), data, &chainkit.AuthorizationSignature{}, nil)
	require.NoError(t, err)
	s.State = swap.StateCommitted
	s.CommitTxID = txID
	require.NoError(t, idx.Put(s))

	r := New(contract, idx, metrics.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startDraining(t, ctx, r, contract)

	_, err = contract.Refund(context.Background(), s.PaymentHash)
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool {
		got, _ := idx.Get(s.PaymentHash)
		return got.State == swap.StateRefunded
	})

	got, _ := idx.Get(s.PaymentHash)
	assert.NotEmpty(t, got.RefundTxID)
}

func TestReactor_FromBTCLNInitializeAdvancesPRPaidToClaimCommitted(t *testing.T) {
	contract := mock.New(testChainID)
	idx := storage.NewSwapIndex(storage.NewMemoryKVStore())
	require.NoError(t, idx.LoadAll())
	s, data := seedSwap(t, idx, swap.DirectionFromBTCLN, swap.StatePRPaid, 4)

	r := New(contract, idx, metrics.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startDraining(t, ctx, r, contract)

	_, err := contract.Init(context.Background(), data, &chainkit.AuthorizationSignature{}, nil)
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool {
		got, _ := idx.Get(s.PaymentHash)
		return got.State == swap.StateClaimCommitted
	})
}

func TestReactor_EventForUnknownSwapIsBufferedUntilLoadCompletes(t *testing.T) {
	store := storage.NewMemoryKVStore()
	seed := storage.NewSwapIndex(store)
	s, data := seedSwap(t, seed, swap.DirectionToBTC, swap.StateCreated, 5)

	idx := storage.NewSwapIndex(store) // a fresh index, not yet LoadAll'd

	contract := mock.New(testChainID)
	r := New(contract, idx, metrics.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startDraining(t, ctx, r, contract)

	_, err := contract.InitPayIn(context.Background(), data, &chainkit.AuthorizationSignature{}, nil)
	require.NoError(t, err)

	require.NoError(t, idx.LoadAll())
	idx.DrainBufferedEvents()

	got, ok := idx.Get(s.PaymentHash)
	require.True(t, ok)
	assert.Equal(t, swap.StateCommitted, got.State)
}

func TestReactor_RunReturnsWhenContextCancelled(t *testing.T) {
	contract := mock.New(testChainID)
	idx := storage.NewSwapIndex(storage.NewMemoryKVStore())
	require.NoError(t, idx.LoadAll())

	r := New(contract, idx, metrics.New(nil))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
