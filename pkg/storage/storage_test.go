package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/swapcore/pkg/swap"
)

func sampleSwap(hash byte) *swap.Swap {
	s := &swap.Swap{Direction: swap.DirectionToBTC, State: swap.StateCreated}
	s.PaymentHash[0] = hash
	return s
}

func TestSwapIndex_PutGetRoundTrips(t *testing.T) {
	idx := NewSwapIndex(NewMemoryKVStore())
	s := sampleSwap(1)

	require.NoError(t, idx.Put(s))
	got, ok := idx.Get(s.PaymentHash)
	require.True(t, ok)
	assert.Equal(t, s.Direction, got.Direction)
}

func TestSwapIndex_LoadAllRepopulatesFromStore(t *testing.T) {
	store := NewMemoryKVStore()
	idx := NewSwapIndex(store)
	require.NoError(t, idx.Put(sampleSwap(2)))

	fresh := NewSwapIndex(store)
	require.NoError(t, fresh.LoadAll())
	assert.Len(t, fresh.All(), 1)
}

func TestSwapIndex_DeleteRemovesFromBothLayers(t *testing.T) {
	store := NewMemoryKVStore()
	idx := NewSwapIndex(store)
	s := sampleSwap(3)
	require.NoError(t, idx.Put(s))

	require.NoError(t, idx.Delete(s.PaymentHash))
	_, ok := idx.Get(s.PaymentHash)
	assert.False(t, ok)

	_, existsInStore, _ := store.Get(keyFor(s.PaymentHash))
	assert.False(t, existsInStore)
}

func TestSwapIndex_BufferEventBeforeLoadIsAppliedOnDrain(t *testing.T) {
	store := NewMemoryKVStore()
	seed := NewSwapIndex(store)
	s := sampleSwap(4)
	require.NoError(t, seed.Put(s))

	idx := NewSwapIndex(store)

	applied := false
	idx.BufferEvent(s.PaymentHash, func(sw *swap.Swap) { applied = true })
	assert.False(t, applied, "event must not apply before LoadAll")

	require.NoError(t, idx.LoadAll())
	idx.DrainBufferedEvents()
	assert.True(t, applied)
}

func TestSwapIndex_EventAfterLoadAppliesImmediately(t *testing.T) {
	store := NewMemoryKVStore()
	idx := NewSwapIndex(store)
	s := sampleSwap(5)
	require.NoError(t, idx.Put(s))
	require.NoError(t, idx.LoadAll())

	applied := false
	idx.BufferEvent(s.PaymentHash, func(sw *swap.Swap) { applied = true })
	assert.True(t, applied)
}
