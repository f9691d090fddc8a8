// Package storage holds the in-memory swap index and the KVStore
// boundary every persisted swap is written through (spec §1, §7).
package storage

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/arcsign/swapcore/pkg/swap"
)

// KVStore is the persistence boundary: a flat byte-keyed store, left to
// the embedder (a file, a bolt/leveldb handle, a KV service). This core
// never opens a file itself, mirroring the teacher's
// chainadapter/storage interface split between the storage contract and
// its in-memory reference implementation.
type KVStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	List() ([]string, error)
}

// MemoryKVStore is a reference KVStore for tests and the demo CLI.
type MemoryKVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{data: make(map[string][]byte)}
}

func (m *MemoryKVStore) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKVStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKVStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKVStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

const keyPrefix = "swap/"

func keyFor(paymentHash [32]byte) string {
	return keyPrefix + hex.EncodeToString(paymentHash[:])
}

// SwapIndex is the in-memory, write-through index of in-flight and
// historical swaps, keyed by payment hash (spec §7 "swap storage").
// Every mutation is written to the backing KVStore before the in-memory
// map is updated, so a crash mid-write never leaves the two out of
// sync in the direction that matters (memory ahead of disk).
type SwapIndex struct {
	mu    sync.RWMutex
	byKey map[[32]byte]*swap.Swap
	store KVStore

	loaded      bool
	pendingEvts []bufferedEvent
}

type bufferedEvent struct {
	paymentHash [32]byte
	apply       func(*swap.Swap)
}

func NewSwapIndex(store KVStore) *SwapIndex {
	return &SwapIndex{
		byKey: make(map[[32]byte]*swap.Swap),
		store: store,
	}
}

// LoadAll reads every persisted swap from the backing store into
// memory. Must be called once at startup before the index is queried;
// events observed on-chain before LoadAll completes are buffered via
// BufferEvent and drained by DrainBufferedEvents once this returns.
func (idx *SwapIndex) LoadAll() error {
	keys, err := idx.store.List()
	if err != nil {
		return fmt.Errorf("storage: failed to list persisted swaps: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, key := range keys {
		raw, ok, err := idx.store.Get(key)
		if err != nil {
			return fmt.Errorf("storage: failed to read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		s, err := swap.Unmarshal(raw)
		if err != nil {
			return fmt.Errorf("storage: failed to decode %s: %w", key, err)
		}
		idx.byKey[s.PaymentHash] = s
	}
	idx.loaded = true
	return nil
}

// Put writes s to the backing store and updates the in-memory index.
func (idx *SwapIndex) Put(s *swap.Swap) error {
	raw, err := swap.Marshal(s)
	if err != nil {
		return fmt.Errorf("storage: failed to encode swap %x: %w", s.PaymentHash, err)
	}
	if err := idx.store.Put(keyFor(s.PaymentHash), raw); err != nil {
		return fmt.Errorf("storage: failed to persist swap %x: %w", s.PaymentHash, err)
	}

	idx.mu.Lock()
	idx.byKey[s.PaymentHash] = s
	idx.mu.Unlock()
	return nil
}

// Get returns the in-memory swap for paymentHash, if any.
func (idx *SwapIndex) Get(paymentHash [32]byte) (*swap.Swap, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.byKey[paymentHash]
	return s, ok
}

// Delete removes a swap from both the backing store and the index,
// used once a swap reaches a terminal state and its retention window
// elapses.
func (idx *SwapIndex) Delete(paymentHash [32]byte) error {
	if err := idx.store.Delete(keyFor(paymentHash)); err != nil {
		return fmt.Errorf("storage: failed to delete swap %x: %w", paymentHash, err)
	}
	idx.mu.Lock()
	delete(idx.byKey, paymentHash)
	idx.mu.Unlock()
	return nil
}

// All returns every swap currently held in memory.
func (idx *SwapIndex) All() []*swap.Swap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*swap.Swap, 0, len(idx.byKey))
	for _, s := range idx.byKey {
		out = append(out, s)
	}
	return out
}

// BufferEvent queues apply to run against paymentHash's swap once
// DrainBufferedEvents is called, used when a chain event arrives before
// LoadAll has populated the index (spec §7: "events received before the
// swap table has loaded are buffered").
func (idx *SwapIndex) BufferEvent(paymentHash [32]byte, apply func(*swap.Swap)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.loaded {
		if s, ok := idx.byKey[paymentHash]; ok {
			apply(s)
		}
		return
	}
	idx.pendingEvts = append(idx.pendingEvts, bufferedEvent{paymentHash: paymentHash, apply: apply})
}

// DrainBufferedEvents applies every event queued by BufferEvent before
// LoadAll completed, in arrival order. Must be called exactly once,
// after LoadAll.
func (idx *SwapIndex) DrainBufferedEvents() {
	idx.mu.Lock()
	pending := idx.pendingEvts
	idx.pendingEvts = nil
	idx.mu.Unlock()

	for _, evt := range pending {
		idx.mu.RLock()
		s, ok := idx.byKey[evt.paymentHash]
		idx.mu.RUnlock()
		if ok {
			evt.apply(s)
		}
	}
}
