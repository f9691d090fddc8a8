package mock

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/arcsign/swapcore/chainkit"
)

// BitcoinRPC is an in-memory chainkit.BitcoinRpc double, configured via
// plain setters the same way Contract's balances/fee rate are seeded.
type BitcoinRPC struct {
	mu            sync.Mutex
	relayTip      int64
	currentTip    int64
	feePerBlock   *big.Int
	dummyClaimFee *big.Int
	outputScripts map[string][]byte
	confirmations map[string]int
}

// NewBitcoinRPC creates a mock BitcoinRpc with zero-value defaults; seed
// it with the setters below before use in a test.
func NewBitcoinRPC() *BitcoinRPC {
	return &BitcoinRPC{
		feePerBlock:   big.NewInt(0),
		dummyClaimFee: big.NewInt(0),
		outputScripts: make(map[string][]byte),
		confirmations: make(map[string]int),
	}
}

func (b *BitcoinRPC) SetTips(relay, current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relayTip, b.currentTip = relay, current
}

func (b *BitcoinRPC) SetFeePerBlock(v *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feePerBlock = new(big.Int).Set(v)
}

func (b *BitcoinRPC) SetDummySwapClaimFee(v *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dummyClaimFee = new(big.Int).Set(v)
}

// SetTransaction records a transaction's output script and confirmation
// count, as if it had been observed on the Bitcoin network.
func (b *BitcoinRPC) SetTransaction(txID string, outputScript []byte, confirmations int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputScripts[txID] = outputScript
	b.confirmations[txID] = confirmations
}

func (b *BitcoinRPC) RelayTipHeight(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.relayTip, nil
}

func (b *BitcoinRPC) CurrentTipHeight(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentTip, nil
}

func (b *BitcoinRPC) FeePerBlock(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.feePerBlock), nil
}

func (b *BitcoinRPC) DummySwapClaimFee(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.dummyClaimFee), nil
}

func (b *BitcoinRPC) TransactionOutputScript(ctx context.Context, txID string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	script, ok := b.outputScripts[txID]
	if !ok {
		return nil, fmt.Errorf("mock bitcoinrpc: unknown transaction %q", txID)
	}
	return script, nil
}

func (b *BitcoinRPC) Confirmations(ctx context.Context, txID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.outputScripts[txID]; !ok {
		return 0, fmt.Errorf("mock bitcoinrpc: unknown transaction %q", txID)
	}
	return b.confirmations[txID], nil
}

var _ chainkit.BitcoinRpc = (*BitcoinRPC)(nil)
