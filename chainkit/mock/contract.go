// Package mock provides in-memory SwapContract/ChainEvents test doubles,
// in the teacher's "hand-written mock configured via a map, no
// interface{} reflection" style (src/chainadapter/bitcoin/fee_test.go's
// MockFeeRPCClient; tests/mocks/rpc_mock.go).
package mock

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/arcsign/swapcore/chainkit"
)

// escrow is the mock contract's internal record for one payment hash.
type escrow struct {
	data   *chainkit.EscrowData
	status chainkit.CommitStatus
	txID   string
	secret []byte
}

// Contract is an in-memory SwapContract + ChainEvents double. It never
// touches real consensus; it exists so wrapper/fsm/validator tests can
// drive a swap through its full lifecycle deterministically.
type Contract struct {
	mu       sync.Mutex
	chainID  string
	escrows  map[[32]byte]*escrow
	balances map[string]*big.Int // "token:address" -> balance
	feeRate  *chainkit.FeeRate
	subs     []chan chainkit.ChainEvent
	nextTx   int
}

// New creates a mock contract for the given chain ID.
func New(chainID string) *Contract {
	return &Contract{
		chainID:  chainID,
		escrows:  make(map[[32]byte]*escrow),
		balances: make(map[string]*big.Int),
		feeRate:  &chainkit.FeeRate{ChainID: chainID, Value: big.NewInt(1)},
	}
}

func (c *Contract) ChainID() string { return c.chainID }

// SetBalance seeds an address's token balance, used to exercise the
// intermediary liquidity check in tests.
func (c *Contract) SetBalance(token, address string, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[token+":"+address] = new(big.Int).Set(amount)
}

func (c *Contract) GetBalance(ctx context.Context, token, address string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[token+":"+address]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Contract) GetFeeRate(ctx context.Context) (*chainkit.FeeRate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := *c.feeRate
	return &fr, nil
}

func (c *Contract) txID() string {
	c.nextTx++
	return fmt.Sprintf("mocktx-%d", c.nextTx)
}

func (c *Contract) init(ctx context.Context, data *chainkit.EscrowData, payIn bool) (string, error) {
	c.mu.Lock()
	existing, ok := c.escrows[data.Hash]
	if ok {
		c.mu.Unlock()
		return existing.txID, nil // idempotent
	}
	tx := c.txID()
	e := &escrow{data: data, status: chainkit.CommitStatusCommitted, txID: tx}
	c.escrows[data.Hash] = e
	c.mu.Unlock()

	c.emit(chainkit.ChainEvent{Initialize: &chainkit.InitializeEvent{
		PaymentHash: data.Hash,
		TxID:        tx,
		Data:        data,
	}})
	return tx, nil
}

func (c *Contract) Init(ctx context.Context, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, feeRate *chainkit.FeeRate) (string, error) {
	return c.init(ctx, data, false)
}

func (c *Contract) InitPayIn(ctx context.Context, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, feeRate *chainkit.FeeRate) (string, error) {
	return c.init(ctx, data, true)
}

func (c *Contract) Claim(ctx context.Context, paymentHash [32]byte, secretOrProof []byte) (string, error) {
	c.mu.Lock()
	e, ok := c.escrows[paymentHash]
	if !ok {
		c.mu.Unlock()
		return "", chainkit.NewNonRetryableError(chainkit.ErrCodeSwapNotFound, "unknown payment hash", nil)
	}
	if e.status == chainkit.CommitStatusClaimed {
		tx := e.txID
		c.mu.Unlock()
		return tx, nil // idempotent
	}
	e.status = chainkit.CommitStatusClaimed
	tx := c.txID()
	e.txID = tx
	e.secret = secretOrProof
	c.mu.Unlock()

	c.emit(chainkit.ChainEvent{Claim: &chainkit.ClaimEvent{
		PaymentHash: paymentHash,
		TxID:        tx,
		Secret:      secretOrProof,
	}})
	return tx, nil
}

func (c *Contract) Refund(ctx context.Context, paymentHash [32]byte) (string, error) {
	c.mu.Lock()
	e, ok := c.escrows[paymentHash]
	if !ok {
		c.mu.Unlock()
		return "", chainkit.NewNonRetryableError(chainkit.ErrCodeSwapNotFound, "unknown payment hash", nil)
	}
	if e.status == chainkit.CommitStatusRefunded {
		tx := e.txID
		c.mu.Unlock()
		return tx, nil
	}
	e.status = chainkit.CommitStatusRefunded
	tx := c.txID()
	e.txID = tx
	c.mu.Unlock()

	c.emit(chainkit.ChainEvent{Refund: &chainkit.RefundEvent{PaymentHash: paymentHash, TxID: tx}})
	return tx, nil
}

// ExpireRefundable marks an existing escrow refundable, simulating its
// expiry passing without a claim. An unknown payment hash is ignored.
func (c *Contract) ExpireRefundable(paymentHash [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.escrows[paymentHash]; ok {
		e.status = chainkit.CommitStatusRefundable
	}
}

func (c *Contract) GetCommitStatus(ctx context.Context, paymentHash [32]byte) (chainkit.CommitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.escrows[paymentHash]
	if !ok {
		return chainkit.CommitStatusNotFound, nil
	}
	return e.status, nil
}

// Subscribe implements chainkit.ChainEvents. Each call gets its own
// buffered channel; ctx cancellation stops delivery and closes it.
func (c *Contract) Subscribe(ctx context.Context) (<-chan chainkit.ChainEvent, error) {
	ch := make(chan chainkit.ChainEvent, 64)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (c *Contract) emit(ev chainkit.ChainEvent) {
	c.mu.Lock()
	subs := make([]chan chainkit.ChainEvent, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

var _ chainkit.SwapContract = (*Contract)(nil)
var _ chainkit.ChainEvents = (*Contract)(nil)
