package mock

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/swapcore/chainkit"
)

func TestContract_InitClaimIsIdempotent(t *testing.T) {
	c := New("test-chain")
	var hash [32]byte
	hash[0] = 1

	data := &chainkit.EscrowData{Hash: hash, Amount: big.NewInt(1000), Type: chainkit.EscrowHTLC}
	tx1, err := c.InitPayIn(context.Background(), data, nil, nil)
	require.NoError(t, err)

	tx2, err := c.InitPayIn(context.Background(), data, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, tx1, tx2, "re-init of the same payment hash must be idempotent")

	status, err := c.GetCommitStatus(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainkit.CommitStatusCommitted, status)

	claimTx1, err := c.Claim(context.Background(), hash, []byte("secret"))
	require.NoError(t, err)
	claimTx2, err := c.Claim(context.Background(), hash, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, claimTx1, claimTx2)

	status, err = c.GetCommitStatus(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainkit.CommitStatusClaimed, status)
}

func TestContract_ClaimUnknownHashFails(t *testing.T) {
	c := New("test-chain")
	_, err := c.Claim(context.Background(), [32]byte{0xff}, nil)
	require.Error(t, err)
	assert.False(t, chainkit.IsRetryable(err))
}

func TestContract_SubscribeDeliversEvents(t *testing.T) {
	c := New("test-chain")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	var hash [32]byte
	hash[0] = 2
	data := &chainkit.EscrowData{Hash: hash, Amount: big.NewInt(1), Type: chainkit.EscrowChain}
	_, err = c.Init(ctx, data, nil, nil)
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.NotNil(t, ev.Initialize)
		assert.Equal(t, hash, ev.Initialize.PaymentHash)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initialize event")
	}
}

func TestContract_GetBalanceDefaultsToZero(t *testing.T) {
	c := New("test-chain")
	bal, err := c.GetBalance(context.Background(), "TOKEN", "addr")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Int64())

	c.SetBalance("TOKEN", "addr", big.NewInt(500))
	bal, err = c.GetBalance(context.Background(), "TOKEN", "addr")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Int64())
}
