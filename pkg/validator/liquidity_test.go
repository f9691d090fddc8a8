package validator

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcsign/swapcore/chainkit/mock"
)

func TestCheckLiquidity_PassesWhenBalanceCoversAmount(t *testing.T) {
	c := mock.New("test-chain")
	c.SetBalance("TOKEN", "lp-addr", big.NewInt(1000))

	err := CheckLiquidity(context.Background(), c, "https://lp", "TOKEN", "lp-addr", big.NewInt(500))
	assert.NoError(t, err)
}

func TestCheckLiquidity_FailsWhenBalanceInsufficient(t *testing.T) {
	c := mock.New("test-chain")
	c.SetBalance("TOKEN", "lp-addr", big.NewInt(100))

	err := CheckLiquidity(context.Background(), c, "https://lp", "TOKEN", "lp-addr", big.NewInt(500))
	assert.Error(t, err)
}

func TestCheckLiquidity_DefaultsToZeroBalance(t *testing.T) {
	c := mock.New("test-chain")

	err := CheckLiquidity(context.Background(), c, "https://lp", "TOKEN", "unknown-addr", big.NewInt(1))
	assert.Error(t, err)
}
