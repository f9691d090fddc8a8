package validator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// CheckLiquidity reads the LP's on-chain claimer balance and confirms
// it can cover the quoted amount before the caller commits funds (spec
// §4.3 "Intermediary liquidity check"). It is a plain synchronous read;
// the wrapper layer is responsible for racing it alongside other
// per-candidate checks if it wants fan-out concurrency.
func CheckLiquidity(ctx context.Context, contract chainkit.SwapContract, intermediaryURL, token, lpAddress string, required *big.Int) error {
	balance, err := contract.GetBalance(ctx, token, lpAddress)
	if err != nil {
		return swaperrors.NewNetworkError(fmt.Sprintf("liquidity check: failed to read %s balance for %s", token, lpAddress), err)
	}
	if balance.Cmp(required) < 0 {
		return swaperrors.NewIntermediaryError(intermediaryURL,
			fmt.Sprintf("insufficient liquidity: has %s, needs %s %s", balance, required, token), nil)
	}
	return nil
}
