package chainkit

import (
	"context"
	"math/big"
)

// BitcoinRpc is the external collaborator that answers the Bitcoin-chain
// questions the swap core needs but never executes itself (spec §1
// "Out of scope": "does not implement the Bitcoin node... delegated to
// BitcoinRpc"). The core only ever reads state through it; it never
// builds or broadcasts a transaction.
type BitcoinRpc interface {
	// RelayTipHeight returns the tip height the on-chain BTC relay (the
	// SC-chain's view of the Bitcoin header chain) has confirmed, used
	// by the FromBTC claimer-bounty formula's max(currentTip-relayTip,0)
	// reorg-lag term (spec §4.3 "FromBTC-specific").
	RelayTipHeight(ctx context.Context) (int64, error)

	// CurrentTipHeight returns the real Bitcoin network's current tip
	// height, compared against RelayTipHeight to estimate how far behind
	// the on-chain relay is.
	CurrentTipHeight(ctx context.Context) (int64, error)

	// FeePerBlock estimates the sats cost of one additional confirmation
	// at the current mempool fee market, the per-block multiplier in the
	// claimer-bounty formula.
	FeePerBlock(ctx context.Context) (*big.Int, error)

	// DummySwapClaimFee estimates the fixed on-chain fee a claim
	// transaction for this escrow program costs, by building (but never
	// broadcasting) a representative dummy claim transaction.
	DummySwapClaimFee(ctx context.Context) (*big.Int, error)

	// TransactionOutputScript returns the scriptPubKey the swap's
	// deposit output paid into txID, used to verify a reported refund
	// proof reproduces the expected payment hash (spec §4.4 "Post-commit"
	// PAID verification).
	TransactionOutputScript(ctx context.Context, txID string) ([]byte, error)

	// Confirmations reports how many confirmations txID currently has,
	// used by the FromBTC post-commit watcher (spec §4.4 "FromBTC").
	Confirmations(ctx context.Context, txID string) (int, error)
}
