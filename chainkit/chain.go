package chainkit

import (
	"context"
	"math/big"
)

// EscrowType identifies the on-chain escrow program a swap uses.
type EscrowType string

const (
	EscrowHTLC        EscrowType = "HTLC"         // Lightning-bound directions
	EscrowChain       EscrowType = "CHAIN"        // FromBTC
	EscrowChainNonced EscrowType = "CHAIN_NONCED" // ToBTC
)

// EscrowData is the immutable-after-quote escrow descriptor of spec §3.
// It is the one structure every SwapContract implementation must be able
// to accept (Init/InitPayIn) and report status for (GetCommitStatus).
type EscrowData struct {
	Offerer         string
	Claimer         string
	Token           string
	Amount          *big.Int
	Hash            [32]byte
	Expiry          int64 // unix seconds, signature authorization expiry
	Nonce           uint64
	Confirmations   int
	Sequence        uint64
	Type            EscrowType
	SecurityDeposit *big.Int
	ClaimerBounty   *big.Int
	PayIn           bool // true for ToBTC/ToBTCLN (user funds the escrow)
}

// IsPayIn reports whether the user funds the escrow (pay-in direction) as
// opposed to the LP funding it (pay-out direction). This selects which of
// the two authorization schemes (isValidInitAuthorization vs.
// isValidClaimInitAuthorization) a signature must be checked against.
func (d *EscrowData) IsPayIn() bool {
	return d.PayIn
}

// AuthorizationSignature is the LP's signed authorization to commit, as
// returned alongside a quote.
type AuthorizationSignature struct {
	Prefix    string
	Timeout   int64
	Signature []byte
}

// CommitStatus is the on-chain status of an escrow, as reported by
// SwapContract.GetCommitStatus.
type CommitStatus string

const (
	CommitStatusNotFound   CommitStatus = "not_found"
	CommitStatusCommitted  CommitStatus = "committed"
	CommitStatusClaimed    CommitStatus = "claimed"
	CommitStatusRefundable CommitStatus = "refundable"
	CommitStatusRefunded   CommitStatus = "refunded"
)

// FeeRate is a chain-specific fee-rate snapshot. Its Value is opaque to the
// swap core (sat/vByte for Bitcoin-style chains, wei for EVM-style chains)
// and is only ever round-tripped: fetched, bound into a signature, and
// handed back to Init/InitPayIn unmodified.
type FeeRate struct {
	ChainID string
	Value   *big.Int
	AsOf    int64
}

// SwapContract is the external collaborator that executes the on-chain
// escrow program (spec §1 "Out of scope"). The swap core never builds,
// signs, or broadcasts a chain transaction itself; it calls these methods
// and reacts to their results and to ChainEvents.
//
// Contract guarantees implementations MUST provide:
//   - Init/InitPayIn/Claim/Refund are idempotent: calling them again for a
//     payment hash already in the corresponding state returns the original
//     transaction ID rather than erroring or double-spending.
//   - All methods respect ctx cancellation.
//   - Errors are classified via ChainError so the core knows whether to retry.
type SwapContract interface {
	ChainID() string

	// Init places a pay-out escrow (LP funds it; direction = FromBTC*).
	Init(ctx context.Context, data *EscrowData, sig *AuthorizationSignature, feeRate *FeeRate) (txID string, err error)

	// InitPayIn places a pay-in escrow (user funds it; direction = ToBTC*).
	InitPayIn(ctx context.Context, data *EscrowData, sig *AuthorizationSignature, feeRate *FeeRate) (txID string, err error)

	// Claim releases the escrow to the claimer. secretOrProof is the
	// preimage for HTLC escrows, or an empty slice for CHAIN/CHAIN_NONCED
	// escrows claimed purely on confirmation count.
	Claim(ctx context.Context, paymentHash [32]byte, secretOrProof []byte) (txID string, err error)

	// Refund returns the escrow to the offerer after expiry.
	Refund(ctx context.Context, paymentHash [32]byte) (txID string, err error)

	// GetCommitStatus reports the current on-chain status of an escrow.
	GetCommitStatus(ctx context.Context, paymentHash [32]byte) (CommitStatus, error)

	// GetBalance reads an address's on-chain token balance, used by the
	// intermediary liquidity check (spec §4.3) to confirm an LP can cover
	// the swap it quoted.
	GetBalance(ctx context.Context, token, address string) (*big.Int, error)

	// GetFeeRate returns the current chain fee-rate snapshot used to bind
	// a signature (spec §3 `feeRate`).
	GetFeeRate(ctx context.Context) (*FeeRate, error)
}

// InitializeEvent fires when an escrow is placed on-chain (either side).
type InitializeEvent struct {
	PaymentHash [32]byte
	TxID        string
	Data        *EscrowData
}

// ClaimEvent fires when an escrow is claimed; Secret is non-nil for HTLC escrows.
type ClaimEvent struct {
	PaymentHash [32]byte
	TxID        string
	Secret      []byte
}

// RefundEvent fires when an escrow is refunded back to its offerer.
type RefundEvent struct {
	PaymentHash [32]byte
	TxID        string
}

// ChainEvent is a tagged union of the three event kinds the swap core
// reacts to. Exactly one field is non-nil.
type ChainEvent struct {
	Initialize *InitializeEvent
	Claim      *ClaimEvent
	Refund     *RefundEvent
}

// ChainEvents is the external collaborator streaming on-chain escrow
// events (spec §1 "Out of scope"). Subscribe MUST deliver events in
// arrival order and MUST keep delivering until ctx is cancelled.
type ChainEvents interface {
	Subscribe(ctx context.Context) (<-chan ChainEvent, error)
}
