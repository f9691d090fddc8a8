// Package swap defines the Swap entity at the center of the core: the
// per-direction state machine record keyed by payment hash, its
// direction-specific payloads, and the pricing/fee bookkeeping recorded
// at quote time.
package swap

import (
	"math/big"

	"github.com/arcsign/swapcore/chainkit"
)

// Direction identifies which of the four swap flows (plus the
// gas-bootstrap variant) a Swap belongs to.
type Direction string

const (
	DirectionToBTC     Direction = "ToBTC"
	DirectionToBTCLN   Direction = "ToBTCLN"
	DirectionFromBTC   Direction = "FromBTC"
	DirectionFromBTCLN Direction = "FromBTCLN"
	DirectionLnForGas  Direction = "LnForGas"
)

// State is a direction-specific FSM state. pkg/fsm owns the legal
// transition tables; this package only carries the value.
type State string

const (
	StateCreated      State = "CREATED"
	StateCommitted    State = "COMMITTED"
	StateClaimed      State = "CLAIMED"
	StateRefundable   State = "REFUNDABLE"
	StateRefunded     State = "REFUNDED"
	StateQuoteExpired State = "QUOTE_EXPIRED"
	StateFailed       State = "FAILED"

	// FromBTCLN-specific.
	StatePRCreated      State = "PR_CREATED"
	StatePRPaid         State = "PR_PAID"
	StateClaimCommitted State = "CLAIM_COMMITTED"
	StateClaimClaimed   State = "CLAIM_CLAIMED"

	// LnForGas-specific.
	StateFinished State = "FINISHED"
	StateExpired  State = "EXPIRED"
)

// IsTerminal reports whether s is one of the states a swap's lifecycle
// ends in (spec invariant 3: exactly one terminal state is reached).
func (s State) IsTerminal() bool {
	switch s {
	case StateClaimed, StateRefunded, StateFailed, StateQuoteExpired,
		StateClaimClaimed, StateFinished, StateExpired:
		return true
	default:
		return false
	}
}

// CurrentVersion is the serialization format version new swaps are
// created with. Bump it, and add a migration in serialize.go, on any
// breaking field change.
const CurrentVersion = 1

// PricingInfo is the price-oracle snapshot recorded at quote time (spec §3).
type PricingInfo struct {
	IsValid       bool
	DifferencePPM int64
	SatsBaseFee   *big.Int
	FeePPM        int64
}

// ToBTCPayload is the ToBTC-direction-specific payload.
type ToBTCPayload struct {
	Address            string
	OutputScript       []byte
	Nonce              uint64
	ConfirmationTarget int
}

// ToBTCLNPayload is the ToBTCLN-direction-specific payload.
type ToBTCLNPayload struct {
	Invoice       string // bolt11
	MaxFeeSats    *big.Int
	RoutingFee    *big.Int
	LNURL         string // empty if not an LNURL-pay swap
	SuccessAction *LNURLSuccessAction
}

// LNURLSuccessAction mirrors the LNURL-pay success action returned
// alongside an invoice, decoded and validated by pkg/lnurl.
type LNURLSuccessAction struct {
	Tag         string
	Message     string
	URL         string
	Ciphertext  string
	IV          string
	Description string
}

// FromBTCPayload is the FromBTC-direction-specific payload.
type FromBTCPayload struct {
	DepositAddress string
	OutputScript   []byte
	ClaimerBounty  *big.Int
	Sequence       uint64
}

// FromBTCLNPayload is the FromBTCLN-direction-specific payload.
type FromBTCLNPayload struct {
	Invoice         string // bolt11, created by the LP once preimage's hash is known
	Secret          [32]byte
	DescriptionHash []byte
}

// Swap is the central entity of the core, keyed by PaymentHash.
type Swap struct {
	PaymentHash [32]byte
	Direction   Direction
	State       State
	Data        *chainkit.EscrowData

	Pricing PricingInfo

	SwapFee    *big.Int
	NetworkFee *big.Int
	SwapFeeBTC *big.Int

	SignatureData *chainkit.AuthorizationSignature
	FeeRate       *chainkit.FeeRate

	ToBTC     *ToBTCPayload
	ToBTCLN   *ToBTCLNPayload
	FromBTC   *FromBTCPayload
	FromBTCLN *FromBTCLNPayload

	CommitTxID string
	ClaimTxID  string
	RefundTxID string

	Expiry  int64
	Version int
}

// TotalFee returns SwapFee + NetworkFee, the quantity spec invariant 5
// requires to equal the LP-reported totalFee.
func (s *Swap) TotalFee() *big.Int {
	if s.SwapFee == nil || s.NetworkFee == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(s.SwapFee, s.NetworkFee)
}
