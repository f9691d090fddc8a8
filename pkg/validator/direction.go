package validator

import (
	"fmt"
	"math/big"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// ToBTCRequest carries the extra context a ToBTC quote is checked
// against, beyond the common checks (spec §4.3 "ToBTC-specific").
type ToBTCRequest struct {
	IntermediaryURL    string
	NowUnix            int64
	ConfirmationTarget int
}

// ValidateToBTC checks both sides of the send window: the floor (an LP
// that returns an expiry too close to now would leave the user unable
// to safely broadcast before the LP can refund out from under them)
// and the ceiling (data.expiry ≤ now + (confirmations + confirmationTarget
// + gracePeriodBlocks) × maxSafetyFactor × bitcoinBlocktime — an expiry
// beyond this bound gives the LP more time than it could possibly need
// to see the payment confirm, which is itself a sign of a bad quote).
func (v *Validator) ValidateToBTC(data *chainkit.EscrowData, req ToBTCRequest) error {
	minExpiry := req.NowUnix + v.cfg.MinSendWindowSecs
	if data.Expiry < minExpiry {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("expiry %d leaves less than the minimum %ds send window", data.Expiry, v.cfg.MinSendWindowSecs), nil)
	}

	blocks := int64(data.Confirmations) + int64(req.ConfirmationTarget) + v.cfg.GracePeriodBlocks
	maxExpiry := req.NowUnix + int64(float64(blocks)*v.cfg.MaxSafetyFactor*float64(v.cfg.BitcoinBlockTimeSec))
	if data.Expiry > maxExpiry {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("expiry %d exceeds the maximum %d the confirmation target allows", data.Expiry, maxExpiry), nil)
	}
	return nil
}

// ToBTCLNRequest carries the ToBTCLN-specific cross-checks: the quoted
// routing fee must not exceed the caller's cap, and the escrow expiry
// must equal the invoice's own expiry (spec §4.3 "ToBTCLN-specific").
type ToBTCLNRequest struct {
	IntermediaryURL   string
	MaxRoutingFee     *big.Int
	QuotedRoutingFee  *big.Int
	InvoiceExpiryUnix int64
}

func (v *Validator) ValidateToBTCLN(data *chainkit.EscrowData, req ToBTCLNRequest) error {
	if req.QuotedRoutingFee.Cmp(req.MaxRoutingFee) > 0 {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("quoted routing fee %s exceeds cap %s", req.QuotedRoutingFee, req.MaxRoutingFee), nil)
	}
	if data.Expiry != req.InvoiceExpiryUnix {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("escrow expiry %d does not match invoice expiry %d", data.Expiry, req.InvoiceExpiryUnix), nil)
	}
	return nil
}

// FromBTCRequest carries the FromBTC-specific checks: the claimer
// bounty must equal the protocol formula, the escrow sequence must
// match what the on-chain deposit will use, and the send window must
// leave enough time to broadcast (spec §4.3 "FromBTC-specific"). The
// prefetch fields (claim fee, fee-per-block, tip heights, start
// timestamp) are resolved by the caller against chainkit.BitcoinRpc
// before the quote is validated (spec §4.4 "FromBTC prefetches").
type FromBTCRequest struct {
	IntermediaryURL  string
	NowUnix          int64
	ExpectedSequence uint64
	ClaimFeeSats     *big.Int
	FeePerBlockSats  *big.Int
	CurrentTipHeight int64
	RelayTipHeight   int64
	StartTimestamp   int64
}

// expectedClaimerBounty mirrors the protocol's claim-cost reimbursement
// formula (spec §4.3 "FromBTC-specific"): the dummy-swap claim fee plus
// the confirmation-window cost (scaled by the block safety factor) and
// the cost of any relay lag behind the real chain tip, both priced at
// the current per-block fee.
func (v *Validator) expectedClaimerBounty(req FromBTCRequest, expiry int64) *big.Int {
	blocks := float64(expiry-req.StartTimestamp) / float64(v.cfg.BitcoinBlockTimeSec) * v.cfg.BlockSafetyFactor

	relayLag := req.CurrentTipHeight - req.RelayTipHeight
	if relayLag < 0 {
		relayLag = 0
	}

	blockCost := new(big.Int).Mul(big.NewInt(int64(blocks)+relayLag), req.FeePerBlockSats)
	return new(big.Int).Add(req.ClaimFeeSats, blockCost)
}

func (v *Validator) ValidateFromBTC(data *chainkit.EscrowData, req FromBTCRequest) error {
	if data.Sequence != req.ExpectedSequence {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("escrow sequence %d does not match expected %d", data.Sequence, req.ExpectedSequence), nil)
	}

	minExpiry := req.NowUnix + v.cfg.MinSendWindowSecs
	if data.Expiry < minExpiry {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("expiry %d leaves less than the minimum %ds send window", data.Expiry, v.cfg.MinSendWindowSecs), nil)
	}

	computedBounty := v.expectedClaimerBounty(req, data.Expiry)
	if data.ClaimerBounty == nil || data.ClaimerBounty.Cmp(computedBounty) != 0 {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("claimer bounty %s does not match computed bounty %s", data.ClaimerBounty, computedBounty), nil)
	}
	return nil
}

// FromBTCLNRequest carries the FromBTCLN-specific checks: LN-graph
// routing capacity sufficient for the quoted amount, and the invoice's
// description hash must match what the caller asked for (spec §4.3
// "FromBTCLN-specific").
type FromBTCLNRequest struct {
	IntermediaryURL       string
	RequestedDescHash     [32]byte
	InvoiceDescHash       [32]byte
	NodeRoutingCapacity   *big.Int // resolved by the caller's LN-graph collaborator
	QuotedAmount          *big.Int
}

func (v *Validator) ValidateFromBTCLN(req FromBTCLNRequest) error {
	if req.RequestedDescHash != ([32]byte{}) && req.RequestedDescHash != req.InvoiceDescHash {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL, "invoice description hash does not match request", nil)
	}
	if req.NodeRoutingCapacity != nil && req.NodeRoutingCapacity.Cmp(req.QuotedAmount) < 0 {
		return swaperrors.NewIntermediaryError(req.IntermediaryURL,
			fmt.Sprintf("LP's routing capacity %s is below the quoted amount %s", req.NodeRoutingCapacity, req.QuotedAmount), nil)
	}
	return nil
}
