// Package validator implements the ResponseValidator, the adversarial
// boundary between an untrusted LP's JSON response and the swap core
// (spec §4.3). Every check here either passes silently or returns an
// error: the response checks return a *swaperrors.IntermediaryError,
// VerifyAuthorization a *swaperrors.SignatureVerificationError, and
// CheckLiquidity a *swaperrors.NetworkError when the balance read
// fails. Nothing here ever panics on malformed input because the LP is,
// by design, untrusted.
package validator

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// Config bundles the protocol constants the direction-specific checks
// are parameterized by (spec §4.3).
type Config struct {
	MaxConfirmations    int
	MinSendWindowSecs   int64
	BitcoinBlockTimeSec int64
	MaxSafetyFactor     float64
	GracePeriodBlocks   int64
	BlockSafetyFactor   float64
}

// DefaultConfig mirrors conservative mainnet-era constants.
func DefaultConfig() Config {
	return Config{
		MaxConfirmations:    6,
		MinSendWindowSecs:   600,
		BitcoinBlockTimeSec: 600,
		MaxSafetyFactor:     2.0,
		GracePeriodBlocks:   3,
		BlockSafetyFactor:   1.5,
	}
}

// Validator runs the ResponseValidator checks against a parsed quote.
type Validator struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// SetLogger wires a structured logger into the validator for rejection
// reasons. Safe to leave unset.
func (v *Validator) SetLogger(l *zap.SugaredLogger) {
	v.logger = l
}

// ParsedQuote is the typed, fully-parsed form of an lp.QuoteDataDTO: BN
// strings already converted to *big.Int so every check below works in
// exact integer arithmetic.
type ParsedQuote struct {
	Amount     *big.Int
	SwapFee    *big.Int
	NetworkFee *big.Int
	TotalFee   *big.Int
	Total      *big.Int
	Data       *chainkit.EscrowData
}

// ParseQuote converts a wire quote's BN-strings to big integers,
// failing closed (as an IntermediaryError) on any malformed field
// (spec §4.3 "Schema" check).
func ParseQuote(intermediaryURL string, amount, swapFee, networkFee, totalFee, total string) (*ParsedQuote, error) {
	fields := map[string]string{
		"amount": amount, "swapFee": swapFee, "networkFee": networkFee,
		"totalFee": totalFee, "total": total,
	}
	parsed := make(map[string]*big.Int, len(fields))
	for name, s := range fields {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 {
			return nil, swaperrors.NewIntermediaryError(intermediaryURL, fmt.Sprintf("invalid numeric field %q: %q", name, s), nil)
		}
		parsed[name] = v
	}
	return &ParsedQuote{
		Amount:     parsed["amount"],
		SwapFee:    parsed["swapFee"],
		NetworkFee: parsed["networkFee"],
		TotalFee:   parsed["totalFee"],
		Total:      parsed["total"],
	}, nil
}

// CommonRequest carries the caller's own inputs that every direction's
// response is cross-checked against (spec §4.3 "Common checks").
type CommonRequest struct {
	IntermediaryURL  string
	RequestedToken   string
	ExactIn          bool
	RequestedInput   *big.Int // set when ExactIn
	RequestedOutput  *big.Int // set when !ExactIn
	ComputedHash     [32]byte
	ExpectedType     chainkit.EscrowType
	ExpectedClaimer  string // ToBTC*: lp.addressForChain
	ExpectedOfferer  string // FromBTC*: lp.addressForChain
	ExpectedNonce    uint64 // 0 for lightning directions
	IsLightning      bool
}

// ValidateCommon runs every check spec §4.3 requires regardless of
// direction.
func (v *Validator) ValidateCommon(q *ParsedQuote, data *chainkit.EscrowData, req CommonRequest) error {
	fail := func(msg string) error {
		if v.logger != nil {
			v.logger.Warnw("validator: rejecting quote", "intermediary", req.IntermediaryURL, "reason", msg)
		}
		return swaperrors.NewIntermediaryError(req.IntermediaryURL, msg, nil)
	}

	computed := new(big.Int).Add(q.SwapFee, q.NetworkFee)
	if computed.Cmp(q.TotalFee) != 0 {
		return fail(fmt.Sprintf("totalFee mismatch: swapFee+networkFee=%s totalFee=%s", computed, q.TotalFee))
	}

	if req.ExactIn {
		if q.Total.Cmp(req.RequestedInput) != 0 {
			return fail(fmt.Sprintf("exact-in total mismatch: got %s want %s", q.Total, req.RequestedInput))
		}
	} else {
		if q.Amount.Cmp(req.RequestedOutput) != 0 {
			return fail(fmt.Sprintf("exact-out amount mismatch: got %s want %s", q.Amount, req.RequestedOutput))
		}
	}

	if data.Token != req.RequestedToken {
		return fail(fmt.Sprintf("token mismatch: got %s want %s", data.Token, req.RequestedToken))
	}

	if data.Hash != req.ComputedHash {
		return fail("data.hash does not match independently computed hash")
	}

	if data.Type != req.ExpectedType {
		return fail(fmt.Sprintf("escrow type mismatch: got %s want %s", data.Type, req.ExpectedType))
	}

	if req.ExpectedClaimer != "" && data.Claimer != req.ExpectedClaimer {
		return fail("data.claimer does not match intermediary's chain address")
	}
	if req.ExpectedOfferer != "" && data.Offerer != req.ExpectedOfferer {
		return fail("data.offerer does not match intermediary's chain address")
	}

	if data.Confirmations < 0 || data.Confirmations > v.cfg.MaxConfirmations {
		return fail(fmt.Sprintf("confirmations %d out of bounds [0,%d]", data.Confirmations, v.cfg.MaxConfirmations))
	}

	if !req.IsLightning && data.Nonce != req.ExpectedNonce {
		return fail("data.escrowNonce does not match the caller-supplied nonce")
	}

	return nil
}
