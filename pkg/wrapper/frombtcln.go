package wrapper

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/fsm"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/swaperrors"
	"github.com/arcsign/swapcore/pkg/validator"
)

// FromBTCLNParams is the caller's request to receive a token by paying
// a Lightning invoice the LP generates against a known secret.
type FromBTCLNParams struct {
	ChainID             string
	Token               string
	ClaimerAddress      string
	AmountSats          *big.Int
	DescriptionHash     [32]byte
	NodeRoutingCapacity *big.Int
	MaxDeviationPPM     int64
}

// CreateFromBTCLN generates the swap secret locally (the LP never
// learns it until claim time), fans the invoice-creation request out
// across eligible LPs, and validates the returned invoice's description
// hash and the LP's routing capacity in addition to the common checks.
func CreateFromBTCLN(ctx context.Context, deps *Dependencies, p FromBTCLNParams) ([]Candidate, *swap.Swap, error) {
	secret, err := swap.GenerateSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("wrapper: failed to generate swap secret: %w", err)
	}
	hash := swap.ComputeFromBTCLNHash(secret)

	feeRate, err := fetchFeeRate(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	request := func(ctx context.Context, client *lp.IntermediaryClient) (*lp.QuoteDataDTO, error) {
		return client.InitFromBTCLN(ctx, p.ChainID, lp.FromBTCLNRequest{
			PaymentHash:     hex.EncodeToString(hash[:]),
			Amount:          p.AmountSats.String(),
			Address:         p.ClaimerAddress,
			Token:           p.Token,
			DescriptionHash: hex.EncodeToString(p.DescriptionHash[:]),
		})
	}

	var invoice string
	validate := func(quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
		if err := validateFromBTCLNQuote(ctx, deps, p, hash, quote, parsed, data, intermediary); err != nil {
			return err
		}
		invoice = quote.PR
		return nil
	}

	candidates, err := FanOutQuotes(ctx, deps, "FromBTCLN", p.Token, request, validate)
	if err != nil {
		return nil, nil, err
	}

	s := &swap.Swap{
		PaymentHash: hash,
		Direction:   swap.DirectionFromBTCLN,
		State:       swap.StatePRCreated,
		FromBTCLN: &swap.FromBTCLNPayload{
			Invoice:         invoice,
			Secret:          secret,
			DescriptionHash: p.DescriptionHash[:],
		},
		FeeRate: feeRate,
		Version: swap.CurrentVersion,
	}
	return candidates, s, nil
}

// CommitClaim places the pay-out escrow once the LP's invoice has been
// paid (PR_PAID -> CLAIM_COMMITTED), the FromBTCLN equivalent of Commit
// for the other three directions' generic table.
func CommitClaim(ctx context.Context, deps *Dependencies, s *swap.Swap) error {
	txID, err := deps.Contract.Init(ctx, s.Data, s.SignatureData, s.FeeRate)
	if err != nil {
		return fmt.Errorf("wrapper: claim-commit failed: %w", err)
	}
	s.CommitTxID = txID
	if err := fsm.Transition(s, swap.StateClaimCommitted); err != nil {
		return err
	}
	return persistIfIndexed(deps, s)
}

// FinishClaim releases the committed claim escrow with the swap secret
// (CLAIM_COMMITTED -> CLAIM_CLAIMED).
func FinishClaim(ctx context.Context, deps *Dependencies, s *swap.Swap) error {
	txID, err := deps.Contract.Claim(ctx, s.PaymentHash, s.FromBTCLN.Secret[:])
	if err != nil {
		return fmt.Errorf("wrapper: claim-finish failed: %w", err)
	}
	s.ClaimTxID = txID
	if err := fsm.Transition(s, swap.StateClaimClaimed); err != nil {
		return err
	}
	return persistIfIndexed(deps, s)
}

func validateFromBTCLNQuote(ctx context.Context, deps *Dependencies, p FromBTCLNParams, hash [32]byte, quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
	if quote.PR == "" {
		return swaperrors.NewIntermediaryError(intermediary.URL, "quote missing invoice", nil)
	}
	invoice, err := decodeBolt11(quote.PR, bitcoinParams(deps))
	if err != nil {
		return swaperrors.NewIntermediaryError(intermediary.URL, "invoice decode failed", err)
	}
	if invoice.PaymentHash != hash {
		return swaperrors.NewIntermediaryError(intermediary.URL, "invoice payment hash mismatch", nil)
	}

	req := validator.CommonRequest{
		IntermediaryURL: intermediary.URL,
		RequestedToken:  p.Token,
		ExactIn: false,
		// FromBTCLN has no caller-pinned exact-token-output field to check
		// the LP's quote against (unlike FromBTC's RequestedOutput) — the
		// real amount constraint is the price-deviation check below, so
		// this leaves RequestedOutput as a self-comparison no-op.
		RequestedOutput: parsed.Amount,
		ComputedHash:    hash,
		ExpectedType:    chainkit.EscrowHTLC,
		ExpectedOfferer: intermediary.AddressForChain[p.ChainID],
		IsLightning:     true,
	}
	if err := deps.Validator.ValidateCommon(parsed, data, req); err != nil {
		return err
	}

	if err := deps.Validator.ValidateFromBTCLN(validator.FromBTCLNRequest{
		IntermediaryURL:     intermediary.URL,
		RequestedDescHash:   p.DescriptionHash,
		InvoiceDescHash:     invoice.DescriptionHash,
		NodeRoutingCapacity: p.NodeRoutingCapacity,
		QuotedAmount:        parsed.Amount,
	}); err != nil {
		return err
	}

	if err := verifyQuoteAuthorization(ctx, deps, quote, data, intermediary.URL); err != nil {
		return err
	}

	check, err := deps.Oracle.IsValidAmountReceive(ctx, p.ChainID, p.Token, p.AmountSats, big.NewInt(0), 0, parsed.Amount, p.MaxDeviationPPM)
	if err != nil {
		return swaperrors.NewIntermediaryError(intermediary.URL, "price check failed", err)
	}
	if !check.IsValid {
		return swaperrors.NewIntermediaryError(intermediary.URL, fmt.Sprintf("quoted price deviates %dppm beyond cap", check.DifferencePPM), nil)
	}
	return nil
}
