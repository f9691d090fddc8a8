package wrapper

import (
	"context"
	"fmt"
	"math/big"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/swaperrors"
	"github.com/arcsign/swapcore/pkg/validator"
)

// ToBTCParams is the caller's request for an on-chain-BTC payout swap.
type ToBTCParams struct {
	ChainID            string
	Token              string
	DestAddress        string
	OutputScript       []byte
	AmountSats         *big.Int // target BTC amount
	ExactIn            bool
	RequestedInput     *big.Int // set when ExactIn
	ConfirmationTarget int
	MaxDeviationPPM    int64
}

// CreateToBTC fans a ToBTC quote request out across every eligible LP,
// validates each response (common checks + ToBTC-specific send-window +
// price-deviation check), and returns candidates cheapest-first.
func CreateToBTC(ctx context.Context, deps *Dependencies, nowUnix int64, p ToBTCParams) ([]Candidate, *swap.Swap, error) {
	nonce, err := swap.GenerateEscrowNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("wrapper: failed to generate escrow nonce: %w", err)
	}
	computedHash := swap.ComputeToBTCHash(nonce, p.AmountSats.Uint64(), p.OutputScript)

	feeRate, err := fetchFeeRate(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	request := func(ctx context.Context, client *lp.IntermediaryClient) (*lp.QuoteDataDTO, error) {
		return client.InitToBTC(ctx, p.ChainID, lp.ToBTCRequest{
			Address:            p.DestAddress,
			Amount:             amountString(p),
			ExactIn:            p.ExactIn,
			ConfirmationTarget: p.ConfirmationTarget,
			Token:              p.Token,
			Nonce:              fmt.Sprintf("%d", nonce),
		})
	}

	validate := func(quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
		return validateToBTCQuote(ctx, deps, nowUnix, p, computedHash, nonce, quote, parsed, data, intermediary)
	}

	candidates, err := FanOutQuotes(ctx, deps, "ToBTC", p.Token, request, validate)
	if err != nil {
		return nil, nil, err
	}

	s := &swap.Swap{
		PaymentHash: computedHash,
		Direction:   swap.DirectionToBTC,
		State:       swap.StateCreated,
		ToBTC: &swap.ToBTCPayload{
			Address:            p.DestAddress,
			OutputScript:       p.OutputScript,
			Nonce:              nonce,
			ConfirmationTarget: p.ConfirmationTarget,
		},
		FeeRate: feeRate,
		Version: swap.CurrentVersion,
	}
	return candidates, s, nil
}

func validateToBTCQuote(ctx context.Context, deps *Dependencies, nowUnix int64, p ToBTCParams, computedHash [32]byte, nonce uint64, quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
	req := validator.CommonRequest{
		IntermediaryURL: intermediary.URL,
		RequestedToken:  p.Token,
		ExactIn:         p.ExactIn,
		ComputedHash:    computedHash,
		ExpectedType:    chainkit.EscrowChainNonced,
		ExpectedClaimer: intermediary.AddressForChain[p.ChainID],
		ExpectedNonce:   nonce,
	}
	if p.ExactIn {
		req.RequestedInput = p.RequestedInput
	} else {
		req.RequestedOutput = p.AmountSats
	}
	if err := deps.Validator.ValidateCommon(parsed, data, req); err != nil {
		return err
	}
	if err := deps.Validator.ValidateToBTC(data, validator.ToBTCRequest{
		IntermediaryURL:    intermediary.URL,
		NowUnix:            nowUnix,
		ConfirmationTarget: p.ConfirmationTarget,
	}); err != nil {
		return err
	}

	if err := verifyQuoteAuthorization(ctx, deps, quote, data, intermediary.URL); err != nil {
		return err
	}

	check, err := deps.Oracle.IsValidAmountSend(ctx, p.ChainID, p.Token, p.AmountSats, big.NewInt(0), 0, parsed.Amount, p.MaxDeviationPPM)
	if err != nil {
		return swaperrors.NewIntermediaryError(intermediary.URL, "price check failed", err)
	}
	if !check.IsValid {
		return swaperrors.NewIntermediaryError(intermediary.URL, fmt.Sprintf("quoted price deviates %dppm beyond cap", check.DifferencePPM), nil)
	}
	return nil
}

func amountString(p ToBTCParams) string {
	if p.ExactIn {
		return p.RequestedInput.String()
	}
	return p.AmountSats.String()
}
