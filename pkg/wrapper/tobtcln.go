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

// ToBTCLNParams is the caller's request for a Lightning payout swap.
type ToBTCLNParams struct {
	ChainID           string
	Token             string
	Invoice           string
	InvoicePaymentHash [32]byte
	InvoiceExpiryUnix int64
	MaxFeeSats        *big.Int
	MaxDeviationPPM   int64
	ExactIn           bool
	RequestedInput    *big.Int
}

// CreateToBTCLN fans a ToBTCLN quote request out across eligible LPs,
// validating the routing-fee cap and escrow/invoice expiry equality in
// addition to the common checks.
func CreateToBTCLN(ctx context.Context, deps *Dependencies, p ToBTCLNParams) ([]Candidate, *swap.Swap, error) {
	invoice, err := decodeBolt11(p.Invoice, bitcoinParams(deps))
	if err != nil {
		return nil, nil, swaperrors.NewUserError("wrapper: %v", err)
	}

	feeRate, err := fetchFeeRate(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	request := func(ctx context.Context, client *lp.IntermediaryClient) (*lp.QuoteDataDTO, error) {
		return client.InitToBTCLN(ctx, p.ChainID, lp.ToBTCLNRequest{
			PR:              p.Invoice,
			MaxFee:          p.MaxFeeSats.String(),
			ExpiryTimestamp: p.InvoiceExpiryUnix,
			Token:           p.Token,
			ExactIn:         p.ExactIn,
		})
	}

	validate := func(quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
		return validateToBTCLNQuote(ctx, deps, p, invoice.AmountSats, quote, parsed, data, intermediary)
	}

	candidates, err := FanOutQuotes(ctx, deps, "ToBTCLN", p.Token, request, validate)
	if err != nil {
		return nil, nil, err
	}

	s := &swap.Swap{
		PaymentHash: p.InvoicePaymentHash,
		Direction:   swap.DirectionToBTCLN,
		State:       swap.StateCreated,
		ToBTCLN: &swap.ToBTCLNPayload{
			Invoice: p.Invoice,
		},
		FeeRate: feeRate,
		Version: swap.CurrentVersion,
	}
	return candidates, s, nil
}

func validateToBTCLNQuote(ctx context.Context, deps *Dependencies, p ToBTCLNParams, invoiceAmountSats *big.Int, quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
	req := validator.CommonRequest{
		IntermediaryURL: intermediary.URL,
		RequestedToken:  p.Token,
		ExactIn:         p.ExactIn,
		ComputedHash:    p.InvoicePaymentHash,
		ExpectedType:    chainkit.EscrowHTLC,
		ExpectedClaimer: intermediary.AddressForChain[p.ChainID],
		IsLightning:     true,
	}
	if p.ExactIn {
		req.RequestedInput = p.RequestedInput
	} else {
		// ToBTCLN's exact-out amount is the invoice amount, which the LP
		// never echoes back as a separate field to pin against; the quoted
		// token amount is instead bounded by the price-deviation check
		// below, so this sub-check is intentionally a no-op here.
		req.RequestedOutput = parsed.Amount
	}
	if err := deps.Validator.ValidateCommon(parsed, data, req); err != nil {
		return err
	}

	quotedRoutingFee := new(big.Int).Sub(parsed.NetworkFee, big.NewInt(0))
	if err := deps.Validator.ValidateToBTCLN(data, validator.ToBTCLNRequest{
		IntermediaryURL:   intermediary.URL,
		MaxRoutingFee:     p.MaxFeeSats,
		QuotedRoutingFee:  quotedRoutingFee,
		InvoiceExpiryUnix: p.InvoiceExpiryUnix,
	}); err != nil {
		return err
	}

	if err := verifyQuoteAuthorization(ctx, deps, quote, data, intermediary.URL); err != nil {
		return err
	}

	check, err := deps.Oracle.IsValidAmountSend(ctx, p.ChainID, p.Token, invoiceAmountSats, big.NewInt(0), 0, parsed.Amount, p.MaxDeviationPPM)
	if err != nil {
		return swaperrors.NewIntermediaryError(intermediary.URL, "price check failed", err)
	}
	if !check.IsValid {
		return swaperrors.NewIntermediaryError(intermediary.URL, fmt.Sprintf("quoted price deviates %dppm beyond cap", check.DifferencePPM), nil)
	}
	return nil
}
