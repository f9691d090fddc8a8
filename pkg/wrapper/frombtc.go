package wrapper

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/chainkit/bitcoin"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/swaperrors"
	"github.com/arcsign/swapcore/pkg/validator"
)

// FromBTCParams is the caller's request to receive a token by sending
// native BTC on-chain to an LP-controlled deposit address.
type FromBTCParams struct {
	ChainID         string
	Token           string
	ClaimerAddress  string // the user's SC-chain address receiving the token
	AmountSats      *big.Int
	ExactOut        bool
	RequestedOutput *big.Int // set when !ExactOut (token amount requested)
	Sequence        uint64
	MaxDeviationPPM int64
}

// fromBTCPrefetch holds the chainkit.BitcoinRpc lookups the claimer-bounty
// formula needs (spec §4.4 "FromBTC prefetches"), resolved once per
// CreateFromBTC call since they don't vary across candidate LPs.
type fromBTCPrefetch struct {
	claimFeeSats     *big.Int
	feePerBlockSats  *big.Int
	currentTipHeight int64
	relayTipHeight   int64
}

func fetchFromBTCPrefetch(ctx context.Context, deps *Dependencies) (*fromBTCPrefetch, error) {
	if deps.BitcoinRpc == nil {
		return nil, swaperrors.NewUserError("wrapper: FromBTC requires a configured BitcoinRpc collaborator")
	}
	claimFee, err := deps.BitcoinRpc.DummySwapClaimFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to fetch dummy-swap claim fee: %w", err)
	}
	feePerBlock, err := deps.BitcoinRpc.FeePerBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to fetch fee-per-block: %w", err)
	}
	currentTip, err := deps.BitcoinRpc.CurrentTipHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to fetch current tip height: %w", err)
	}
	relayTip, err := deps.BitcoinRpc.RelayTipHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to fetch relay tip height: %w", err)
	}
	return &fromBTCPrefetch{
		claimFeeSats:     claimFee,
		feePerBlockSats:  feePerBlock,
		currentTipHeight: currentTip,
		relayTipHeight:   relayTip,
	}, nil
}

// CreateFromBTC fans a FromBTC quote request out across eligible LPs,
// validating the claimer-bounty formula and sequence in addition to the
// common checks. The winning candidate's deposit address (spec §4.3
// "FromBTC-specific") is only known once an LP responds, so the escrow
// hash and the Swap's FromBTC payload are both finalized against the
// cheapest surviving candidate rather than up front.
func CreateFromBTC(ctx context.Context, deps *Dependencies, p FromBTCParams) ([]Candidate, *swap.Swap, error) {
	feeRate, err := fetchFeeRate(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	nowUnix := time.Now().Unix()
	prefetch, err := fetchFromBTCPrefetch(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	request := func(ctx context.Context, client *lp.IntermediaryClient) (*lp.QuoteDataDTO, error) {
		return client.InitFromBTC(ctx, p.ChainID, lp.FromBTCRequest{
			Address:  p.ClaimerAddress,
			Amount:   p.AmountSats.String(),
			Token:    p.Token,
			ExactOut: p.ExactOut,
			Sequence: fmt.Sprintf("%d", p.Sequence),
		})
	}

	validate := func(quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
		return validateFromBTCQuote(ctx, deps, nowUnix, prefetch, p, quote, parsed, data, intermediary)
	}

	candidates, err := FanOutQuotes(ctx, deps, "FromBTC", p.Token, request, validate)
	if err != nil {
		return nil, nil, err
	}

	best := candidates[0]
	script, err := bitcoin.AddressToScript(best.Quote.Address, bitcoinParams(deps))
	if err != nil {
		return nil, nil, swaperrors.NewIntermediaryError(best.IntermediaryURL, "invalid deposit address", err)
	}
	hash := swap.ComputeFromBTCHash(p.AmountSats.Uint64(), script)

	s := &swap.Swap{
		PaymentHash: hash,
		Direction:   swap.DirectionFromBTC,
		State:       swap.StateCreated,
		FromBTC: &swap.FromBTCPayload{
			DepositAddress: best.Quote.Address,
			OutputScript:   script,
			ClaimerBounty:  best.Data.ClaimerBounty,
			Sequence:       p.Sequence,
		},
		FeeRate: feeRate,
		Version: swap.CurrentVersion,
	}
	return candidates, s, nil
}

func validateFromBTCQuote(ctx context.Context, deps *Dependencies, nowUnix int64, prefetch *fromBTCPrefetch, p FromBTCParams, quote *lp.QuoteDataDTO, parsed *validator.ParsedQuote, data *chainkit.EscrowData, intermediary *lp.Intermediary) error {
	if quote.Address == "" {
		return swaperrors.NewIntermediaryError(intermediary.URL, "quote missing deposit address", nil)
	}
	script, err := bitcoin.AddressToScript(quote.Address, bitcoinParams(deps))
	if err != nil {
		return swaperrors.NewIntermediaryError(intermediary.URL, "invalid deposit address", err)
	}
	hash := swap.ComputeFromBTCHash(p.AmountSats.Uint64(), script)

	req := validator.CommonRequest{
		IntermediaryURL: intermediary.URL,
		RequestedToken:  p.Token,
		ExactIn:         !p.ExactOut,
		ComputedHash:    hash,
		ExpectedType:    chainkit.EscrowChain,
		ExpectedOfferer: intermediary.AddressForChain[p.ChainID],
	}
	if p.ExactOut {
		req.RequestedOutput = p.RequestedOutput
	} else {
		req.RequestedInput = p.AmountSats
	}
	if err := deps.Validator.ValidateCommon(parsed, data, req); err != nil {
		return err
	}

	if err := deps.Validator.ValidateFromBTC(data, validator.FromBTCRequest{
		IntermediaryURL:  intermediary.URL,
		NowUnix:          nowUnix,
		ExpectedSequence: p.Sequence,
		ClaimFeeSats:     prefetch.claimFeeSats,
		FeePerBlockSats:  prefetch.feePerBlockSats,
		CurrentTipHeight: prefetch.currentTipHeight,
		RelayTipHeight:   prefetch.relayTipHeight,
		StartTimestamp:   nowUnix,
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
