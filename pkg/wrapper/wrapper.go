// Package wrapper orchestrates a swap end-to-end: quote fan-out across
// eligible intermediaries, commit, post-commit polling, and refund.
// It generalizes the teacher's single-chain Build -> Estimate -> Sign ->
// Broadcast pipeline (src/chainadapter/bitcoin/adapter.go) to this
// module's Quote -> Commit -> PostCommit -> (Claim | Refund) pipeline,
// and replaces the teacher's single-target calls with
// golang.org/x/sync/errgroup fan-out across candidate LPs, the
// idiomatic Go stand-in for the source design's
// Promise.all-over-child-AbortControllers concurrency.
package wrapper

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/internal/services/audit"
	"github.com/arcsign/swapcore/pkg/fsm"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/metrics"
	"github.com/arcsign/swapcore/pkg/oracle"
	"github.com/arcsign/swapcore/pkg/storage"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/swaperrors"
	"github.com/arcsign/swapcore/pkg/validator"
)

// Dependencies bundles every collaborator a SwapWrapper needs. Registry,
// Oracle, Validator and Contract are required. BitcoinRpc is required by
// CreateFromBTC and by txId claim proofs. The rest may be nil: a nil
// SigVerifier skips signature checks, a nil Index skips persistence, a
// nil BitcoinParams means mainnet, and nil Metrics, AuditLog or Logger
// record nothing.
type Dependencies struct {
	Registry      *lp.Registry
	Oracle        *oracle.PriceOracle
	Validator     *validator.Validator
	SigVerifier   validator.SignatureVerifier
	Contract      chainkit.SwapContract
	BitcoinRpc    chainkit.BitcoinRpc
	BitcoinParams *chaincfg.Params
	Index         *storage.SwapIndex
	Metrics       *metrics.Collectors
	AuditLog      *audit.AuditLogger
	Logger        *zap.SugaredLogger
}

// Candidate is one LP's response to a quote fan-out, after local
// validation has already run.
type Candidate struct {
	IntermediaryURL string
	Quote           *lp.QuoteDataDTO
	Parsed          *validator.ParsedQuote
	Data            *chainkit.EscrowData
}

// FanOutQuotes requests a quote from every intermediary offering
// swapType/token concurrently, validates each response independently,
// and returns every candidate that survived validation, cheapest total
// cost first. A per-LP failure never aborts the others (spec §4.4:
// "a rejected or failed LP must not block the remaining candidates").
func FanOutQuotes(ctx context.Context, deps *Dependencies, swapType, token string, request func(ctx context.Context, client *lp.IntermediaryClient) (*lp.QuoteDataDTO, error), validate func(*lp.QuoteDataDTO, *validator.ParsedQuote, *chainkit.EscrowData, *lp.Intermediary) error) ([]Candidate, error) {
	candidates := deps.Registry.ListForToken(swapType, token)
	if len(candidates) == 0 {
		return nil, swaperrors.NewUserError("no intermediary offers %s for %s", swapType, token)
	}

	results := make([]*Candidate, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, intermediary := range candidates {
		i, intermediary := i, intermediary
		g.Go(func() error {
			client, ok := deps.Registry.ClientFor(intermediary.URL)
			if !ok {
				return nil // dropped silently: no transport bound to this LP
			}

			quote, err := request(gctx, client)
			if err != nil {
				recordStrike(deps, intermediary.URL)
				return nil
			}

			parsed, err := validator.ParseQuote(intermediary.URL, quote.Amount, quote.SwapFee, quote.NetworkFee, quote.TotalFee, quote.Total)
			if err != nil {
				recordStrike(deps, intermediary.URL)
				return nil
			}

			data, err := decodeEscrowData(&quote.Data)
			if err != nil {
				recordStrike(deps, intermediary.URL)
				return nil
			}

			if validate != nil {
				if err := validate(quote, parsed, data, intermediary); err != nil {
					recordStrike(deps, intermediary.URL)
					return nil
				}
			}

			results[i] = &Candidate{IntermediaryURL: intermediary.URL, Quote: quote, Parsed: parsed, Data: data}
			return nil
		})
	}
	// errgroup.Group.Wait's error is always nil here: each goroutine
	// swallows its own failure into a per-candidate nil slot rather than
	// aborting the group, since one bad LP must not cancel the others.
	_ = g.Wait()

	var out []Candidate
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, swaperrors.NewIntermediaryError("", "every intermediary's quote failed validation", nil)
	}

	sortByTotalFee(out)
	return out, nil
}

func sortByTotalFee(candidates []Candidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Parsed.TotalFee.Cmp(candidates[j-1].Parsed.TotalFee) < 0; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

func recordStrike(deps *Dependencies, intermediaryURL string) {
	if deps.Metrics != nil {
		deps.Metrics.LPStrikes.WithLabelValues(intermediaryURL).Inc()
	}
	if deps.Logger != nil {
		deps.Logger.Infow("wrapper: recording strike against intermediary", "url", intermediaryURL)
	}
	if deps.Registry != nil {
		deps.Registry.RecordStrike(intermediaryURL, "quote fan-out rejected or failed")
	}
}

func decodeEscrowData(dto *lp.EscrowDataDTO) (*chainkit.EscrowData, error) {
	amount, ok := new(big.Int).SetString(dto.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("wrapper: invalid escrow amount %q", dto.Amount)
	}
	nonce, err := parseUint(dto.Nonce)
	if err != nil {
		return nil, err
	}
	sequence, err := parseUint(dto.Sequence)
	if err != nil {
		return nil, err
	}
	hashBytes, err := decodeHash32(dto.Hash)
	if err != nil {
		return nil, err
	}

	data := &chainkit.EscrowData{
		Offerer:       dto.Offerer,
		Claimer:       dto.Claimer,
		Token:         dto.Token,
		Amount:        amount,
		Hash:          hashBytes,
		Expiry:        dto.Expiry,
		Nonce:         nonce,
		Confirmations: dto.Confirmations,
		Sequence:      sequence,
		Type:          chainkit.EscrowType(dto.Type),
		PayIn:         dto.PayIn,
	}
	if dto.SecurityDeposit != "" {
		v, ok := new(big.Int).SetString(dto.SecurityDeposit, 10)
		if !ok {
			return nil, fmt.Errorf("wrapper: invalid securityDeposit %q", dto.SecurityDeposit)
		}
		data.SecurityDeposit = v
	}
	if dto.ClaimerBounty != "" {
		v, ok := new(big.Int).SetString(dto.ClaimerBounty, 10)
		if !ok {
			return nil, fmt.Errorf("wrapper: invalid claimerBounty %q", dto.ClaimerBounty)
		}
		data.ClaimerBounty = v
	}
	return data, nil
}

// commitsInFlight holds the payment hashes of Commit calls still running.
var commitsInFlight sync.Map

// Commit places the escrow on-chain for an already-validated candidate
// and transitions the swap CREATED -> COMMITTED. The state precondition
// and the LP's commit authorization are both re-checked before the
// on-chain call fires: a caller that invokes Commit twice on the same
// Swap (a retried request, a racing goroutine) must be rejected before
// a second escrow is ever broadcast, not after.
func Commit(ctx context.Context, deps *Dependencies, s *swap.Swap) error {
	if _, busy := commitsInFlight.LoadOrStore(s.PaymentHash, struct{}{}); busy {
		return swaperrors.NewUserError("wrapper: a commit for this swap is already in progress")
	}
	defer commitsInFlight.Delete(s.PaymentHash)
	if err := fsm.CheckTransition(s.Direction, s.State, swap.StateCommitted); err != nil {
		return swaperrors.NewUserError("wrapper: %v", err)
	}
	if err := reverifyCommitAuthorization(ctx, deps, s); err != nil {
		return err
	}

	var txID string
	var err error
	if s.Data.IsPayIn() {
		txID, err = deps.Contract.InitPayIn(ctx, s.Data, s.SignatureData, s.FeeRate)
	} else {
		txID, err = deps.Contract.Init(ctx, s.Data, s.SignatureData, s.FeeRate)
	}
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Errorw("wrapper: commit failed", "paymentHash", hex.EncodeToString(s.PaymentHash[:]), "error", err)
		}
		return fmt.Errorf("wrapper: commit failed: %w", err)
	}

	s.CommitTxID = txID
	if err := fsm.Transition(s, swap.StateCommitted); err != nil {
		return err
	}
	if deps.Index != nil {
		if err := deps.Index.Put(s); err != nil {
			return err
		}
	}
	if deps.Metrics != nil {
		deps.Metrics.SwapsCommitted.WithLabelValues(string(s.Direction)).Inc()
	}
	if deps.Logger != nil {
		deps.Logger.Infow("wrapper: swap committed", "paymentHash", hex.EncodeToString(s.PaymentHash[:]), "txID", txID, "direction", s.Direction)
	}
	return nil
}

// reverifyCommitAuthorization re-checks the LP's commit authorization
// against the Swap's pinned escrow data immediately before the on-chain
// call, the same check FanOutQuotes ran at quote time but against
// whatever s.Data/s.SignatureData the caller is about to commit with.
func reverifyCommitAuthorization(ctx context.Context, deps *Dependencies, s *swap.Swap) error {
	if deps.SigVerifier == nil {
		return nil
	}
	lpAddress := s.Data.Offerer
	if s.Data.IsPayIn() {
		lpAddress = s.Data.Claimer
	}
	return validator.VerifyAuthorization(ctx, deps.SigVerifier, s.Data, s.SignatureData, lpAddress)
}

// Claim releases a swap's escrow to its claimer, given the preimage or
// on-chain proof the direction requires, and transitions to CLAIMED.
func Claim(ctx context.Context, deps *Dependencies, s *swap.Swap, secretOrProof []byte) error {
	txID, err := deps.Contract.Claim(ctx, s.PaymentHash, secretOrProof)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Errorw("wrapper: claim failed", "paymentHash", hex.EncodeToString(s.PaymentHash[:]), "error", err)
		}
		return fmt.Errorf("wrapper: claim failed: %w", err)
	}
	s.ClaimTxID = txID
	if err := fsm.Transition(s, swap.StateClaimed); err != nil {
		return err
	}
	if deps.Index != nil {
		if err := deps.Index.Put(s); err != nil {
			return err
		}
	}
	if deps.Metrics != nil {
		deps.Metrics.SwapsCompleted.WithLabelValues(string(s.Direction)).Inc()
	}
	if deps.Logger != nil {
		deps.Logger.Infow("wrapper: swap claimed", "paymentHash", hex.EncodeToString(s.PaymentHash[:]), "txID", txID, "direction", s.Direction)
	}
	return nil
}

// Refund returns an expired, uncliamed escrow to its offerer and
// transitions to REFUNDED.
func Refund(ctx context.Context, deps *Dependencies, s *swap.Swap) error {
	txID, err := deps.Contract.Refund(ctx, s.PaymentHash)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Errorw("wrapper: refund failed", "paymentHash", hex.EncodeToString(s.PaymentHash[:]), "error", err)
		}
		return fmt.Errorf("wrapper: refund failed: %w", err)
	}
	s.RefundTxID = txID
	if err := fsm.Transition(s, swap.StateRefunded); err != nil {
		return err
	}
	if deps.Index != nil {
		if err := deps.Index.Put(s); err != nil {
			return err
		}
	}
	if deps.Metrics != nil {
		deps.Metrics.SwapsRefunded.WithLabelValues(string(s.Direction)).Inc()
	}
	if deps.Logger != nil {
		deps.Logger.Infow("wrapper: swap refunded", "paymentHash", hex.EncodeToString(s.PaymentHash[:]), "txID", txID, "direction", s.Direction)
	}
	return nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("wrapper: invalid unsigned integer field %q", s)
	}
	return v.Uint64(), nil
}

// verifyQuoteAuthorization checks the LP's signed commit authorization
// for one candidate quote, dispatching pay-in vs pay-out per data.IsPayIn
// (spec §4.3 "Signature verification"). A nil SigVerifier skips the
// check, for embedders still wiring their chain's signature scheme.
func verifyQuoteAuthorization(ctx context.Context, deps *Dependencies, quote *lp.QuoteDataDTO, data *chainkit.EscrowData, lpAddress string) error {
	if deps.SigVerifier == nil {
		return nil
	}
	sig, err := decodeSignature(&quote.Signature)
	if err != nil {
		return err
	}
	return validator.VerifyAuthorization(ctx, deps.SigVerifier, data, sig, lpAddress)
}

// decodeSignature converts an LP's wire signature DTO into the typed
// form validator.VerifyAuthorization and chainkit.SwapContract expect.
func decodeSignature(dto *lp.SignatureDataDTO) (*chainkit.AuthorizationSignature, error) {
	raw, err := hex.DecodeString(dto.Signature)
	if err != nil {
		return nil, fmt.Errorf("wrapper: invalid signature hex %q: %w", dto.Signature, err)
	}
	return &chainkit.AuthorizationSignature{
		Prefix:    dto.Prefix,
		Timeout:   dto.Timeout,
		Signature: raw,
	}, nil
}

// fetchFeeRate fetches the chain's current fee-rate snapshot once per
// swap creation and binds it into the resulting Swap (spec §3
// `feeRate`), so Commit has a real rate to hand to
// Init/InitPayIn instead of a permanently-nil one.
func fetchFeeRate(ctx context.Context, deps *Dependencies) (*chainkit.FeeRate, error) {
	feeRate, err := deps.Contract.GetFeeRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to fetch fee rate: %w", err)
	}
	return feeRate, nil
}

func decodeHash32(hexStr string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, fmt.Errorf("wrapper: invalid hash hex %q: %w", hexStr, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("wrapper: hash %q is not 32 bytes", hexStr)
	}
	copy(out[:], raw)
	return out, nil
}
