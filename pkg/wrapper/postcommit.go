package wrapper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/arcsign/swapcore/pkg/fsm"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/swaperrors"
	"github.com/arcsign/swapcore/pkg/validator"
)

// PollRefundAuthorization polls an LP's ToBTC/ToBTCLN refund-authorization
// endpoint once and applies the resulting status to s (spec §4.4
// "Post-commit"). Callers loop this on their own cadence; it never
// sleeps or blocks beyond the single HTTP round trip.
func PollRefundAuthorization(ctx context.Context, deps *Dependencies, client *lp.IntermediaryClient, s *swap.Swap) error {
	sequence := ""
	if s.FromBTC != nil {
		sequence = fmt.Sprintf("%d", s.FromBTC.Sequence)
	}

	env, err := client.GetRefundAuthorization(ctx, hex.EncodeToString(s.PaymentHash[:]), sequence)
	if err != nil {
		return err
	}

	switch env.Code {
	case lp.CodeRefundData:
		// A signed refund authorization is available: the commit window
		// has lapsed without payment and the user may now refund.
		if err := fsm.Transition(s, swap.StateRefundable); err != nil {
			return err
		}
		return persistIfIndexed(deps, s)
	case lp.CodePaid:
		return handlePaidRefundAuth(ctx, deps, client.BaseURL(), s, env)
	case lp.CodeNotFound:
		return nil // not yet visible to the LP; poll again later
	case lp.CodePending:
		return nil
	case lp.CodeExpired:
		if err := fsm.Transition(s, swap.StateRefundable); err != nil {
			return err
		}
		return persistIfIndexed(deps, s)
	default:
		return fmt.Errorf("wrapper: unexpected refund-authorization code %d", env.Code)
	}
}

// handlePaidRefundAuth verifies a PAID (20006) claim proof — either the
// secret whose SHA256 reproduces the payment hash (ToBTCLN), or a
// Bitcoin txId whose claimed output reproduces the escrow hash (ToBTC)
// — and transitions to CLAIMED on success (spec §4.4 "Post-commit":
// "verify the proof (secret or btc txId whose matching vout reproduces
// the expected hash). On success, state → CLAIMED; else
// IntermediaryError"). A PAID response carrying neither is "paid, proof
// pending": keep polling rather than failing the swap.
func handlePaidRefundAuth(ctx context.Context, deps *Dependencies, lpURL string, s *swap.Swap, env *lp.ResponseEnvelope) error {
	auth, err := decodeEnvelopeData[lp.RefundAuthData](env)
	if err != nil {
		return swaperrors.NewIntermediaryError(lpURL, "malformed refund authorization data", err)
	}

	switch {
	case auth.Secret != "":
		secret, err := hex.DecodeString(auth.Secret)
		if err != nil {
			return swaperrors.NewIntermediaryError(lpURL, "invalid secret hex in PAID response", err)
		}
		sum := sha256.Sum256(secret)
		if sum != s.PaymentHash {
			return swaperrors.NewIntermediaryError(lpURL, "claimed secret does not reproduce payment hash", nil)
		}
	case auth.TxID != "":
		if s.ToBTC == nil || deps.BitcoinRpc == nil {
			return swaperrors.NewIntermediaryError(lpURL, "cannot verify txId claim proof without a ToBTC payload and BitcoinRpc", nil)
		}
		script, err := deps.BitcoinRpc.TransactionOutputScript(ctx, auth.TxID)
		if err != nil {
			return swaperrors.NewIntermediaryError(lpURL, "failed to fetch claimed transaction output", err)
		}
		recomputed := swap.ComputeToBTCHash(s.ToBTC.Nonce, s.Data.Amount.Uint64(), script)
		if recomputed != s.PaymentHash {
			return swaperrors.NewIntermediaryError(lpURL, "claimed transaction does not reproduce escrow hash", nil)
		}
	default:
		return nil // paid, proof pending: poll again later
	}

	if err := fsm.Transition(s, swap.StateClaimed); err != nil {
		return err
	}
	return persistIfIndexed(deps, s)
}

// PollPaymentAuthorization polls an LP's FromBTCLN payment-authorization
// endpoint once and applies the resulting status to s. An AUTH_DATA
// response is validated against the already-committed escrow data
// before PR_CREATED advances to PR_PAID: the hash, the LP's own
// claimer/offerer role, the minimum output, and its signature must all
// match what was agreed at commit time (spec §4.4 "Post-commit").
func PollPaymentAuthorization(ctx context.Context, deps *Dependencies, client *lp.IntermediaryClient, s *swap.Swap) error {
	env, err := client.GetPaymentAuthorization(ctx, hex.EncodeToString(s.PaymentHash[:]))
	if err != nil {
		return err
	}

	switch env.Code {
	case lp.CodeAuthData:
		if err := validatePaymentAuth(ctx, deps, client.BaseURL(), s, env); err != nil {
			return err
		}
		if err := fsm.Transition(s, swap.StatePRPaid); err != nil {
			return err
		}
		return persistIfIndexed(deps, s)
	case lp.CodePaymentPending:
		return nil
	default:
		return fmt.Errorf("wrapper: unexpected payment-authorization code %d", env.Code)
	}
}

func validatePaymentAuth(ctx context.Context, deps *Dependencies, lpURL string, s *swap.Swap, env *lp.ResponseEnvelope) error {
	auth, err := decodeEnvelopeData[lp.PaymentAuthData](env)
	if err != nil {
		return swaperrors.NewIntermediaryError(lpURL, "malformed payment authorization data", err)
	}

	data, err := decodeEscrowData(&auth.Data)
	if err != nil {
		return swaperrors.NewIntermediaryError(lpURL, "payment authorization data did not match expected schema", err)
	}

	if data.Hash != s.Data.Hash {
		return swaperrors.NewIntermediaryError(lpURL, "payment authorization hash does not match committed escrow", nil)
	}
	if data.Offerer != s.Data.Offerer || data.Claimer != s.Data.Claimer {
		return swaperrors.NewIntermediaryError(lpURL, "payment authorization offerer/claimer does not match committed escrow", nil)
	}
	if data.Amount == nil || data.Amount.Cmp(s.Data.Amount) < 0 {
		return swaperrors.NewIntermediaryError(lpURL, "payment authorization amount is below the committed minimum", nil)
	}

	sig, err := decodeSignature(&auth.Signature)
	if err != nil {
		return swaperrors.NewIntermediaryError(lpURL, "invalid payment authorization signature encoding", err)
	}
	if deps.SigVerifier != nil {
		if err := validator.VerifyAuthorization(ctx, deps.SigVerifier, data, sig, s.Data.Offerer); err != nil {
			return swaperrors.NewIntermediaryError(lpURL, "payment authorization signature rejected", err)
		}
	}
	return nil
}

// decodeEnvelopeData decodes an envelope's `data` payload into T without
// requiring env.Code == CodeSuccess, unlike lp.decodeData: PAID/AUTH_DATA
// responses carry a payload under a distinct non-success code.
func decodeEnvelopeData[T any](env *lp.ResponseEnvelope) (*T, error) {
	raw, err := json.Marshal(env.Data)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to re-marshal response data: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("wrapper: response data did not match expected schema: %w", err)
	}
	return &out, nil
}

func persistIfIndexed(deps *Dependencies, s *swap.Swap) error {
	if deps.Index == nil {
		return nil
	}
	return deps.Index.Put(s)
}
