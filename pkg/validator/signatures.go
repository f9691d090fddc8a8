package validator

import (
	"context"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// SignatureVerifier checks an LP's authorization signature against an
// escrow descriptor. The actual cryptography (the signing scheme is
// chain-specific) is left to the embedder's collaborator; this package
// only dispatches to the right check and turns a failure into the
// taxonomy's SignatureVerificationError (spec §4.3 "Authorization
// signature").
type SignatureVerifier interface {
	// VerifyInitAuthorization checks a pay-in escrow's LP signature
	// (the user funds the escrow themselves; ToBTC/ToBTCLN).
	VerifyInitAuthorization(ctx context.Context, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, lpAddress string) error
	// VerifyClaimInitAuthorization checks a pay-out escrow's LP
	// signature (the LP funds the escrow; FromBTC/FromBTCLN).
	VerifyClaimInitAuthorization(ctx context.Context, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, lpAddress string) error
}

// VerifyAuthorization dispatches to the correct verification scheme
// based on data.IsPayIn(), wrapping any failure as a
// SignatureVerificationError so callers never need to know which check
// ran.
func VerifyAuthorization(ctx context.Context, v SignatureVerifier, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, lpAddress string) error {
	var err error
	if data.IsPayIn() {
		err = v.VerifyInitAuthorization(ctx, data, sig, lpAddress)
	} else {
		err = v.VerifyClaimInitAuthorization(ctx, data, sig, lpAddress)
	}
	if err != nil {
		return swaperrors.NewSignatureVerificationError("lp authorization signature rejected: %v", err)
	}
	return nil
}
