package wrapper

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// decodedInvoice is the subset of a decoded bolt11 invoice the swap core
// cross-checks an LP's response against (spec §4.3 "ToBTCLN-specific",
// "FromBTCLN-specific"): its real payment_hash, its purpose_commit_hash
// (description hash), and its amount.
type decodedInvoice struct {
	PaymentHash     [32]byte
	DescriptionHash [32]byte
	AmountSats      *big.Int
}

// decodeBolt11 parses a raw invoice string with lnd's own codec, the way
// any lightning-aware caller in the pack resolves an invoice's fields
// rather than trusting the counterparty's claims about them.
func decodeBolt11(invoice string, params *chaincfg.Params) (*decodedInvoice, error) {
	inv, err := zpay32.Decode(invoice, params)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to decode bolt11 invoice: %w", err)
	}

	out := &decodedInvoice{AmountSats: big.NewInt(0)}
	if inv.PaymentHash != nil {
		out.PaymentHash = *inv.PaymentHash
	}
	if inv.DescriptionHash != nil {
		out.DescriptionHash = *inv.DescriptionHash
	}
	if inv.MilliSat != nil {
		out.AmountSats = new(big.Int).Div(big.NewInt(int64(*inv.MilliSat)), big.NewInt(1000))
	}
	return out, nil
}

// bitcoinParams returns the network a Dependencies was configured for,
// defaulting to mainnet the way chainkit/bitcoin.Network's own unknown
// case never silently happens here.
func bitcoinParams(deps *Dependencies) *chaincfg.Params {
	if deps.BitcoinParams != nil {
		return deps.BitcoinParams
	}
	return &chaincfg.MainNetParams
}
