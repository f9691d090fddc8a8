// Package bitcoin holds the small amount of Bitcoin-specific logic the
// swap core needs directly: turning a user-supplied address into the
// output script that is hashed into the escrow's payment hash. UTXO
// selection, transaction construction, signing, and broadcast belong to
// the BitcoinRpc/SwapContract collaborators the core never implements.
package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Network resolves a network name to btcsuite chain parameters. Accepts
// the same vocabulary as the teacher's TransactionBuilder ("mainnet",
// "testnet3", "regtest") plus "signet" for completeness.
func Network(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported bitcoin network: %s", name)
	}
}

// AddressToScript decodes a Bitcoin address and returns its scriptPubKey.
// This is the "outputScript" referenced throughout spec §3/§4.3/§8: the
// payment hash for ToBTC and FromBTC swaps binds this script (not the
// address string itself), so two address encodings of the same script
// hash identically.
func AddressToScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("invalid bitcoin address %q: %w", address, err)
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("address %q is not valid for this network", address)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to build output script for %q: %w", address, err)
	}
	return script, nil
}
