package swap

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// escrowNonceEpoch is the offset subtracted from the current unix
// timestamp before it is packed into an escrow nonce (spec §9).
const escrowNonceEpoch = 700_000_000

// GenerateEscrowNonce builds the 8-byte escrow nonce that binds a
// ToBTC/FromBTC escrow to a specific quote: a 5-byte big-endian
// timestamp offset followed by 3 cryptographically random bytes.
func GenerateEscrowNonce() (uint64, error) {
	seconds := time.Now().Unix() - escrowNonceEpoch
	if seconds < 0 || seconds >= 1<<40 {
		return 0, fmt.Errorf("swap: system clock out of escrow nonce range")
	}

	var suffix [3]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return 0, fmt.Errorf("swap: failed to generate nonce randomness: %w", err)
	}

	var buf [8]byte
	buf[0] = byte(seconds >> 32)
	buf[1] = byte(seconds >> 24)
	buf[2] = byte(seconds >> 16)
	buf[3] = byte(seconds >> 8)
	buf[4] = byte(seconds)
	buf[5], buf[6], buf[7] = suffix[0], suffix[1], suffix[2]

	return binary.BigEndian.Uint64(buf[:]), nil
}

// le8 renders v as 8 bytes, little-endian, matching the source
// protocol's hash preimage layout (spec invariant 1).
func le8(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

// ComputeToBTCHash is the payment hash for a ToBTC (on-chain pay-out)
// escrow: SHA256(le8(nonce) || le8(amount) || outputScript).
func ComputeToBTCHash(nonce uint64, amountSats uint64, outputScript []byte) [32]byte {
	h := sha256.New()
	h.Write(le8(nonce))
	h.Write(le8(amountSats))
	h.Write(outputScript)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeFromBTCHash is the payment hash for a FromBTC (on-chain
// receive) escrow: identical construction to ToBTC with a zero nonce.
func ComputeFromBTCHash(amountSats uint64, outputScript []byte) [32]byte {
	return ComputeToBTCHash(0, amountSats, outputScript)
}

// ComputeFromBTCLNHash derives the payment hash the client commits to
// before asking the LP for an invoice: SHA256(secret). The client picks
// secret itself, so it alone can produce the preimage that unlocks the
// escrow (spec invariant 7).
func ComputeFromBTCLNHash(secret [32]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// GenerateSecret picks a fresh FromBTCLN secret.
func GenerateSecret() ([32]byte, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, fmt.Errorf("swap: failed to generate secret: %w", err)
	}
	return secret, nil
}
