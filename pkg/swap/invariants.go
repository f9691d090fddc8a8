package swap

import (
	"fmt"
	"math/big"
)

// CheckFeeAdditivity verifies spec invariant 5: swapFee + networkFee ==
// totalFee, where totalFee is the value the LP reported.
func (s *Swap) CheckFeeAdditivity(totalFee *big.Int) error {
	computed := s.TotalFee()
	if computed.Cmp(totalFee) != 0 {
		return fmt.Errorf("swap: fee additivity violated: swapFee+networkFee=%s totalFee=%s", computed, totalFee)
	}
	return nil
}

// CheckAmountBalance verifies spec invariant 6 for ToBTC/ToBTCLN
// (pay-in) swaps: data.Amount == userPayAmount + totalFee for exact-out
// quotes, or data.Amount == requestedInput for exact-in quotes.
func (s *Swap) CheckAmountBalance(userPayAmount *big.Int, exactIn bool, requestedInput *big.Int) error {
	if s.Data == nil {
		return fmt.Errorf("swap: no escrow data to check amount balance against")
	}
	if exactIn {
		if s.Data.Amount.Cmp(requestedInput) != 0 {
			return fmt.Errorf("swap: exact-in amount mismatch: data.amount=%s requestedInput=%s", s.Data.Amount, requestedInput)
		}
		return nil
	}
	expected := new(big.Int).Add(userPayAmount, s.TotalFee())
	if s.Data.Amount.Cmp(expected) != 0 {
		return fmt.Errorf("swap: exact-out amount mismatch: data.amount=%s expected=%s", s.Data.Amount, expected)
	}
	return nil
}

// CheckFromBTCLNSecret verifies spec invariant 7: SHA256(secret) ==
// paymentHash.
func (s *Swap) CheckFromBTCLNSecret() error {
	if s.FromBTCLN == nil {
		return fmt.Errorf("swap: not a FromBTCLN swap")
	}
	if ComputeFromBTCLNHash(s.FromBTCLN.Secret) != s.PaymentHash {
		return fmt.Errorf("swap: FromBTCLN secret does not reproduce payment hash")
	}
	return nil
}

// CheckHashIntegrity verifies spec invariant 1 for ToBTC/FromBTC swaps:
// the escrow's hash is exactly the hash the hash-contributing fields
// (nonce, amount, output script) deterministically produce.
func (s *Swap) CheckHashIntegrity() error {
	if s.Data == nil {
		return fmt.Errorf("swap: no escrow data to check hash integrity against")
	}
	switch s.Direction {
	case DirectionToBTC:
		if s.ToBTC == nil {
			return fmt.Errorf("swap: ToBTC swap missing payload")
		}
		want := ComputeToBTCHash(s.ToBTC.Nonce, s.Data.Amount.Uint64(), s.ToBTC.OutputScript)
		if want != s.PaymentHash {
			return fmt.Errorf("swap: ToBTC hash integrity violated")
		}
	case DirectionFromBTC:
		if s.FromBTC == nil {
			return fmt.Errorf("swap: FromBTC swap missing payload")
		}
		want := ComputeFromBTCHash(s.Data.Amount.Uint64(), s.FromBTC.OutputScript)
		if want != s.PaymentHash {
			return fmt.Errorf("swap: FromBTC hash integrity violated")
		}
	case DirectionFromBTCLN:
		return s.CheckFromBTCLNSecret()
	}
	return nil
}
