package swap

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/arcsign/swapcore/chainkit"
)

// record is the on-the-wire persisted shape (spec §6 "Persisted state"):
// big integers as decimal strings, hashes/scripts/secrets as hex, unknown
// fields tolerated on decode so older and newer versions round-trip.
type record struct {
	Version     int       `json:"version"`
	PaymentHash string    `json:"paymentHash"`
	Direction   Direction `json:"direction"`
	State       State     `json:"state"`

	Data *escrowRecord `json:"data,omitempty"`

	PricingIsValid       bool   `json:"pricingIsValid"`
	PricingDifferencePPM int64  `json:"pricingDifferencePPM"`
	PricingSatsBaseFee   string `json:"pricingSatsBaseFee,omitempty"`
	PricingFeePPM        int64  `json:"pricingFeePPM"`

	SwapFee    string `json:"swapFee,omitempty"`
	NetworkFee string `json:"networkFee,omitempty"`
	SwapFeeBTC string `json:"swapFeeBtc,omitempty"`

	SignaturePrefix    string `json:"signaturePrefix,omitempty"`
	SignatureTimeout   int64  `json:"signatureTimeout,omitempty"`
	SignatureSignature string `json:"signatureSignature,omitempty"`

	FeeRateChainID string `json:"feeRateChainId,omitempty"`
	FeeRateValue   string `json:"feeRateValue,omitempty"`
	FeeRateAsOf    int64  `json:"feeRateAsOf,omitempty"`

	ToBTC     *toBTCRecord     `json:"toBTC,omitempty"`
	ToBTCLN   *toBTCLNRecord   `json:"toBTCLN,omitempty"`
	FromBTC   *fromBTCRecord   `json:"fromBTC,omitempty"`
	FromBTCLN *fromBTCLNRecord `json:"fromBTCLN,omitempty"`

	CommitTxID string `json:"commitTxId,omitempty"`
	ClaimTxID  string `json:"claimTxId,omitempty"`
	RefundTxID string `json:"refundTxId,omitempty"`

	Expiry int64 `json:"expiry"`
}

type escrowRecord struct {
	Offerer         string `json:"offerer"`
	Claimer         string `json:"claimer"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	Hash            string `json:"hash"`
	Expiry          int64  `json:"expiry"`
	Nonce           uint64 `json:"nonce"`
	Confirmations   int    `json:"confirmations"`
	Sequence        uint64 `json:"sequence"`
	Type            string `json:"type"`
	SecurityDeposit string `json:"securityDeposit,omitempty"`
	ClaimerBounty   string `json:"claimerBounty,omitempty"`
	PayIn           bool   `json:"payIn"`
}

type toBTCRecord struct {
	Address            string `json:"address"`
	OutputScript       string `json:"outputScript"`
	Nonce              uint64 `json:"nonce"`
	ConfirmationTarget int    `json:"confirmationTarget"`
}

type toBTCLNRecord struct {
	Invoice       string `json:"invoice"`
	MaxFeeSats    string `json:"maxFeeSats,omitempty"`
	RoutingFee    string `json:"routingFee,omitempty"`
	LNURL         string `json:"lnurl,omitempty"`
	SuccessAction *LNURLSuccessAction `json:"successAction,omitempty"`
}

type fromBTCRecord struct {
	DepositAddress string `json:"depositAddress"`
	OutputScript   string `json:"outputScript"`
	ClaimerBounty  string `json:"claimerBounty,omitempty"`
	Sequence       uint64 `json:"sequence"`
}

type fromBTCLNRecord struct {
	Invoice         string `json:"invoice"`
	Secret          string `json:"secret"`
	DescriptionHash string `json:"descriptionHash,omitempty"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("swap: invalid big integer %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("swap: negative big integer %q not allowed", s)
	}
	return v, nil
}

// Marshal serializes a Swap to its persisted JSON form.
func Marshal(s *Swap) ([]byte, error) {
	r := record{
		Version:              s.Version,
		PaymentHash:          hex.EncodeToString(s.PaymentHash[:]),
		Direction:            s.Direction,
		State:                s.State,
		PricingIsValid:       s.Pricing.IsValid,
		PricingDifferencePPM: s.Pricing.DifferencePPM,
		PricingSatsBaseFee:   bigString(s.Pricing.SatsBaseFee),
		PricingFeePPM:        s.Pricing.FeePPM,
		SwapFee:              bigString(s.SwapFee),
		NetworkFee:           bigString(s.NetworkFee),
		SwapFeeBTC:           bigString(s.SwapFeeBTC),
		CommitTxID:           s.CommitTxID,
		ClaimTxID:            s.ClaimTxID,
		RefundTxID:           s.RefundTxID,
		Expiry:               s.Expiry,
	}

	if s.Data != nil {
		r.Data = &escrowRecord{
			Offerer:         s.Data.Offerer,
			Claimer:         s.Data.Claimer,
			Token:           s.Data.Token,
			Amount:          bigString(s.Data.Amount),
			Hash:            hex.EncodeToString(s.Data.Hash[:]),
			Expiry:          s.Data.Expiry,
			Nonce:           s.Data.Nonce,
			Confirmations:   s.Data.Confirmations,
			Sequence:        s.Data.Sequence,
			Type:            string(s.Data.Type),
			SecurityDeposit: bigString(s.Data.SecurityDeposit),
			ClaimerBounty:   bigString(s.Data.ClaimerBounty),
			PayIn:           s.Data.PayIn,
		}
	}

	if s.SignatureData != nil {
		r.SignaturePrefix = s.SignatureData.Prefix
		r.SignatureTimeout = s.SignatureData.Timeout
		r.SignatureSignature = hex.EncodeToString(s.SignatureData.Signature)
	}

	if s.FeeRate != nil {
		r.FeeRateChainID = s.FeeRate.ChainID
		r.FeeRateValue = bigString(s.FeeRate.Value)
		r.FeeRateAsOf = s.FeeRate.AsOf
	}

	if s.ToBTC != nil {
		r.ToBTC = &toBTCRecord{
			Address:            s.ToBTC.Address,
			OutputScript:       hex.EncodeToString(s.ToBTC.OutputScript),
			Nonce:              s.ToBTC.Nonce,
			ConfirmationTarget: s.ToBTC.ConfirmationTarget,
		}
	}
	if s.ToBTCLN != nil {
		r.ToBTCLN = &toBTCLNRecord{
			Invoice:       s.ToBTCLN.Invoice,
			MaxFeeSats:    bigString(s.ToBTCLN.MaxFeeSats),
			RoutingFee:    bigString(s.ToBTCLN.RoutingFee),
			LNURL:         s.ToBTCLN.LNURL,
			SuccessAction: s.ToBTCLN.SuccessAction,
		}
	}
	if s.FromBTC != nil {
		r.FromBTC = &fromBTCRecord{
			DepositAddress: s.FromBTC.DepositAddress,
			OutputScript:   hex.EncodeToString(s.FromBTC.OutputScript),
			ClaimerBounty:  bigString(s.FromBTC.ClaimerBounty),
			Sequence:       s.FromBTC.Sequence,
		}
	}
	if s.FromBTCLN != nil {
		r.FromBTCLN = &fromBTCLNRecord{
			Invoice:         s.FromBTCLN.Invoice,
			Secret:          hex.EncodeToString(s.FromBTCLN.Secret[:]),
			DescriptionHash: hex.EncodeToString(s.FromBTCLN.DescriptionHash),
		}
	}

	return json.Marshal(r)
}

// Unmarshal deserializes a Swap from its persisted JSON form. Unknown
// fields in data are silently ignored (encoding/json's default
// behavior), so a newer writer's extra fields don't break an older reader.
func Unmarshal(data []byte) (*Swap, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("swap: failed to unmarshal: %w", err)
	}

	hashBytes, err := hex.DecodeString(r.PaymentHash)
	if err != nil || len(hashBytes) != 32 {
		return nil, fmt.Errorf("swap: invalid paymentHash %q", r.PaymentHash)
	}

	s := &Swap{
		Direction: r.Direction,
		State:     r.State,
		Version:   r.Version,
		Expiry:    r.Expiry,
		CommitTxID: r.CommitTxID,
		ClaimTxID:  r.ClaimTxID,
		RefundTxID: r.RefundTxID,
	}
	copy(s.PaymentHash[:], hashBytes)

	if s.SwapFee, err = parseBig(r.SwapFee); err != nil {
		return nil, err
	}
	if s.NetworkFee, err = parseBig(r.NetworkFee); err != nil {
		return nil, err
	}
	if s.SwapFeeBTC, err = parseBig(r.SwapFeeBTC); err != nil {
		return nil, err
	}
	if s.Pricing.SatsBaseFee, err = parseBig(r.PricingSatsBaseFee); err != nil {
		return nil, err
	}
	s.Pricing.IsValid = r.PricingIsValid
	s.Pricing.DifferencePPM = r.PricingDifferencePPM
	s.Pricing.FeePPM = r.PricingFeePPM

	if r.Data != nil {
		amount, err := parseBig(r.Data.Amount)
		if err != nil {
			return nil, err
		}
		secDep, err := parseBig(r.Data.SecurityDeposit)
		if err != nil {
			return nil, err
		}
		bounty, err := parseBig(r.Data.ClaimerBounty)
		if err != nil {
			return nil, err
		}
		dataHash, err := hex.DecodeString(r.Data.Hash)
		if err != nil || len(dataHash) != 32 {
			return nil, fmt.Errorf("swap: invalid data.hash %q", r.Data.Hash)
		}
		ed := &chainkit.EscrowData{
			Offerer:         r.Data.Offerer,
			Claimer:         r.Data.Claimer,
			Token:           r.Data.Token,
			Amount:          amount,
			Expiry:          r.Data.Expiry,
			Nonce:           r.Data.Nonce,
			Confirmations:   r.Data.Confirmations,
			Sequence:        r.Data.Sequence,
			Type:            chainkit.EscrowType(r.Data.Type),
			SecurityDeposit: secDep,
			ClaimerBounty:   bounty,
			PayIn:           r.Data.PayIn,
		}
		copy(ed.Hash[:], dataHash)
		s.Data = ed
	}

	if r.SignatureSignature != "" || r.SignaturePrefix != "" {
		sigBytes, err := hex.DecodeString(r.SignatureSignature)
		if err != nil {
			return nil, fmt.Errorf("swap: invalid signature hex: %w", err)
		}
		s.SignatureData = &chainkit.AuthorizationSignature{
			Prefix:    r.SignaturePrefix,
			Timeout:   r.SignatureTimeout,
			Signature: sigBytes,
		}
	}

	if r.FeeRateChainID != "" {
		feeVal, err := parseBig(r.FeeRateValue)
		if err != nil {
			return nil, err
		}
		s.FeeRate = &chainkit.FeeRate{ChainID: r.FeeRateChainID, Value: feeVal, AsOf: r.FeeRateAsOf}
	}

	if r.ToBTC != nil {
		script, err := hex.DecodeString(r.ToBTC.OutputScript)
		if err != nil {
			return nil, fmt.Errorf("swap: invalid toBTC outputScript hex: %w", err)
		}
		s.ToBTC = &ToBTCPayload{
			Address:            r.ToBTC.Address,
			OutputScript:       script,
			Nonce:              r.ToBTC.Nonce,
			ConfirmationTarget: r.ToBTC.ConfirmationTarget,
		}
	}
	if r.ToBTCLN != nil {
		maxFee, err := parseBig(r.ToBTCLN.MaxFeeSats)
		if err != nil {
			return nil, err
		}
		routingFee, err := parseBig(r.ToBTCLN.RoutingFee)
		if err != nil {
			return nil, err
		}
		s.ToBTCLN = &ToBTCLNPayload{
			Invoice:       r.ToBTCLN.Invoice,
			MaxFeeSats:    maxFee,
			RoutingFee:    routingFee,
			LNURL:         r.ToBTCLN.LNURL,
			SuccessAction: r.ToBTCLN.SuccessAction,
		}
	}
	if r.FromBTC != nil {
		script, err := hex.DecodeString(r.FromBTC.OutputScript)
		if err != nil {
			return nil, fmt.Errorf("swap: invalid fromBTC outputScript hex: %w", err)
		}
		bounty, err := parseBig(r.FromBTC.ClaimerBounty)
		if err != nil {
			return nil, err
		}
		s.FromBTC = &FromBTCPayload{
			DepositAddress: r.FromBTC.DepositAddress,
			OutputScript:   script,
			ClaimerBounty:  bounty,
			Sequence:       r.FromBTC.Sequence,
		}
	}
	if r.FromBTCLN != nil {
		secretBytes, err := hex.DecodeString(r.FromBTCLN.Secret)
		if err != nil || len(secretBytes) != 32 {
			return nil, fmt.Errorf("swap: invalid FromBTCLN secret %q", r.FromBTCLN.Secret)
		}
		descHash, err := hex.DecodeString(r.FromBTCLN.DescriptionHash)
		if err != nil {
			return nil, fmt.Errorf("swap: invalid FromBTCLN descriptionHash hex: %w", err)
		}
		var secret [32]byte
		copy(secret[:], secretBytes)
		s.FromBTCLN = &FromBTCLNPayload{
			Invoice:         r.FromBTCLN.Invoice,
			Secret:          secret,
			DescriptionHash: descHash,
		}
	}

	return s, nil
}
