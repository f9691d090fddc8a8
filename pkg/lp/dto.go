package lp

// ResponseEnvelope is the wire envelope every LP endpoint responds with
// (spec §6): code 20000 is success, 20003/20004 carry out-of-bounds
// data, 10xxx codes are FromBTCLN payment-auth codes, 20006/20007/20008/
// 20010 are refund-auth codes.
type ResponseEnvelope struct {
	Code             int             `json:"code"`
	Msg              string          `json:"msg"`
	Data             map[string]any  `json:"data,omitempty"`
	SignDataPrefetch map[string]any  `json:"signDataPrefetch,omitempty"`
	LNPublicKey      string          `json:"lnPublicKey,omitempty"`
}

// Response envelope codes (spec §6).
const (
	CodeSuccess        = 20000
	CodeOutOfBoundsMin = 20003
	CodeOutOfBoundsMax = 20004

	// Refund-authorization codes (ToBTC/ToBTCLN post-commit polling, spec
	// §4.4 "Post-commit"). The endpoint reuses the generic success code
	// to mean REFUND_DATA (a signed refund authorization is available);
	// PAID is the distinct 20006 code reporting the LP already paid out
	// and a claim proof is attached.
	CodeRefundData = CodeSuccess
	CodePaid       = 20006
	CodeNotFound   = 20007
	CodePending    = 20008
	CodeExpired    = 20010

	// FromBTCLN payment-authorization codes.
	CodeAuthData       = 10000
	CodePaymentPending = 10003
)

// EscrowDataDTO mirrors chainkit.EscrowData over the wire: amounts as
// decimal BN-strings, hash/nonce/type as in spec §6.
type EscrowDataDTO struct {
	Offerer         string `json:"offerer"`
	Claimer         string `json:"claimer"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	Hash            string `json:"hash"`
	Expiry          int64  `json:"expiry"`
	Nonce           string `json:"nonce"`
	Confirmations   int    `json:"confirmations"`
	Sequence        string `json:"sequence"`
	Type            string `json:"type"`
	SecurityDeposit string `json:"securityDeposit,omitempty"`
	ClaimerBounty   string `json:"claimerBounty,omitempty"`
	PayIn           bool   `json:"payIn"`
}

// SignatureDataDTO mirrors chainkit.AuthorizationSignature over the wire.
type SignatureDataDTO struct {
	Prefix    string `json:"prefix"`
	Timeout   int64  `json:"timeout"`
	Signature string `json:"signature"`
}

// QuoteDataDTO is the `data` payload of a successful init response,
// shared by all four directions' wire formats. PR and Address are only
// ever populated by the FromBTCLN/FromBTC responses respectively.
type QuoteDataDTO struct {
	Amount     string           `json:"amount"`
	SwapFee    string           `json:"swapFee"`
	NetworkFee string           `json:"networkFee"`
	TotalFee   string           `json:"totalFee"`
	Total      string           `json:"total"`
	Data       EscrowDataDTO    `json:"data"`
	Signature  SignatureDataDTO `json:"signature"`
	FeeRate    string           `json:"feeRate"`
	PR         string           `json:"pr,omitempty"`      // FromBTCLN: the bolt11 invoice the user must pay
	Address    string           `json:"address,omitempty"` // FromBTC: the Bitcoin deposit address
}

// ToBTCRequest is the body of POST /tobtc/payInvoice.
type ToBTCRequest struct {
	Address            string `json:"address"`
	Amount             string `json:"amount"`
	ExactIn            bool   `json:"exactIn"`
	ConfirmationTarget int    `json:"confirmationTarget"`
	Confirmations      int    `json:"confirmations"`
	Nonce              string `json:"nonce"`
	Token              string `json:"token"`
	Offerer            string `json:"offerer"`
	FeeRate            string `json:"feeRate"`
}

// ToBTCLNRequest is the body of POST /tobtcln/payInvoice.
type ToBTCLNRequest struct {
	PR              string `json:"pr"`
	MaxFee          string `json:"maxFee"`
	ExpiryTimestamp int64  `json:"expiryTimestamp"`
	Token           string `json:"token"`
	Offerer         string `json:"offerer"`
	ExactIn         bool   `json:"exactIn"`
	Amount          string `json:"amount,omitempty"` // only when exactIn
	FeeRate         string `json:"feeRate"`
}

// ToBTCLNExactInConfirmRequest is the body of POST /tobtcln/payInvoiceExactIn.
type ToBTCLNExactInConfirmRequest struct {
	PR      string `json:"pr"`
	ReqID   string `json:"reqId"`
	FeeRate string `json:"feeRate"`
}

// FromBTCRequest is the body of POST /frombtc/getAddress.
type FromBTCRequest struct {
	Address       string `json:"address"`
	Amount        string `json:"amount"`
	Token         string `json:"token"`
	ExactOut      bool   `json:"exactOut"`
	Sequence      string `json:"sequence"`
	ClaimerBounty string `json:"claimerBounty"`
	FeeRate       string `json:"feeRate"`
}

// FromBTCLNRequest is the body of POST /frombtcln/createInvoice.
type FromBTCLNRequest struct {
	PaymentHash     string `json:"paymentHash"`
	Amount          string `json:"amount"`
	Address         string `json:"address"`
	Token           string `json:"token"`
	DescriptionHash string `json:"descriptionHash,omitempty"`
	ExactOut        bool   `json:"exactOut"`
	FeeRate         string `json:"feeRate"`
}

// InfoRequest is the body of POST /info.
type InfoRequest struct {
	Nonce string `json:"nonce"`
}

// InfoResponse is the discovery envelope's data field.
type InfoResponse struct {
	Address   string                   `json:"address"`
	Envelope  string                   `json:"envelope"`
	Signature string                   `json:"signature"`
	Chains    map[string]ChainIdentity `json:"chains"`
}

// ChainIdentity is one entry of InfoResponse.Chains.
type ChainIdentity struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// RefundAuthData is the `data` payload of a refund-authorization response:
// the signed refund authorization of REFUND_DATA (20000), or the txId /
// secret claim proof of PAID (20006).
type RefundAuthData struct {
	Prefix    string `json:"prefix"`
	Timeout   int64  `json:"timeout"`
	Signature string `json:"signature"`
	TxID      string `json:"txId,omitempty"`
	Secret    string `json:"secret,omitempty"`
}

// PaymentAuthData is the `data` payload of an AUTH_DATA (10000) response.
type PaymentAuthData struct {
	Data      EscrowDataDTO    `json:"data"`
	Signature SignatureDataDTO `json:"signature"`
}
