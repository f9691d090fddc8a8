package wrapper

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/chainkit/mock"
	"github.com/arcsign/swapcore/pkg/fsm"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/oracle"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/validator"
)

// toJSONMap round-trips v through JSON into the map[string]any shape
// lp.ResponseEnvelope.Data carries over the wire.
func toJSONMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, env lp.ResponseEnvelope) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(env))
}

// newToBTCLPServer runs a single LP's /info and /tobtc/payInvoice
// endpoints, always quoting exactly what it is asked for so the
// returned candidate survives validation.
func newToBTCLPServer(t *testing.T, chainID, lpAddress, token string, outputScript []byte, nowUnix int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		var req lp.InfoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		info := lp.InfoResponse{
			Address:  lpAddress,
			Envelope: "envelope-nonce-" + req.Nonce,
			Chains: map[string]lp.ChainIdentity{
				chainID: {Address: lpAddress},
			},
		}
		writeEnvelope(t, w, lp.ResponseEnvelope{Code: lp.CodeSuccess, Data: toJSONMap(t, info)})
	})

	mux.HandleFunc("/tobtc/payInvoice", func(w http.ResponseWriter, r *http.Request) {
		var req lp.ToBTCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		nonce, err := parseUint(req.Nonce)
		require.NoError(t, err)
		amountSats, ok := new(big.Int).SetString(req.Amount, 10)
		require.True(t, ok)

		hash := swap.ComputeToBTCHash(nonce, amountSats.Uint64(), outputScript)

		escrow := lp.EscrowDataDTO{
			Offerer:       "",
			Claimer:       lpAddress,
			Token:         req.Token,
			Amount:        req.Amount,
			Hash:          hex.EncodeToString(hash[:]),
			Expiry:        nowUnix + 2_000,
			Nonce:         req.Nonce,
			Confirmations: 0,
			Sequence:      "0",
			Type:          string(chainkit.EscrowChainNonced),
			PayIn:         true,
		}
		quote := lp.QuoteDataDTO{
			Amount:     req.Amount,
			SwapFee:    "100",
			NetworkFee: "50",
			TotalFee:   "150",
			Total:      new(big.Int).Add(amountSats, big.NewInt(150)).String(),
			Data:       escrow,
			Signature:  lp.SignatureDataDTO{Prefix: "p", Timeout: nowUnix + 10_000, Signature: "aa"},
			FeeRate:    "1",
		}
		writeEnvelope(t, w, lp.ResponseEnvelope{Code: lp.CodeSuccess, Data: toJSONMap(t, quote)})
	})

	return httptest.NewServer(mux)
}

// newRejectingLPServer answers /info correctly but returns an
// escrow with a token that will never match the request, so every
// quote it offers fails validation.
func newRejectingLPServer(t *testing.T, chainID, lpAddress string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		var req lp.InfoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		info := lp.InfoResponse{
			Address:  lpAddress,
			Envelope: "envelope-nonce-" + req.Nonce,
			Chains:   map[string]lp.ChainIdentity{chainID: {Address: lpAddress}},
		}
		writeEnvelope(t, w, lp.ResponseEnvelope{Code: lp.CodeSuccess, Data: toJSONMap(t, info)})
	})

	mux.HandleFunc("/tobtc/payInvoice", func(w http.ResponseWriter, r *http.Request) {
		escrow := lp.EscrowDataDTO{
			Claimer: lpAddress,
			Token:   "WRONG_TOKEN",
			Amount:  "1000",
			Hash:    hex.EncodeToString(make([]byte, 32)),
			Type:    string(chainkit.EscrowChainNonced),
		}
		quote := lp.QuoteDataDTO{
			Amount: "1000", SwapFee: "10", NetworkFee: "5", TotalFee: "15", Total: "1015",
			Data: escrow,
		}
		writeEnvelope(t, w, lp.ResponseEnvelope{Code: lp.CodeSuccess, Data: toJSONMap(t, quote)})
	})

	return httptest.NewServer(mux)
}

func discoverAndOffer(t *testing.T, registry *lp.Registry, baseURL, chainID, swapType, token string) {
	t.Helper()
	client := lp.NewClient(baseURL, 5*time.Second)
	intermediary, err := registry.Discover(context.Background(), baseURL, client)
	require.NoError(t, err)
	intermediary.Services = map[string]lp.ServiceOffer{
		swapType: {Tokens: []string{token}},
	}
}

func testDeps(t *testing.T, chainID, token string) (*Dependencies, *mock.Contract) {
	t.Helper()
	ora := oracle.New(nil, time.Minute)
	ora.SetFixedPrice(chainID, token, 1_000_000)

	contract := mock.New(chainID)
	return &Dependencies{
		Registry:  lp.NewRegistry(nil),
		Oracle:    ora,
		Validator: validator.New(validator.DefaultConfig()),
		Contract:  contract,
	}, contract
}

func TestCreateToBTC_FanOutAcceptsValidatingCandidate(t *testing.T) {
	const chainID, token = "BTC_SC", "USDX"
	nowUnix := time.Now().Unix()
	outputScript := []byte{0x00, 0x14, 0x01, 0x02, 0x03}

	deps, _ := testDeps(t, chainID, token)
	goodSrv := newToBTCLPServer(t, chainID, "lp-addr-good", token, outputScript, nowUnix)
	defer goodSrv.Close()
	discoverAndOffer(t, deps.Registry, goodSrv.URL, chainID, "ToBTC", token)

	candidates, s, err := CreateToBTC(context.Background(), deps, nowUnix, ToBTCParams{
		ChainID:            chainID,
		Token:              token,
		DestAddress:        "bc1qexampleaddress",
		OutputScript:       outputScript,
		AmountSats:         big.NewInt(500_000),
		ExactIn:            false,
		ConfirmationTarget: 1,
		MaxDeviationPPM:    1000,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, goodSrv.URL, candidates[0].IntermediaryURL)
	assert.Equal(t, swap.DirectionToBTC, s.Direction)
	assert.Equal(t, swap.StateCreated, s.State)
}

func TestCreateToBTC_RejectsEveryLPWhenAllQuotesFailValidation(t *testing.T) {
	const chainID, token = "BTC_SC", "USDX"
	nowUnix := time.Now().Unix()

	deps, _ := testDeps(t, chainID, token)
	badSrv := newRejectingLPServer(t, chainID, "lp-addr-bad")
	defer badSrv.Close()
	discoverAndOffer(t, deps.Registry, badSrv.URL, chainID, "ToBTC", token)

	_, _, err := CreateToBTC(context.Background(), deps, nowUnix, ToBTCParams{
		ChainID:            chainID,
		Token:              token,
		DestAddress:        "bc1qexampleaddress",
		OutputScript:       []byte{0xaa},
		AmountSats:         big.NewInt(500_000),
		ExactIn:            false,
		ConfirmationTarget: 1,
		MaxDeviationPPM:    1000,
	})
	require.Error(t, err)
}

func TestFanOutQuotes_NoOfferReturnsUserError(t *testing.T) {
	deps, _ := testDeps(t, "BTC_SC", "USDX")
	_, err := FanOutQuotes(context.Background(), deps, "ToBTC", "NOBODY_OFFERS_THIS", nil, nil)
	require.Error(t, err)
}

func TestFanOutQuotes_MixedGoodAndBadLPsKeepsOnlyTheGoodOne(t *testing.T) {
	const chainID, token = "BTC_SC", "USDX"
	nowUnix := time.Now().Unix()
	outputScript := []byte{0x00, 0x14, 0xde, 0xad, 0xbe, 0xef}

	deps, _ := testDeps(t, chainID, token)
	goodSrv := newToBTCLPServer(t, chainID, "lp-addr-good", token, outputScript, nowUnix)
	defer goodSrv.Close()
	badSrv := newRejectingLPServer(t, chainID, "lp-addr-bad")
	defer badSrv.Close()

	discoverAndOffer(t, deps.Registry, goodSrv.URL, chainID, "ToBTC", token)
	discoverAndOffer(t, deps.Registry, badSrv.URL, chainID, "ToBTC", token)

	candidates, _, err := CreateToBTC(context.Background(), deps, nowUnix, ToBTCParams{
		ChainID:            chainID,
		Token:              token,
		DestAddress:        "bc1qexampleaddress",
		OutputScript:       outputScript,
		AmountSats:         big.NewInt(250_000),
		ExactIn:            false,
		ConfirmationTarget: 1,
		MaxDeviationPPM:    1000,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, goodSrv.URL, candidates[0].IntermediaryURL)
}

// buildCommittableSwap assembles a Swap the way a caller would after
// picking the cheapest candidate: copying its escrow data and
// signature onto the swap record before calling Commit.
func buildCommittableSwap(t *testing.T, c Candidate, hash [32]byte) *swap.Swap {
	t.Helper()
	return &swap.Swap{
		PaymentHash: hash,
		Direction:   swap.DirectionToBTC,
		State:       swap.StateCreated,
		Data:        c.Data,
		SignatureData: &chainkit.AuthorizationSignature{
			Prefix:  c.Quote.Signature.Prefix,
			Timeout: c.Quote.Signature.Timeout,
		},
		FeeRate: &chainkit.FeeRate{ChainID: "BTC_SC", Value: big.NewInt(1)},
		ToBTC:   &swap.ToBTCPayload{Address: "bc1qexampleaddress"},
		Version: swap.CurrentVersion,
	}
}

func TestCommitClaim_DriveSwapThroughFullLifecycle(t *testing.T) {
	const chainID, token = "BTC_SC", "USDX"
	nowUnix := time.Now().Unix()
	outputScript := []byte{0x00, 0x14, 0x01}

	deps, contract := testDeps(t, chainID, token)
	srv := newToBTCLPServer(t, chainID, "lp-addr", token, outputScript, nowUnix)
	defer srv.Close()
	discoverAndOffer(t, deps.Registry, srv.URL, chainID, "ToBTC", token)

	candidates, s, err := CreateToBTC(context.Background(), deps, nowUnix, ToBTCParams{
		ChainID:            chainID,
		Token:              token,
		DestAddress:        "bc1qexampleaddress",
		OutputScript:       outputScript,
		AmountSats:         big.NewInt(100_000),
		ExactIn:            false,
		ConfirmationTarget: 1,
		MaxDeviationPPM:    1000,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	committable := buildCommittableSwap(t, candidates[0], s.PaymentHash)
	require.NoError(t, Commit(context.Background(), deps, committable))
	assert.Equal(t, swap.StateCommitted, committable.State)
	assert.NotEmpty(t, committable.CommitTxID)

	status, err := contract.GetCommitStatus(context.Background(), committable.PaymentHash)
	require.NoError(t, err)
	assert.Equal(t, chainkit.CommitStatusCommitted, status)

	require.NoError(t, Claim(context.Background(), deps, committable, nil))
	assert.Equal(t, swap.StateClaimed, committable.State)
	assert.NotEmpty(t, committable.ClaimTxID)
}

func TestRefund_TransitionsCommittedSwapToRefunded(t *testing.T) {
	const chainID, token = "BTC_SC", "USDX"
	deps, _ := testDeps(t, chainID, token)

	var hash [32]byte
	copy(hash[:], []byte("refund-test-hash-refund-test-ha"))
	data := &chainkit.EscrowData{
		Offerer: "offerer", Claimer: "lp-addr", Token: token,
		Amount: big.NewInt(1000), Hash: hash, Type: chainkit.EscrowChainNonced, PayIn: true,
	}
	s := &swap.Swap{
		PaymentHash: hash, Direction: swap.DirectionToBTC, State: swap.StateCreated,
		Data: data, SignatureData: &chainkit.AuthorizationSignature{},
		FeeRate: &chainkit.FeeRate{ChainID: chainID, Value: big.NewInt(1)},
		Version: swap.CurrentVersion,
	}
	require.NoError(t, Commit(context.Background(), deps, s))
	require.NoError(t, fsm.Transition(s, swap.StateRefundable))
	require.NoError(t, Refund(context.Background(), deps, s))
	assert.Equal(t, swap.StateRefunded, s.State)
	assert.NotEmpty(t, s.RefundTxID)
}

func TestDecodeEscrowData_RejectsMalformedHash(t *testing.T) {
	_, err := decodeEscrowData(&lp.EscrowDataDTO{Amount: "100", Hash: "not-hex"})
	require.Error(t, err)
}

func TestDecodeEscrowData_RoundTripsOptionalFields(t *testing.T) {
	var h [32]byte
	dto := &lp.EscrowDataDTO{
		Amount: "100", Hash: hex.EncodeToString(h[:]), Nonce: "7", Sequence: "3",
		SecurityDeposit: "50", ClaimerBounty: "25", Type: string(chainkit.EscrowChain),
	}
	data, err := decodeEscrowData(dto)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), data.Nonce)
	assert.Equal(t, uint64(3), data.Sequence)
	assert.Equal(t, int64(50), data.SecurityDeposit.Int64())
	assert.Equal(t, int64(25), data.ClaimerBounty.Int64())
}
