// Command swapdemo wires every swap-core package together against the
// in-memory mock chain and a locally-served intermediary, and drives one
// ToBTC swap from quote fan-out through commit and claim. It exists to
// exercise the wiring end-to-end, the way the teacher's cmd/ entries
// drive a single chain adapter from the command line.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/chainkit/mock"
	"github.com/arcsign/swapcore/internal/config"
	"github.com/arcsign/swapcore/pkg/lp"
	"github.com/arcsign/swapcore/pkg/metrics"
	"github.com/arcsign/swapcore/pkg/oracle"
	"github.com/arcsign/swapcore/pkg/storage"
	"github.com/arcsign/swapcore/pkg/swap"
	"github.com/arcsign/swapcore/pkg/validator"
	"github.com/arcsign/swapcore/pkg/wrapper"
)

const (
	demoChainID = "DEMO_CHAIN"
	demoToken   = "DEMO_USD"
	demoLPAddr  = "demo-lp-address"
)

func main() {
	amountSats := flag.Int64("amount", 250_000, "BTC amount to swap out, in satoshis")
	confirmTarget := flag.Int("confirmations", 1, "ToBTC confirmation target")
	flag.Parse()

	if err := run(*amountSats, *confirmTarget); err != nil {
		log.Fatalf("swapdemo: %v", err)
	}
}

func run(amountSats int64, confirmTarget int) error {
	cfg := config.DefaultSDKConfig("http://127.0.0.1:0")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to bind demo intermediary listener: %w", err)
	}
	lpAddr := "http://" + lpListener.Addr().String()

	srv := &http.Server{Handler: newDemoLPHandler(demoLPAddr)}
	go func() {
		_ = srv.Serve(lpListener)
	}()
	defer srv.Close()

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	registry := lp.NewRegistry(nil)
	registry.SetLogger(sugar)
	client := lp.NewClient(lpAddr, cfg.RequestTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	intermediary, err := registry.Discover(ctx, lpAddr, client)
	if err != nil {
		return fmt.Errorf("discovery against demo intermediary failed: %w", err)
	}
	intermediary.Services = map[string]lp.ServiceOffer{
		"ToBTC": {Tokens: []string{demoToken}},
	}

	priceOracle := oracle.New(nil, cfg.PriceCacheTTL)
	priceOracle.SetLogger(sugar)
	priceOracle.SetFixedPrice(demoChainID, demoToken, 1_000_000)

	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)

	index := storage.NewSwapIndex(storage.NewMemoryKVStore())
	if err := index.LoadAll(); err != nil {
		return fmt.Errorf("failed to load swap index: %w", err)
	}

	demoValidator := validator.New(validator.DefaultConfig())
	demoValidator.SetLogger(sugar)

	deps := &wrapper.Dependencies{
		Registry:    registry,
		Oracle:      priceOracle,
		Validator:   demoValidator,
		SigVerifier: acceptAllVerifier{},
		Contract:    mock.New(demoChainID),
		Index:       index,
		Metrics:     collectors,
		Logger:      sugar,
	}

	nowUnix := time.Now().Unix()
	candidates, s, err := wrapper.CreateToBTC(ctx, deps, nowUnix, wrapper.ToBTCParams{
		ChainID:            demoChainID,
		Token:              demoToken,
		DestAddress:        "bc1qdemoaddressxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
		OutputScript:       []byte{0x00, 0x14, 0x01, 0x02, 0x03, 0x04},
		AmountSats:         big.NewInt(amountSats),
		ExactIn:            false,
		ConfirmationTarget: confirmTarget,
		MaxDeviationPPM:    cfg.MaxPriceDeviationPPM,
	})
	if err != nil {
		return fmt.Errorf("quote fan-out failed: %w", err)
	}
	best := candidates[0]
	fmt.Printf("selected intermediary %s, total fee %s sats\n", best.IntermediaryURL, best.Parsed.TotalFee)

	s.Data = best.Data
	s.SignatureData = &chainkit.AuthorizationSignature{
		Prefix:  best.Quote.Signature.Prefix,
		Timeout: best.Quote.Signature.Timeout,
	}
	s.FeeRate = &chainkit.FeeRate{ChainID: demoChainID, Value: big.NewInt(1)}

	if err := wrapper.Commit(ctx, deps, s); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	fmt.Printf("committed: tx=%s state=%s\n", s.CommitTxID, s.State)

	if err := wrapper.Claim(ctx, deps, s, nil); err != nil {
		return fmt.Errorf("claim failed: %w", err)
	}
	fmt.Printf("claimed: tx=%s state=%s\n", s.ClaimTxID, s.State)

	if err := index.Put(s); err != nil {
		return fmt.Errorf("failed to persist final swap state: %w", err)
	}
	fmt.Fprintf(os.Stdout, "swap %x finished in state %s\n", s.PaymentHash, s.State)
	return nil
}

// acceptAllVerifier is a demo-only validator.SignatureVerifier that
// accepts every authorization. A real embedder supplies one backed by
// its chain's actual signature scheme.
type acceptAllVerifier struct{}

func (acceptAllVerifier) VerifyInitAuthorization(ctx context.Context, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, lpAddress string) error {
	return nil
}

func (acceptAllVerifier) VerifyClaimInitAuthorization(ctx context.Context, data *chainkit.EscrowData, sig *chainkit.AuthorizationSignature, lpAddress string) error {
	return nil
}

// newDemoLPHandler serves the minimal /info + /tobtc/payInvoice surface
// a single well-behaved intermediary needs for this demo's quote flow.
func newDemoLPHandler(lpAddress string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		var req lp.InfoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		info := lp.InfoResponse{
			Address:  lpAddress,
			Envelope: "demo-envelope-" + req.Nonce,
			Chains:   map[string]lp.ChainIdentity{demoChainID: {Address: lpAddress}},
		}
		writeSuccess(w, info)
	})

	mux.HandleFunc("/tobtc/payInvoice", func(w http.ResponseWriter, r *http.Request) {
		var req lp.ToBTCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			http.Error(w, "bad amount", http.StatusBadRequest)
			return
		}
		nonce, err := parseDemoNonce(req.Nonce)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hash := swap.ComputeToBTCHash(nonce, amount.Uint64(), demoOutputScriptFor(req))

		escrow := lp.EscrowDataDTO{
			Claimer:       lpAddress,
			Token:         req.Token,
			Amount:        req.Amount,
			Hash:          hex.EncodeToString(hash[:]),
			Expiry:        time.Now().Unix() + 3600,
			Nonce:         req.Nonce,
			Confirmations: 0,
			Sequence:      "0",
			Type:          string(chainkit.EscrowChainNonced),
			PayIn:         true,
		}
		quote := lp.QuoteDataDTO{
			Amount:     req.Amount,
			SwapFee:    "200",
			NetworkFee: "100",
			TotalFee:   "300",
			Total:      new(big.Int).Add(amount, big.NewInt(300)).String(),
			Data:       escrow,
			Signature:  lp.SignatureDataDTO{Prefix: "demo", Timeout: time.Now().Unix() + 3600, Signature: "00"},
			FeeRate:    "1",
		}
		writeSuccess(w, quote)
	})

	return mux
}

// demoOutputScriptFor reproduces the fixed output script CreateToBTC's
// caller used, since the wire request never carries the raw script,
// only the destination address.
func demoOutputScriptFor(req lp.ToBTCRequest) []byte {
	return []byte{0x00, 0x14, 0x01, 0x02, 0x03, 0x04}
}

func parseDemoNonce(s string) (uint64, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("invalid nonce %q", s)
	}
	return v.Uint64(), nil
}

func writeSuccess(w http.ResponseWriter, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lp.ResponseEnvelope{Code: lp.CodeSuccess, Data: asMap})
}
