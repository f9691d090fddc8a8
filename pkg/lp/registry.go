package lp

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcsign/swapcore/internal/services/audit"
	"github.com/arcsign/swapcore/internal/services/ratelimit"
)

// maxStrikesPerWindow is how many rejected/failed quotes an
// intermediary may produce within strikeWindow before the registry
// blacklists it automatically.
const (
	maxStrikesPerWindow = 5
	strikeWindow        = 10 * time.Minute
)

// Registry stores discovered intermediaries keyed by URL (spec §4.2).
type Registry struct {
	mu      sync.RWMutex
	byURL   map[string]*Intermediary
	clients map[string]*IntermediaryClient
	log     *audit.AuditLogger // append-only ledger for blacklist decisions, nil disables logging
	strikes *ratelimit.Limiter

	// logger is the general structured logger; distinct from log above,
	// which is the NDJSON security trail kept verbatim in the teacher's
	// style. Wired in with SetLogger, nil-checked at every call site.
	logger *zap.SugaredLogger
}

// NewRegistry creates an empty registry. log may be nil.
func NewRegistry(log *audit.AuditLogger) *Registry {
	return &Registry{
		byURL:   make(map[string]*Intermediary),
		clients: make(map[string]*IntermediaryClient),
		log:     log,
		strikes: ratelimit.New(maxStrikesPerWindow, strikeWindow),
	}
}

// SetLogger wires a structured logger into the registry for blacklist
// and strike events. Safe to leave unset.
func (r *Registry) SetLogger(l *zap.SugaredLogger) {
	r.logger = l
}

// Discover runs the /info handshake against url, verifies the echoed
// nonce, and registers the LP. A nonce mismatch rejects the LP outright
// (spec §4.2 "Envelope verification").
func (r *Registry) Discover(ctx context.Context, clientURL string, client *IntermediaryClient) (*Intermediary, error) {
	info, nonce, err := client.GetInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp: discovery failed for %s: %w", clientURL, err)
	}

	if err := verifyEnvelopeNonce(info.Envelope, nonce); err != nil {
		return nil, fmt.Errorf("lp: rejecting %s: %w", clientURL, err)
	}

	addresses := make(map[string]string, len(info.Chains)+1)
	if info.Address != "" {
		addresses["default"] = info.Address
	}
	for chainID, identity := range info.Chains {
		addresses[chainID] = identity.Address
	}

	intermediary := &Intermediary{
		URL:             clientURL,
		AddressForChain: addresses,
		Services:        make(map[string]ServiceOffer),
		Reputation:      make(map[string]Reputation),
		Liquidity:       make(map[string]LiquidityEntry),
	}

	r.mu.Lock()
	r.byURL[clientURL] = intermediary
	r.clients[clientURL] = client
	r.mu.Unlock()

	return intermediary, nil
}

// verifyEnvelopeNonce checks that the envelope document echoes exactly
// the nonce generated for this /info call. The source spec leaves the
// envelope's exact structure to the implementer; this core only ever
// requires it to contain the nonce somewhere recoverable by a simple
// substring check, since the envelope's signature itself is verified by
// the embedder's SwapContract/crypto collaborator.
func verifyEnvelopeNonce(envelope, nonce string) error {
	if envelope == "" {
		return fmt.Errorf("empty discovery envelope")
	}
	if !containsNonce(envelope, nonce) {
		return fmt.Errorf("discovery envelope nonce mismatch")
	}
	return nil
}

func containsNonce(envelope, nonce string) bool {
	for i := 0; i+len(nonce) <= len(envelope); i++ {
		if envelope[i:i+len(nonce)] == nonce {
			return true
		}
	}
	return false
}

// Get returns the intermediary registered at clientURL, if any.
func (r *Registry) Get(clientURL string) (*Intermediary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lp, ok := r.byURL[clientURL]
	return lp, ok
}

// ClientFor returns the HTTP client bound to clientURL, if any.
func (r *Registry) ClientFor(clientURL string) (*IntermediaryClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientURL]
	return c, ok
}

// ListForToken returns every registered, non-blacklisted intermediary
// that advertises swapType for token.
func (r *Registry) ListForToken(swapType, token string) []*Intermediary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Intermediary
	for _, lp := range r.byURL {
		if lp.Blacklisted {
			continue
		}
		offer, ok := lp.OfferFor(swapType)
		if !ok {
			continue
		}
		for _, t := range offer.Tokens {
			if t == token {
				out = append(out, lp)
				break
			}
		}
	}
	return out
}

// Blacklist marks clientURL untrusted for the remainder of the session
// and records the reason to the audit ledger, if one is configured
// (spec §4.3: "no automatic blacklist persistence").
func (r *Registry) Blacklist(clientURL, reason string) {
	r.mu.Lock()
	lp, ok := r.byURL[clientURL]
	if ok {
		lp.Blacklisted = true
	}
	r.mu.Unlock()

	if r.log != nil {
		_ = r.log.LogOperation(audit.AuditLogEntry{
			WalletID:      clientURL,
			Operation:     "LP_BLACKLIST",
			Status:        "FAILURE",
			FailureReason: reason,
		})
	}
	if r.logger != nil {
		r.logger.Warnw("lp: intermediary blacklisted", "url", clientURL, "reason", reason)
	}
}

// RecordStrike counts one validation failure against clientURL and
// blacklists it automatically once maxStrikesPerWindow is exceeded
// within strikeWindow, so a single misbehaving LP can't be retried
// forever by a caller that keeps re-fanning-out.
func (r *Registry) RecordStrike(clientURL, reason string) {
	if r.strikes.Allow(clientURL) {
		return
	}
	if r.logger != nil {
		r.logger.Infow("lp: strike threshold exceeded, blacklisting", "url", clientURL, "reason", reason)
	}
	r.Blacklist(clientURL, fmt.Sprintf("exceeded %d strikes in %s: %s", maxStrikesPerWindow, strikeWindow, reason))
}

// RecordSuccess updates an intermediary's reputation after a swap
// completes successfully for token.
func (r *Registry) RecordSuccess(clientURL, token string, volume *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.byURL[clientURL]
	if !ok {
		return
	}
	rep := lp.Reputation[token]
	if rep.SuccessVolume == nil {
		rep.SuccessVolume = big.NewInt(0)
	}
	rep.SuccessVolume.Add(rep.SuccessVolume, volume)
	rep.SuccessCount++
	lp.Reputation[token] = rep
}

// RecordFailure updates an intermediary's reputation after a swap fails
// for token.
func (r *Registry) RecordFailure(clientURL, token string, volume *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.byURL[clientURL]
	if !ok {
		return
	}
	rep := lp.Reputation[token]
	if rep.FailVolume == nil {
		rep.FailVolume = big.NewInt(0)
	}
	rep.FailVolume.Add(rep.FailVolume, volume)
	rep.FailCount++
	lp.Reputation[token] = rep
}

// UpdateLiquidity stores a fresh balance reading for clientURL/token,
// consulted by the wrapper's intermediary liquidity check (spec §4.3).
func (r *Registry) UpdateLiquidity(clientURL, token string, balance *big.Int, asOf int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.byURL[clientURL]
	if !ok {
		return
	}
	lp.Liquidity[token] = LiquidityEntry{Balance: balance, AsOf: asOf}
}
