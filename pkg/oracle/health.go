package oracle

import "sync"

// HealthTracker holds each provider's tri-state operational flag (spec
// §4.1): true (use exclusively), false (skip until reset), or nil/null
// (untested, eligible alongside true providers).
type HealthTracker struct {
	mu    sync.Mutex
	state map[string]*bool
}

// NewHealthTracker creates a tracker with every name starting at null.
func NewHealthTracker(names []string) *HealthTracker {
	state := make(map[string]*bool, len(names))
	for _, n := range names {
		state[n] = nil
	}
	return &HealthTracker{state: state}
}

func boolPtr(b bool) *bool { return &b }

// MarkOperational records a successful call from provider name.
func (h *HealthTracker) MarkOperational(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state[name] = boolPtr(true)
}

// MarkFailed records a failed call from provider name.
func (h *HealthTracker) MarkFailed(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state[name] = boolPtr(false)
}

// Status returns name's current flag (nil means untested).
func (h *HealthTracker) Status(name string) *bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state[name]
}

// SoleOperational returns the name of the single provider marked
// operational=true, if exactly the fail-over fast path applies (step 1
// of spec §4.1: "if any provider is operational=true, call only it").
// Providers are checked in the order given to preserve a stable
// preference when more than one happens to be true.
func (h *HealthTracker) SoleOperational(order []string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range order {
		if s := h.state[n]; s != nil && *s {
			return n, true
		}
	}
	return "", false
}

// Candidates returns providers eligible for the racing fan-out: every
// provider with state ∈ {true, null}. If that set is empty, every
// provider is reset to null and returned (spec §4.1 step 2).
func (h *HealthTracker) Candidates(order []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var eligible []string
	for _, n := range order {
		s := h.state[n]
		if s == nil || *s {
			eligible = append(eligible, n)
		}
	}
	if len(eligible) > 0 {
		return eligible
	}

	for _, n := range order {
		h.state[n] = nil
	}
	return append([]string(nil), order...)
}
