// Package metrics exports swap-core observability via
// github.com/prometheus/client_golang, re-labeled from the teacher's
// per-RPC-method/per-tx-phase categories (src/chainadapter/metrics/
// prometheus.go) to the swap domain's own phases: quote fan-out,
// commit, post-commit polling, LP reputation strikes, and
// price-provider fail-overs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every metric this module records. New registers it
// with the prometheus.Registerer it is given (for example
// prometheus.DefaultRegisterer).
type Collectors struct {
	QuotesRequested  *prometheus.CounterVec
	QuotesAccepted   *prometheus.CounterVec
	QuotesRejected   *prometheus.CounterVec
	QuoteLatency     *prometheus.HistogramVec
	SwapsCommitted   *prometheus.CounterVec
	SwapsCompleted   *prometheus.CounterVec
	SwapsRefunded    *prometheus.CounterVec
	LPStrikes        *prometheus.CounterVec
	LPBlacklisted    *prometheus.CounterVec
	OracleFailovers  *prometheus.CounterVec
	OracleAllFailed  prometheus.Counter
	InFlightSwaps    prometheus.Gauge
}

// New constructs the collector set and, when reg is non-nil, registers
// every collector with reg. A nil reg leaves them unregistered, so tests
// can build multiple independent instances without a global-registry
// collision.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		QuotesRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_quotes_requested_total",
			Help: "Quote requests sent to intermediaries, by direction.",
		}, []string{"direction"}),
		QuotesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_quotes_accepted_total",
			Help: "Quotes that passed validation, by direction.",
		}, []string{"direction"}),
		QuotesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_quotes_rejected_total",
			Help: "Quotes rejected by the response validator, by direction and reason.",
		}, []string{"direction", "reason"}),
		QuoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swapcore_quote_latency_seconds",
			Help:    "Time from quote fan-out start to a usable quote, by direction.",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
		SwapsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_swaps_committed_total",
			Help: "Swaps that reached the COMMITTED state, by direction.",
		}, []string{"direction"}),
		SwapsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_swaps_completed_total",
			Help: "Swaps that reached a CLAIMED terminal state, by direction.",
		}, []string{"direction"}),
		SwapsRefunded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_swaps_refunded_total",
			Help: "Swaps that were refunded, by direction.",
		}, []string{"direction"}),
		LPStrikes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_lp_strikes_total",
			Help: "Validation failures attributed to an intermediary, by intermediary URL.",
		}, []string{"intermediary"}),
		LPBlacklisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_lp_blacklisted_total",
			Help: "Intermediaries blacklisted for the session, by reason.",
		}, []string{"reason"}),
		OracleFailovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapcore_oracle_failovers_total",
			Help: "Price-oracle fail-overs to a backup provider, by provider that failed.",
		}, []string{"provider"}),
		OracleAllFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swapcore_oracle_all_providers_failed_total",
			Help: "Times every configured price provider failed within one GetPrice call.",
		}),
		InFlightSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swapcore_in_flight_swaps",
			Help: "Swaps currently tracked in a non-terminal state.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.QuotesRequested, c.QuotesAccepted, c.QuotesRejected, c.QuoteLatency,
			c.SwapsCommitted, c.SwapsCompleted, c.SwapsRefunded,
			c.LPStrikes, c.LPBlacklisted,
			c.OracleFailovers, c.OracleAllFailed, c.InFlightSwaps,
		)
	}
	return c
}
