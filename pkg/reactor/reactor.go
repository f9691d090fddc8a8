// Package reactor implements the swap core's event reactor (spec §2
// "Event reactor"): it drains a chain's ChainEvents stream and advances
// each affected swap's state machine as InitializeEvent, ClaimEvent,
// and RefundEvent arrive on-chain, the event-driven complement to
// pkg/wrapper's request-driven Commit/Claim/Refund. An embedder whose
// watchdog polling (GetCommitStatus) races with or misses a chain
// reorg-free confirmation still converges on the same state through
// this path, since every mutation here goes through the same
// fsm.Transition table and is therefore idempotent with a concurrent
// wrapper call for the same swap.
package reactor

import (
	"context"
	"fmt"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/pkg/fsm"
	"github.com/arcsign/swapcore/pkg/metrics"
	"github.com/arcsign/swapcore/pkg/storage"
	"github.com/arcsign/swapcore/pkg/swap"
)

// Reactor drains one chain's ChainEvents stream into a SwapIndex. One
// Reactor instance covers one SwapContract's events; an embedder wiring
// multiple chains runs one Reactor per chain, each against its own
// Index (or a shared one, if swaps across chains share payment-hash
// keyspace).
type Reactor struct {
	Events  chainkit.ChainEvents
	Index   *storage.SwapIndex
	Metrics *metrics.Collectors
}

// New returns a Reactor draining src's events into index.
func New(src chainkit.ChainEvents, index *storage.SwapIndex, collectors *metrics.Collectors) *Reactor {
	return &Reactor{Events: src, Index: index, Metrics: collectors}
}

// Run subscribes and processes events until ctx is cancelled or the
// event stream closes. Intended to run in its own goroutine for the
// lifetime of the embedder's process. Returns nil on clean shutdown,
// an error only if Subscribe itself fails.
func (r *Reactor) Run(ctx context.Context) error {
	events, err := r.Events.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("reactor: failed to subscribe to chain events: %w", err)
	}
	return r.drain(ctx, events)
}

// drain is split out from Run so tests can Subscribe synchronously
// first (avoiding a race against ChainEvents implementations, like
// chainkit/mock, that drop events with no subscriber yet listening)
// and only then start the processing loop.
func (r *Reactor) drain(ctx context.Context, events <-chan chainkit.ChainEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(ev)
		}
	}
}

func (r *Reactor) handle(ev chainkit.ChainEvent) {
	switch {
	case ev.Initialize != nil:
		r.apply(ev.Initialize.PaymentHash, func(s *swap.Swap) { r.applyInitialize(s, ev.Initialize) })
	case ev.Claim != nil:
		r.apply(ev.Claim.PaymentHash, func(s *swap.Swap) { r.applyClaim(s, ev.Claim) })
	case ev.Refund != nil:
		r.apply(ev.Refund.PaymentHash, func(s *swap.Swap) { r.applyRefund(s, ev.Refund) })
	}
}

// apply looks up paymentHash in the index and runs fn against it,
// persisting the result. A swap not found in the index goes to
// storage.SwapIndex.BufferEvent: before the index's startup LoadAll has
// run the event is buffered for replay; after it, an event for a
// payment hash the index does not hold is dropped.
func (r *Reactor) apply(paymentHash [32]byte, fn func(*swap.Swap)) {
	if s, ok := r.Index.Get(paymentHash); ok {
		fn(s)
		_ = r.Index.Put(s)
		return
	}
	r.Index.BufferEvent(paymentHash, fn)
}

// applyInitialize advances CREATED -> COMMITTED (or, for FromBTCLN,
// PR_PAID -> CLAIM_COMMITTED). A swap not in the eligible source state
// is left untouched: either a wrapper.Commit call already raced ahead
// of the event, or the event arrived for a state it doesn't apply to.
func (r *Reactor) applyInitialize(s *swap.Swap, ev *chainkit.InitializeEvent) {
	var target swap.State
	switch {
	case s.Direction == swap.DirectionFromBTCLN && s.State == swap.StatePRPaid:
		target = swap.StateClaimCommitted
	case s.State == swap.StateCreated:
		target = swap.StateCommitted
	default:
		return
	}
	if err := fsm.Transition(s, target); err != nil {
		return
	}
	if s.CommitTxID == "" {
		s.CommitTxID = ev.TxID
	}
	if r.Metrics != nil {
		r.Metrics.SwapsCommitted.WithLabelValues(string(s.Direction)).Inc()
	}
}

// applyClaim advances COMMITTED -> CLAIMED (or, for FromBTCLN,
// CLAIM_COMMITTED -> CLAIM_CLAIMED).
func (r *Reactor) applyClaim(s *swap.Swap, ev *chainkit.ClaimEvent) {
	var target swap.State
	switch {
	case s.Direction == swap.DirectionFromBTCLN && s.State == swap.StateClaimCommitted:
		target = swap.StateClaimClaimed
	case s.State == swap.StateCommitted:
		target = swap.StateClaimed
	default:
		return
	}
	if err := fsm.Transition(s, target); err != nil {
		return
	}
	if s.ClaimTxID == "" {
		s.ClaimTxID = ev.TxID
	}
	if r.Metrics != nil {
		r.Metrics.SwapsCompleted.WithLabelValues(string(s.Direction)).Inc()
	}
}

// applyRefund advances a swap to REFUNDED. A swap still COMMITTED when
// the refund lands passes through REFUNDABLE first, since the generic
// table has no direct COMMITTED -> REFUNDED edge (spec §4.5: a swap is
// only refundable once its signature authorization has expired).
func (r *Reactor) applyRefund(s *swap.Swap, ev *chainkit.RefundEvent) {
	if s.State == swap.StateCommitted {
		if err := fsm.Transition(s, swap.StateRefundable); err != nil {
			return
		}
	}
	if s.State != swap.StateRefundable {
		return
	}
	if err := fsm.Transition(s, swap.StateRefunded); err != nil {
		return
	}
	if s.RefundTxID == "" {
		s.RefundTxID = ev.TxID
	}
	if r.Metrics != nil {
		r.Metrics.SwapsRefunded.WithLabelValues(string(s.Direction)).Inc()
	}
}
