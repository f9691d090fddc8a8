// Package fsm owns the per-direction state transition tables (spec §4.5)
// and the single entry point, CheckTransition, every state mutation in
// the core must pass through to uphold spec invariant 2: state is
// monotone along the legal transition set.
package fsm

import (
	"fmt"

	"github.com/arcsign/swapcore/pkg/swap"
)

// Table maps a state to the set of states it may legally transition to.
type Table map[swap.State][]swap.State

var genericTable = Table{
	swap.StateCreated:    {swap.StateCommitted, swap.StateQuoteExpired, swap.StateFailed},
	swap.StateCommitted:  {swap.StateClaimed, swap.StateRefundable, swap.StateFailed},
	swap.StateRefundable: {swap.StateRefunded, swap.StateFailed},
}

var fromBTCLNTable = Table{
	swap.StatePRCreated:      {swap.StatePRPaid, swap.StateQuoteExpired, swap.StateFailed},
	swap.StatePRPaid:         {swap.StateClaimCommitted, swap.StateFailed},
	swap.StateClaimCommitted: {swap.StateClaimClaimed, swap.StateFailed},
}

var lnForGasTable = Table{
	swap.StatePRCreated: {swap.StateFinished, swap.StateExpired, swap.StateFailed},
}

// TableFor returns the legal transition table for a swap direction.
func TableFor(direction swap.Direction) (Table, error) {
	switch direction {
	case swap.DirectionToBTC, swap.DirectionToBTCLN, swap.DirectionFromBTC:
		return genericTable, nil
	case swap.DirectionFromBTCLN:
		return fromBTCLNTable, nil
	case swap.DirectionLnForGas:
		return lnForGasTable, nil
	default:
		return nil, fmt.Errorf("fsm: unknown direction %q", direction)
	}
}

// CheckTransition reports whether moving from -> to is a legal edge in
// direction's state table. A swap already in a terminal state never has
// a legal outgoing edge, matching spec invariant 3 (exactly one terminal
// state is ever reached).
func CheckTransition(direction swap.Direction, from, to swap.State) error {
	if from.IsTerminal() {
		return fmt.Errorf("fsm: %s swap already in terminal state %s, cannot move to %s", direction, from, to)
	}

	table, err := TableFor(direction)
	if err != nil {
		return err
	}

	edges, ok := table[from]
	if !ok {
		return fmt.Errorf("fsm: %s is not a valid state for direction %s", from, direction)
	}
	for _, candidate := range edges {
		if candidate == to {
			return nil
		}
	}
	return fmt.Errorf("fsm: illegal transition for %s swap: %s -> %s", direction, from, to)
}

// Transition validates and then applies from -> to on s, returning an
// error and leaving s unmodified if the transition is illegal.
func Transition(s *swap.Swap, to swap.State) error {
	if err := CheckTransition(s.Direction, s.State, to); err != nil {
		return err
	}
	s.State = to
	return nil
}
