package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/swapcore/pkg/swap"
)

func TestCheckTransition_ToBTCHappyPath(t *testing.T) {
	assert.NoError(t, CheckTransition(swap.DirectionToBTC, swap.StateCreated, swap.StateCommitted))
	assert.NoError(t, CheckTransition(swap.DirectionToBTC, swap.StateCommitted, swap.StateClaimed))
}

func TestCheckTransition_RefundPath(t *testing.T) {
	assert.NoError(t, CheckTransition(swap.DirectionFromBTC, swap.StateCommitted, swap.StateRefundable))
	assert.NoError(t, CheckTransition(swap.DirectionFromBTC, swap.StateRefundable, swap.StateRefunded))
}

func TestCheckTransition_RejectsSkippedState(t *testing.T) {
	err := CheckTransition(swap.DirectionToBTC, swap.StateCreated, swap.StateClaimed)
	assert.Error(t, err, "CREATED must not jump straight to CLAIMED")
}

func TestCheckTransition_RejectsTerminalRegression(t *testing.T) {
	err := CheckTransition(swap.DirectionToBTC, swap.StateClaimed, swap.StateCommitted)
	assert.Error(t, err, "a terminal state must never have an outgoing edge")
}

func TestCheckTransition_FromBTCLNTable(t *testing.T) {
	assert.NoError(t, CheckTransition(swap.DirectionFromBTCLN, swap.StatePRCreated, swap.StatePRPaid))
	assert.NoError(t, CheckTransition(swap.DirectionFromBTCLN, swap.StatePRPaid, swap.StateClaimCommitted))
	assert.NoError(t, CheckTransition(swap.DirectionFromBTCLN, swap.StateClaimCommitted, swap.StateClaimClaimed))
	assert.Error(t, CheckTransition(swap.DirectionFromBTCLN, swap.StatePRCreated, swap.StateClaimCommitted))
}

func TestCheckTransition_LnForGasTable(t *testing.T) {
	assert.NoError(t, CheckTransition(swap.DirectionLnForGas, swap.StatePRCreated, swap.StateFinished))
	assert.NoError(t, CheckTransition(swap.DirectionLnForGas, swap.StatePRCreated, swap.StateExpired))
}

func TestTransition_MutatesOnSuccessOnly(t *testing.T) {
	s := &swap.Swap{Direction: swap.DirectionToBTC, State: swap.StateCreated}
	require.NoError(t, Transition(s, swap.StateCommitted))
	assert.Equal(t, swap.StateCommitted, s.State)

	err := Transition(s, swap.StateQuoteExpired)
	assert.Error(t, err)
	assert.Equal(t, swap.StateCommitted, s.State, "failed transition must not mutate state")
}
