package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StatePending, StateStarted},
		{StatePending, StateFailed},
		{StateStarted, StateNeedsPayment},
		{StateStarted, StateProcessing},
		{StateStarted, StateFailed},
		{StateNeedsPayment, StateStarted},
		{StateNeedsPayment, StateProcessing},
		{StateNeedsPayment, StateFailed},
		{StateProcessing, StatePendingApproval},
		{StateProcessing, StateCompleted},
		{StateProcessing, StateFailed},
		{StatePendingApproval, StateCompleted},
		{StatePendingApproval, StateFailed},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to State }{
		{StatePending, StateProcessing},
		{StatePending, StateCompleted},
		{StateStarted, StateCompleted},
		{StateNeedsPayment, StatePendingApproval},
		{StateCompleted, StateFailed},
		{StateCompleted, StateProcessing},
		{StateFailed, StateStarted},
		{StateFailed, StateCompleted},
		{StatePendingApproval, StateProcessing},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	for _, s := range []State{StatePending, StateStarted, StateNeedsPayment, StateProcessing, StatePendingApproval} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}
