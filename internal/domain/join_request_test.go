package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	statuses := []JoinRequestStatus{JoinRequestStatusPending, JoinRequestStatusAccepted, JoinRequestStatusRejected}
	for _, from := range statuses {
		for _, to := range statuses {
			want := from == JoinRequestStatusPending && to != JoinRequestStatusPending
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, JoinRequestStatusPending.IsTerminal())
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("accept")
	require.NoError(t, err)
	assert.Equal(t, JoinRequestStatusAccepted, d.Status())

	d, err = ParseDecision("reject")
	require.NoError(t, err)
	assert.Equal(t, JoinRequestStatusRejected, d.Status())

	_, err = ParseDecision("Accept")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolutionMissing(t *testing.T) {
	accept := &Resolution{Decision: DecisionAccept}
	assert.Equal(t, []ResolutionStep{StepStatus, StepMembership, StepCounters}, accept.Missing())
	accept.MarkApplied(StepStatus)
	accept.MarkApplied(StepStatus)
	assert.Equal(t, []ResolutionStep{StepStatus}, accept.Applied)
	assert.Equal(t, []ResolutionStep{StepMembership, StepCounters}, accept.Missing())

	reject := &Resolution{Decision: DecisionReject, Applied: []ResolutionStep{StepStatus, StepCounters}}
	assert.Empty(t, reject.Missing())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	perr := &PartialFailureError{Resolution: &Resolution{Request: JoinRequest{ID: "r1"}}, Err: cause}
	assert.ErrorIs(t, perr, ErrPartialFailure)
	assert.ErrorIs(t, perr, cause)

	rerr := &ReconciliationError{RequestID: "r1", Missing: []ResolutionStep{StepCounters}, Err: cause}
	assert.ErrorIs(t, rerr, ErrWriteFailed)
	assert.ErrorIs(t, rerr, cause)

	assert.True(t, IsAlreadyHandled(fmt.Errorf("x: %w", ErrNotFound)))
	assert.True(t, IsAlreadyHandled(fmt.Errorf("x: %w", ErrInvalidState)))
	assert.False(t, IsAlreadyHandled(rerr))
}

func TestMembershipID(t *testing.T) {
	assert.Equal(t, "tank_user", MembershipID("tank", "user"))
}
