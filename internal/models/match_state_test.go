package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchStateTransitions(t *testing.T) {
	tests := []struct {
		from, to MatchState
		ok       bool
	}{
		{MatchStatePending, MatchStateAutoAccepted, true},
		{MatchStatePending, MatchStatePendingReview, true},
		{MatchStatePending, MatchStateAccepted, false},
		{MatchStatePendingReview, MatchStateAccepted, true},
		{MatchStatePendingReview, MatchStateRejected, true},
		{MatchStatePendingReview, MatchStateSuperseded, true},
		{MatchStatePendingReview, MatchStateAutoAccepted, false},
		{MatchStateAutoAccepted, MatchStateRejected, false},
		{MatchStateAccepted, MatchStatePendingReview, false},
		{MatchStateRejected, MatchStateAccepted, false},
		{MatchStateSuperseded, MatchStatePendingReview, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := tt.from.Transition(tt.to)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, got)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, got)
			}
		})
	}
}

func TestMatchStateTransitionRejectsUnknownState(t *testing.T) {
	_, err := MatchStatePending.Transition(MatchState("bogus"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMatchStateClassification(t *testing.T) {
	assert.False(t, MatchStatePending.Terminal())
	assert.False(t, MatchStatePendingReview.Terminal())
	assert.True(t, MatchStateAutoAccepted.Terminal())
	assert.True(t, MatchStateAccepted.Terminal())
	assert.True(t, MatchStateRejected.Terminal())
	assert.True(t, MatchStateSuperseded.Terminal())

	// Only rejected and superseded matches give their claims back.
	assert.True(t, MatchStateAutoAccepted.Active())
	assert.True(t, MatchStatePendingReview.Active())
	assert.False(t, MatchStateRejected.Active())
	assert.False(t, MatchStateSuperseded.Active())
}
