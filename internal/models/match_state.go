package models

import "fmt"

// MatchState is the lifecycle state of a ReconciliationMatch. Transitions go
// through the table below; anything else is rejected, so a terminal match can
// never be resurrected by a stray update.
type MatchState string

const (
	MatchStatePending       MatchState = "pending"
	MatchStateAutoAccepted  MatchState = "auto_accepted"
	MatchStatePendingReview MatchState = "pending_review"
	MatchStateAccepted      MatchState = "accepted"
	MatchStateRejected      MatchState = "rejected"
	MatchStateSuperseded    MatchState = "superseded"
)

var matchTransitions = map[MatchState][]MatchState{
	MatchStatePending:       {MatchStateAutoAccepted, MatchStatePendingReview},
	MatchStatePendingReview: {MatchStateAccepted, MatchStateRejected, MatchStateSuperseded},
}

// Valid reports whether s is a known state.
func (s MatchState) Valid() bool {
	switch s {
	case MatchStatePending, MatchStateAutoAccepted, MatchStatePendingReview,
		MatchStateAccepted, MatchStateRejected, MatchStateSuperseded:
		return true
	}
	return false
}

// Terminal states are never re-evaluated by a reconciliation run.
func (s MatchState) Terminal() bool {
	switch s {
	case MatchStateAutoAccepted, MatchStateAccepted, MatchStateRejected, MatchStateSuperseded:
		return true
	}
	return false
}

// Active states hold claims on their linked transactions and entries.
func (s MatchState) Active() bool {
	return s != MatchStateRejected && s != MatchStateSuperseded
}

// CanTransition reports whether s -> next is allowed.
func (s MatchState) CanTransition(next MatchState) bool {
	for _, allowed := range matchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next or an error when the move is not in the table.
func (s MatchState) Transition(next MatchState) (MatchState, error) {
	if !next.Valid() {
		return s, NewValidationError(fmt.Sprintf("unknown match state %q", next))
	}
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}
