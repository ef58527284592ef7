package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDataNotFound        = errors.New("data not found")
	ErrInvalidTransition   = errors.New("invalid match state transition")
	ErrExclusivity         = errors.New("entry or transaction already claimed by an active match")
	ErrVersionConflict     = errors.New("stale version, reload and retry")
	ErrInvalidDateRange    = errors.New("date range start is after end")
	ErrInvalidReviewAction = errors.New("invalid review action")
)

// NewValidationError wraps ErrValidation so callers can errors.Is against the
// sentinel while still seeing what exactly was malformed.
func NewValidationError(detail string) error {
	return fmt.Errorf("%w: %s", ErrValidation, detail)
}

// ConflictError is returned when a review action carries a version that no
// longer matches the stored match. The caller must re-read and retry; nothing
// was written.
type ConflictError struct {
	MatchID        uuid.UUID
	GivenVersion   int
	CurrentVersion int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("match %s: version %d is stale (current %d)", e.MatchID, e.GivenVersion, e.CurrentVersion)
}

func (e *ConflictError) Unwrap() error { return ErrVersionConflict }
