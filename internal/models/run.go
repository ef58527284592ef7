package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
)

// ReconciliationRun records one pass over a statement's unmatched
// transactions. Runs are idempotent, so re-running a statement creates a new
// row whose counts reflect only what that pass actually did.
type ReconciliationRun struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	StatementID        uuid.UUID `gorm:"index"`
	TotalTransactions  int
	AutoAcceptedCount  int
	PendingReviewCount int
	UnmatchedCount     int
	Status             string
	StartedAt          time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
}

// RunSummary is what run_reconciliation hands back to the caller.
type RunSummary struct {
	RunID       uuid.UUID `json:"run_id"`
	StatementID uuid.UUID `json:"statement_id"`
	Total       int       `json:"total"`
	Auto        int       `json:"auto_accepted"`
	Review      int       `json:"pending_review"`
	Unmatched   int       `json:"unmatched"`
}

// ReconciliationStats aggregates decision outcomes across runs.
type ReconciliationStats struct {
	TotalMatches      int64   `json:"total_matches"`
	AutoAccepted      int64   `json:"auto_accepted"`
	Accepted          int64   `json:"accepted"`
	Rejected          int64   `json:"rejected"`
	PendingReview     int64   `json:"pending_review"`
	AutoMatchRate     float64 `json:"auto_match_rate"`
	AccuracyProxy     float64 `json:"accuracy_proxy"`
	AvgReviewTimeSecs float64 `json:"avg_review_time_seconds"`
}
