package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Reasons attached to a match for the reviewer's benefit.
const (
	ReasonFeeSplit                = "fee_split"
	ReasonCrossPeriod             = "cross_period"
	ReasonEntriesClaimedElsewhere = "entries_claimed_elsewhere"
)

// ScoreBreakdown holds the five sub-scores and the weighted total, persisted
// with every match so a decision can be audited long after the run.
type ScoreBreakdown struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
	Business    float64 `json:"business"`
	History     float64 `json:"history"`
	Total       float64 `json:"total"`
}

type ReconciliationMatch struct {
	ID             uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	RunID          uuid.UUID                      `gorm:"index"`
	Version        int                            `gorm:"default:1"`
	State          MatchState                     `gorm:"type:varchar(32);index"`
	TransactionIDs datatypes.JSONSlice[uuid.UUID]
	EntryIDs       datatypes.JSONSlice[uuid.UUID]
	TotalScore     float64
	Breakdown      datatypes.JSON
	// Evaluated keeps the breakdowns of every candidate that was scored, not
	// just the winner, so rejected alternatives stay auditable.
	Evaluated datatypes.JSON
	Reason    string
	Note      string
	CreatedAt time.Time
	DecidedAt *time.Time
	DecidedBy string
}

func (m *ReconciliationMatch) SetBreakdown(b ScoreBreakdown) {
	raw, _ := json.Marshal(b)
	m.Breakdown = raw
}

func (m *ReconciliationMatch) GetBreakdown() ScoreBreakdown {
	var b ScoreBreakdown
	_ = json.Unmarshal(m.Breakdown, &b)
	return b
}

// EntryClaim pins a journal entry to the active match that links it. The
// primary key on EntryID is the exclusivity invariant: a second claim for the
// same entry fails at insert time. Rows are removed when the owning match
// stops being active.
type EntryClaim struct {
	EntryID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	MatchID   uuid.UUID `gorm:"index"`
	ClaimedAt time.Time
}

// TransactionClaim is the transaction-side counterpart of EntryClaim.
type TransactionClaim struct {
	TransactionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	MatchID       uuid.UUID `gorm:"index"`
	ClaimedAt     time.Time
}

// ReviewQueueEntry is the derived view handed to the review UI: the match in
// pending_review plus its transactions and computed queue priority.
type ReviewQueueEntry struct {
	Match        ReconciliationMatch `json:"match"`
	Transactions []BankTransaction   `json:"transactions"`
	Entries      []JournalEntry      `json:"entries"`
	Priority     float64             `json:"priority"`
}
