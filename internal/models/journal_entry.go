package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EntryStatusDraft      = "draft"
	EntryStatusPosted     = "posted"
	EntryStatusReconciled = "reconciled"
	EntryStatusVoid       = "void"
)

// Account types used by the business-logic scoring dimension.
const (
	AccountTypeIncome    = "income"
	AccountTypeExpense   = "expense"
	AccountTypeAsset     = "asset"
	AccountTypeLiability = "liability"
)

// JournalEntry is the ledger side of a match. The ledger service owns these
// rows; reconciliation only reads them and asks the ledger to flip status to
// reconciled once a match is final.
type JournalEntry struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Date            time.Time       `gorm:"column:entry_date;index"`
	Amount          decimal.Decimal `gorm:"type:numeric(18,2);index"`
	Currency        string
	Memo            string
	ReferenceNumber string
	AccountType     string
	Status          string `gorm:"index"`
	CreatedAt       time.Time
}

func (e *JournalEntry) Validate() error {
	if e.ID == uuid.Nil {
		return NewValidationError("entry id is empty")
	}
	if e.Date.IsZero() {
		return NewValidationError("entry date is empty")
	}
	if e.Currency == "" {
		return NewValidationError("entry currency is empty")
	}
	return nil
}

// Matchable reports whether the entry is eligible as a match candidate.
func (e *JournalEntry) Matchable() bool {
	return e.Status == EntryStatusPosted
}
