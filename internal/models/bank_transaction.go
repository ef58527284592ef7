package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionStatusUnmatched = "unmatched"
	TransactionStatusMatched   = "matched"
	TransactionStatusIgnored   = "ignored"
)

type BankTransaction struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StatementID         uuid.UUID       `gorm:"index"`
	Date                time.Time       `gorm:"column:transaction_date;index"`
	Amount              decimal.Decimal `gorm:"type:numeric(18,2);index"`
	Currency            string
	Description         string
	Counterparty        string `gorm:"index"`
	CounterpartyAccount string
	ReferenceNumber     string
	Status              string `gorm:"index;default:unmatched"`
	CreatedAt           time.Time
}

// Validate rejects structurally broken rows before they reach scoring.
func (t *BankTransaction) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("transaction id is empty")
	}
	if t.Date.IsZero() {
		return NewValidationError("transaction date is empty")
	}
	if t.Amount.IsZero() {
		return NewValidationError("transaction amount is zero")
	}
	if t.Currency == "" {
		return NewValidationError("transaction currency is empty")
	}
	return nil
}
