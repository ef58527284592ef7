package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) ListUnmatchedTransactions(ctx context.Context, statementID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("statement_id = ? AND status = ?", statementID, models.TransactionStatusUnmatched).
		Order("transaction_date ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

func (r *BankTransactionRepository) GetTransactions(ctx context.Context, ids []uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&txs).Error
	return txs, err
}

func (r *BankTransactionRepository) MarkTransaction(ctx context.Context, transactionID uuid.UUID, status string) error {
	res := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("id = ?", transactionID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrDataNotFound
	}
	return nil
}

// ListTransactionHistory returns transactions from earlier statements, newest
// first, for the per-run historical aggregates. The statement under
// reconciliation is excluded so its own rows never inflate their counts.
func (r *BankTransactionRepository) ListTransactionHistory(ctx context.Context, excludeStatementID uuid.UUID, before time.Time, limit int) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("statement_id <> ? AND transaction_date < ? AND status <> ?", excludeStatementID, before, models.TransactionStatusIgnored).
		Order("transaction_date DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}
