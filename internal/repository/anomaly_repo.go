package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

type AnomalyRepository struct {
	db *gorm.DB
}

func NewAnomalyRepository(db *gorm.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

func (r *AnomalyRepository) SaveFlags(ctx context.Context, flags []models.AnomalyFlag) error {
	if len(flags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&flags).Error
}

func (r *AnomalyRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.AnomalyFlag, error) {
	var flags []models.AnomalyFlag
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("detected_at ASC").
		Find(&flags).Error
	return flags, err
}
