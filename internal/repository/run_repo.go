package repository

import (
	"context"

	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) SaveRun(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *RunRepository) CompleteRun(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Model(&models.ReconciliationRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"total_transactions":   run.TotalTransactions,
			"auto_accepted_count":  run.AutoAcceptedCount,
			"pending_review_count": run.PendingReviewCount,
			"unmatched_count":      run.UnmatchedCount,
			"status":               run.Status,
			"completed_at":         run.CompletedAt,
		}).Error
}
