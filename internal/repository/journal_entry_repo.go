package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

// JournalEntryRepository is the concrete ledger collaborator. Only posted,
// unclaimed entries are ever handed to the matching engine.
type JournalEntryRepository struct {
	db *gorm.DB
}

func NewJournalEntryRepository(db *gorm.DB) *JournalEntryRepository {
	return &JournalEntryRepository{db: db}
}

func (r *JournalEntryRepository) ListPostableEntries(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error) {
	if from.After(to) {
		return nil, models.ErrInvalidDateRange
	}

	var entries []models.JournalEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", models.EntryStatusPosted).
		Where("entry_date BETWEEN ? AND ?", from, to).
		Where("id NOT IN (?)", r.db.Model(&models.EntryClaim{}).Select("entry_id")).
		Order("entry_date ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *JournalEntryRepository) GetEntries(ctx context.Context, ids []uuid.UUID) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entries).Error
	return entries, err
}

func (r *JournalEntryRepository) MarkEntriesReconciled(ctx context.Context, entryIDs []uuid.UUID, matchID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.JournalEntry{}).
		Where("id IN ? AND status = ?", entryIDs, models.EntryStatusPosted).
		Update("status", models.EntryStatusReconciled).Error
}
