package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

// MatchRepository persists matches, their claims and the audit log. The claim
// tables' primary keys are the exclusivity invariant: a duplicate claim fails
// at insert time and surfaces as models.ErrExclusivity.
//
// Requires the DB to be opened with gorm's TranslateError so unique
// violations arrive as gorm.ErrDuplicatedKey.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) CreateWithClaims(ctx context.Context, m *models.ReconciliationMatch, claimEntries bool) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		for _, txID := range m.TransactionIDs {
			claim := models.TransactionClaim{TransactionID: txID, MatchID: m.ID, ClaimedAt: now}
			if err := tx.Create(&claim).Error; err != nil {
				return err
			}
		}
		if claimEntries {
			for _, entryID := range m.EntryIDs {
				claim := models.EntryClaim{EntryID: entryID, MatchID: m.ID, ClaimedAt: now}
				if err := tx.Create(&claim).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrExclusivity
	}
	return err
}

func (r *MatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error) {
	var m models.ReconciliationMatch
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) ListByState(ctx context.Context, state models.MatchState, statementID *uuid.UUID) ([]models.ReconciliationMatch, error) {
	query := r.db.WithContext(ctx).Where("state = ?", state)
	if statementID != nil {
		query = query.Where("run_id IN (?)",
			r.db.Model(&models.ReconciliationRun{}).Select("id").Where("statement_id = ?", *statementID))
	}

	var matches []models.ReconciliationMatch
	err := query.Order("created_at ASC, id ASC").Find(&matches).Error
	return matches, err
}

// UpdateState moves the match through the state machine under the optimistic
// version check. A row that was changed since the caller read it leaves
// RowsAffected at zero; the caller gets a ConflictError with the current
// version and must re-read.
func (r *MatchRepository) UpdateState(ctx context.Context, id uuid.UUID, version int, next models.MatchState, decidedBy, note string) (*models.ReconciliationMatch, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := m.State.Transition(next); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"state":      next,
		"version":    version + 1,
		"decided_at": now,
		"decided_by": decidedBy,
	}
	if note != "" {
		updates["note"] = note
	}

	res := r.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &models.ConflictError{MatchID: id, GivenVersion: version, CurrentVersion: current.Version}
	}

	return r.GetByID(ctx, id)
}

func (r *MatchRepository) ReleaseClaims(ctx context.Context, matchID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", matchID).Delete(&models.EntryClaim{}).Error; err != nil {
			return err
		}
		return tx.Where("match_id = ?", matchID).Delete(&models.TransactionClaim{}).Error
	})
}

func (r *MatchRepository) AppendAudit(ctx context.Context, log *models.MatchAuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ClaimEntries claims entryIDs for an existing match. Claims the match
// already holds are left alone; an entry owned by another match aborts the
// transaction with models.ErrExclusivity.
func (r *MatchRepository) ClaimEntries(ctx context.Context, matchID uuid.UUID, entryIDs []uuid.UUID) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entryID := range entryIDs {
			var existing models.EntryClaim
			err := tx.First(&existing, "entry_id = ?", entryID).Error
			switch {
			case err == nil:
				if existing.MatchID != matchID {
					return models.ErrExclusivity
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				claim := models.EntryClaim{EntryID: entryID, MatchID: matchID, ClaimedAt: now}
				if err := tx.Create(&claim).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrExclusivity
	}
	return err
}

func (r *MatchRepository) ListEntryClaims(ctx context.Context, entryIDs []uuid.UUID) ([]models.EntryClaim, error) {
	var claims []models.EntryClaim
	err := r.db.WithContext(ctx).Where("entry_id IN ?", entryIDs).Find(&claims).Error
	return claims, err
}

// FindByClaimedTransaction resolves the active match holding a claim on the
// transaction, or models.ErrDataNotFound when it is unclaimed.
func (r *MatchRepository) FindByClaimedTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error) {
	var claim models.TransactionClaim
	if err := r.db.WithContext(ctx).First(&claim, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, claim.MatchID)
}

func (r *MatchRepository) MatchCountsByState(ctx context.Context) (map[models.MatchState]int64, error) {
	type row struct {
		State models.MatchState
		Count int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.MatchState]int64, len(rows))
	for _, r := range rows {
		counts[r.State] = r.Count
	}
	return counts, nil
}

func (r *MatchRepository) AvgReviewSeconds(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Select("AVG(EXTRACT(EPOCH FROM (decided_at - created_at)))").
		Where("state IN ? AND decided_by <> ?",
			[]models.MatchState{models.MatchStateAccepted, models.MatchStateRejected}, "system").
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}
