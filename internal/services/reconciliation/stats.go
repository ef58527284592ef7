package reconciliation

import (
	"context"

	"ledger-reconciliation-backend/internal/models"
)

// StatsStore supplies the raw aggregates behind get_stats.
type StatsStore interface {
	MatchCountsByState(ctx context.Context) (map[models.MatchState]int64, error)
	// AvgReviewSeconds is the mean decided_at - created_at over human-decided
	// matches. Zero when none exist.
	AvgReviewSeconds(ctx context.Context) (float64, error)
}

type StatsService struct {
	store StatsStore
}

func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// Stats reports the auto-match rate (auto-accepted over all matches), an
// accuracy proxy (human decisions that confirmed a proposed match) and the
// average review latency.
func (s *StatsService) Stats(ctx context.Context) (models.ReconciliationStats, error) {
	counts, err := s.store.MatchCountsByState(ctx)
	if err != nil {
		return models.ReconciliationStats{}, err
	}

	stats := models.ReconciliationStats{
		AutoAccepted:  counts[models.MatchStateAutoAccepted],
		Accepted:      counts[models.MatchStateAccepted],
		Rejected:      counts[models.MatchStateRejected],
		PendingReview: counts[models.MatchStatePendingReview],
	}
	for _, n := range counts {
		stats.TotalMatches += n
	}

	if stats.TotalMatches > 0 {
		stats.AutoMatchRate = float64(stats.AutoAccepted) / float64(stats.TotalMatches)
	}
	if decided := stats.Accepted + stats.Rejected; decided > 0 {
		stats.AccuracyProxy = float64(stats.Accepted) / float64(decided)
	}

	avg, err := s.store.AvgReviewSeconds(ctx)
	if err != nil {
		return stats, err
	}
	stats.AvgReviewTimeSecs = avg
	return stats, nil
}
