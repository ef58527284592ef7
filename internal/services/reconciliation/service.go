// Package reconciliation coordinates a run over one imported statement:
// candidate generation, scoring, decision and bookkeeping of the run record.
package reconciliation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/anomaly"
	"ledger-reconciliation-backend/internal/services/decision"
	"ledger-reconciliation-backend/internal/services/matching"
)

// LedgerRepository is the read surface of the ledger collaborator.
type LedgerRepository interface {
	// ListPostableEntries returns posted, unclaimed entries in the range.
	ListPostableEntries(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error)
}

// StatementRepository is the statement collaborator.
type StatementRepository interface {
	ListUnmatchedTransactions(ctx context.Context, statementID uuid.UUID) ([]models.BankTransaction, error)
	// ListTransactionHistory feeds the per-run historical aggregates. The
	// statement being reconciled is excluded from the result.
	ListTransactionHistory(ctx context.Context, excludeStatementID uuid.UUID, before time.Time, limit int) ([]models.BankTransaction, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, run *models.ReconciliationRun) error
	CompleteRun(ctx context.Context, run *models.ReconciliationRun) error
}

type AnomalyStore interface {
	SaveFlags(ctx context.Context, flags []models.AnomalyFlag) error
}

type Service struct {
	cfg        config.Matching
	ledger     LedgerRepository
	statements StatementRepository
	runs       RunStore
	anomalies  AnomalyStore
	generator  *matching.Generator
	scorer     *matching.Scorer
	engine     *decision.Engine
	detector   *anomaly.Detector
	log        *zap.Logger
	workers    int
}

func NewService(
	cfg config.Matching,
	ledger LedgerRepository,
	statements StatementRepository,
	runs RunStore,
	anomalies AnomalyStore,
	engine *decision.Engine,
	log *zap.Logger,
	workers int,
) *Service {
	if workers < 1 {
		workers = 4
	}
	return &Service{
		cfg:        cfg,
		ledger:     ledger,
		statements: statements,
		runs:       runs,
		anomalies:  anomalies,
		generator:  matching.NewGenerator(cfg),
		scorer:     matching.NewScorer(cfg),
		engine:     engine,
		detector:   anomaly.NewDetector(cfg),
		log:        log,
		workers:    workers,
	}
}

// Run reconciles every unmatched transaction of the statement. Transactions
// are processed concurrently; each one's decision commits independently, so a
// failed or repeated run can simply be re-run (terminal matches are never
// revisited and claimed transactions are skipped).
func (s *Service) Run(ctx context.Context, statementID uuid.UUID) (models.RunSummary, error) {
	if statementID == uuid.Nil {
		return models.RunSummary{}, models.NewValidationError("statement id is empty")
	}

	run := &models.ReconciliationRun{
		ID:          uuid.New(),
		StatementID: statementID,
		Status:      models.RunStatusProcessing,
		StartedAt:   time.Now(),
		CreatedAt:   time.Now(),
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return models.RunSummary{}, err
	}

	txs, err := s.statements.ListUnmatchedTransactions(ctx, statementID)
	if err != nil {
		return models.RunSummary{}, err
	}

	hist := s.buildHistory(ctx, statementID)
	s.flagAnomalies(ctx, txs, hist)

	groups := s.groupTransactions(txs)

	var mu sync.Mutex
	var auto, review, unmatched int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			outcome, err := s.processGroup(gctx, run.ID, group, hist)
			if err != nil {
				return err
			}
			mu.Lock()
			switch outcome {
			case decision.OutcomeAutoAccepted:
				auto++
			case decision.OutcomePendingReview:
				review++
			case decision.OutcomeUnmatched:
				unmatched += len(group.txs)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.RunSummary{}, err
	}

	now := time.Now()
	run.TotalTransactions = len(txs)
	run.AutoAcceptedCount = auto
	run.PendingReviewCount = review
	run.UnmatchedCount = unmatched
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	if err := s.runs.CompleteRun(ctx, run); err != nil {
		return models.RunSummary{}, err
	}

	s.log.Info("reconciliation run completed",
		zap.String("statement_id", statementID.String()),
		zap.Int("total", len(txs)),
		zap.Int("auto_accepted", auto),
		zap.Int("pending_review", review),
		zap.Int("unmatched", unmatched))

	return models.RunSummary{
		RunID:       run.ID,
		StatementID: statementID,
		Total:       len(txs),
		Auto:        auto,
		Review:      review,
		Unmatched:   unmatched,
	}, nil
}

func (s *Service) processGroup(ctx context.Context, runID uuid.UUID, group txGroup, hist *matching.History) (decision.Outcome, error) {
	if err := group.agg.Validate(); err != nil {
		// Structurally broken input never reaches scoring.
		s.log.Warn("skipping invalid transaction", zap.Error(err))
		return decision.OutcomeSkipped, nil
	}

	from, to := s.generator.Window(group.agg.Date)
	entries, err := s.ledger.ListPostableEntries(ctx, from, to)
	if err != nil {
		return decision.OutcomeSkipped, err
	}

	sets := s.generator.Generate(group.agg, entries)
	if group.aggregate {
		for i := range sets {
			sets[i].Aggregate = true
		}
	}
	if len(sets) == 0 {
		return decision.OutcomeUnmatched, nil
	}

	scored := make([]decision.ScoredCandidate, 0, len(sets))
	for _, set := range sets {
		scored = append(scored, decision.ScoredCandidate{
			Set:       set,
			Breakdown: s.scorer.Score(group.agg, set, hist),
		})
	}

	txIDs := make([]uuid.UUID, 0, len(group.txs))
	for _, tx := range group.txs {
		txIDs = append(txIDs, tx.ID)
	}
	outcome, _, err := s.engine.Decide(ctx, runID, txIDs, scored)
	return outcome, err
}

func (s *Service) buildHistory(ctx context.Context, statementID uuid.UUID) *matching.History {
	past, err := s.statements.ListTransactionHistory(ctx, statementID, time.Now(), 5000)
	if err != nil {
		// History only powers bonuses and advisory flags; a run without it is
		// still correct.
		s.log.Warn("transaction history unavailable", zap.Error(err))
		return matching.BuildHistory(nil)
	}
	return matching.BuildHistory(past)
}

func (s *Service) flagAnomalies(ctx context.Context, txs []models.BankTransaction, hist *matching.History) {
	var flags []models.AnomalyFlag
	for _, tx := range txs {
		flags = append(flags, s.detector.Detect(tx, hist)...)
	}
	if len(flags) == 0 {
		return
	}
	if err := s.anomalies.SaveFlags(ctx, flags); err != nil {
		s.log.Warn("saving anomaly flags failed", zap.Error(err))
	}
}

type txGroup struct {
	txs       []models.BankTransaction
	agg       models.BankTransaction
	aggregate bool
}

var batchMarkers = []string{"BATCH", "BULK", "SETTLEMENT"}

// groupTransactions folds same-day transactions that carry a batch marker and
// share a counterparty into one synthetic aggregate transaction, so several
// small debits can be matched against a single settlement entry.
func (s *Service) groupTransactions(txs []models.BankTransaction) []txGroup {
	type key struct {
		counterparty string
		day          string
	}
	batches := make(map[key][]models.BankTransaction)
	var groups []txGroup

	for _, tx := range txs {
		if tx.Counterparty != "" && hasBatchMarker(tx.Description) {
			k := key{counterparty: tx.Counterparty, day: tx.Date.Format("2006-01-02")}
			batches[k] = append(batches[k], tx)
			continue
		}
		groups = append(groups, txGroup{txs: []models.BankTransaction{tx}, agg: tx})
	}

	for _, members := range batches {
		if len(members) == 1 {
			groups = append(groups, txGroup{txs: members, agg: members[0]})
			continue
		}

		sum := decimal.Zero
		for _, tx := range members {
			sum = sum.Add(tx.Amount)
		}
		agg := members[0]
		agg.ID = uuid.New() // synthetic, never persisted
		agg.Amount = sum
		groups = append(groups, txGroup{txs: members, agg: agg, aggregate: true})
	}
	return groups
}

func hasBatchMarker(description string) bool {
	text := strings.ToUpper(description)
	for _, marker := range batchMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
