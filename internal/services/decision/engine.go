// Package decision applies the score thresholds, drives the match state
// machine and manages the review queue.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/matching"
)

// MatchStore is the persistence surface the decision layer needs. The gorm
// implementation lives in internal/repository.
type MatchStore interface {
	// CreateWithClaims inserts the match and claims its transaction ids, and
	// its entry ids when claimEntries is set, in one transaction. Returns
	// models.ErrExclusivity when any id is already claimed by an active match.
	CreateWithClaims(ctx context.Context, m *models.ReconciliationMatch, claimEntries bool) error
	// ClaimEntries claims entryIDs for an existing match. Entries the match
	// already owns are no-ops; an entry claimed by any other match returns
	// models.ErrExclusivity and nothing is written.
	ClaimEntries(ctx context.Context, matchID uuid.UUID, entryIDs []uuid.UUID) error
	ListEntryClaims(ctx context.Context, entryIDs []uuid.UUID) ([]models.EntryClaim, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error)
	ListByState(ctx context.Context, state models.MatchState, statementID *uuid.UUID) ([]models.ReconciliationMatch, error)
	// FindByClaimedTransaction resolves the active match holding a claim on
	// the transaction, or models.ErrDataNotFound.
	FindByClaimedTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error)
	// UpdateState moves the match to next when the stored version still equals
	// version, bumping it. Returns *models.ConflictError on a stale version.
	UpdateState(ctx context.Context, id uuid.UUID, version int, next models.MatchState, decidedBy, note string) (*models.ReconciliationMatch, error)
	ReleaseClaims(ctx context.Context, matchID uuid.UUID) error
	AppendAudit(ctx context.Context, log *models.MatchAuditLog) error
}

// LedgerWriter is the ledger collaborator's write surface.
type LedgerWriter interface {
	MarkEntriesReconciled(ctx context.Context, entryIDs []uuid.UUID, matchID uuid.UUID) error
}

// StatementWriter is the statement collaborator's write surface.
type StatementWriter interface {
	MarkTransaction(ctx context.Context, transactionID uuid.UUID, status string) error
	GetTransactions(ctx context.Context, ids []uuid.UUID) ([]models.BankTransaction, error)
}

// ScoredCandidate pairs a candidate set with its breakdown.
type ScoredCandidate struct {
	Set       matching.CandidateSet
	Breakdown models.ScoreBreakdown
}

// Outcome of deciding one transaction.
type Outcome string

const (
	OutcomeAutoAccepted  Outcome = "auto_accepted"
	OutcomePendingReview Outcome = "pending_review"
	OutcomeUnmatched     Outcome = "unmatched"
	OutcomeSkipped       Outcome = "skipped"
)

type Engine struct {
	cfg        config.Matching
	store      MatchStore
	ledger     LedgerWriter
	statements StatementWriter
	log        *zap.Logger
}

func NewEngine(cfg config.Matching, store MatchStore, ledger LedgerWriter, statements StatementWriter, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, store: store, ledger: ledger, statements: statements, log: log}
}

// Best returns the winning candidate under the deterministic tie-break:
// highest score, then fewer entries, then smaller date distance, then
// smallest candidate key.
func Best(scored []ScoredCandidate) (ScoredCandidate, bool) {
	if len(scored) == 0 {
		return ScoredCandidate{}, false
	}
	ranked := make([]ScoredCandidate, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Breakdown.Total != b.Breakdown.Total {
			return a.Breakdown.Total > b.Breakdown.Total
		}
		if len(a.Set.Entries) != len(b.Set.Entries) {
			return len(a.Set.Entries) < len(b.Set.Entries)
		}
		if a.Set.DateDistance != b.Set.DateDistance {
			return a.Set.DateDistance < b.Set.DateDistance
		}
		return a.Set.Key < b.Set.Key
	})
	return ranked[0], true
}

// Decide applies the thresholds to the best candidate for the transactions in
// txIDs (one id normally, several for a many-to-one group).
//
// score >= auto_accept: the match is created auto_accepted, entries and
// transactions are claimed and marked reconciled/matched. Claimed-elsewhere
// entries demote the match to pending_review with a note instead of failing.
// review <= score < auto_accept: pending_review, no ledger mutation.
// score < review: no record, transactions stay unmatched.
func (e *Engine) Decide(ctx context.Context, runID uuid.UUID, txIDs []uuid.UUID, scored []ScoredCandidate) (Outcome, *models.ReconciliationMatch, error) {
	best, ok := Best(scored)
	if !ok || best.Breakdown.Total < e.cfg.Thresholds.PendingReview {
		return OutcomeUnmatched, nil, nil
	}

	m := e.buildMatch(runID, txIDs, best, scored)

	if best.Breakdown.Total >= e.cfg.Thresholds.AutoAccept {
		m.State = models.MatchStateAutoAccepted
		now := time.Now()
		m.DecidedAt = &now
		m.DecidedBy = "system"

		err := e.store.CreateWithClaims(ctx, m, true)
		switch {
		case err == nil:
			if err := e.finalize(ctx, m); err != nil {
				return OutcomeAutoAccepted, m, err
			}
			return OutcomeAutoAccepted, m, nil
		case errors.Is(err, models.ErrExclusivity):
			// Another run claimed the entries first. Fall back to review.
			return e.createForReview(ctx, m, models.ReasonEntriesClaimedElsewhere,
				"entries were claimed by a concurrent run")
		default:
			return OutcomeSkipped, nil, err
		}
	}

	return e.createForReview(ctx, m, m.Reason, "")
}

func (e *Engine) buildMatch(runID uuid.UUID, txIDs []uuid.UUID, best ScoredCandidate, scored []ScoredCandidate) *models.ReconciliationMatch {
	entryIDs := make([]uuid.UUID, 0, len(best.Set.Entries))
	for _, entry := range best.Set.Entries {
		entryIDs = append(entryIDs, entry.ID)
	}

	m := &models.ReconciliationMatch{
		ID:             uuid.New(),
		RunID:          runID,
		Version:        1,
		State:          models.MatchStatePending,
		TransactionIDs: txIDs,
		EntryIDs:       entryIDs,
		TotalScore:     best.Breakdown.Total,
		CreatedAt:      time.Now(),
	}
	m.SetBreakdown(best.Breakdown)

	switch {
	case best.Set.FeeCandidate:
		// The residual is a plausible bank fee. A fee entry is suggested to the
		// reviewer, never auto-created, and the score is untouched.
		m.Reason = models.ReasonFeeSplit
		m.Note = "residual " + best.Set.Residual.Abs().String() + " suggests a bank fee entry"
	case best.Set.CrossPeriod:
		m.Reason = models.ReasonCrossPeriod
	}

	type evaluated struct {
		Key       string                `json:"candidate"`
		Entries   int                   `json:"entries"`
		Breakdown models.ScoreBreakdown `json:"breakdown"`
	}
	all := make([]evaluated, 0, len(scored))
	for _, sc := range scored {
		all = append(all, evaluated{Key: sc.Set.Key, Entries: len(sc.Set.Entries), Breakdown: sc.Breakdown})
	}
	raw, _ := json.Marshal(all)
	m.Evaluated = raw

	return m
}

func (e *Engine) createForReview(ctx context.Context, m *models.ReconciliationMatch, reason, note string) (Outcome, *models.ReconciliationMatch, error) {
	m.State = models.MatchStatePendingReview
	m.DecidedAt = nil
	m.DecidedBy = ""
	m.Reason = reason
	if note != "" {
		m.Note = note
	}

	err := e.store.CreateWithClaims(ctx, m, reason != models.ReasonEntriesClaimedElsewhere)
	if errors.Is(err, models.ErrExclusivity) {
		// Entry contention even for review: keep the match visible without
		// entry claims rather than dropping the transaction on the floor.
		m.Reason = models.ReasonEntriesClaimedElsewhere
		if m.Note == "" {
			m.Note = "entries were claimed by a concurrent run"
		}
		err = e.store.CreateWithClaims(ctx, m, false)
	}
	if err != nil {
		if errors.Is(err, models.ErrExclusivity) {
			// The transaction itself is claimed: it was matched by an earlier
			// or concurrent run, so this evaluation is a no-op. If the owning
			// match committed but its finalize step failed, finish it now so a
			// re-run heals the stranded ledger and statement statuses.
			if ferr := e.resumeFinalize(ctx, m.TransactionIDs); ferr != nil {
				return OutcomeSkipped, nil, ferr
			}
			return OutcomeSkipped, nil, nil
		}
		return OutcomeSkipped, nil, err
	}
	return OutcomePendingReview, m, nil
}

func (e *Engine) resumeFinalize(ctx context.Context, txIDs []uuid.UUID) error {
	if len(txIDs) == 0 {
		return nil
	}
	owner, err := e.store.FindByClaimedTransaction(ctx, txIDs[0])
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil
		}
		return err
	}
	if owner.State != models.MatchStateAutoAccepted && owner.State != models.MatchStateAccepted {
		return nil
	}
	return e.finalize(ctx, owner)
}

// finalize marks the ledger and statement sides of an accepted match.
func (e *Engine) finalize(ctx context.Context, m *models.ReconciliationMatch) error {
	if err := e.ledger.MarkEntriesReconciled(ctx, m.EntryIDs, m.ID); err != nil {
		return err
	}
	for _, txID := range m.TransactionIDs {
		if err := e.statements.MarkTransaction(ctx, txID, models.TransactionStatusMatched); err != nil {
			return err
		}
	}
	e.log.Info("match finalized",
		zap.String("match_id", m.ID.String()),
		zap.String("state", string(m.State)),
		zap.Float64("score", m.TotalScore))
	return nil
}
