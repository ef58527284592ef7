package decision

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
)

// LedgerReader is the read side of the ledger collaborator used when
// assembling review-queue entries.
type LedgerReader interface {
	GetEntries(ctx context.Context, ids []uuid.UUID) ([]models.JournalEntry, error)
}

// Review actions accepted by Decide.
const (
	ActionAccept    = "accept"
	ActionReject    = "reject"
	ActionSupersede = "supersede"
)

// ReviewQueue orders pending_review matches and applies human decisions with
// optimistic locking: every mutation checks the caller's version and bumps
// it, so a stale client gets a ConflictError instead of overwriting.
type ReviewQueue struct {
	cfg        config.Matching
	store      MatchStore
	ledger     LedgerWriter
	entries    LedgerReader
	statements StatementWriter
	log        *zap.Logger
}

func NewReviewQueue(cfg config.Matching, store MatchStore, ledger LedgerWriter, entries LedgerReader, statements StatementWriter, log *zap.Logger) *ReviewQueue {
	return &ReviewQueue{cfg: cfg, store: store, ledger: ledger, entries: entries, statements: statements, log: log}
}

// ListFilters narrows the queue listing.
type ListFilters struct {
	StatementID  *uuid.UUID
	Counterparty string
	Limit        int
}

// List returns pending_review matches ordered by priority, highest first.
func (q *ReviewQueue) List(ctx context.Context, filters ListFilters) ([]models.ReviewQueueEntry, error) {
	matches, err := q.store.ListByState(ctx, models.MatchStatePendingReview, filters.StatementID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ReviewQueueEntry, 0, len(matches))
	for _, m := range matches {
		txs, err := q.statements.GetTransactions(ctx, m.TransactionIDs)
		if err != nil {
			return nil, err
		}
		if filters.Counterparty != "" && !anyCounterparty(txs, filters.Counterparty) {
			continue
		}
		linked, err := q.entries.GetEntries(ctx, m.EntryIDs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.ReviewQueueEntry{
			Match:        m,
			Transactions: txs,
			Entries:      linked,
			Priority:     q.Priority(m, txs),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority > entries[j].Priority
	})

	if filters.Limit > 0 && len(entries) > filters.Limit {
		entries = entries[:filters.Limit]
	}
	return entries, nil
}

// Priority ranks the queue: transactions over the large-amount threshold
// first, then medium-confidence matches (more likely to need a human's eye),
// then high-confidence ones. Amount magnitude breaks ties within a tier.
func (q *ReviewQueue) Priority(m models.ReconciliationMatch, txs []models.BankTransaction) float64 {
	magnitude := 0.0
	large := false
	for _, tx := range txs {
		amt, _ := tx.Amount.Abs().Float64()
		if amt > magnitude {
			magnitude = amt
		}
		if amt >= q.cfg.LargeAmountThreshold {
			large = true
		}
	}

	tier := 1.0
	switch {
	case large:
		tier = 3
	case m.TotalScore < 75:
		tier = 2
	}

	threshold := q.cfg.LargeAmountThreshold
	if threshold <= 0 {
		threshold = 1
	}
	return tier*1e6 + clamp(magnitude/threshold*1000, 0, 1e6-1)
}

// DecideRequest is one human decision on a match.
type DecideRequest struct {
	MatchID uuid.UUID
	Action  string
	Version int
	Actor   string
	Note    string
	// ReplacementEntryIDs is required for supersede: the entry set the
	// reviewer picked instead.
	ReplacementEntryIDs []uuid.UUID
}

// Decide applies a single accept/reject/supersede.
func (q *ReviewQueue) Decide(ctx context.Context, req DecideRequest) (*models.ReconciliationMatch, error) {
	switch req.Action {
	case ActionAccept:
		return q.accept(ctx, req)
	case ActionReject:
		return q.reject(ctx, req)
	case ActionSupersede:
		return q.supersede(ctx, req)
	default:
		return nil, models.ErrInvalidReviewAction
	}
}

func (q *ReviewQueue) accept(ctx context.Context, req DecideRequest) (*models.ReconciliationMatch, error) {
	m, err := q.store.GetByID(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	// A match created while its entries were contested holds no entry claims.
	// Accepting must win those claims first, or two active matches would
	// share an entry.
	if err := q.store.ClaimEntries(ctx, m.ID, m.EntryIDs); err != nil {
		return nil, err
	}

	m, err = q.store.UpdateState(ctx, req.MatchID, req.Version, models.MatchStateAccepted, req.Actor, req.Note)
	if err != nil {
		return nil, err
	}

	if err := q.ledger.MarkEntriesReconciled(ctx, m.EntryIDs, m.ID); err != nil {
		return nil, err
	}
	for _, txID := range m.TransactionIDs {
		if err := q.statements.MarkTransaction(ctx, txID, models.TransactionStatusMatched); err != nil {
			return nil, err
		}
	}

	q.audit(ctx, m, ActionAccept, models.MatchStatePendingReview, req)
	return m, nil
}

func (q *ReviewQueue) reject(ctx context.Context, req DecideRequest) (*models.ReconciliationMatch, error) {
	m, err := q.store.UpdateState(ctx, req.MatchID, req.Version, models.MatchStateRejected, req.Actor, req.Note)
	if err != nil {
		return nil, err
	}

	if err := q.store.ReleaseClaims(ctx, m.ID); err != nil {
		return nil, err
	}
	for _, txID := range m.TransactionIDs {
		if err := q.statements.MarkTransaction(ctx, txID, models.TransactionStatusUnmatched); err != nil {
			return nil, err
		}
	}

	q.audit(ctx, m, ActionReject, models.MatchStatePendingReview, req)
	return m, nil
}

// supersede retires the old match and records the reviewer's replacement as a
// new accepted match. The old record stays for audit; only its claims are
// released.
func (q *ReviewQueue) supersede(ctx context.Context, req DecideRequest) (*models.ReconciliationMatch, error) {
	if len(req.ReplacementEntryIDs) == 0 {
		return nil, models.NewValidationError("supersede requires replacement entry ids")
	}

	// Refuse replacements claimed by a third match before retiring anything,
	// so a losing supersede leaves the old match and its claims intact.
	claims, err := q.store.ListEntryClaims(ctx, req.ReplacementEntryIDs)
	if err != nil {
		return nil, err
	}
	for _, claim := range claims {
		if claim.MatchID != req.MatchID {
			return nil, models.ErrExclusivity
		}
	}

	old, err := q.store.UpdateState(ctx, req.MatchID, req.Version, models.MatchStateSuperseded, req.Actor, req.Note)
	if err != nil {
		return nil, err
	}
	if err := q.store.ReleaseClaims(ctx, old.ID); err != nil {
		return nil, err
	}

	now := time.Now()
	replacement := &models.ReconciliationMatch{
		ID:             uuid.New(),
		RunID:          old.RunID,
		Version:        1,
		State:          models.MatchStateAccepted,
		TransactionIDs: old.TransactionIDs,
		EntryIDs:       req.ReplacementEntryIDs,
		TotalScore:     old.TotalScore,
		Breakdown:      old.Breakdown,
		Reason:         "manual_replacement",
		Note:           "supersedes match " + old.ID.String(),
		CreatedAt:      now,
		DecidedAt:      &now,
		DecidedBy:      req.Actor,
	}
	if err := q.store.CreateWithClaims(ctx, replacement, true); err != nil {
		return nil, err
	}

	if err := q.ledger.MarkEntriesReconciled(ctx, replacement.EntryIDs, replacement.ID); err != nil {
		return nil, err
	}
	for _, txID := range replacement.TransactionIDs {
		if err := q.statements.MarkTransaction(ctx, txID, models.TransactionStatusMatched); err != nil {
			return nil, err
		}
	}

	q.audit(ctx, old, ActionSupersede, models.MatchStatePendingReview, req)
	return replacement, nil
}

// BatchResult reports one item of a batch decision.
type BatchResult struct {
	MatchID uuid.UUID `json:"match_id"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
}

// BatchDecide applies the same action to several matches. Items fail
// individually; a stale version on one match does not stop the rest.
func (q *ReviewQueue) BatchDecide(ctx context.Context, reqs []DecideRequest) []BatchResult {
	results := make([]BatchResult, 0, len(reqs))
	for _, req := range reqs {
		_, err := q.Decide(ctx, req)
		r := BatchResult{MatchID: req.MatchID, OK: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results
}

// DecideByCounterparty accepts or rejects every pending match whose
// transactions share the given counterparty. Versions are read server-side;
// each update is still individually version-checked.
func (q *ReviewQueue) DecideByCounterparty(ctx context.Context, counterparty, action, actor string) ([]BatchResult, error) {
	if action != ActionAccept && action != ActionReject {
		return nil, models.ErrInvalidReviewAction
	}
	entries, err := q.List(ctx, ListFilters{Counterparty: counterparty})
	if err != nil {
		return nil, err
	}

	reqs := make([]DecideRequest, 0, len(entries))
	for _, e := range entries {
		reqs = append(reqs, DecideRequest{
			MatchID: e.Match.ID,
			Action:  action,
			Version: e.Match.Version,
			Actor:   actor,
			Note:    "batch decision by counterparty " + counterparty,
		})
	}
	return q.BatchDecide(ctx, reqs), nil
}

// BulkIgnore marks non-financial noise (card notifications, zero-fee
// advices) as ignored and rejects any review match holding them, so their
// entry and transaction claims are released.
func (q *ReviewQueue) BulkIgnore(ctx context.Context, transactionIDs []uuid.UUID, actor string) []BatchResult {
	results := make([]BatchResult, 0, len(transactionIDs))
	for _, txID := range transactionIDs {
		r := BatchResult{OK: true}

		m, err := q.store.FindByClaimedTransaction(ctx, txID)
		if err != nil && !errors.Is(err, models.ErrDataNotFound) {
			results = append(results, BatchResult{Error: err.Error()})
			continue
		}
		if err == nil && m.State == models.MatchStatePendingReview {
			r.MatchID = m.ID
			if _, err := q.reject(ctx, DecideRequest{
				MatchID: m.ID,
				Action:  ActionReject,
				Version: m.Version,
				Actor:   actor,
				Note:    "transaction ignored",
			}); err != nil {
				r.OK = false
				r.Error = err.Error()
				results = append(results, r)
				continue
			}
		}

		if err := q.statements.MarkTransaction(ctx, txID, models.TransactionStatusIgnored); err != nil {
			r.OK = false
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results
}

func (q *ReviewQueue) audit(ctx context.Context, m *models.ReconciliationMatch, action string, from models.MatchState, req DecideRequest) {
	err := q.store.AppendAudit(ctx, &models.MatchAuditLog{
		ID:            uuid.New(),
		MatchID:       m.ID,
		Action:        action,
		PreviousState: from,
		NewState:      m.State,
		PerformedBy:   req.Actor,
		Reason:        req.Note,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		q.log.Warn("audit append failed", zap.String("match_id", m.ID.String()), zap.Error(err))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func anyCounterparty(txs []models.BankTransaction, counterparty string) bool {
	want := strings.ToUpper(strings.TrimSpace(counterparty))
	for _, tx := range txs {
		if strings.ToUpper(strings.TrimSpace(tx.Counterparty)) == want {
			return true
		}
	}
	return false
}
