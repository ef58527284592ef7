package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/matching"
)

func testTx(amount string) models.BankTransaction {
	return models.BankTransaction{
		ID:       uuid.New(),
		Date:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
		Status:   models.TransactionStatusUnmatched,
	}
}

func testEntry(amount string) models.JournalEntry {
	return models.JournalEntry{
		ID:       uuid.New(),
		Date:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
		Status:   models.EntryStatusPosted,
	}
}

func candidate(total float64, entries ...models.JournalEntry) ScoredCandidate {
	set := matching.CandidateSet{Entries: entries, ExactAmount: true}
	ids := ""
	for _, e := range entries {
		if ids != "" {
			ids += "+"
		}
		ids += e.ID.String()
	}
	set.Key = ids
	return ScoredCandidate{Set: set, Breakdown: models.ScoreBreakdown{Total: total}}
}

func newTestEngine(store *fakeMatchStore, ledger *fakeLedger, statements *fakeStatements) *Engine {
	return NewEngine(config.DefaultMatching(), store, ledger, statements, zap.NewNop())
}

func TestBestTieBreak(t *testing.T) {
	e1, e2, e3 := testEntry("50.00"), testEntry("50.00"), testEntry("100.00")

	tests := []struct {
		name   string
		scored []ScoredCandidate
		want   func(ScoredCandidate) bool
	}{
		{
			name: "higher score wins",
			scored: []ScoredCandidate{
				candidate(70, e1),
				candidate(90, e3),
			},
			want: func(c ScoredCandidate) bool { return c.Breakdown.Total == 90 },
		},
		{
			name: "equal score prefers fewer entries",
			scored: []ScoredCandidate{
				candidate(80, e1, e2),
				candidate(80, e3),
			},
			want: func(c ScoredCandidate) bool { return len(c.Set.Entries) == 1 },
		},
		{
			name: "equal everything falls back to smallest key",
			scored: []ScoredCandidate{
				candidate(80, e1),
				candidate(80, e2),
			},
			want: func(c ScoredCandidate) bool {
				k1, k2 := e1.ID.String(), e2.ID.String()
				smallest := k1
				if k2 < k1 {
					smallest = k2
				}
				return c.Set.Key == smallest
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, ok := Best(tt.scored)
			require.True(t, ok)
			assert.True(t, tt.want(best))
		})
	}
}

func TestBestIsStableAcrossOrderings(t *testing.T) {
	e1, e2 := testEntry("50.00"), testEntry("50.00")
	a, b := candidate(80, e1), candidate(80, e2)

	first, _ := Best([]ScoredCandidate{a, b})
	second, _ := Best([]ScoredCandidate{b, a})
	assert.Equal(t, first.Set.Key, second.Set.Key)
}

func TestDecideAutoAccept(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("100.00")
	store := newFakeMatchStore()
	ledger := newFakeLedger(e)
	statements := newFakeStatements(tx)
	engine := newTestEngine(store, ledger, statements)

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(92, e)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAutoAccepted, outcome)
	require.NotNil(t, m)
	assert.Equal(t, models.MatchStateAutoAccepted, m.State)
	assert.GreaterOrEqual(t, m.TotalScore, 85.0)

	// Ledger and statement sides were finalized together with the match.
	got, _ := ledger.GetEntries(context.Background(), []uuid.UUID{e.ID})
	require.Len(t, got, 1)
	assert.Equal(t, models.EntryStatusReconciled, got[0].Status)
	assert.Equal(t, models.TransactionStatusMatched, statements.status(tx.ID))

	owner, err := store.FindByClaimedTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, owner.ID)
}

func TestDecideRerunFinishesInterruptedFinalize(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("100.00")
	store := newFakeMatchStore()
	ledger := newFakeLedger(e)
	statements := newFakeStatements(tx)
	engine := newTestEngine(store, ledger, statements)

	// The match commits but the ledger write dies before finalize completes.
	ledger.reconcileErr = errors.New("ledger unavailable")
	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(92, e)})
	require.Error(t, err)
	assert.Equal(t, OutcomeAutoAccepted, outcome)
	require.NotNil(t, m)

	got, _ := ledger.GetEntries(context.Background(), []uuid.UUID{e.ID})
	assert.Equal(t, models.EntryStatusPosted, got[0].Status)
	assert.Equal(t, models.TransactionStatusUnmatched, statements.status(tx.ID))

	// Re-running the statement skips the claimed transaction but completes
	// the stranded finalize.
	outcome, _, err = engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(92, e)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Len(t, store.matches, 1)

	got, _ = ledger.GetEntries(context.Background(), []uuid.UUID{e.ID})
	assert.Equal(t, models.EntryStatusReconciled, got[0].Status)
	assert.Equal(t, models.TransactionStatusMatched, statements.status(tx.ID))
}

func TestDecidePendingReviewLeavesLedgerUntouched(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("99.95")
	store := newFakeMatchStore()
	ledger := newFakeLedger(e)
	statements := newFakeStatements(tx)
	engine := newTestEngine(store, ledger, statements)

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(70, e)})
	require.NoError(t, err)
	assert.Equal(t, OutcomePendingReview, outcome)
	assert.Equal(t, models.MatchStatePendingReview, m.State)

	got, _ := ledger.GetEntries(context.Background(), []uuid.UUID{e.ID})
	assert.Equal(t, models.EntryStatusPosted, got[0].Status)
	assert.Equal(t, models.TransactionStatusUnmatched, statements.status(tx.ID))
}

func TestDecideBelowThresholdCreatesNothing(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("60.00")
	store := newFakeMatchStore()
	engine := newTestEngine(store, newFakeLedger(e), newFakeStatements(tx))

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(42, e)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, outcome)
	assert.Nil(t, m)
	assert.Empty(t, store.matches)
}

func TestDecideNoCandidates(t *testing.T) {
	tx := testTx("100.00")
	engine := newTestEngine(newFakeMatchStore(), newFakeLedger(), newFakeStatements(tx))

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, outcome)
	assert.Nil(t, m)
}

func TestDecideClaimedEntriesFallBackToReview(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("100.00")
	store := newFakeMatchStore()
	// Another run already claimed the entry.
	store.entryClaims[e.ID] = uuid.New()

	ledger := newFakeLedger(e)
	statements := newFakeStatements(tx)
	engine := newTestEngine(store, ledger, statements)

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(95, e)})
	require.NoError(t, err)
	assert.Equal(t, OutcomePendingReview, outcome)
	require.NotNil(t, m)
	assert.Equal(t, models.MatchStatePendingReview, m.State)
	assert.Equal(t, models.ReasonEntriesClaimedElsewhere, m.Reason)

	// The contested entry must not be touched.
	got, _ := ledger.GetEntries(context.Background(), []uuid.UUID{e.ID})
	assert.Equal(t, models.EntryStatusPosted, got[0].Status)
}

func TestDecideClaimedTransactionIsNoOp(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("100.00")
	store := newFakeMatchStore()
	store.txClaims[tx.ID] = uuid.New()

	engine := newTestEngine(store, newFakeLedger(e), newFakeStatements(tx))

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{candidate(95, e)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Nil(t, m)
	assert.Empty(t, store.matches)
}

func TestDecideFeeSplitReason(t *testing.T) {
	tx := testTx("100.00")
	e := testEntry("99.95")
	store := newFakeMatchStore()
	engine := newTestEngine(store, newFakeLedger(e), newFakeStatements(tx))

	sc := candidate(75, e)
	sc.Set.ExactAmount = false
	sc.Set.FeeCandidate = true
	sc.Set.Residual = decimal.RequireFromString("0.05")

	outcome, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID}, []ScoredCandidate{sc})
	require.NoError(t, err)
	assert.Equal(t, OutcomePendingReview, outcome)
	assert.Equal(t, models.ReasonFeeSplit, m.Reason)
	assert.Contains(t, m.Note, "fee")
}

func TestDecidePersistsEvaluatedCandidates(t *testing.T) {
	tx := testTx("100.00")
	e1, e2 := testEntry("100.00"), testEntry("99.95")
	store := newFakeMatchStore()
	engine := newTestEngine(store, newFakeLedger(e1, e2), newFakeStatements(tx))

	_, m, err := engine.Decide(context.Background(), uuid.New(), []uuid.UUID{tx.ID},
		[]ScoredCandidate{candidate(92, e1), candidate(64, e2)})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NotEmpty(t, m.Evaluated)
	assert.Contains(t, string(m.Evaluated), e2.ID.String())
}
