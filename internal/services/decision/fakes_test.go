package decision

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ledger-reconciliation-backend/internal/models"
)

// In-memory stand-ins for the repositories, mirroring the claim semantics of
// the gorm implementation.

type fakeMatchStore struct {
	mu          sync.Mutex
	matches     map[uuid.UUID]*models.ReconciliationMatch
	entryClaims map[uuid.UUID]uuid.UUID
	txClaims    map[uuid.UUID]uuid.UUID
	audits      []models.MatchAuditLog
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{
		matches:     make(map[uuid.UUID]*models.ReconciliationMatch),
		entryClaims: make(map[uuid.UUID]uuid.UUID),
		txClaims:    make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *fakeMatchStore) CreateWithClaims(_ context.Context, m *models.ReconciliationMatch, claimEntries bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, txID := range m.TransactionIDs {
		if _, taken := s.txClaims[txID]; taken {
			return models.ErrExclusivity
		}
	}
	if claimEntries {
		for _, entryID := range m.EntryIDs {
			if _, taken := s.entryClaims[entryID]; taken {
				return models.ErrExclusivity
			}
		}
	}

	copied := *m
	s.matches[m.ID] = &copied
	for _, txID := range m.TransactionIDs {
		s.txClaims[txID] = m.ID
	}
	if claimEntries {
		for _, entryID := range m.EntryIDs {
			s.entryClaims[entryID] = m.ID
		}
	}
	return nil
}

func (s *fakeMatchStore) GetByID(_ context.Context, id uuid.UUID) (*models.ReconciliationMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *fakeMatchStore) ListByState(_ context.Context, state models.MatchState, _ *uuid.UUID) ([]models.ReconciliationMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReconciliationMatch
	for _, m := range s.matches {
		if m.State == state {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeMatchStore) UpdateState(_ context.Context, id uuid.UUID, version int, next models.MatchState, decidedBy, note string) (*models.ReconciliationMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	if _, err := m.State.Transition(next); err != nil {
		return nil, err
	}
	if m.Version != version {
		return nil, &models.ConflictError{MatchID: id, GivenVersion: version, CurrentVersion: m.Version}
	}

	m.State = next
	m.Version = version + 1
	m.DecidedBy = decidedBy
	if note != "" {
		m.Note = note
	}
	copied := *m
	return &copied, nil
}

func (s *fakeMatchStore) ReleaseClaims(_ context.Context, matchID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, owner := range s.entryClaims {
		if owner == matchID {
			delete(s.entryClaims, id)
		}
	}
	for id, owner := range s.txClaims {
		if owner == matchID {
			delete(s.txClaims, id)
		}
	}
	return nil
}

func (s *fakeMatchStore) AppendAudit(_ context.Context, log *models.MatchAuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *log)
	return nil
}

func (s *fakeMatchStore) ClaimEntries(_ context.Context, matchID uuid.UUID, entryIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range entryIDs {
		if owner, taken := s.entryClaims[id]; taken && owner != matchID {
			return models.ErrExclusivity
		}
	}
	for _, id := range entryIDs {
		s.entryClaims[id] = matchID
	}
	return nil
}

func (s *fakeMatchStore) ListEntryClaims(_ context.Context, entryIDs []uuid.UUID) ([]models.EntryClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EntryClaim
	for _, id := range entryIDs {
		if owner, ok := s.entryClaims[id]; ok {
			out = append(out, models.EntryClaim{EntryID: id, MatchID: owner})
		}
	}
	return out, nil
}

func (s *fakeMatchStore) FindByClaimedTransaction(_ context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.txClaims[transactionID]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	m, ok := s.matches[owner]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	copied := *m
	return &copied, nil
}

type fakeLedger struct {
	mu           sync.Mutex
	entries      map[uuid.UUID]*models.JournalEntry
	reconciled   map[uuid.UUID]uuid.UUID            // entry -> match
	reconcileErr error                              // consumed by the next MarkEntriesReconciled
}

func newFakeLedger(entries ...models.JournalEntry) *fakeLedger {
	l := &fakeLedger{
		entries:    make(map[uuid.UUID]*models.JournalEntry),
		reconciled: make(map[uuid.UUID]uuid.UUID),
	}
	for i := range entries {
		e := entries[i]
		l.entries[e.ID] = &e
	}
	return l
}

func (l *fakeLedger) MarkEntriesReconciled(_ context.Context, entryIDs []uuid.UUID, matchID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reconcileErr != nil {
		err := l.reconcileErr
		l.reconcileErr = nil
		return err
	}
	for _, id := range entryIDs {
		if e, ok := l.entries[id]; ok {
			e.Status = models.EntryStatusReconciled
		}
		l.reconciled[id] = matchID
	}
	return nil
}

func (l *fakeLedger) GetEntries(_ context.Context, ids []uuid.UUID) ([]models.JournalEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.JournalEntry
	for _, id := range ids {
		if e, ok := l.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeStatements struct {
	mu  sync.Mutex
	txs map[uuid.UUID]*models.BankTransaction
}

func newFakeStatements(txs ...models.BankTransaction) *fakeStatements {
	s := &fakeStatements{txs: make(map[uuid.UUID]*models.BankTransaction)}
	for i := range txs {
		tx := txs[i]
		s.txs[tx.ID] = &tx
	}
	return s
}

func (s *fakeStatements) MarkTransaction(_ context.Context, transactionID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[transactionID]
	if !ok {
		return models.ErrDataNotFound
	}
	tx.Status = status
	return nil
}

func (s *fakeStatements) GetTransactions(_ context.Context, ids []uuid.UUID) ([]models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BankTransaction
	for _, id := range ids {
		if tx, ok := s.txs[id]; ok {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *fakeStatements) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.txs[id]; ok {
		return tx.Status
	}
	return ""
}
