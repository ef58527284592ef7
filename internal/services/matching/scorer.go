package matching

import (
	"strings"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
)

// Scorer computes the five-dimension confidence score for a candidate set.
// Same inputs always produce the same breakdown, so matches can be re-scored
// for audit at any time.
type Scorer struct {
	cfg config.Matching
}

func NewScorer(cfg config.Matching) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Score(tx models.BankTransaction, set CandidateSet, hist *History) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		Amount:      s.amountScore(tx, set),
		Date:        s.dateScore(set),
		Description: s.descriptionScore(tx, set),
		Business:    s.businessScore(tx, set),
		History:     s.historyScore(tx, hist),
	}

	w := s.cfg.Weights
	total := w.Amount*b.Amount +
		w.Date*b.Date +
		w.Description*b.Description +
		w.Business*b.Business +
		w.History*b.History
	b.Total = clamp(total, 0, 100)
	return b
}

// amountScore: 100 exact single entry, 90 single entry within tolerance, 70
// for a verified multi-entry aggregation, then a linear fall to zero as the
// relative difference grows past tolerance.
func (s *Scorer) amountScore(tx models.BankTransaction, set CandidateSet) float64 {
	// One-to-many splits and many-to-one aggregates both carry the verified
	// aggregation anchor.
	if len(set.Entries) > 1 || set.Aggregate {
		if set.ExactAmount || set.FeeCandidate {
			return 70
		}
		return s.decayedAmountScore(tx, set)
	}

	if set.ExactAmount {
		return 100
	}
	if set.FeeCandidate {
		return 90
	}
	return s.decayedAmountScore(tx, set)
}

func (s *Scorer) decayedAmountScore(tx models.BankTransaction, set CandidateSet) float64 {
	abs := tx.Amount.Abs()
	if abs.IsZero() {
		return 0
	}
	relDiff, _ := set.Residual.Abs().Div(abs).Float64()
	tolRel, _ := NewGenerator(s.cfg).Tolerance(tx.Amount).Div(abs).Float64()

	over := relDiff - tolRel
	if over <= 0 {
		return 70
	}
	if s.cfg.AmountTolerance.DecayRange <= 0 {
		return 0
	}
	return clamp(70*(1-over/s.cfg.AmountTolerance.DecayRange), 0, 70)
}

// dateScore: 100 same day, 90 up to the default window, 70 up to the extended
// window, then under 30 with a configurable per-day decay. Cross-period sets
// are scored as if they sat inside the extended window.
func (s *Scorer) dateScore(set CandidateSet) float64 {
	days := set.DateDistance

	if set.CrossPeriod && days <= s.cfg.DateWindow.CrossPeriodDays {
		if days == 0 {
			return 100
		}
		return 90
	}

	switch {
	case days == 0:
		return 100
	case days <= s.cfg.DateWindow.DefaultDays:
		return 90
	case days <= s.cfg.DateWindow.CrossPeriodDays:
		return 70
	default:
		past := float64(days - s.cfg.DateWindow.CrossPeriodDays)
		return clamp(30-past*s.cfg.DateWindow.DecayPerDay, 0, 29)
	}
}

// descriptionScore blends token edit-distance coverage with shared-token
// ratio across the transaction's descriptive fields and each entry's memo.
// An exact reference-number match floors the score at 90.
func (s *Scorer) descriptionScore(tx models.BankTransaction, set CandidateSet) float64 {
	txText := strings.TrimSpace(tx.Description + " " + tx.Counterparty + " " + tx.ReferenceNumber)

	best := 0.0
	refMatch := false
	for _, e := range set.Entries {
		entryText := strings.TrimSpace(e.Memo + " " + e.ReferenceNumber)
		score := 0.6*tokenSimilarity(txText, entryText) + 0.4*jaccardSimilarity(txText, entryText)
		if score > best {
			best = score
		}
		if tx.ReferenceNumber != "" && tx.ReferenceNumber == e.ReferenceNumber {
			refMatch = true
		}
	}

	if refMatch && best < 90 {
		best = 90
	}
	return clamp(best, 0, 100)
}

// Transaction-type heuristics for the business-logic dimension.
type txType string

const (
	txTypeSalary      txType = "salary"
	txTypePurchase    txType = "purchase"
	txTypeTransfer    txType = "transfer"
	txTypeCardPayment txType = "card_payment"
	txTypeUnknown     txType = "unknown"
)

var expectedAccountTypes = map[txType][]string{
	txTypeSalary:      {models.AccountTypeIncome},
	txTypePurchase:    {models.AccountTypeExpense},
	txTypeTransfer:    {models.AccountTypeAsset, models.AccountTypeLiability},
	txTypeCardPayment: {models.AccountTypeLiability, models.AccountTypeExpense},
}

func inferTxType(tx models.BankTransaction) txType {
	text := normalizeText(tx.Description)
	switch {
	case containsAny(text, "SALARY", "PAYROLL", "WAGES"):
		return txTypeSalary
	case containsAny(text, "TRANSFER", "TRF", "WIRE"):
		return txTypeTransfer
	case containsAny(text, "CARD PAYMENT", "CREDIT CARD", "CARD"):
		return txTypeCardPayment
	case containsAny(text, "PURCHASE", "POS", "PAYMENT TO", "INVOICE"):
		return txTypePurchase
	}
	return txTypeUnknown
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// businessScore: 100 when every entry's account type is one the inferred
// transaction type expects, the configured penalty on a known mismatch, a
// neutral 60 when the type cannot be inferred or the entry side is untyped.
func (s *Scorer) businessScore(tx models.BankTransaction, set CandidateSet) float64 {
	expected, ok := expectedAccountTypes[inferTxType(tx)]
	if !ok {
		return 60
	}

	sawTyped := false
	for _, e := range set.Entries {
		if e.AccountType == "" {
			continue
		}
		sawTyped = true
		if !containsString(expected, e.AccountType) {
			return s.cfg.BusinessMismatchPenalty
		}
	}
	if !sawTyped {
		return 60
	}
	return 100
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// historyScore starts neutral at 60, adds 10 when the transaction fits a
// recurring pattern for its counterparty, subtracts 10 when it deviates
// sharply from the counterparty's distribution.
func (s *Scorer) historyScore(tx models.BankTransaction, hist *History) float64 {
	score := 60.0
	if hist == nil || !hist.Known(tx) {
		return score
	}

	if hist.FitsRecurring(tx) {
		score += 10
	}
	if dev, ok := hist.Deviation(tx); ok && dev > s.cfg.Anomaly.DeviationSigma {
		score -= 10
	}
	return clamp(score, 0, 100)
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
