// Package matching holds the candidate generator and the scoring model. Both
// are pure: they read the transaction, the entry window and the precomputed
// history, and never touch storage.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
)

// CandidateSet is one proposed counterpart for a transaction: one or more
// posted entries whose combined amount lands within tolerance.
type CandidateSet struct {
	// Key is the sorted, joined entry ids. It is the stable identity used for
	// deterministic tie-breaking.
	Key     string
	Entries []models.JournalEntry
	Sum     decimal.Decimal
	// Residual is transaction amount minus entry sum, signed. A non-zero
	// residual within tolerance is a fee candidate.
	Residual     decimal.Decimal
	ExactAmount  bool
	FeeCandidate bool
	CrossPeriod  bool
	// Aggregate marks sets generated for a synthetic many-to-one transaction
	// built by the run coordinator.
	Aggregate bool
	// DateDistance is the largest day gap between the transaction and any
	// entry in the set.
	DateDistance int
}

type Generator struct {
	cfg config.Matching
}

func NewGenerator(cfg config.Matching) *Generator {
	return &Generator{cfg: cfg}
}

// Window is the date range to fetch entries for. It always spans the extended
// cross-period width; per-entry eligibility is decided in Generate.
func (g *Generator) Window(date time.Time) (time.Time, time.Time) {
	days := time.Duration(g.cfg.DateWindow.CrossPeriodDays) * 24 * time.Hour
	return date.Add(-days), date.Add(days)
}

// Tolerance is max(percent * |amount|, absolute).
func (g *Generator) Tolerance(amount decimal.Decimal) decimal.Decimal {
	pct := amount.Abs().Mul(decimal.NewFromFloat(g.cfg.AmountTolerance.Percent))
	abs := decimal.NewFromFloat(g.cfg.AmountTolerance.Absolute)
	if pct.GreaterThan(abs) {
		return pct
	}
	return abs
}

type windowEntry struct {
	entry       models.JournalEntry
	days        int
	crossPeriod bool
}

// Generate enumerates candidate sets in match-quality order: exact single
// entries, tolerant single entries, then combinations of 2..k entries whose
// sum fits. An empty result is the normal unmatched outcome, not an error.
func (g *Generator) Generate(tx models.BankTransaction, entries []models.JournalEntry) []CandidateSet {
	eligible := g.filterWindow(tx, entries)
	if len(eligible) == 0 {
		return nil
	}

	tol := g.Tolerance(tx.Amount)
	var sets []CandidateSet

	// Pass 1: exact single-entry matches.
	for _, we := range eligible {
		if we.entry.Amount.Equal(tx.Amount) {
			sets = append(sets, g.newSet(tx, []windowEntry{we}, false))
		}
	}

	// Pass 2: single entries within tolerance.
	for _, we := range eligible {
		diff := tx.Amount.Sub(we.entry.Amount).Abs()
		if !diff.IsZero() && diff.LessThanOrEqual(tol) {
			sets = append(sets, g.newSet(tx, []windowEntry{we}, false))
		}
	}

	// Pass 3: combinations of 2..k same-sign entries.
	sets = append(sets, g.combine(tx, eligible, tol, len(sets))...)

	if len(sets) > g.cfg.MaxCandidateSets {
		sets = sets[:g.cfg.MaxCandidateSets]
	}
	return sets
}

func (g *Generator) filterWindow(tx models.BankTransaction, entries []models.JournalEntry) []windowEntry {
	var eligible []windowEntry
	for _, e := range entries {
		if !e.Matchable() {
			continue
		}
		if e.Currency != "" && tx.Currency != "" && e.Currency != tx.Currency {
			continue
		}

		// The default window only applies within one accounting period; a
		// month-straddling entry always goes through the extended cross-period
		// window, however small the day gap.
		days := dayDistance(tx.Date, e.Date)
		if differentMonth(tx.Date, e.Date) {
			if days <= g.cfg.DateWindow.CrossPeriodDays {
				eligible = append(eligible, windowEntry{entry: e, days: days, crossPeriod: true})
			}
		} else if days <= g.cfg.DateWindow.DefaultDays {
			eligible = append(eligible, windowEntry{entry: e, days: days})
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].days != eligible[j].days {
			return eligible[i].days < eligible[j].days
		}
		return eligible[i].entry.ID.String() < eligible[j].entry.ID.String()
	})
	return eligible
}

// combine runs a bounded depth-first search over same-sign entries. Entries
// are sorted by date distance, the running sum is pruned once it overshoots
// the target, and the overall set count is capped, which keeps the otherwise
// exponential search tractable.
func (g *Generator) combine(tx models.BankTransaction, eligible []windowEntry, tol decimal.Decimal, have int) []CandidateSet {
	limit := tx.Amount.Abs().Add(tol)
	var pool []windowEntry
	for _, we := range eligible {
		if we.entry.Amount.Sign() == tx.Amount.Sign() && we.entry.Amount.Abs().LessThan(limit) {
			pool = append(pool, we)
		}
	}
	if len(pool) < 2 {
		return nil
	}

	budget := g.cfg.MaxCandidateSets - have
	if budget <= 0 {
		return nil
	}

	var sets []CandidateSet
	var current []windowEntry

	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(sets) >= budget {
			return
		}
		if len(current) >= 2 {
			diff := tx.Amount.Sub(sum).Abs()
			if diff.LessThanOrEqual(tol) {
				picked := make([]windowEntry, len(current))
				copy(picked, current)
				sets = append(sets, g.newSet(tx, picked, false))
			}
		}
		if len(current) == g.cfg.MaxCombinationSize {
			return
		}
		for i := start; i < len(pool); i++ {
			next := sum.Add(pool[i].entry.Amount)
			if next.Abs().GreaterThan(limit) {
				continue
			}
			current = append(current, pool[i])
			walk(i+1, next)
			current = current[:len(current)-1]
		}
	}
	walk(0, decimal.Zero)

	// Smaller sets first; generation order breaks ties.
	sort.SliceStable(sets, func(i, j int) bool {
		return len(sets[i].Entries) < len(sets[j].Entries)
	})
	return sets
}

func (g *Generator) newSet(tx models.BankTransaction, members []windowEntry, aggregate bool) CandidateSet {
	set := CandidateSet{Aggregate: aggregate, Sum: decimal.Zero}
	ids := make([]string, 0, len(members))
	for _, we := range members {
		set.Entries = append(set.Entries, we.entry)
		set.Sum = set.Sum.Add(we.entry.Amount)
		ids = append(ids, we.entry.ID.String())
		if we.crossPeriod {
			set.CrossPeriod = true
		}
		if we.days > set.DateDistance {
			set.DateDistance = we.days
		}
	}
	sort.Strings(ids)
	set.Key = strings.Join(ids, "+")

	set.Residual = tx.Amount.Sub(set.Sum)
	set.ExactAmount = set.Residual.IsZero()
	if !set.ExactAmount && set.Residual.Abs().LessThanOrEqual(g.Tolerance(tx.Amount)) {
		set.FeeCandidate = true
	}
	return set
}

func dayDistance(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := da.Sub(db).Hours() / 24
	if diff < 0 {
		diff = -diff
	}
	return int(diff)
}

func differentMonth(a, b time.Time) bool {
	return a.Month() != b.Month() || a.Year() != b.Year()
}
