package matching

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ledger-reconciliation-backend/internal/models"
)

// History carries precomputed per-counterparty aggregates for one run. It is
// built once from past transactions and then read concurrently by the scorer
// and the anomaly detector; it is never written after Build.
type History struct {
	byCounterparty map[string]*counterpartyStats
}

type counterpartyStats struct {
	count      int
	mean       float64
	stdDev     float64
	perDay     map[string]int
	// dayOfMonth histogram used for recurring detection.
	dayOfMonth map[int]int
}

// BuildHistory computes aggregates from previously seen transactions.
func BuildHistory(past []models.BankTransaction) *History {
	grouped := make(map[string][]models.BankTransaction)
	for _, tx := range past {
		key := counterpartyKey(tx)
		if key == "" {
			continue
		}
		grouped[key] = append(grouped[key], tx)
	}

	h := &History{byCounterparty: make(map[string]*counterpartyStats, len(grouped))}
	for key, txs := range grouped {
		stats := &counterpartyStats{
			count:      len(txs),
			perDay:     make(map[string]int),
			dayOfMonth: make(map[int]int),
		}

		sum := 0.0
		for _, tx := range txs {
			amt, _ := tx.Amount.Abs().Float64()
			sum += amt
			stats.perDay[tx.Date.Format("2006-01-02")]++
			stats.dayOfMonth[tx.Date.Day()]++
		}
		stats.mean = sum / float64(len(txs))

		variance := 0.0
		for _, tx := range txs {
			amt, _ := tx.Amount.Abs().Float64()
			variance += (amt - stats.mean) * (amt - stats.mean)
		}
		stats.stdDev = math.Sqrt(variance / float64(len(txs)))

		h.byCounterparty[key] = stats
	}
	return h
}

func counterpartyKey(tx models.BankTransaction) string {
	if tx.Counterparty != "" {
		return normalizeText(tx.Counterparty)
	}
	return normalizeText(tx.Description)
}

// Known reports whether there is enough history for the counterparty to say
// anything at all.
func (h *History) Known(tx models.BankTransaction) bool {
	stats := h.stats(tx)
	return stats != nil && stats.count >= 3
}

// MonthlyAverage is the mean absolute amount seen for the counterparty.
func (h *History) MonthlyAverage(tx models.BankTransaction) (decimal.Decimal, bool) {
	stats := h.stats(tx)
	if stats == nil || stats.count == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(stats.mean), true
}

// CountOnDay is how many past transactions the counterparty had on date.
func (h *History) CountOnDay(tx models.BankTransaction, date time.Time) int {
	stats := h.stats(tx)
	if stats == nil {
		return 0
	}
	return stats.perDay[date.Format("2006-01-02")]
}

// FitsRecurring reports whether tx lands on a day-of-month the counterparty
// repeatedly uses (salary on the 25th, rent on the 1st) with an amount close
// to the historical mean.
func (h *History) FitsRecurring(tx models.BankTransaction) bool {
	stats := h.stats(tx)
	if stats == nil || stats.count < 3 {
		return false
	}

	day := tx.Date.Day()
	recurringDay := false
	for d := day - 1; d <= day+1; d++ {
		if stats.dayOfMonth[d] >= 2 {
			recurringDay = true
			break
		}
	}
	if !recurringDay {
		return false
	}

	amt, _ := tx.Amount.Abs().Float64()
	if stats.mean == 0 {
		return false
	}
	return math.Abs(amt-stats.mean)/stats.mean <= 0.05
}

// Deviation is how many standard deviations tx's amount sits from the
// counterparty mean. Returns false when history is too thin to judge.
func (h *History) Deviation(tx models.BankTransaction) (float64, bool) {
	stats := h.stats(tx)
	if stats == nil || stats.count < 3 || stats.stdDev == 0 {
		return 0, false
	}
	amt, _ := tx.Amount.Abs().Float64()
	return math.Abs(amt-stats.mean) / stats.stdDev, true
}

func (h *History) stats(tx models.BankTransaction) *counterpartyStats {
	if h == nil {
		return nil
	}
	return h.byCounterparty[counterpartyKey(tx)]
}
