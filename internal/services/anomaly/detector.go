// Package anomaly evaluates transactions against rolling per-counterparty
// aggregates. Flags are advisory input for the review UI and never influence
// match state.
package anomaly

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/matching"
)

type Detector struct {
	cfg config.Matching
}

func NewDetector(cfg config.Matching) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns zero or more flags for tx. hist may be nil when no history
// exists yet; the history-based checks are then skipped.
func (d *Detector) Detect(tx models.BankTransaction, hist *matching.History) []models.AnomalyFlag {
	now := time.Now()
	var flags []models.AnomalyFlag

	add := func(kind, severity, detail string) {
		flags = append(flags, models.AnomalyFlag{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			Kind:          kind,
			Severity:      severity,
			Detail:        detail,
			DetectedAt:    now,
		})
	}

	abs := tx.Amount.Abs()

	if avg, ok := hist.MonthlyAverage(tx); ok && avg.IsPositive() {
		limit := avg.Mul(decimal.NewFromFloat(d.cfg.Anomaly.LargeAmountMultiplier))
		if abs.GreaterThan(limit) {
			add(models.AnomalyLargeAmount, models.SeverityHigh,
				fmt.Sprintf("amount %s exceeds %.0fx monthly average %s",
					abs, d.cfg.Anomaly.LargeAmountMultiplier, avg.Round(2)))
		}
	}

	if abs.Equal(abs.Truncate(0)) && abs.GreaterThanOrEqual(decimal.NewFromFloat(d.cfg.Anomaly.RoundNumberThreshold)) {
		add(models.AnomalyRoundNumber, models.SeverityInfo,
			fmt.Sprintf("round amount %s over threshold %.0f", abs, d.cfg.Anomaly.RoundNumberThreshold))
	}

	if count := hist.CountOnDay(tx, tx.Date); count+1 > d.cfg.Anomaly.DailyFrequencyLimit {
		add(models.AnomalyFrequency, models.SeverityWarning,
			fmt.Sprintf("%d transactions for this counterparty on %s", count+1, tx.Date.Format("2006-01-02")))
	}

	if isWeekend(tx.Date) && abs.GreaterThanOrEqual(decimal.NewFromFloat(d.cfg.LargeAmountThreshold)) {
		add(models.AnomalyTime, models.SeverityWarning,
			fmt.Sprintf("large amount %s on a weekend", abs))
	}

	if dev, ok := hist.Deviation(tx); ok && dev > d.cfg.Anomaly.DeviationSigma {
		add(models.AnomalyPattern, models.SeverityWarning,
			fmt.Sprintf("amount deviates %.1f sigma from counterparty history", dev))
	}

	return flags
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
