package anomaly

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/matching"
)

func acmeTx(amount string, date time.Time) models.BankTransaction {
	return models.BankTransaction{
		ID:           uuid.New(),
		Date:         date,
		Amount:       decimal.RequireFromString(amount),
		Currency:     "USD",
		Counterparty: "ACME",
		Status:       models.TransactionStatusUnmatched,
	}
}

func kinds(flags []models.AnomalyFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Kind)
	}
	return out
}

func findFlag(t *testing.T, flags []models.AnomalyFlag, kind string) models.AnomalyFlag {
	t.Helper()
	for _, f := range flags {
		if f.Kind == kind {
			return f
		}
	}
	t.Fatalf("flag %s not found in %v", kind, kinds(flags))
	return models.AnomalyFlag{}
}

// Wednesday and Saturday in the same week.
var (
	weekday = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	weekend = time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC)
)

func TestDetectLargeAmountAgainstHistory(t *testing.T) {
	past := []models.BankTransaction{
		acmeTx("100.25", weekday.AddDate(0, -3, 0)),
		acmeTx("100.25", weekday.AddDate(0, -2, 0)),
		acmeTx("100.25", weekday.AddDate(0, -1, 0)),
	}
	hist := matching.BuildHistory(past)
	d := NewDetector(config.DefaultMatching())

	flags := d.Detect(acmeTx("1500.50", weekday), hist)
	flag := findFlag(t, flags, models.AnomalyLargeAmount)
	assert.Equal(t, models.SeverityHigh, flag.Severity)
	assert.Contains(t, flag.Detail, "monthly average")

	// Same amount without history raises nothing.
	flags = d.Detect(acmeTx("1500.50", weekday), nil)
	assert.Empty(t, flags)
}

func TestDetectRoundNumber(t *testing.T) {
	d := NewDetector(config.DefaultMatching())

	flags := d.Detect(acmeTx("5000.00", weekday), nil)
	flag := findFlag(t, flags, models.AnomalyRoundNumber)
	assert.Equal(t, models.SeverityInfo, flag.Severity)

	// Below the threshold, or not a round figure: no flag.
	assert.Empty(t, d.Detect(acmeTx("500.00", weekday), nil))
	assert.Empty(t, d.Detect(acmeTx("5000.01", weekday), nil))
}

func TestDetectDailyFrequency(t *testing.T) {
	var past []models.BankTransaction
	for i := 0; i < 11; i++ {
		past = append(past, acmeTx("10.25", weekday))
	}
	hist := matching.BuildHistory(past)
	d := NewDetector(config.DefaultMatching())

	flags := d.Detect(acmeTx("10.25", weekday), hist)
	flag := findFlag(t, flags, models.AnomalyFrequency)
	assert.Equal(t, models.SeverityWarning, flag.Severity)

	// A different day for the same counterparty stays quiet.
	flags = d.Detect(acmeTx("10.25", weekday.AddDate(0, 0, 1)), hist)
	for _, f := range flags {
		assert.NotEqual(t, models.AnomalyFrequency, f.Kind)
	}
}

func TestDetectWeekendLargeAmount(t *testing.T) {
	d := NewDetector(config.DefaultMatching())

	flags := d.Detect(acmeTx("12000.50", weekend), nil)
	flag := findFlag(t, flags, models.AnomalyTime)
	assert.Contains(t, flag.Detail, "weekend")

	// The same amount on a weekday, or a small weekend amount, is fine.
	assert.Empty(t, d.Detect(acmeTx("12000.50", weekday), nil))
	assert.Empty(t, d.Detect(acmeTx("50.25", weekend), nil))
}

func TestDetectPatternDeviation(t *testing.T) {
	past := []models.BankTransaction{
		acmeTx("100.10", weekday.AddDate(0, -3, 0)),
		acmeTx("110.10", weekday.AddDate(0, -2, 0)),
		acmeTx("120.10", weekday.AddDate(0, -1, 0)),
	}
	hist := matching.BuildHistory(past)
	d := NewDetector(config.DefaultMatching())

	// ~4.9 sigma off the 110.10 mean.
	flags := d.Detect(acmeTx("150.10", weekday), hist)
	flag := findFlag(t, flags, models.AnomalyPattern)
	assert.Contains(t, flag.Detail, "sigma")

	// Near the mean: quiet.
	assert.Empty(t, d.Detect(acmeTx("112.10", weekday), hist))
}

func TestDetectCleanTransaction(t *testing.T) {
	d := NewDetector(config.DefaultMatching())
	flags := d.Detect(acmeTx("123.45", weekday), nil)
	assert.Empty(t, flags)
}

func TestDetectFlagsCarryTransactionID(t *testing.T) {
	d := NewDetector(config.DefaultMatching())
	tx := acmeTx("5000.00", weekday)
	flags := d.Detect(tx, nil)
	require.NotEmpty(t, flags)
	for _, f := range flags {
		assert.Equal(t, tx.ID, f.TransactionID)
		assert.False(t, f.DetectedAt.IsZero())
	}
}
