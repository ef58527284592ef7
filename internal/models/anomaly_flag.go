package models

import (
	"time"

	"github.com/google/uuid"
)

// Anomaly kinds. Flags are advisory and never block matching.
const (
	AnomalyLargeAmount = "LARGE_AMOUNT"
	AnomalyRoundNumber = "ROUND_NUMBER"
	AnomalyFrequency   = "FREQUENCY"
	AnomalyTime        = "TIME"
	AnomalyPattern     = "PATTERN"
)

const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityHigh    = "high"
)

type AnomalyFlag struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"index"`
	Kind          string    `gorm:"index"`
	Severity      string
	Detail        string
	DetectedAt    time.Time
}
