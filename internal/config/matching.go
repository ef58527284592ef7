// Package config loads the externally supplied matching configuration and the
// database connection. Weights, thresholds and tolerances are data, not code:
// they arrive from matching.yaml and are passed into the scorer and decision
// engine as an immutable value.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Weights struct {
	Amount      float64 `yaml:"amount"`
	Date        float64 `yaml:"date"`
	Description float64 `yaml:"description"`
	Business    float64 `yaml:"business"`
	History     float64 `yaml:"history"`
}

type Thresholds struct {
	AutoAccept    float64 `yaml:"auto_accept"`
	PendingReview float64 `yaml:"pending_review"`
}

type AmountTolerance struct {
	Percent  float64 `yaml:"percent"`
	Absolute float64 `yaml:"absolute"`
	// DecayRange is how far past tolerance the relative difference may grow
	// before the amount sub-score reaches zero.
	DecayRange float64 `yaml:"decay_range"`
}

type DateWindow struct {
	DefaultDays     int `yaml:"default_days"`
	CrossPeriodDays int `yaml:"cross_period_days"`
	// DecayPerDay is subtracted per day past the cross-period window.
	DecayPerDay float64 `yaml:"decay_per_day"`
}

type Matching struct {
	Weights         Weights         `yaml:"weights"`
	Thresholds      Thresholds      `yaml:"thresholds"`
	AmountTolerance AmountTolerance `yaml:"amount_tolerance"`
	DateWindow      DateWindow      `yaml:"date_window"`

	MaxCombinationSize      int     `yaml:"max_combination_size"`
	MaxCandidateSets        int     `yaml:"max_candidate_sets"`
	BusinessMismatchPenalty float64 `yaml:"business_mismatch_penalty"`
	LargeAmountThreshold    float64 `yaml:"large_amount_threshold"`

	Anomaly Anomaly `yaml:"anomaly"`
}

type Anomaly struct {
	LargeAmountMultiplier float64 `yaml:"large_amount_multiplier"`
	RoundNumberThreshold  float64 `yaml:"round_number_threshold"`
	DailyFrequencyLimit   int     `yaml:"daily_frequency_limit"`
	DeviationSigma        float64 `yaml:"deviation_sigma"`
}

// DefaultMatching mirrors the shipped matching.yaml. Tests and local runs use
// it directly; production always loads the file.
func DefaultMatching() Matching {
	return Matching{
		Weights: Weights{
			Amount:      0.40,
			Date:        0.25,
			Description: 0.20,
			Business:    0.10,
			History:     0.05,
		},
		Thresholds: Thresholds{
			AutoAccept:    85,
			PendingReview: 60,
		},
		AmountTolerance: AmountTolerance{
			Percent:    0.001,
			Absolute:   0.10,
			DecayRange: 0.25,
		},
		DateWindow: DateWindow{
			DefaultDays:     3,
			CrossPeriodDays: 7,
			DecayPerDay:     5,
		},
		MaxCombinationSize:      5,
		MaxCandidateSets:        200,
		BusinessMismatchPenalty: 40,
		LargeAmountThreshold:    10000,
		Anomaly: Anomaly{
			LargeAmountMultiplier: 10,
			RoundNumberThreshold:  1000,
			DailyFrequencyLimit:   10,
			DeviationSigma:        3,
		},
	}
}

// LoadMatching reads path, falling back to defaults for any zero field so a
// partial override file stays valid.
func LoadMatching(path string) (Matching, error) {
	cfg := DefaultMatching()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read matching config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse matching config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (m Matching) Validate() error {
	sum := m.Weights.Amount + m.Weights.Date + m.Weights.Description + m.Weights.Business + m.Weights.History
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("matching weights must sum to 1.0, got %.3f", sum)
	}
	if m.Thresholds.PendingReview >= m.Thresholds.AutoAccept {
		return fmt.Errorf("pending_review threshold %.1f must be below auto_accept %.1f",
			m.Thresholds.PendingReview, m.Thresholds.AutoAccept)
	}
	if m.MaxCombinationSize < 1 {
		return fmt.Errorf("max_combination_size must be at least 1")
	}
	if m.DateWindow.DefaultDays <= 0 || m.DateWindow.CrossPeriodDays < m.DateWindow.DefaultDays {
		return fmt.Errorf("date window days are inconsistent")
	}
	return nil
}
