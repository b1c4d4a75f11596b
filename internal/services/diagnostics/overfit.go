package diagnostics

import (
	"fmt"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/services/stats"
)

// Fixed classification cutoffs for the per-fold overfit score.
const (
	OverfitLowCutoff      = 0.10
	OverfitModerateCutoff = 0.20
)

// Band classifications.
const (
	BandLow      = "low"
	BandModerate = "moderate"
	BandHigh     = "high"
)

// OverfitScore is (train_wr - oos_wr) / train_wr. A zero train win rate
// yields zero: there is no in-sample edge to have overfit.
func OverfitScore(trainWR, oosWR float64) float64 {
	if trainWR <= 0 {
		return 0
	}
	return (trainWR - oosWR) / trainWR
}

// Band classifies an overfit score against the fixed cutoffs.
func Band(score float64) string {
	switch {
	case score < OverfitLowCutoff:
		return BandLow
	case score <= OverfitModerateCutoff:
		return BandModerate
	default:
		return BandHigh
	}
}

// Report is the diagnostic verdict over a whole run.
type Report struct {
	AggregateOverfit float64
	AggregateBand    string
	OverfitRejected  bool

	DriftSuspect bool
	DriftDelta   float64

	SeedStdDev   float64
	SeedUnstable bool
	SeedHardFail bool

	Reasons []models.Reason
}

// Config carries the configured ceilings.
type Config struct {
	OverfitCeiling    float64
	DegradationDelta  float64
	SeedStdDevCeiling float64
	SeedHardCeiling   float64
}

// Evaluate runs all three diagnostics: aggregate overfit against the
// ceiling, monotonic fold degradation, and seed stability. Folds tagged
// insufficient-data are skipped; they carry no usable win rates.
func Evaluate(folds []models.FoldResult, seedWinRates []float64, cfg Config) Report {
	r := Report{}

	var usable []models.FoldResult
	for _, f := range folds {
		if f.Status != models.FoldInsufficient {
			usable = append(usable, f)
		}
	}

	// aggregate overfit: mean of per-fold scores
	if len(usable) > 0 {
		var sum float64
		for _, f := range usable {
			sum += f.OverfitScore
		}
		r.AggregateOverfit = sum / float64(len(usable))
	}
	r.AggregateBand = Band(r.AggregateOverfit)
	if r.AggregateOverfit > cfg.OverfitCeiling {
		r.OverfitRejected = true
		r.Reasons = append(r.Reasons, models.Reason{
			Code: models.ReasonOverfitCeiling,
			Message: fmt.Sprintf("aggregate overfit score %.3f exceeds ceiling %.3f",
				r.AggregateOverfit, cfg.OverfitCeiling),
		})
	}

	// degradation: first fold vs last fold win rate, in fold order
	if len(usable) >= 2 {
		r.DriftDelta = usable[0].WinRate - usable[len(usable)-1].WinRate
		if r.DriftDelta > cfg.DegradationDelta {
			r.DriftSuspect = true
			r.Reasons = append(r.Reasons, models.Reason{
				Code: models.ReasonDriftSuspect,
				Message: fmt.Sprintf("win rate degraded %.3f from first to last fold (delta %.3f)",
					r.DriftDelta, cfg.DegradationDelta),
			})
		}
	}

	// seed stability: stddev of aggregate win rate across seeds
	if len(seedWinRates) >= 3 {
		r.SeedStdDev = stats.StdDev(seedWinRates)
		if r.SeedStdDev > cfg.SeedStdDevCeiling {
			r.SeedUnstable = true
			r.Reasons = append(r.Reasons, models.Reason{
				Code: models.ReasonSeedUnstable,
				Message: fmt.Sprintf("aggregate win rate stddev %.4f across %d seeds exceeds ceiling %.4f",
					r.SeedStdDev, len(seedWinRates), cfg.SeedStdDevCeiling),
			})
		}
		if r.SeedStdDev > cfg.SeedHardCeiling {
			r.SeedHardFail = true
			r.Reasons = append(r.Reasons, models.Reason{
				Code:    models.ReasonNoGoSeedHard,
				Message: fmt.Sprintf("seed stddev %.4f beyond hard ceiling %.4f", r.SeedStdDev, cfg.SeedHardCeiling),
			})
		}
	}

	return r
}

// FeatureConcentration is the largest single-feature share of total
// absolute weight. A model leaning on one feature past the cap fails R1.
func FeatureConcentration(weights map[string]float64) float64 {
	var total, max float64
	for _, w := range weights {
		if w < 0 {
			w = -w
		}
		total += w
		if w > max {
			max = w
		}
	}
	if total == 0 {
		return 0
	}
	return max / total
}
