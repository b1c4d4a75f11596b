package stats

import (
	"math"
	"sort"

	"QuantGate/internal/domain/models"
)

// Summary holds the closed-outcome metrics for one set of trades.
type Summary struct {
	ClosedTrades int
	Wins         int
	WinRate      float64
	WinRateCI    models.WinRateCI
	ProfitFactor float64
	Sharpe       float64
	MaxDrawdown  float64
	RegimeCounts map[string]int
}

// Summarize computes all closed-outcome metrics at the given confidence
// level. Outcomes are processed in timestamp order so the drawdown path
// is well defined regardless of input order.
func Summarize(outcomes []models.Outcome, confidence float64) Summary {
	s := Summary{RegimeCounts: map[string]int{}}
	if len(outcomes) == 0 {
		return s
	}

	sorted := make([]models.Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	s.ClosedTrades = len(sorted)
	for _, o := range sorted {
		if o.Win {
			s.Wins++
		}
		if o.Regime != "" {
			s.RegimeCounts[o.Regime]++
		}
	}
	s.WinRate = float64(s.Wins) / float64(s.ClosedTrades)
	s.WinRateCI = Wilson(s.Wins, s.ClosedTrades, confidence)
	s.ProfitFactor = ProfitFactor(sorted)
	s.Sharpe = SharpeLike(sorted)
	s.MaxDrawdown = MaxDrawdown(sorted)
	return s
}

// ProfitFactor is gross profit over gross loss. With no losing trades
// the factor is +Inf; callers gate on thresholds so that compares fine.
func ProfitFactor(outcomes []models.Outcome) float64 {
	var grossWin, grossLoss float64
	for _, o := range outcomes {
		if o.Return >= 0 {
			grossWin += o.Return
		} else {
			grossLoss -= o.Return
		}
	}
	if grossLoss == 0 {
		if grossWin == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return grossWin / grossLoss
}

// SharpeLike is mean per-trade return over its standard deviation. Not
// annualized; folds are compared against each other, not a market index.
func SharpeLike(outcomes []models.Outcome) float64 {
	n := float64(len(outcomes))
	if n < 2 {
		return 0
	}
	var sum float64
	for _, o := range outcomes {
		sum += o.Return
	}
	mean := sum / n
	var ss float64
	for _, o := range outcomes {
		d := o.Return - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / (n - 1))
	if sd == 0 {
		return 0
	}
	return mean / sd
}

// MaxDrawdown walks the compounded equity path of the closed outcomes
// and returns the deepest peak-to-trough loss as a positive fraction.
func MaxDrawdown(outcomes []models.Outcome) float64 {
	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, o := range outcomes {
		equity *= 1 + o.Return
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Percentile returns the p-quantile (0..1) of values by linear
// interpolation. The input is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// StdDev is the sample standard deviation.
func StdDev(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}
