package features

import (
	"math"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/services/stats"
)

// ComputeForwardReturns builds raw label rows: the forward return over
// the horizon, reading only bars strictly after each decision timestamp.
// Rows whose horizon runs past the series end are marked invalid. Class
// assignment happens later, per fold, once training-fold thresholds are
// known.
func ComputeForwardReturns(bars []models.Bar, horizon int) []models.LabelRow {
	rows := make([]models.LabelRow, len(bars))
	for t := range bars {
		rows[t] = models.LabelRow{
			Symbol:    bars[t].Symbol,
			Timestamp: bars[t].Timestamp,
			Horizon:   horizon,
			FoldIndex: -1,
		}
		if t+horizon >= len(bars) {
			continue
		}
		entry := bars[t].Close
		exit := bars[t+horizon].Close
		if entry <= 0 || exit <= 0 {
			continue
		}
		rows[t].FwdReturn = exit/entry - 1
		rows[t].Valid = true
	}
	return rows
}

// FoldThresholds holds the class cut points fitted on one training fold.
type FoldThresholds struct {
	Neg float64 // 33rd percentile of training absolute returns
	Pos float64 // 67th percentile of training absolute returns
}

// FitThresholds computes the 33rd/67th percentiles of the training
// fold's absolute-return distribution. Only the given training indices
// are read, so appending or mutating validation/test rows cannot move
// the cut points.
func FitThresholds(raw []models.LabelRow, trainIdx []int) FoldThresholds {
	abs := make([]float64, 0, len(trainIdx))
	for _, i := range trainIdx {
		if i >= 0 && i < len(raw) && raw[i].Valid {
			abs = append(abs, math.Abs(raw[i].FwdReturn))
		}
	}
	if len(abs) == 0 {
		return FoldThresholds{}
	}
	return FoldThresholds{
		Neg: stats.Percentile(abs, 0.33),
		Pos: stats.Percentile(abs, 0.67),
	}
}

// Classify stamps fold membership and assigns the three-way class using
// the training-fold thresholds: +1 above +Pos, -1 below -Pos, 0 in the
// neutral band. The input is not modified.
func Classify(raw []models.LabelRow, thr FoldThresholds, foldIndex int, idx []int) []models.LabelRow {
	out := make([]models.LabelRow, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(raw) {
			continue
		}
		row := raw[i]
		row.FoldIndex = foldIndex
		row.ThrNeg = thr.Neg
		row.ThrPos = thr.Pos
		switch {
		case !row.Valid:
			row.Class = 0
		case row.FwdReturn >= thr.Pos && thr.Pos > 0:
			row.Class = 1
		case row.FwdReturn <= -thr.Pos && thr.Pos > 0:
			row.Class = -1
		default:
			row.Class = 0
		}
		out = append(out, row)
	}
	return out
}
