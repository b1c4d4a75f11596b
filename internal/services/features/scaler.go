package features

import (
	"math"

	"QuantGate/internal/domain/models"
)

type columnStats struct {
	mean float64
	std  float64
}

// FoldScaler clips unbounded feature columns at a configured multiple
// of the training-fold standard deviation. Each fold fits its own
// scaler from its own training slice; no global statistic is ever used.
type FoldScaler struct {
	clipSigma float64
	stats     map[string]columnStats
}

// FitScaler computes per-column mean and stddev over the training rows.
// Missing cells are skipped; a column with fewer than two valid training
// cells gets no clipping bounds.
func FitScaler(trainRows []models.FeatureRow, clipSigma float64) *FoldScaler {
	acc := make(map[string]*[3]float64) // n, sum, sum2
	for _, row := range trainRows {
		for name, cell := range row.Values {
			if !cell.Valid || Bounded(name) {
				continue
			}
			a, ok := acc[name]
			if !ok {
				a = &[3]float64{}
				acc[name] = a
			}
			a[0]++
			a[1] += cell.Value
			a[2] += cell.Value * cell.Value
		}
	}

	stats := make(map[string]columnStats, len(acc))
	for name, a := range acc {
		n := a[0]
		if n < 2 {
			continue
		}
		mean := a[1] / n
		variance := (a[2] - n*mean*mean) / (n - 1)
		if variance < 0 {
			variance = 0
		}
		stats[name] = columnStats{mean: mean, std: math.Sqrt(variance)}
	}
	return &FoldScaler{clipSigma: clipSigma, stats: stats}
}

// Apply returns a copy of the row with unbounded cells clipped to
// mean ± clipSigma·std of the training fold. Bounded oscillator columns
// pass through unmodified.
func (s *FoldScaler) Apply(row models.FeatureRow) models.FeatureRow {
	out := models.FeatureRow{
		Symbol:    row.Symbol,
		Timestamp: row.Timestamp,
		Values:    make(map[string]models.FeatureValue, len(row.Values)),
	}
	for name, cell := range row.Values {
		if cell.Valid {
			if st, ok := s.stats[name]; ok && st.std > 0 {
				lo := st.mean - s.clipSigma*st.std
				hi := st.mean + s.clipSigma*st.std
				if cell.Value < lo {
					cell.Value = lo
				} else if cell.Value > hi {
					cell.Value = hi
				}
			}
		}
		out.Values[name] = cell
	}
	return out
}

// ApplyAll clips a whole slice of rows.
func (s *FoldScaler) ApplyAll(rows []models.FeatureRow) []models.FeatureRow {
	out := make([]models.FeatureRow, len(rows))
	for i, r := range rows {
		out[i] = s.Apply(r)
	}
	return out
}
