package learners

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/domain/repository"
	"QuantGate/internal/services/stats"
)

// RuleLearner is a deterministic momentum-threshold rule. Fit only
// calibrates the entry threshold from the training distribution; the
// seed is ignored because nothing here is stochastic.
type RuleLearner struct {
	// EntryQuantile is the training-distribution quantile used as the
	// entry threshold. Zero means the default of 0.60.
	EntryQuantile float64
}

func (RuleLearner) Name() string               { return "momentum-rule" }
func (RuleLearner) Kind() models.CandidateKind { return models.RuleCandidate }

func (l RuleLearner) Fit(_ context.Context, train repository.FoldSlice, _ int64) (repository.FittedModel, error) {
	column := momentumColumn(train.Features)
	if column == "" {
		return nil, fmt.Errorf("momentum rule: no momentum feature column in training slice")
	}

	q := l.EntryQuantile
	if q == 0 {
		q = 0.60
	}
	var vals []float64
	for _, row := range train.Features {
		if fv, ok := row.Values[column]; ok && fv.Valid {
			vals = append(vals, fv.Value)
		}
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("momentum rule: column %s has no valid training values", column)
	}

	return &ruleModel{column: column, threshold: stats.Percentile(vals, q)}, nil
}

// momentumColumn picks the shortest-lookback momentum column; sorted
// order keeps the choice deterministic across runs.
func momentumColumn(rows []models.FeatureRow) string {
	if len(rows) == 0 {
		return ""
	}
	var cols []string
	for name := range rows[0].Values {
		if strings.HasPrefix(name, "momentum_") {
			cols = append(cols, name)
		}
	}
	if len(cols) == 0 {
		return ""
	}
	sort.Slice(cols, func(i, j int) bool {
		li, _ := strconv.Atoi(strings.TrimPrefix(cols[i], "momentum_"))
		lj, _ := strconv.Atoi(strings.TrimPrefix(cols[j], "momentum_"))
		return li < lj
	})
	return cols[0]
}

type ruleModel struct {
	column    string
	threshold float64
}

func (m *ruleModel) Digest() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("momentum-rule|%s|%s",
		m.column, strconv.FormatFloat(m.threshold, 'g', -1, 64))))
	return hex.EncodeToString(sum[:])
}

// Evaluate enters long whenever momentum clears the calibrated
// threshold; each labelled entry closes one outcome at the horizon.
func (m *ruleModel) Evaluate(ctx context.Context, slice repository.FoldSlice) ([]models.Outcome, error) {
	var out []models.Outcome
	for i, row := range slice.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(slice.Labels) || !slice.Labels[i].Valid {
			continue
		}
		fv, ok := row.Values[m.column]
		if !ok || !fv.Valid || fv.Value <= m.threshold {
			continue
		}
		o := models.Outcome{
			Timestamp: row.Timestamp,
			Win:       slice.Labels[i].FwdReturn > 0,
			Return:    slice.Labels[i].FwdReturn,
		}
		if i < len(slice.Regimes) {
			o.Regime = slice.Regimes[i]
		}
		out = append(out, o)
	}
	return out, nil
}
