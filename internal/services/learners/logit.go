package learners

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/domain/repository"
)

// LogitLearner fits a logistic regression by seeded SGD over all valid
// feature columns, targeting the positive label class. Every stochastic
// step (weight init, epoch shuffling) draws from the supplied seed, so
// Fit is a pure function of (slice, seed).
type LogitLearner struct {
	// Epochs and LearningRate default to 20 and 0.05 when zero.
	Epochs       int
	LearningRate float64
}

func (LogitLearner) Name() string               { return "logit-sgd" }
func (LogitLearner) Kind() models.CandidateKind { return models.LearnedCandidate }

func (l LogitLearner) Fit(ctx context.Context, train repository.FoldSlice, seed int64) (repository.FittedModel, error) {
	epochs := l.Epochs
	if epochs == 0 {
		epochs = 20
	}
	lr := l.LearningRate
	if lr == 0 {
		lr = 0.05
	}

	cols := columnNames(train.Features)
	if len(cols) == 0 {
		return nil, fmt.Errorf("logit: no feature columns in training slice")
	}

	// rows usable for training: a valid label and at least one valid cell
	type sample struct {
		x []float64
		m []bool // per-column validity mask
		y float64
	}
	var samples []sample
	for i, row := range train.Features {
		if i >= len(train.Labels) || !train.Labels[i].Valid {
			continue
		}
		s := sample{x: make([]float64, len(cols)), m: make([]bool, len(cols))}
		any := false
		for j, c := range cols {
			if fv, ok := row.Values[c]; ok && fv.Valid {
				s.x[j] = fv.Value
				s.m[j] = true
				any = true
			}
		}
		if !any {
			continue
		}
		if train.Labels[i].Class > 0 {
			s.y = 1
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("logit: no usable training rows")
	}

	rng := rand.New(rand.NewSource(seed))
	w := make([]float64, len(cols))
	for j := range w {
		w[j] = (rng.Float64() - 0.5) * 0.01
	}
	var bias float64

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	for e := 0; e < epochs; e++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			s := samples[i]
			z := bias
			for j := range w {
				if s.m[j] {
					z += w[j] * s.x[j]
				}
			}
			g := sigmoid(z) - s.y
			bias -= lr * g
			for j := range w {
				if s.m[j] {
					w[j] -= lr * g * s.x[j]
				}
			}
		}
	}

	weights := make(map[string]float64, len(cols))
	for j, c := range cols {
		weights[c] = w[j]
	}
	return &logitModel{columns: cols, weights: weights, bias: bias, seed: seed}, nil
}

func columnNames(rows []models.FeatureRow) []string {
	if len(rows) == 0 {
		return nil
	}
	out := make([]string, 0, len(rows[0].Values))
	for name := range rows[0].Values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

type logitModel struct {
	columns []string
	weights map[string]float64
	bias    float64
	seed    int64
}

// Weights exposes the fitted coefficients for concentration checks.
func (m *logitModel) Weights() map[string]float64 {
	return m.weights
}

func (m *logitModel) Digest() string {
	// json.Marshal sorts map keys, so the digest is canonical
	raw, _ := json.Marshal(struct {
		Weights map[string]float64 `json:"weights"`
		Bias    float64            `json:"bias"`
		Seed    int64              `json:"seed"`
	}{m.weights, m.bias, m.seed})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Evaluate enters long when the predicted probability clears 0.5.
func (m *logitModel) Evaluate(ctx context.Context, slice repository.FoldSlice) ([]models.Outcome, error) {
	var out []models.Outcome
	for i, row := range slice.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(slice.Labels) || !slice.Labels[i].Valid {
			continue
		}
		z := m.bias
		any := false
		for _, c := range m.columns {
			if fv, ok := row.Values[c]; ok && fv.Valid {
				z += m.weights[c] * fv.Value
				any = true
			}
		}
		if !any || sigmoid(z) <= 0.5 {
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
