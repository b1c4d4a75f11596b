package learners

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/domain/repository"
)

// slice builds an index-aligned fold slice where the momentum feature
// alternates strength and labels follow it.
func testSlice(n int) repository.FoldSlice {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := repository.FoldSlice{}
	for i := 0; i < n; i++ {
		mom := float64(i%7)/10 - 0.2 // -0.2 .. 0.4
		ret := mom * 0.1
		s.Features = append(s.Features, models.FeatureRow{
			Symbol:    "X",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Values: map[string]models.FeatureValue{
				"momentum_5": models.FV(mom),
				"rsi_14":     models.FV(50 + mom*100),
			},
		})
		class := 0
		if ret > 0.01 {
			class = 1
		} else if ret < -0.01 {
			class = -1
		}
		s.Labels = append(s.Labels, models.LabelRow{
			Symbol: "X", Timestamp: s.Features[i].Timestamp,
			Horizon: 5, FwdReturn: ret, Class: class, Valid: true,
		})
		s.Regimes = append(s.Regimes, "sideways")
	}
	return s
}

func TestRuleLearnerDeterministic(t *testing.T) {
	ctx := context.Background()
	l := RuleLearner{}
	s := testSlice(100)

	m1, err := l.Fit(ctx, s, 1)
	require.NoError(t, err)
	m2, err := l.Fit(ctx, s, 99)
	require.NoError(t, err)
	assert.Equal(t, m1.Digest(), m2.Digest(), "rule fit ignores the seed")

	o1, err := m1.Evaluate(ctx, s)
	require.NoError(t, err)
	o2, err := m2.Evaluate(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
	assert.NotEmpty(t, o1)
}

func TestRuleLearnerTradesAboveThresholdOnly(t *testing.T) {
	ctx := context.Background()
	s := testSlice(100)
	m, err := RuleLearner{EntryQuantile: 0.9}.Fit(ctx, s, 0)
	require.NoError(t, err)

	strict, err := m.Evaluate(ctx, s)
	require.NoError(t, err)

	loose, err := RuleLearner{EntryQuantile: 0.2}.Fit(ctx, s, 0)
	require.NoError(t, err)
	looseOut, err := loose.Evaluate(ctx, s)
	require.NoError(t, err)
	assert.Less(t, len(strict), len(looseOut), "higher entry quantile trades less")
}

func TestRuleLearnerSkipsInvalidLabels(t *testing.T) {
	ctx := context.Background()
	s := testSlice(50)
	for i := 40; i < 50; i++ {
		s.Labels[i].Valid = false
	}
	m, err := RuleLearner{}.Fit(ctx, s, 0)
	require.NoError(t, err)
	out, err := m.Evaluate(ctx, s)
	require.NoError(t, err)
	cutoff := s.Features[40].Timestamp
	for _, o := range out {
		assert.True(t, o.Timestamp.Before(cutoff), "no outcome from an unlabelled row")
	}
}

func TestLogitLearnerSeedReproducible(t *testing.T) {
	ctx := context.Background()
	l := LogitLearner{}
	s := testSlice(200)

	m1, err := l.Fit(ctx, s, 42)
	require.NoError(t, err)
	m2, err := l.Fit(ctx, s, 42)
	require.NoError(t, err)
	assert.Equal(t, m1.Digest(), m2.Digest(), "same seed, same model")

	m3, err := l.Fit(ctx, s, 43)
	require.NoError(t, err)
	assert.NotEqual(t, m1.Digest(), m3.Digest(), "different seed, different model")
}

func TestLogitLearnerExposesWeights(t *testing.T) {
	ctx := context.Background()
	m, err := LogitLearner{}.Fit(ctx, testSlice(200), 7)
	require.NoError(t, err)

	wm, ok := m.(interface{ Weights() map[string]float64 })
	require.True(t, ok)
	w := wm.Weights()
	assert.Contains(t, w, "momentum_5")
	assert.Contains(t, w, "rsi_14")
}

func TestLogitLearnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LogitLearner{}.Fit(ctx, testSlice(200), 7)
	assert.ErrorIs(t, err, context.Canceled)
}
