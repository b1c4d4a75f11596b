package folds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
	"QuantGate/pkg/config"
)

func testTimestamps(n int) []int64 {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]int64, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Hour).UnixMilli()
	}
	return out
}

func foldConfig(t *testing.T) *config.ExperimentConfig {
	t.Helper()
	doc := `
schema_version: 1
candidate: test
kind: rule
snapshot: {ref: "sha256:aa", symbol: BTCUSDT}
features:
  families: [{family: momentum, lookbacks: [5]}]
labels: {horizon: 5}
folds:
  count: 4
  gap: 6
  validation_bars: 40
  test_bars: 40
  initial_train: 200
  embargo: 5
seeds: [7]
`
	cfg, err := config.ParseExperiment([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestScheduleBoundariesRespectGap(t *testing.T) {
	cfg := foldConfig(t)
	fs, err := Schedule(testTimestamps(1000), cfg)
	require.NoError(t, err)
	require.Len(t, fs, 4)

	gap := cfg.Folds.Gap
	for _, f := range fs {
		trainEnd := f.Train.End + f.Purged // pre-purge boundary
		assert.LessOrEqual(t, trainEnd+gap, f.Validation.Start, "fold %d: train->validation gap", f.Index)
		assert.LessOrEqual(t, f.Validation.End+gap, f.Test.Start, "fold %d: validation->test gap", f.Index)
		assert.GreaterOrEqual(t, gap, cfg.Labels.Horizon)
	}
}

func TestScheduleExpandingTrain(t *testing.T) {
	cfg := foldConfig(t)
	fs, err := Schedule(testTimestamps(1000), cfg)
	require.NoError(t, err)

	for i := 1; i < len(fs); i++ {
		assert.Equal(t, 0, fs[i].Train.Start, "train start is fixed")
		assert.Greater(t, fs[i].Train.End, fs[i-1].Train.End, "train end advances")
		assert.Greater(t, fs[i].Test.Start, fs[i-1].Test.End, "test windows do not overlap")
	}
}

func TestSchedulePurge(t *testing.T) {
	cfg := foldConfig(t)
	fs, err := Schedule(testTimestamps(1000), cfg)
	require.NoError(t, err)

	for _, f := range fs {
		assert.Equal(t, cfg.Labels.Horizon, f.Purged, "fold %d purges one horizon of training rows", f.Index)
	}
}

func TestScheduleEmbargo(t *testing.T) {
	cfg := foldConfig(t)
	fs, err := Schedule(testTimestamps(1000), cfg)
	require.NoError(t, err)

	// fold 1 training must exclude fold 0's validation range plus the
	// embargo padding
	f0, f1 := fs[0], fs[1]
	require.NotEmpty(t, f1.Embargoed)

	train := map[int]bool{}
	for _, i := range f1.TrainIndices() {
		train[i] = true
	}
	for i := f0.Validation.Start - cfg.Folds.Embargo; i < f0.Validation.End+cfg.Folds.Embargo; i++ {
		if i >= 0 && i < f1.Train.End {
			assert.False(t, train[i], "embargoed index %d reappeared in fold 1 training", i)
		}
	}
	// non-embargoed early rows stay in training
	assert.True(t, train[0])
}

func TestScheduleInsufficientRange(t *testing.T) {
	cfg := foldConfig(t)
	_, err := Schedule(testTimestamps(300), cfg)
	var serr *ScheduleError
	require.ErrorAs(t, err, &serr)
}

func TestVerifyBoundariesAcceptsScheduledFolds(t *testing.T) {
	cfg := foldConfig(t)
	fs, err := Schedule(testTimestamps(1000), cfg)
	require.NoError(t, err)

	for i := range fs {
		assert.NoError(t, VerifyBoundaries(&fs[i], cfg.Labels.Horizon))
	}
}

func TestVerifyBoundariesCatchesHorizonOverlap(t *testing.T) {
	cfg := foldConfig(t)
	fs, err := Schedule(testTimestamps(1000), cfg)
	require.NoError(t, err)

	var lerr *LeakageError

	// validation pulled inside the training label horizon
	bad := fs[0]
	bad.Validation.Start = bad.Train.End + 1
	require.ErrorAs(t, VerifyBoundaries(&bad, cfg.Labels.Horizon), &lerr)
	assert.Equal(t, models.ReasonLeakage, lerr.Reason)
	assert.Equal(t, bad.Index, lerr.Fold)

	// test pulled inside the validation label horizon
	bad = fs[0]
	bad.Test.Start = bad.Validation.End + 1
	require.ErrorAs(t, VerifyBoundaries(&bad, cfg.Labels.Horizon), &lerr)
	assert.Equal(t, models.ReasonLeakage, lerr.Reason)
}

func TestScheduleDeterministic(t *testing.T) {
	cfg := foldConfig(t)
	ts := testTimestamps(1000)
	a, err := Schedule(ts, cfg)
	require.NoError(t, err)
	b, err := Schedule(ts, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
