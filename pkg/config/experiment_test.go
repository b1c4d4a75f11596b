package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validExperiment = `
schema_version: 1
candidate: mom-xover-v2
kind: learned
snapshot:
  ref: sha256:deadbeef
  symbol: BTCUSDT
features:
  families:
    - family: momentum
      lookbacks: [5, 20]
    - family: rsi
      lookbacks: [14]
labels:
  horizon: 5
folds:
  count: 5
  gap: 5
  validation_bars: 50
  test_bars: 50
  initial_train: 200
  embargo: 5
seeds: [1, 2, 3]
`

func TestParseExperimentValid(t *testing.T) {
	c, err := ParseExperiment([]byte(validExperiment))
	require.NoError(t, err)
	assert.Equal(t, "mom-xover-v2", c.Candidate)
	assert.Equal(t, 5, c.Labels.Horizon)
	// defaults applied
	assert.Equal(t, 0.95, c.Gates.Confidence)
	assert.Equal(t, 20, c.Folds.MinTestSamples)
	assert.Equal(t, 0.15, c.Gates.OverfitCeiling)
}

func TestParseExperimentRejectsUnknownKeys(t *testing.T) {
	doc := validExperiment + "\nturbo_mode: true\n"
	_, err := ParseExperiment([]byte(doc))
	require.Error(t, err)
}

func TestParseExperimentGapBelowHorizon(t *testing.T) {
	bad := `
schema_version: 1
candidate: x
kind: rule
snapshot: {ref: "sha256:aa", symbol: BTCUSDT}
features:
  families: [{family: momentum, lookbacks: [5]}]
labels: {horizon: 10}
folds: {count: 3, gap: 5, validation_bars: 50, test_bars: 50, initial_train: 200}
seeds: [1]
`
	_, err := ParseExperiment([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap")
}

func TestParseExperimentLearnedNeedsThreeSeeds(t *testing.T) {
	bad := `
schema_version: 1
candidate: x
kind: learned
snapshot: {ref: "sha256:aa", symbol: BTCUSDT}
features:
  families: [{family: momentum, lookbacks: [5]}]
labels: {horizon: 5}
folds: {count: 3, gap: 5, validation_bars: 50, test_bars: 50, initial_train: 200}
seeds: [1, 2]
`
	_, err := ParseExperiment([]byte(bad))
	require.Error(t, err)
}

func TestExperimentDigestStable(t *testing.T) {
	a, err := ParseExperiment([]byte(validExperiment))
	require.NoError(t, err)
	b, err := ParseExperiment([]byte(validExperiment))
	require.NoError(t, err)
	assert.Equal(t, a.Digest(), b.Digest())

	b.Labels.Horizon = 10
	assert.NotEqual(t, a.Digest(), b.Digest())
}
