package usecase

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/repository"
	"QuantGate/internal/services/learners"
	"QuantGate/pkg/config"
)

type stubLoader struct {
	bars []models.Bar
}

func (s *stubLoader) Load(_ context.Context, _, _ string, _, _ time.Time) ([]models.Bar, error) {
	return s.bars, nil
}
func (s *stubLoader) Health(context.Context) error { return nil }

type stubMetrics struct {
	runs  map[string]int
	folds map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{runs: map[string]int{}, folds: map[string]int{}}
}
func (m *stubMetrics) RecordRun(status string)        { m.runs[status]++ }
func (m *stubMetrics) RecordFold(status string)       { m.folds[status]++ }
func (m *stubMetrics) RecordGateDecision(_, _ string) {}
func (m *stubMetrics) RecordFoldDuration(float64)     {}

func syntheticBars(n int) []models.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := 0.0004 + 0.003*math.Sin(float64(i)/17)
		price *= 1 + drift
		out[i] = models.Bar{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price * 0.999,
			High:      price * 1.004,
			Low:       price * 0.996,
			Close:     price,
			Volume:    1000 + 50*math.Sin(float64(i)/5),
		}
	}
	return out
}

func runnerConfig(t *testing.T, minTest int) *config.ExperimentConfig {
	t.Helper()
	doc := `
schema_version: 1
candidate: mom-rule-v1
kind: rule
snapshot: {ref: "sha256:test", symbol: BTCUSDT}
features:
  families:
    - {family: momentum, lookbacks: [5, 20]}
    - {family: rsi, lookbacks: [14]}
labels: {horizon: 5}
folds:
  count: 3
  gap: 6
  validation_bars: 30
  test_bars: 40
  initial_train: 200
  embargo: 5
  min_test_samples: 5
seeds: [7]
`
	cfg, err := config.ParseExperiment([]byte(doc))
	require.NoError(t, err)
	cfg.Folds.MinTestSamples = minTest
	return cfg
}

func newRunner(t *testing.T, bars []models.Bar) (*ExperimentRunner, *repository.FileEvidenceStore, *stubMetrics) {
	t.Helper()
	store, err := repository.NewFileEvidenceStore(t.TempDir())
	require.NoError(t, err)
	m := newStubMetrics()
	r := NewExperimentRunner(
		&stubLoader{bars: bars}, store,
		repository.NoopPublisher{}, repository.NoopSummaryCache{},
		m, nil, 4,
	)
	return r, store, m
}

func TestRunDeterministic(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 5)

	marshal := func() []byte {
		r, _, _ := newRunner(t, bars)
		run, _, err := r.Run(context.Background(), cfg, learners.RuleLearner{})
		require.NoError(t, err)
		raw, err := json.Marshal(struct {
			Folds     []models.FoldResult      `json:"folds"`
			Aggregate *models.AggregateSummary `json:"aggregate"`
		}{run.Folds, run.Aggregate})
		require.NoError(t, err)
		return raw
	}

	assert.Equal(t, string(marshal()), string(marshal()),
		"same snapshot and config must reproduce byte-identical fold and aggregate output")
}

func TestRunIDStable(t *testing.T) {
	cfg := runnerConfig(t, 5)
	assert.Equal(t, RunID(cfg), RunID(cfg))

	other := runnerConfig(t, 5)
	other.Snapshot.Ref = "sha256:other"
	assert.NotEqual(t, RunID(cfg), RunID(other))
}

func TestRunCommitsEvidence(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 5)
	r, store, m := newRunner(t, bars)

	run, decision, err := r.Run(context.Background(), cfg, learners.RuleLearner{})
	require.NoError(t, err)
	require.Len(t, run.Folds, 3)
	assert.Equal(t, 1, m.runs["ok"])

	ctx := context.Background()
	for _, key := range []string{"reproducibility", "folds", "aggregate", "drift-baselines", "gate-inputs", "gate"} {
		hist, err := store.History(ctx, run.RunID+"/"+key)
		require.NoError(t, err)
		assert.NotEmpty(t, hist, "missing evidence under %s", key)
	}

	// pre-gate and post-gate summary versions
	hist, err := store.History(ctx, run.RunID+"/aggregate")
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	var stored models.GateDecision
	gateHist, err := store.History(ctx, run.RunID+"/gate")
	require.NoError(t, err)
	require.Len(t, gateHist, 1)
	require.NoError(t, store.Get(ctx, gateHist[0], &stored))
	assert.Equal(t, decision.Verdict, stored.Verdict)
	assert.Equal(t, models.StageR1Research, stored.Stage)
}

func TestRunThinFoldsAreInsufficientNotFailed(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 10_000) // nothing can close that many trades

	r, _, m := newRunner(t, bars)
	run, decision, err := r.Run(context.Background(), cfg, learners.RuleLearner{})
	require.NoError(t, err)

	assert.Equal(t, 3, run.Aggregate.FoldsInsufficient)
	assert.Equal(t, 0, run.Aggregate.FoldsFailed, "thin folds must not count as failures")
	assert.Equal(t, 3, m.folds[string(models.FoldInsufficient)])

	assert.Equal(t, models.VerdictInsufficient, decision.Verdict)
	assert.False(t, run.Aggregate.PromotionEligible)
	require.NotEmpty(t, decision.Reasons)
	assert.Equal(t, models.ReasonTooManyThinFold, decision.Reasons[0].Code)

	// insufficient folds stay out of the pooled interval by default
	assert.Equal(t, 0, run.Aggregate.ClosedTrades)
	assert.False(t, run.Aggregate.WinRateCI.Defined)
}

func TestRunRejectsLearnerKindMismatch(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 5) // kind: rule
	r, store, m := newRunner(t, bars)

	_, _, err := r.Run(context.Background(), cfg, learners.LogitLearner{})
	var cerr *RunConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, models.ReasonBadConfig, cerr.Reason)
	assert.Equal(t, 1, m.runs["rejected"])

	hist, err := store.History(context.Background(), RunID(cfg)+"/aggregate")
	require.NoError(t, err)
	assert.Empty(t, hist, "rejected configs must not reach the evidence store")
}

func TestRunGateScoresPooledWinRate(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 5)
	r, _, _ := newRunner(t, bars)

	run, _, err := r.Run(context.Background(), cfg, learners.RuleLearner{})
	require.NoError(t, err)

	var oos *models.GateCheck
	for i := range run.Aggregate.Checks {
		if run.Aggregate.Checks[i].Name == "oos_score_above_floor" {
			oos = &run.Aggregate.Checks[i]
		}
	}
	require.NotNil(t, oos, "gate must score the discriminative floor")
	assert.Equal(t, run.Aggregate.WinRate >= cfg.Gates.MinOOSScore, oos.Passed,
		"the floor check scores the pooled out-of-sample win rate")
}

func TestRunCancellationDiscardsPartialOutput(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 5)
	r, store, _ := newRunner(t, bars)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := r.Run(ctx, cfg, learners.RuleLearner{})
	require.Error(t, err)

	hist, err := store.History(context.Background(), RunID(cfg)+"/aggregate")
	require.NoError(t, err)
	assert.Empty(t, hist, "cancelled runs must leave nothing in the evidence store")
}

func TestRunLearnedCandidateStoresStabilityEvidence(t *testing.T) {
	bars := syntheticBars(600)
	cfg := runnerConfig(t, 5)
	cfg.Kind = "learned"
	cfg.Seeds = []int64{1, 2, 3}

	r, store, _ := newRunner(t, bars)
	run, _, err := r.Run(context.Background(), cfg, learners.LogitLearner{})
	require.NoError(t, err)
	require.Len(t, run.SeedWinRates, 3)

	ctx := context.Background()
	for _, key := range []string{"stability", "model-digest"} {
		hist, err := store.History(ctx, run.RunID+"/"+key)
		require.NoError(t, err)
		assert.NotEmpty(t, hist, "learned candidates must record %s", key)
	}
}
