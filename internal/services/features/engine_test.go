package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
	"QuantGate/pkg/config"
)

func testBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		// deterministic wiggle, strictly positive
		drift := math.Sin(float64(i)/7)*2 + 0.1
		price += drift
		bars[i] = models.Bar{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000 + 50*math.Cos(float64(i)/3),
		}
	}
	return bars
}

func testConfig(t *testing.T, families string) *config.ExperimentConfig {
	t.Helper()
	doc := `
schema_version: 1
candidate: test
kind: rule
snapshot: {ref: "sha256:aa", symbol: BTCUSDT}
features:
  families:
` + families + `
labels: {horizon: 5}
folds: {count: 3, gap: 5, validation_bars: 30, test_bars: 30, initial_train: 100}
seeds: [1]
`
	cfg, err := config.ParseExperiment([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestComputeNoLookahead(t *testing.T) {
	cfg := testConfig(t, `    - {family: momentum, lookbacks: [5]}
    - {family: rsi, lookbacks: [14]}
    - {family: volatility, lookbacks: [10]}
`)
	bars := testBars(120)
	engine := NewEngine()

	before, err := engine.Compute(bars, cfg)
	require.NoError(t, err)

	// mutate everything strictly after t
	const cut = 60
	mutated := make([]models.Bar, len(bars))
	copy(mutated, bars)
	for i := cut + 1; i < len(mutated); i++ {
		mutated[i].Close *= 3
		mutated[i].High *= 3
		mutated[i].Low *= 3
		mutated[i].Open *= 3
		mutated[i].Volume += 9999
	}

	after, err := engine.Compute(mutated, cfg)
	require.NoError(t, err)

	for tIdx := 0; tIdx <= cut; tIdx++ {
		assert.Equal(t, before[tIdx].Values, after[tIdx].Values, "feature at t=%d changed after mutating future bars", tIdx)
	}
}

func TestComputeWarmupIsMissing(t *testing.T) {
	cfg := testConfig(t, `    - {family: momentum, lookbacks: [60]}
`)
	engine := NewEngine()

	// 60 rows: the 60-lookback column never becomes valid
	rows, err := engine.Compute(testBars(60), cfg)
	require.NoError(t, err)
	col := ColumnName("momentum", 60)
	for i := range rows {
		assert.False(t, rows[i].Values[col].Valid, "row %d should be missing", i)
	}

	// 61 rows: first valid cell is exactly row 60
	rows, err = engine.Compute(testBars(61), cfg)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		assert.False(t, rows[i].Values[col].Valid, "row %d should be missing", i)
	}
	assert.True(t, rows[60].Values[col].Valid)
}

func TestComputeRejectsUnknownFamily(t *testing.T) {
	cfg := testConfig(t, `    - {family: astrology, lookbacks: [7]}
`)
	_, err := NewEngine().Compute(testBars(50), cfg)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, models.ReasonUnknownFamily, cerr.Reason)
}

func TestComputeRejectsNonMonotonicBars(t *testing.T) {
	cfg := testConfig(t, `    - {family: momentum, lookbacks: [5]}
`)
	bars := testBars(50)
	bars[20].Timestamp = bars[10].Timestamp.Add(-time.Hour)
	_, err := NewEngine().Compute(bars, cfg)
	var derr *models.DataIntegrityError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, models.ReasonNonMonotonic, derr.Reason)
}

func TestComputeEmptyInput(t *testing.T) {
	cfg := testConfig(t, `    - {family: momentum, lookbacks: [5]}
`)
	rows, err := NewEngine().Compute(nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestZeroVolumeInvalidatesVolumeFeatures(t *testing.T) {
	cfg := testConfig(t, `    - {family: volume, lookbacks: [10]}
    - {family: momentum, lookbacks: [10]}
`)
	cfg.Features.MaxFFillBars = 0

	bars := testBars(50)
	bars[30].Volume = 0
	rows, err := NewEngine().Compute(bars, cfg)
	require.NoError(t, err)

	volCol := ColumnName("volume", 10)
	momCol := ColumnName("momentum", 10)
	assert.False(t, rows[30].Values[volCol].Valid, "zero-volume bar must invalidate volume feature")
	assert.True(t, rows[30].Values[momCol].Valid, "price features unaffected by zero volume")
	assert.True(t, rows[31].Values[volCol].Valid, "only the zero-volume bar is invalidated")
}

func TestForwardFillBounded(t *testing.T) {
	cfg := testConfig(t, `    - {family: volume, lookbacks: [10]}
`)
	cfg.Features.MaxFFillBars = 2

	bars := testBars(60)
	// a 4-bar volume outage: first two cells fill, the rest stay missing
	for i := 30; i < 34; i++ {
		bars[i].Volume = 0
	}
	rows, err := NewEngine().Compute(bars, cfg)
	require.NoError(t, err)

	col := ColumnName("volume", 10)
	assert.True(t, rows[30].Values[col].Valid)
	assert.True(t, rows[31].Values[col].Valid)
	assert.Equal(t, rows[29].Values[col], rows[31].Values[col])
	assert.False(t, rows[32].Values[col].Valid)
	assert.False(t, rows[33].Values[col].Valid)
}

func TestComputeDeterministic(t *testing.T) {
	cfg := testConfig(t, `    - {family: momentum, lookbacks: [5, 20]}
    - {family: rsi, lookbacks: [14]}
    - {family: mfi, lookbacks: [14]}
    - {family: range, lookbacks: [10]}
`)
	bars := testBars(100)
	a, err := NewEngine().Compute(bars, cfg)
	require.NoError(t, err)
	b, err := NewEngine().Compute(bars, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScalerClipsUnboundedOnly(t *testing.T) {
	rows := []models.FeatureRow{
		{Values: map[string]models.FeatureValue{"momentum_5": models.FV(0.01), "rsi_14": models.FV(55)}},
		{Values: map[string]models.FeatureValue{"momentum_5": models.FV(-0.01), "rsi_14": models.FV(45)}},
		{Values: map[string]models.FeatureValue{"momentum_5": models.FV(0.02), "rsi_14": models.FV(60)}},
		{Values: map[string]models.FeatureValue{"momentum_5": models.FV(-0.02), "rsi_14": models.FV(40)}},
	}
	scaler := FitScaler(rows, 2.0)

	outlier := models.FeatureRow{Values: map[string]models.FeatureValue{
		"momentum_5": models.FV(5.0), // far outside 2 sigma of train
		"rsi_14":     models.FV(99),  // bounded family, untouched
	}}
	clipped := scaler.Apply(outlier)
	assert.Less(t, clipped.Values["momentum_5"].Value, 5.0)
	assert.Equal(t, 99.0, clipped.Values["rsi_14"].Value)

	// missing stays missing
	missing := models.FeatureRow{Values: map[string]models.FeatureValue{"momentum_5": models.Missing}}
	assert.False(t, scaler.Apply(missing).Values["momentum_5"].Valid)
}

func TestThresholdsIndependentOfTestFold(t *testing.T) {
	bars := testBars(120)
	raw := ComputeForwardReturns(bars, 5)

	trainIdx := make([]int, 60)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	thrBefore := FitThresholds(raw, trainIdx)

	// mutate returns outside the training fold
	for i := 80; i < 110; i++ {
		raw[i].FwdReturn *= 50
	}
	thrAfter := FitThresholds(raw, trainIdx)
	assert.Equal(t, thrBefore, thrAfter)
}

func TestClassifyUsesTrainThresholds(t *testing.T) {
	bars := testBars(120)
	raw := ComputeForwardReturns(bars, 5)

	idx := []int{10, 11, 12}
	thr := FoldThresholds{Neg: 0.001, Pos: 0.02}
	labelled := Classify(raw, thr, 2, idx)
	require.Len(t, labelled, 3)
	for _, row := range labelled {
		assert.Equal(t, 2, row.FoldIndex)
		assert.Equal(t, thr.Pos, row.ThrPos)
		if row.Valid && row.FwdReturn >= thr.Pos {
			assert.Equal(t, 1, row.Class)
		}
	}
}

func TestForwardReturnsStrictlyFuture(t *testing.T) {
	bars := testBars(50)
	raw := ComputeForwardReturns(bars, 5)

	// last horizon rows cannot close
	for i := 45; i < 50; i++ {
		assert.False(t, raw[i].Valid)
	}
	// forward return at t reads bar t+5 only
	want := bars[15].Close/bars[10].Close - 1
	assert.InDelta(t, want, raw[10].FwdReturn, 1e-12)
}
