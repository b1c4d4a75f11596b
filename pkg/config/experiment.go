package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// FamilyConfig names one feature family and the lookback windows to
// compute it over. Feature columns are named "<family>_<lookback>".
type FamilyConfig struct {
	Family    string `yaml:"family" json:"family" validate:"required"`
	Lookbacks []int  `yaml:"lookbacks" json:"lookbacks" validate:"required,min=1,dive,gt=0"`
}

// ExperimentConfig is the structured experiment document. It is
// validated against the schema before use; unknown keys are rejected.
type ExperimentConfig struct {
	SchemaVersion int    `yaml:"schema_version" json:"schema_version" validate:"eq=1"`
	Candidate     string `yaml:"candidate" json:"candidate" validate:"required"`
	Kind          string `yaml:"kind" json:"kind" default:"learned" validate:"oneof=rule learned"`

	Snapshot struct {
		Ref    string    `yaml:"ref" json:"ref" validate:"required"`
		Symbol string    `yaml:"symbol" json:"symbol" validate:"required"`
		From   time.Time `yaml:"from" json:"from"`
		To     time.Time `yaml:"to" json:"to"`
	} `yaml:"snapshot" json:"snapshot"`

	Features struct {
		Families     []FamilyConfig `yaml:"families" json:"families" validate:"required,min=1,dive"`
		MaxFFillBars int            `yaml:"max_ffill_bars" json:"max_ffill_bars" default:"3" validate:"gte=0"`
		ClipSigma    float64        `yaml:"clip_sigma" json:"clip_sigma" default:"4" validate:"gt=0"`
	} `yaml:"features" json:"features"`

	Labels struct {
		Horizon int `yaml:"horizon" json:"horizon" default:"5" validate:"gt=0"`
	} `yaml:"labels" json:"labels"`

	Folds struct {
		Count           int `yaml:"count" json:"count" default:"5" validate:"gte=2"`
		Gap             int `yaml:"gap" json:"gap" validate:"gte=0"`
		ValidationBars  int `yaml:"validation_bars" json:"validation_bars" validate:"gt=0"`
		TestBars        int `yaml:"test_bars" json:"test_bars" validate:"gt=0"`
		InitialTrain    int `yaml:"initial_train" json:"initial_train" validate:"gt=0"`
		Embargo         int `yaml:"embargo" json:"embargo" validate:"gte=0"`
		MinTestSamples  int `yaml:"min_test_samples" json:"min_test_samples" default:"20" validate:"gt=0"`
		MaxInsufficient int `yaml:"max_insufficient" json:"max_insufficient" default:"1" validate:"gte=0"`
	} `yaml:"folds" json:"folds"`

	Seeds []int64 `yaml:"seeds" json:"seeds" validate:"required,min=1"`

	Gates struct {
		Confidence          float64 `yaml:"confidence" json:"confidence" default:"0.95" validate:"gt=0,lt=1"`
		OverfitCeiling      float64 `yaml:"overfit_ceiling" json:"overfit_ceiling" default:"0.15" validate:"gt=0"`
		DegradationDelta    float64 `yaml:"degradation_delta" json:"degradation_delta" default:"0.10" validate:"gt=0"`
		SeedStdDevCeiling   float64 `yaml:"seed_stddev_ceiling" json:"seed_stddev_ceiling" default:"0.05" validate:"gt=0"`
		SeedHardCeiling     float64 `yaml:"seed_hard_ceiling" json:"seed_hard_ceiling" default:"0.15" validate:"gt=0"`
		ConcentrationCap    float64 `yaml:"concentration_cap" json:"concentration_cap" default:"0.40" validate:"gt=0,lte=1"`
		MinOOSScore         float64 `yaml:"min_oos_score" json:"min_oos_score" default:"0.52" validate:"gt=0,lt=1"`
		MinWinRate          float64 `yaml:"min_win_rate" json:"min_win_rate" default:"0.50"`
		MinProfitFactor     float64 `yaml:"min_profit_factor" json:"min_profit_factor" default:"1.1"`
		MinFillRate         float64 `yaml:"min_fill_rate" json:"min_fill_rate" default:"0.90"`
		MaxSlippageBps      float64 `yaml:"max_slippage_bps" json:"max_slippage_bps" default:"10"`
		MinPaperTrades      int     `yaml:"min_paper_trades" json:"min_paper_trades" default:"50"`
		RollbackDriftFeats  int     `yaml:"rollback_drift_features" json:"rollback_drift_features" default:"3"`
		RollbackWinRateDrop float64 `yaml:"rollback_win_rate_drop" json:"rollback_win_rate_drop" default:"0.15"`
		RollbackMaxDrawdown float64 `yaml:"rollback_max_drawdown" json:"rollback_max_drawdown" default:"0.20"`
	} `yaml:"gates" json:"gates"`

	Aggregate struct {
		// IncludeInsufficient folds insufficient-data folds into the
		// aggregate win-rate interval. Default excludes them entirely.
		IncludeInsufficient bool `yaml:"include_insufficient" json:"include_insufficient"`
	} `yaml:"aggregate" json:"aggregate"`

	Regime struct {
		Window     int     `yaml:"window" json:"window" default:"20" validate:"gt=1"`
		BullReturn float64 `yaml:"bull_return" json:"bull_return" default:"0.02"`
		BearReturn float64 `yaml:"bear_return" json:"bear_return" default:"-0.02"`
	} `yaml:"regime" json:"regime"`
}

// LoadExperiment reads and strictly validates an experiment document.
func LoadExperiment(path string) (*ExperimentConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment config: %w", err)
	}
	return ParseExperiment(b)
}

// ParseExperiment decodes an experiment document from YAML bytes.
func ParseExperiment(b []byte) (*ExperimentConfig, error) {
	var c ExperimentConfig
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse experiment config: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate experiment config: %w", err)
	}
	if c.Folds.Gap < c.Labels.Horizon {
		return nil, fmt.Errorf("validate experiment config: folds.gap (%d) must be >= labels.horizon (%d)",
			c.Folds.Gap, c.Labels.Horizon)
	}
	if c.Kind == "learned" && len(c.Seeds) < 3 {
		return nil, fmt.Errorf("validate experiment config: learned candidates need at least 3 seeds for stability testing, got %d", len(c.Seeds))
	}
	return &c, nil
}

// Digest content-addresses the config. Two experiments with the same
// digest and snapshot ref are byte-for-byte reruns of each other.
func (c *ExperimentConfig) Digest() string {
	b, _ := json.Marshal(c)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
