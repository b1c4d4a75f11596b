package models

import "time"

// Outcome is one closed trade produced by evaluating a fitted candidate
// over a fold slice.
type Outcome struct {
	Timestamp time.Time `json:"timestamp"`
	Win       bool      `json:"win"`
	Return    float64   `json:"return"`
	Regime    string    `json:"regime,omitempty"`
}

// WinRateCI is a Wilson score interval. Defined=false means n was zero;
// that is not the same thing as an interval of [0,0].
type WinRateCI struct {
	Center  float64 `json:"center"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Defined bool    `json:"defined"`
}

// FoldResult is the per-fold record handed to reporting and registry
// collaborators.
type FoldResult struct {
	FoldIndex    int            `json:"fold_index"`
	TrainStart   time.Time      `json:"train_start"`
	TrainEnd     time.Time      `json:"train_end"`
	TestStart    time.Time      `json:"test_start"`
	TestEnd      time.Time      `json:"test_end"`
	RegimeCounts map[string]int `json:"regime_counts,omitempty"`

	ClosedTrades int       `json:"closed_trades"`
	Wins         int       `json:"wins"`
	WinRate      float64   `json:"win_rate"`
	WinRateCI    WinRateCI `json:"win_rate_ci"`
	ProfitFactor float64   `json:"profit_factor"`
	Sharpe       float64   `json:"sharpe"`
	MaxDrawdown  float64   `json:"max_drawdown"`

	TrainWinRate float64 `json:"train_win_rate"`
	OverfitScore float64 `json:"overfit_score"`
	OverfitBand  string  `json:"overfit_band"` // low / moderate / high

	Status  FoldStatus `json:"status"`
	Reasons []Reason   `json:"reasons,omitempty"`
}

// GateCheck is one itemized line of the promotion checklist.
type GateCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// AggregateSummary combines all folds of a run into the record the
// promotion gate consumes.
type AggregateSummary struct {
	RunID       string `json:"run_id"`
	SnapshotRef string `json:"snapshot_ref"`

	FoldsTotal        int `json:"folds_total"`
	FoldsPassed       int `json:"folds_passed"`
	FoldsWarned       int `json:"folds_warned"`
	FoldsFailed       int `json:"folds_failed"`
	FoldsInsufficient int `json:"folds_insufficient"`

	ClosedTrades int       `json:"closed_trades"`
	WinRate      float64   `json:"win_rate"`
	WinRateCI    WinRateCI `json:"win_rate_ci"`
	ProfitFactor float64   `json:"profit_factor"`
	Sharpe       float64   `json:"sharpe"`
	MaxDrawdown  float64   `json:"max_drawdown"`

	RegimeCoverage map[string]int `json:"regime_coverage,omitempty"`

	OverfitScore float64 `json:"overfit_score"`
	OverfitBand  string  `json:"overfit_band"`
	DriftSuspect bool    `json:"drift_suspect"`
	SeedStdDev   float64 `json:"seed_std_dev"`
	SeedUnstable bool    `json:"seed_unstable"`

	PromotionEligible bool        `json:"promotion_eligible"`
	Checks            []GateCheck `json:"checks"`
	Reasons           []Reason    `json:"reasons,omitempty"`
}
