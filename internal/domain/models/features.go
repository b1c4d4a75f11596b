package models

import "time"

// FeatureValue is a nullable cell. Missing is explicit, never zero.
type FeatureValue struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Missing is the canonical absent cell.
var Missing = FeatureValue{}

// FV wraps a valid value.
func FV(v float64) FeatureValue { return FeatureValue{Value: v, Valid: true} }

// FeatureRow holds all feature cells computed at one decision timestamp
// (the bar close). Every cell is a pure function of bars at or before
// that timestamp.
type FeatureRow struct {
	Symbol    string                  `json:"symbol"`
	Timestamp time.Time               `json:"timestamp"`
	Values    map[string]FeatureValue `json:"values"`
}

// LabelRow carries the forward-looking target for one decision timestamp.
// Thresholds are fitted on the owning fold's training slice only.
type LabelRow struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Horizon   int       `json:"horizon"`
	FwdReturn float64   `json:"fwd_return"`
	Class     int       `json:"class"` // -1, 0, +1
	ThrNeg    float64   `json:"thr_neg"`
	ThrPos    float64   `json:"thr_pos"`
	FoldIndex int       `json:"fold_index"`
	Valid     bool      `json:"valid"` // false when the horizon runs past the series end
}
