package models

import "time"

// ExperimentRun ties a snapshot, a config digest, and every per-fold
// result into one reproducible record. Re-running the same snapshot and
// config must reproduce this byte for byte (seeds included).
type ExperimentRun struct {
	RunID        string    `json:"run_id"`
	CandidateID  string    `json:"candidate_id"`
	SnapshotRef  string    `json:"snapshot_ref"`
	ConfigDigest string    `json:"config_digest"`
	Seeds        []int64   `json:"seeds"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	Folds     []FoldResult      `json:"folds"`
	Aggregate *AggregateSummary `json:"aggregate"`

	// SeedWinRates maps seed -> aggregate OOS win rate, in Seeds order.
	SeedWinRates []float64 `json:"seed_win_rates"`
}
