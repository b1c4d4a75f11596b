package models

// ReasonCode is a machine-readable classification attached to every
// rejection or downgrade. No verdict in the core is emitted without one.
type ReasonCode string

const (
	// Configuration errors (rejected before any computation).
	ReasonUnknownFamily ReasonCode = "config.unknown_feature_family"
	ReasonBadConfig     ReasonCode = "config.invalid"

	// Data integrity errors (offending input range rejected).
	ReasonNonMonotonic   ReasonCode = "data.non_monotonic_timestamps"
	ReasonNegativePrice  ReasonCode = "data.negative_price"
	ReasonNegativeVolume ReasonCode = "data.negative_volume"
	ReasonOHLCSanity     ReasonCode = "data.ohlc_sanity"
	ReasonSnapshotHash   ReasonCode = "data.snapshot_hash_mismatch"

	// Insufficient evidence (non-fatal, never conflated with failure).
	ReasonTooFewTrades    ReasonCode = "evidence.insufficient_trades"
	ReasonTooManyThinFold ReasonCode = "evidence.too_many_insufficient_folds"
	ReasonMissingArtifact ReasonCode = "evidence.missing_artifact"

	// Leakage violations (always fatal to the run).
	ReasonLeakage ReasonCode = "leakage.boundary_violation"

	// Statistical rejections (candidate returned to prior stage).
	ReasonOverfitCeiling   ReasonCode = "stats.overfit_above_ceiling"
	ReasonDriftSuspect     ReasonCode = "stats.drift_suspect"
	ReasonSeedUnstable     ReasonCode = "stats.seed_unstable"
	ReasonDiscriminative   ReasonCode = "stats.oos_score_below_floor"
	ReasonConcentration    ReasonCode = "stats.feature_concentration"
	ReasonWinRateThreshold ReasonCode = "stats.win_rate_below_threshold"
	ReasonProfitFactor     ReasonCode = "stats.profit_factor_below_threshold"
	ReasonFillRate         ReasonCode = "paper.fill_rate_below_threshold"
	ReasonSlippage         ReasonCode = "paper.slippage_above_threshold"

	// No-go conditions (permanent rejection).
	ReasonNoGoLeakage      ReasonCode = "nogo.confirmed_leakage"
	ReasonNoGoTestExposure ReasonCode = "nogo.retrained_on_test_folds"
	ReasonNoGoSeedHard     ReasonCode = "nogo.seed_instability_hard"
	ReasonNoGoEvidence     ReasonCode = "nogo.evidence_tampered"

	// Process requirements.
	ReasonNoSignoff       ReasonCode = "process.missing_signoff"
	ReasonIntegrationFail ReasonCode = "process.integration_suite_failed"
	ReasonDigestMismatch  ReasonCode = "process.artifact_digest_mismatch"
	ReasonRollbackDrift   ReasonCode = "rollback.feature_drift"
	ReasonRollbackWinRate ReasonCode = "rollback.win_rate_collapse"
	ReasonRollbackDD      ReasonCode = "rollback.drawdown_breach"
)

// Reason pairs a machine code with a human rationale.
type Reason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// FoldStatus classifies a fold outcome. InsufficientData is distinct from
// Fail: it neither counts for nor against promotion on its own.
type FoldStatus string

const (
	FoldPass         FoldStatus = "pass"
	FoldWarn         FoldStatus = "warn"
	FoldFail         FoldStatus = "fail"
	FoldInsufficient FoldStatus = "insufficient-data"
)
