package gate

import (
	"fmt"
	"time"

	"QuantGate/internal/domain/models"
	"QuantGate/internal/services/diagnostics"
	"QuantGate/pkg/config"
)

// Thresholds carries the configured gate ceilings and floors.
type Thresholds struct {
	OverfitCeiling      float64
	DegradationDelta    float64
	SeedStdDevCeiling   float64
	SeedHardCeiling     float64
	ConcentrationCap    float64
	MinOOSScore         float64
	MinWinRate          float64
	MinProfitFactor     float64
	MinFillRate         float64
	MaxSlippageBps      float64
	MinPaperTrades      int
	RollbackDriftFeats  int
	RollbackWinRateDrop float64
	RollbackMaxDrawdown float64
}

// ThresholdsFrom lifts the gate section out of an experiment config.
func ThresholdsFrom(cfg *config.ExperimentConfig) Thresholds {
	g := cfg.Gates
	return Thresholds{
		OverfitCeiling:      g.OverfitCeiling,
		DegradationDelta:    g.DegradationDelta,
		SeedStdDevCeiling:   g.SeedStdDevCeiling,
		SeedHardCeiling:     g.SeedHardCeiling,
		ConcentrationCap:    g.ConcentrationCap,
		MinOOSScore:         g.MinOOSScore,
		MinWinRate:          g.MinWinRate,
		MinProfitFactor:     g.MinProfitFactor,
		MinFillRate:         g.MinFillRate,
		MaxSlippageBps:      g.MaxSlippageBps,
		MinPaperTrades:      g.MinPaperTrades,
		RollbackDriftFeats:  g.RollbackDriftFeats,
		RollbackWinRateDrop: g.RollbackWinRateDrop,
		RollbackMaxDrawdown: g.RollbackMaxDrawdown,
	}
}

// Evaluator decides stage transitions. It never mutates candidates or
// evidence itself; callers apply the returned decision.
type Evaluator struct {
	thresholds Thresholds
	now        func() time.Time
}

func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t, now: time.Now}
}

// R1Evidence is the research-validation input: the run summary, the
// statistical diagnostics, and any confirmed process violations.
type R1Evidence struct {
	Summary     *models.AggregateSummary
	Diagnostics diagnostics.Report

	// OOSScore is the mean out-of-sample discriminative score across
	// usable folds.
	OOSScore float64

	// FeatureWeights holds fitted weights for learned candidates; empty
	// for rule candidates.
	FeatureWeights map[string]float64

	// DriftOverride names the reviewer accepting a drift-suspect run.
	// Empty means no override.
	DriftOverride string

	// Confirmed process violations. Either one is a permanent no-go.
	LeakageConfirmed bool
	TestFoldExposure bool
}

func (e *Evaluator) decision(c *models.Candidate, runID string, stage models.Stage, bundle *models.EvidenceBundle) models.GateDecision {
	return models.GateDecision{
		RunID:        runID,
		CandidateID:  c.ID,
		Stage:        stage,
		StageName:    stage.String(),
		DecidedAt:    e.now().UTC(),
		BundleDigest: BundleDigest(bundle),
	}
}

// checkBundle short-circuits a stage evaluation when required evidence
// is absent. Missing evidence is insufficient, not a failure.
func checkBundle(d *models.GateDecision, c *models.Candidate, bundle *models.EvidenceBundle) bool {
	missing := bundle.MissingOf(RequiredEvidence(c.Kind))
	if len(missing) == 0 {
		return true
	}
	d.Verdict = models.VerdictInsufficient
	for _, k := range missing {
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonMissingArtifact,
			Message: fmt.Sprintf("evidence bundle missing %q", k),
		})
	}
	return false
}

// EvaluateR1 applies the research-validation gate. Confirmed leakage or
// test-fold exposure rejects the candidate permanently; statistical
// failures only return it to the candidate pool.
func (e *Evaluator) EvaluateR1(c *models.Candidate, runID string, bundle *models.EvidenceBundle, ev R1Evidence) models.GateDecision {
	t := e.thresholds
	d := e.decision(c, runID, models.StageR1Research, bundle)

	if ev.LeakageConfirmed {
		d.Verdict = models.VerdictFail
		d.NoGo = true
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonNoGoLeakage,
			Message: "confirmed leakage in the feature or label pipeline",
		})
		return d
	}
	if ev.TestFoldExposure {
		d.Verdict = models.VerdictFail
		d.NoGo = true
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonNoGoTestExposure,
			Message: "candidate was retrained on test folds",
		})
		return d
	}
	if ev.Diagnostics.SeedHardFail {
		d.Verdict = models.VerdictFail
		d.NoGo = true
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonNoGoSeedHard,
			Message: fmt.Sprintf("seed stddev %.4f beyond hard ceiling %.4f", ev.Diagnostics.SeedStdDev, t.SeedHardCeiling),
		})
		return d
	}

	if !checkBundle(&d, c, bundle) {
		return d
	}

	var checks []models.GateCheck
	pass := true
	fail := func(code models.ReasonCode, msg string) {
		pass = false
		d.Reasons = append(d.Reasons, models.Reason{Code: code, Message: msg})
	}

	overfitOK := !ev.Diagnostics.OverfitRejected
	checks = append(checks, models.GateCheck{
		Name: "overfit_below_ceiling", Passed: overfitOK,
		Detail: fmt.Sprintf("aggregate %.3f vs ceiling %.3f", ev.Diagnostics.AggregateOverfit, t.OverfitCeiling),
	})
	if !overfitOK {
		fail(models.ReasonOverfitCeiling,
			fmt.Sprintf("aggregate overfit %.3f exceeds ceiling %.3f", ev.Diagnostics.AggregateOverfit, t.OverfitCeiling))
	}

	driftOK := !ev.Diagnostics.DriftSuspect || ev.DriftOverride != ""
	checks = append(checks, models.GateCheck{
		Name: "no_unreviewed_drift", Passed: driftOK,
		Detail: fmt.Sprintf("first-to-last fold delta %.3f", ev.Diagnostics.DriftDelta),
	})
	if !driftOK {
		fail(models.ReasonDriftSuspect,
			fmt.Sprintf("win rate degraded %.3f across folds with no reviewer override", ev.Diagnostics.DriftDelta))
	}

	seedOK := !ev.Diagnostics.SeedUnstable
	checks = append(checks, models.GateCheck{
		Name: "seed_stable", Passed: seedOK,
		Detail: fmt.Sprintf("stddev %.4f vs ceiling %.4f", ev.Diagnostics.SeedStdDev, t.SeedStdDevCeiling),
	})
	if !seedOK {
		fail(models.ReasonSeedUnstable,
			fmt.Sprintf("seed stddev %.4f exceeds ceiling %.4f", ev.Diagnostics.SeedStdDev, t.SeedStdDevCeiling))
	}

	scoreOK := ev.OOSScore >= t.MinOOSScore
	checks = append(checks, models.GateCheck{
		Name: "oos_score_above_floor", Passed: scoreOK,
		Detail: fmt.Sprintf("mean OOS score %.4f vs floor %.4f", ev.OOSScore, t.MinOOSScore),
	})
	if !scoreOK {
		fail(models.ReasonDiscriminative,
			fmt.Sprintf("mean out-of-sample score %.4f below floor %.4f", ev.OOSScore, t.MinOOSScore))
	}

	if c.Kind == models.LearnedCandidate {
		conc := diagnostics.FeatureConcentration(ev.FeatureWeights)
		concOK := conc <= t.ConcentrationCap
		checks = append(checks, models.GateCheck{
			Name: "feature_concentration_below_cap", Passed: concOK,
			Detail: fmt.Sprintf("max share %.3f vs cap %.3f", conc, t.ConcentrationCap),
		})
		if !concOK {
			fail(models.ReasonConcentration,
				fmt.Sprintf("single feature carries %.3f of absolute weight, cap is %.3f", conc, t.ConcentrationCap))
		}
	}

	d.Verdict = models.VerdictPass
	if !pass {
		d.Verdict = models.VerdictFail
	}
	if ev.Summary != nil {
		ev.Summary.PromotionEligible = d.Verdict == models.VerdictPass
		ev.Summary.Checks = checks
		ev.Summary.Reasons = append(ev.Summary.Reasons, d.Reasons...)
	}
	return d
}

// R2Evidence covers runtime integration: the integration suite result,
// the deployed artifact digest, and the mandatory second reviewer.
type R2Evidence struct {
	IntegrationPassed bool
	ArtifactDigest    string
	ExpectedDigest    string
	SecondReviewer    string
}

// EvaluateR2 applies the runtime-integration gate.
func (e *Evaluator) EvaluateR2(c *models.Candidate, runID string, bundle *models.EvidenceBundle, ev R2Evidence) models.GateDecision {
	d := e.decision(c, runID, models.StageR2Runtime, bundle)
	if !checkBundle(&d, c, bundle) {
		return d
	}

	pass := true
	if !ev.IntegrationPassed {
		pass = false
		d.Reasons = append(d.Reasons, models.Reason{
			Code: models.ReasonIntegrationFail, Message: "integration suite did not pass",
		})
	}
	if ev.ArtifactDigest != ev.ExpectedDigest {
		pass = false
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonDigestMismatch,
			Message: fmt.Sprintf("deployed artifact digest %q does not match research artifact %q", ev.ArtifactDigest, ev.ExpectedDigest),
		})
	}
	if ev.SecondReviewer == "" {
		pass = false
		d.Reasons = append(d.Reasons, models.Reason{
			Code: models.ReasonNoSignoff, Message: "second reviewer sign-off is required at R2",
		})
	}
	d.Reviewer = ev.SecondReviewer

	d.Verdict = models.VerdictPass
	if !pass {
		d.Verdict = models.VerdictFail
	}
	return d
}

// PaperStats summarizes a paper-trading window.
type PaperStats struct {
	ClosedTrades int
	WinRate      float64
	ProfitFactor float64
	FillRate     float64
	SlippageBps  float64
	DriftEvents  int
}

// EvaluateR3 applies the paper-validation gate. Too few closed trades
// is insufficient evidence, not a failure.
func (e *Evaluator) EvaluateR3(c *models.Candidate, runID string, bundle *models.EvidenceBundle, ps PaperStats) models.GateDecision {
	t := e.thresholds
	d := e.decision(c, runID, models.StageR3Paper, bundle)
	if !checkBundle(&d, c, bundle) {
		return d
	}

	if ps.ClosedTrades < t.MinPaperTrades {
		d.Verdict = models.VerdictInsufficient
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonTooFewTrades,
			Message: fmt.Sprintf("%d closed paper trades, need %d", ps.ClosedTrades, t.MinPaperTrades),
		})
		return d
	}

	pass := true
	fail := func(code models.ReasonCode, msg string) {
		pass = false
		d.Reasons = append(d.Reasons, models.Reason{Code: code, Message: msg})
	}
	if ps.WinRate < t.MinWinRate {
		fail(models.ReasonWinRateThreshold,
			fmt.Sprintf("paper win rate %.3f below threshold %.3f", ps.WinRate, t.MinWinRate))
	}
	if ps.ProfitFactor < t.MinProfitFactor {
		fail(models.ReasonProfitFactor,
			fmt.Sprintf("paper profit factor %.3f below threshold %.3f", ps.ProfitFactor, t.MinProfitFactor))
	}
	if ps.FillRate < t.MinFillRate {
		fail(models.ReasonFillRate,
			fmt.Sprintf("fill rate %.3f below threshold %.3f", ps.FillRate, t.MinFillRate))
	}
	if ps.SlippageBps > t.MaxSlippageBps {
		fail(models.ReasonSlippage,
			fmt.Sprintf("mean slippage %.1f bps above ceiling %.1f", ps.SlippageBps, t.MaxSlippageBps))
	}
	if ps.DriftEvents > 0 {
		fail(models.ReasonDriftSuspect,
			fmt.Sprintf("%d feature drift events during the paper window", ps.DriftEvents))
	}

	d.Verdict = models.VerdictPass
	if !pass {
		d.Verdict = models.VerdictFail
	}
	return d
}

// R4Evidence covers the live-promotion gate: the full decision chain
// and the final human sign-off.
type R4Evidence struct {
	PriorDecisions   []models.GateDecision
	Signoff          string
	EvidenceTampered bool
}

// EvaluateR4 applies the live gate. It requires a pass decision for
// every prior stage and a named human sign-off.
func (e *Evaluator) EvaluateR4(c *models.Candidate, runID string, bundle *models.EvidenceBundle, ev R4Evidence) models.GateDecision {
	d := e.decision(c, runID, models.StageR4Live, bundle)

	if ev.EvidenceTampered {
		d.Verdict = models.VerdictFail
		d.NoGo = true
		d.Reasons = append(d.Reasons, models.Reason{
			Code: models.ReasonNoGoEvidence, Message: "evidence bundle digest no longer matches recorded decisions",
		})
		return d
	}
	if !checkBundle(&d, c, bundle) {
		return d
	}

	pass := true
	for _, want := range []models.Stage{models.StageR1Research, models.StageR2Runtime, models.StageR3Paper} {
		found := false
		for _, pd := range ev.PriorDecisions {
			if pd.Stage == want && pd.Verdict == models.VerdictPass {
				found = true
				break
			}
		}
		if !found {
			pass = false
			d.Reasons = append(d.Reasons, models.Reason{
				Code:    models.ReasonMissingArtifact,
				Message: fmt.Sprintf("no recorded pass decision for %s", want),
			})
		}
	}
	if ev.Signoff == "" {
		pass = false
		d.Reasons = append(d.Reasons, models.Reason{
			Code: models.ReasonNoSignoff, Message: "live promotion requires a named human sign-off",
		})
	}
	d.Reviewer = ev.Signoff

	d.Verdict = models.VerdictPass
	if !pass {
		d.Verdict = models.VerdictFail
	}
	return d
}

// LiveStats is the post-promotion monitoring input for rollback checks.
type LiveStats struct {
	DriftingFeatures int
	WinRateDrop      float64
	MaxDrawdown      float64
}

// EvaluateRollback checks live monitoring against the rollback
// triggers. A triggered rollback downgrades the candidate one stage;
// it is not a no-go.
func (e *Evaluator) EvaluateRollback(c *models.Candidate, runID string, ls LiveStats) (models.GateDecision, bool) {
	t := e.thresholds
	d := e.decision(c, runID, c.Stage, nil)

	if ls.DriftingFeatures >= t.RollbackDriftFeats {
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonRollbackDrift,
			Message: fmt.Sprintf("%d features drifting, trigger is %d", ls.DriftingFeatures, t.RollbackDriftFeats),
		})
	}
	if ls.WinRateDrop > t.RollbackWinRateDrop {
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonRollbackWinRate,
			Message: fmt.Sprintf("live win rate dropped %.3f from validated baseline, trigger is %.3f", ls.WinRateDrop, t.RollbackWinRateDrop),
		})
	}
	if ls.MaxDrawdown > t.RollbackMaxDrawdown {
		d.Reasons = append(d.Reasons, models.Reason{
			Code:    models.ReasonRollbackDD,
			Message: fmt.Sprintf("live drawdown %.3f breached ceiling %.3f", ls.MaxDrawdown, t.RollbackMaxDrawdown),
		})
	}

	if len(d.Reasons) == 0 {
		d.Verdict = models.VerdictPass
		return d, false
	}
	d.Verdict = models.VerdictFail
	return d, true
}

// Apply folds a decision into the candidate record: pass advances to
// the decided stage, fail falls back one stage, no-go rejects
// permanently. Insufficient evidence leaves the candidate where it is.
func Apply(c *models.Candidate, d models.GateDecision) {
	switch {
	case d.NoGo:
		c.Rejected = true
		c.RejectReason = append(c.RejectReason, d.Reasons...)
	case d.Verdict == models.VerdictPass:
		c.Stage = d.Stage
	case d.Verdict == models.VerdictFail:
		c.Stage = d.Stage.Prev()
	}
}
