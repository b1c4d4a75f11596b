package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"QuantGate/internal/domain/models"
	drepo "QuantGate/internal/domain/repository"
	"QuantGate/internal/services/diagnostics"
	"QuantGate/internal/services/features"
	"QuantGate/internal/services/folds"
	"QuantGate/internal/services/gate"
	"QuantGate/internal/services/regime"
	"QuantGate/internal/services/stats"
	"QuantGate/pkg/config"
	applogger "QuantGate/pkg/logger"
)

// ExperimentRunner drives one full validation cycle: snapshot load,
// feature/label computation, walk-forward fold evaluation across seeds,
// diagnostics, the R1 gate, and evidence commits. Folds are independent
// after scheduling and run in parallel on a bounded worker pool.
type ExperimentRunner struct {
	loader  drepo.SnapshotLoader
	store   drepo.EvidenceStore
	pub     drepo.DecisionPublisher
	cache   drepo.SummaryCache
	metrics drepo.Metrics
	l       *applogger.Logger
	workers int
}

func NewExperimentRunner(
	loader drepo.SnapshotLoader,
	store drepo.EvidenceStore,
	pub drepo.DecisionPublisher,
	cache drepo.SummaryCache,
	metrics drepo.Metrics,
	l *applogger.Logger,
	workers int,
) *ExperimentRunner {
	if workers < 1 {
		workers = 1
	}
	return &ExperimentRunner{
		loader: loader, store: store, pub: pub, cache: cache,
		metrics: metrics, l: l, workers: workers,
	}
}

// RunID derives the deterministic run identifier from the config digest
// and snapshot reference. The same experiment always maps to the same
// run, which is what makes reruns comparable byte for byte.
func RunID(cfg *config.ExperimentConfig) string {
	sum := sha256.Sum256([]byte(cfg.Digest() + "|" + cfg.Snapshot.Ref))
	return hex.EncodeToString(sum[:])[:16]
}

// RunConfigError rejects an experiment before any computation starts.
type RunConfigError struct {
	Reason models.ReasonCode
	Detail string
}

func (e *RunConfigError) Error() string {
	return fmt.Sprintf("experiment config: %s: %s", e.Reason, e.Detail)
}

// Run executes the experiment end to end. On cancellation partial fold
// output is discarded; nothing reaches the evidence store.
func (r *ExperimentRunner) Run(ctx context.Context, cfg *config.ExperimentConfig, learner drepo.Learner) (*models.ExperimentRun, *models.GateDecision, error) {
	startedAt := time.Now().UTC()
	runID := RunID(cfg)

	if learner.Kind() != models.CandidateKind(cfg.Kind) {
		r.metrics.RecordRun("rejected")
		return nil, nil, &RunConfigError{
			Reason: models.ReasonBadConfig,
			Detail: fmt.Sprintf("candidate kind %q does not match learner %q (%s)", cfg.Kind, learner.Name(), learner.Kind()),
		}
	}

	bars, err := r.loader.Load(ctx, cfg.Snapshot.Ref, cfg.Snapshot.Symbol, cfg.Snapshot.From, cfg.Snapshot.To)
	if err != nil {
		r.metrics.RecordRun("error")
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	engine := features.NewEngine()
	rows, err := engine.Compute(bars, cfg)
	if err != nil {
		r.metrics.RecordRun("rejected")
		return nil, nil, err
	}
	rawLabels := features.ComputeForwardReturns(bars, cfg.Labels.Horizon)
	regimes := regime.NewDetector(cfg.Regime.Window, cfg.Regime.BullReturn, cfg.Regime.BearReturn).Label(bars)

	ts := make([]int64, len(bars))
	for i, b := range bars {
		ts[i] = b.Timestamp.UnixMilli()
	}
	schedule, err := folds.Schedule(ts, cfg)
	if err != nil {
		r.metrics.RecordRun("rejected")
		return nil, nil, err
	}

	if r.l != nil {
		r.l.Info("experiment scheduled",
			applogger.String("run_id", runID),
			applogger.String("candidate", cfg.Candidate),
			applogger.Int("bars", len(bars)),
			applogger.Int("folds", len(schedule)),
			applogger.Int("seeds", len(cfg.Seeds)),
		)
	}

	// seed 0 is the canonical result set; the remaining seeds exist for
	// the stability diagnostic only
	var (
		foldResults []models.FoldResult
		pooled      []models.Outcome
		weights     map[string]float64
		modelDigest string
	)
	seedWinRates := make([]float64, 0, len(cfg.Seeds))
	for si, seed := range cfg.Seeds {
		evals, err := r.evaluateSeed(ctx, schedule, rows, rawLabels, regimes, cfg, learner, seed)
		if err != nil {
			r.metrics.RecordRun("error")
			return nil, nil, fmt.Errorf("seed %d: %w", seed, err)
		}

		var outs []models.Outcome
		for _, ev := range evals {
			if usableFold(ev.result.Status, cfg) {
				outs = append(outs, ev.outcomes...)
			}
		}
		seedSum := stats.Summarize(outs, cfg.Gates.Confidence)
		seedWinRates = append(seedWinRates, seedSum.WinRate)

		if si == 0 {
			pooled = outs
			for _, ev := range evals {
				foldResults = append(foldResults, ev.result)
			}
			if len(evals) > 0 {
				modelDigest = evals[len(evals)-1].modelDigest
				weights = evals[len(evals)-1].weights
			}
		}
	}

	summary, diag := r.aggregate(runID, cfg, foldResults, pooled, seedWinRates)

	bundle, err := r.commitEvidence(ctx, runID, cfg, learner, foldResults, summary, seedWinRates, diag, modelDigest)
	if err != nil {
		r.metrics.RecordRun("error")
		return nil, nil, fmt.Errorf("commit evidence: %w", err)
	}

	decision := r.decideR1(cfg, summary, diag, weights, bundle, runID)
	if _, err := r.store.Append(ctx, runID+"/gate", decision); err != nil {
		r.metrics.RecordRun("error")
		return nil, nil, fmt.Errorf("record gate decision: %w", err)
	}
	r.metrics.RecordGateDecision(decision.StageName, string(decision.Verdict))

	// the gate stamped promotion_eligible and the itemized checks onto
	// the summary; commit the final version alongside the pre-gate one
	if _, err := r.store.Append(ctx, runID+"/aggregate", summary); err != nil {
		r.metrics.RecordRun("error")
		return nil, nil, fmt.Errorf("record final summary: %w", err)
	}

	if err := r.pub.PublishDecision(ctx, &decision); err != nil && r.l != nil {
		r.l.Warn("registry decision publish failed", applogger.Error(err))
	}
	if err := r.pub.PublishSummary(ctx, summary); err != nil && r.l != nil {
		r.l.Warn("registry summary publish failed", applogger.Error(err))
	}
	if err := r.cache.Set(ctx, "summary:"+runID, summary, 0); err != nil && r.l != nil {
		r.l.Warn("summary cache set failed", applogger.Error(err))
	}

	r.metrics.RecordRun("ok")
	run := &models.ExperimentRun{
		RunID:        runID,
		CandidateID:  cfg.Candidate,
		SnapshotRef:  cfg.Snapshot.Ref,
		ConfigDigest: cfg.Digest(),
		Seeds:        cfg.Seeds,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		Folds:        foldResults,
		Aggregate:    summary,
		SeedWinRates: seedWinRates,
	}
	if r.l != nil {
		r.l.Info("experiment finished",
			applogger.String("run_id", runID),
			applogger.String("verdict", string(decision.Verdict)),
			applogger.Bool("promotion_eligible", summary.PromotionEligible),
			applogger.Duration("duration_ms", time.Since(startedAt)),
		)
	}
	return run, &decision, nil
}

// foldEval is one fold's evaluation under one seed.
type foldEval struct {
	result      models.FoldResult
	outcomes    []models.Outcome
	modelDigest string
	weights     map[string]float64
}

// evaluateSeed runs every scheduled fold under one seed on the worker
// pool. Results come back in fold order regardless of completion order.
func (r *ExperimentRunner) evaluateSeed(
	ctx context.Context,
	schedule []models.Fold,
	rows []models.FeatureRow,
	rawLabels []models.LabelRow,
	regimes []string,
	cfg *config.ExperimentConfig,
	learner drepo.Learner,
	seed int64,
) ([]foldEval, error) {
	evals := make([]foldEval, len(schedule))
	sem := make(chan struct{}, r.workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := range schedule {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				return
			}

			ev, err := r.evaluateFold(runCtx, &schedule[i], rows, rawLabels, regimes, cfg, learner, seed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			evals[i] = ev
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return evals, nil
}

func (r *ExperimentRunner) evaluateFold(
	ctx context.Context,
	fold *models.Fold,
	rows []models.FeatureRow,
	rawLabels []models.LabelRow,
	regimes []string,
	cfg *config.ExperimentConfig,
	learner drepo.Learner,
	seed int64,
) (foldEval, error) {
	start := time.Now()
	if err := folds.VerifyBoundaries(fold, cfg.Labels.Horizon); err != nil {
		return foldEval{}, err
	}
	trainIdx := fold.TrainIndices()
	testIdx := folds.Indices(fold.Test)

	// scaler and class thresholds come from this fold's training slice
	// and nothing else
	trainRaw := subsetRows(rows, trainIdx)
	scaler := features.FitScaler(trainRaw, cfg.Features.ClipSigma)
	thr := features.FitThresholds(rawLabels, trainIdx)

	train := drepo.FoldSlice{
		Features: scaler.ApplyAll(trainRaw),
		Labels:   features.Classify(rawLabels, thr, fold.Index, trainIdx),
		Regimes:  subsetStrings(regimes, trainIdx),
	}
	test := drepo.FoldSlice{
		Features: scaler.ApplyAll(subsetRows(rows, testIdx)),
		Labels:   features.Classify(rawLabels, thr, fold.Index, testIdx),
		Regimes:  subsetStrings(regimes, testIdx),
	}

	model, err := learner.Fit(ctx, train, seed)
	if err != nil {
		return foldEval{}, fmt.Errorf("fold %d fit: %w", fold.Index, err)
	}
	trainOut, err := model.Evaluate(ctx, train)
	if err != nil {
		return foldEval{}, fmt.Errorf("fold %d train eval: %w", fold.Index, err)
	}
	testOut, err := model.Evaluate(ctx, test)
	if err != nil {
		return foldEval{}, fmt.Errorf("fold %d test eval: %w", fold.Index, err)
	}

	trainSum := stats.Summarize(trainOut, cfg.Gates.Confidence)
	testSum := stats.Summarize(testOut, cfg.Gates.Confidence)

	res := models.FoldResult{
		FoldIndex:    fold.Index,
		TrainStart:   fold.TrainStart,
		TrainEnd:     fold.TrainEnd,
		TestStart:    fold.TestStart,
		TestEnd:      fold.TestEnd,
		RegimeCounts: testSum.RegimeCounts,
		ClosedTrades: testSum.ClosedTrades,
		Wins:         testSum.Wins,
		WinRate:      testSum.WinRate,
		WinRateCI:    testSum.WinRateCI,
		ProfitFactor: testSum.ProfitFactor,
		Sharpe:       testSum.Sharpe,
		MaxDrawdown:  testSum.MaxDrawdown,
		TrainWinRate: trainSum.WinRate,
	}
	res.OverfitScore = diagnostics.OverfitScore(trainSum.WinRate, testSum.WinRate)
	res.OverfitBand = diagnostics.Band(res.OverfitScore)

	switch {
	case testSum.ClosedTrades < cfg.Folds.MinTestSamples:
		res.Status = models.FoldInsufficient
		res.Reasons = append(res.Reasons, models.Reason{
			Code:    models.ReasonTooFewTrades,
			Message: fmt.Sprintf("%d closed trades in test window, need %d", testSum.ClosedTrades, cfg.Folds.MinTestSamples),
		})
	case res.OverfitBand == diagnostics.BandHigh:
		res.Status = models.FoldFail
		res.Reasons = append(res.Reasons, models.Reason{
			Code:    models.ReasonOverfitCeiling,
			Message: fmt.Sprintf("fold overfit score %.3f classifies high", res.OverfitScore),
		})
	case res.OverfitBand == diagnostics.BandModerate:
		res.Status = models.FoldWarn
	default:
		res.Status = models.FoldPass
	}

	r.metrics.RecordFold(string(res.Status))
	r.metrics.RecordFoldDuration(time.Since(start).Seconds())

	ev := foldEval{result: res, outcomes: testOut, modelDigest: model.Digest()}
	if wm, ok := model.(interface{ Weights() map[string]float64 }); ok {
		ev.weights = wm.Weights()
	}
	return ev, nil
}

// usableFold reports whether a fold's outcomes enter the aggregate.
func usableFold(s models.FoldStatus, cfg *config.ExperimentConfig) bool {
	if s == models.FoldInsufficient {
		return cfg.Aggregate.IncludeInsufficient
	}
	return true
}

func (r *ExperimentRunner) aggregate(
	runID string,
	cfg *config.ExperimentConfig,
	foldResults []models.FoldResult,
	pooled []models.Outcome,
	seedWinRates []float64,
) (*models.AggregateSummary, diagnostics.Report) {
	agg := stats.Summarize(pooled, cfg.Gates.Confidence)
	summary := &models.AggregateSummary{
		RunID:          runID,
		SnapshotRef:    cfg.Snapshot.Ref,
		FoldsTotal:     len(foldResults),
		ClosedTrades:   agg.ClosedTrades,
		WinRate:        agg.WinRate,
		WinRateCI:      agg.WinRateCI,
		ProfitFactor:   agg.ProfitFactor,
		Sharpe:         agg.Sharpe,
		MaxDrawdown:    agg.MaxDrawdown,
		RegimeCoverage: agg.RegimeCounts,
	}
	for _, f := range foldResults {
		switch f.Status {
		case models.FoldPass:
			summary.FoldsPassed++
		case models.FoldWarn:
			summary.FoldsWarned++
		case models.FoldFail:
			summary.FoldsFailed++
		case models.FoldInsufficient:
			summary.FoldsInsufficient++
		}
	}

	diag := diagnostics.Evaluate(foldResults, seedWinRates, diagnostics.Config{
		OverfitCeiling:    cfg.Gates.OverfitCeiling,
		DegradationDelta:  cfg.Gates.DegradationDelta,
		SeedStdDevCeiling: cfg.Gates.SeedStdDevCeiling,
		SeedHardCeiling:   cfg.Gates.SeedHardCeiling,
	})
	summary.OverfitScore = diag.AggregateOverfit
	summary.OverfitBand = diag.AggregateBand
	summary.DriftSuspect = diag.DriftSuspect
	summary.SeedStdDev = diag.SeedStdDev
	summary.SeedUnstable = diag.SeedUnstable
	return summary, diag
}

// decideR1 evaluates the research gate, or short-circuits to an
// insufficient-evidence verdict when too many folds came back thin.
func (r *ExperimentRunner) decideR1(
	cfg *config.ExperimentConfig,
	summary *models.AggregateSummary,
	diag diagnostics.Report,
	weights map[string]float64,
	bundle *models.EvidenceBundle,
	runID string,
) models.GateDecision {
	cand := &models.Candidate{
		ID:    cfg.Candidate,
		Name:  cfg.Candidate,
		Kind:  models.CandidateKind(cfg.Kind),
		Stage: models.StageCandidate,
	}

	if summary.FoldsInsufficient > cfg.Folds.MaxInsufficient {
		reason := models.Reason{
			Code: models.ReasonTooManyThinFold,
			Message: fmt.Sprintf("%d insufficient-data folds, at most %d allowed",
				summary.FoldsInsufficient, cfg.Folds.MaxInsufficient),
		}
		summary.PromotionEligible = false
		summary.Reasons = append(summary.Reasons, reason)
		return models.GateDecision{
			RunID:        runID,
			CandidateID:  cand.ID,
			Stage:        models.StageR1Research,
			StageName:    models.StageR1Research.String(),
			Verdict:      models.VerdictInsufficient,
			DecidedAt:    time.Now().UTC(),
			Reasons:      []models.Reason{reason},
			BundleDigest: gate.BundleDigest(bundle),
		}
	}

	ev := gate.NewEvaluator(gate.ThresholdsFrom(cfg))
	return ev.EvaluateR1(cand, runID, bundle, gate.R1Evidence{
		Summary:     summary,
		Diagnostics: diag,
		// mean OOS discriminative score: the pooled out-of-sample win
		// rate of the canonical seed
		OOSScore:       summary.WinRate,
		FeatureWeights: weights,
	})
}

// commitEvidence writes the full artifact set and assembles the bundle
// the gate requires.
func (r *ExperimentRunner) commitEvidence(
	ctx context.Context,
	runID string,
	cfg *config.ExperimentConfig,
	learner drepo.Learner,
	foldResults []models.FoldResult,
	summary *models.AggregateSummary,
	seedWinRates []float64,
	diag diagnostics.Report,
	modelDigest string,
) (*models.EvidenceBundle, error) {
	bundle := &models.EvidenceBundle{RunID: runID, Version: 1, Items: map[models.EvidenceKind]models.EvidenceItem{}}
	put := func(kind models.EvidenceKind, key string, artifact any) error {
		digest, err := r.store.Append(ctx, runID+"/"+key, artifact)
		if err != nil {
			return err
		}
		bundle.Items[kind] = models.EvidenceItem{Present: true, Digest: digest, Ref: runID + "/" + key}
		return nil
	}

	repro := map[string]any{
		"snapshot_ref":  cfg.Snapshot.Ref,
		"config_digest": cfg.Digest(),
		"seeds":         cfg.Seeds,
		"learner":       learner.Name(),
	}
	if err := put(models.EvidenceReproducibility, "reproducibility", repro); err != nil {
		return nil, err
	}
	if err := put(models.EvidenceFoldResults, "folds", foldResults); err != nil {
		return nil, err
	}
	if err := put(models.EvidenceAggregate, "aggregate", summary); err != nil {
		return nil, err
	}

	var winRates []float64
	for _, f := range foldResults {
		if f.Status != models.FoldInsufficient {
			winRates = append(winRates, f.WinRate)
		}
	}
	if err := put(models.EvidenceDriftBaselines, "drift-baselines", map[string]any{
		"fold_win_rates": winRates,
		"drift_delta":    diag.DriftDelta,
	}); err != nil {
		return nil, err
	}
	if err := put(models.EvidenceGateCheck, "gate-inputs", map[string]any{
		"overfit_score": diag.AggregateOverfit,
		"overfit_band":  diag.AggregateBand,
		"seed_stddev":   diag.SeedStdDev,
	}); err != nil {
		return nil, err
	}

	if learner.Kind() == models.LearnedCandidate {
		if err := put(models.EvidenceStability, "stability", map[string]any{
			"seed_win_rates": seedWinRates,
			"stddev":         diag.SeedStdDev,
		}); err != nil {
			return nil, err
		}
		if err := put(models.EvidenceModelDigest, "model-digest", map[string]string{
			"digest": modelDigest,
		}); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

func subsetRows(rows []models.FeatureRow, idx []int) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(rows) {
			out = append(out, rows[i])
		}
	}
	return out
}

func subsetStrings(ss []string, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(ss) {
			out = append(out, ss[i])
		}
	}
	return out
}
