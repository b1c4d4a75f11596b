package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"QuantGate/internal/domain/models"
	drepo "QuantGate/internal/domain/repository"
	"QuantGate/internal/handler/api"
	"QuantGate/internal/services/learners"
	"QuantGate/internal/usecase"
	pkgch "QuantGate/pkg/clickhouse"
	"QuantGate/pkg/config"
	xhttp "QuantGate/pkg/http"
	applogger "QuantGate/pkg/logger"
)

// App owns the application lifecycle: it optionally runs one experiment
// end to end, then serves the read-only results API until interrupted.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	runner   *usecase.ExperimentRunner
	results  *usecase.ResultsReader
	pub      drepo.DecisionPublisher
	chClient *pkgch.Client

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.ExperimentRunner,
	results *usecase.ResultsReader,
	pub drepo.DecisionPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{cfg: cfg, l: l, runner: runner, results: results, pub: pub, chClient: chClient}
}

// Run executes the experiment named by experimentPath (when non-empty),
// starts the HTTP server, and blocks until interrupted.
func (a *App) Run(experimentPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// interrupt cancels an in-flight experiment cooperatively; partial
	// fold output is discarded, not committed
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		a.l.Info("shutdown signal received")
		cancel()
	}()

	if experimentPath != "" {
		if err := a.runExperiment(ctx, experimentPath); err != nil {
			return err
		}
	}

	handler := api.NewResultsEchoHandler(a.l, a.results)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("results api listening", applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	return a.shutdown()
}

func (a *App) runExperiment(ctx context.Context, path string) error {
	expCfg, err := config.LoadExperiment(path)
	if err != nil {
		return fmt.Errorf("experiment config: %w", err)
	}

	var learner drepo.Learner
	switch models.CandidateKind(expCfg.Kind) {
	case models.RuleCandidate:
		learner = learners.RuleLearner{}
	case models.LearnedCandidate:
		learner = learners.LogitLearner{}
	default:
		return fmt.Errorf("unknown candidate kind %q", expCfg.Kind)
	}

	a.l.Info("starting experiment",
		applogger.String("candidate", expCfg.Candidate),
		applogger.String("kind", expCfg.Kind),
		applogger.String("snapshot", expCfg.Snapshot.Ref),
	)
	run, decision, err := a.runner.Run(ctx, expCfg, learner)
	if err != nil {
		a.l.Error("experiment failed", applogger.Error(err))
		return err
	}
	a.l.Info("experiment complete",
		applogger.String("run_id", run.RunID),
		applogger.String("verdict", string(decision.Verdict)),
		applogger.Bool("promotion_eligible", run.Aggregate.PromotionEligible),
		applogger.Int("folds_passed", run.Aggregate.FoldsPassed),
		applogger.Int("folds_insufficient", run.Aggregate.FoldsInsufficient),
	)
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
	return nil
}
