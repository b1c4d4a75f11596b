package repository

import (
	"context"
	"time"

	"QuantGate/internal/domain/models"
)

// SnapshotLoader reads an immutable, content-hashed bar dataset. The
// loader guarantees chronological order per symbol and verifies that the
// recomputed content hash matches the declared snapshot reference.
type SnapshotLoader interface {
	Load(ctx context.Context, snapshotRef, symbol string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
}

// EvidenceStore is append-only and content-addressed. Writes to the same
// key are serialized; a digest is returned for every committed artifact.
type EvidenceStore interface {
	Append(ctx context.Context, key string, artifact any) (digest string, err error)
	Get(ctx context.Context, digest string, dest any) error
	History(ctx context.Context, key string) ([]string, error)
}

// DecisionPublisher hands verdicts and summaries to the external
// strategy registry. The core never mutates registry state directly.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, d *models.GateDecision) error
	PublishSummary(ctx context.Context, s *models.AggregateSummary) error
	Close() error
}

// SummaryCache fronts the read-only results API.
type SummaryCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) error
}

// Metrics is the Prometheus-backed recorder for the evaluation core.
type Metrics interface {
	RecordRun(status string)
	RecordFold(status string)
	RecordGateDecision(stage, verdict string)
	RecordFoldDuration(seconds float64)
}

// Learner fits one candidate on a training slice. Fit must be a pure
// function of (slice, seed); any stochastic step draws from the seed.
type Learner interface {
	Name() string
	Kind() models.CandidateKind
	Fit(ctx context.Context, train FoldSlice, seed int64) (FittedModel, error)
}

// FittedModel is an immutable fitted artifact.
type FittedModel interface {
	// Digest content-addresses the fitted parameters.
	Digest() string
	// Evaluate closes one outcome per labelled row it chooses to trade.
	Evaluate(ctx context.Context, slice FoldSlice) ([]models.Outcome, error)
}

// FoldSlice is the feature/label view of one fold segment. Rows are
// index-aligned.
type FoldSlice struct {
	Features []models.FeatureRow
	Labels   []models.LabelRow
	Regimes  []string
}
