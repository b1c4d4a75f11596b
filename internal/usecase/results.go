package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"QuantGate/internal/domain/models"
	drepo "QuantGate/internal/domain/repository"
	"QuantGate/pkg/cache"
	applogger "QuantGate/pkg/logger"
)

// ErrRunNotFound reports a run id with no committed evidence.
var ErrRunNotFound = errors.New("run not found")

// ResultsReader serves the read-only results API from the evidence
// store, fronted by the summary cache. It never writes evidence.
type ResultsReader struct {
	store drepo.EvidenceStore
	cache drepo.SummaryCache
	ttl   time.Duration
	l     *applogger.Logger
}

func NewResultsReader(store drepo.EvidenceStore, c drepo.SummaryCache, ttl time.Duration, l *applogger.Logger) *ResultsReader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResultsReader{store: store, cache: c, ttl: ttl, l: l}
}

// Summary returns the latest committed aggregate summary for a run.
func (r *ResultsReader) Summary(ctx context.Context, runID string) (*models.AggregateSummary, error) {
	var cached models.AggregateSummary
	if err := r.cache.Get(ctx, "summary:"+runID, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) && r.l != nil {
		r.l.Warn("summary cache read failed", applogger.Error(err))
	}

	var out models.AggregateSummary
	if err := r.latest(ctx, runID, "aggregate", &out); err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, "summary:"+runID, &out, r.ttl); err != nil && r.l != nil {
		r.l.Warn("summary cache write failed", applogger.Error(err))
	}
	return &out, nil
}

// Folds returns the per-fold results of a run.
func (r *ResultsReader) Folds(ctx context.Context, runID string) ([]models.FoldResult, error) {
	var out []models.FoldResult
	if err := r.latest(ctx, runID, "folds", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decisions returns every gate decision recorded for a run, oldest
// first.
func (r *ResultsReader) Decisions(ctx context.Context, runID string) ([]models.GateDecision, error) {
	digests, err := r.store.History(ctx, runID+"/gate")
	if err != nil {
		return nil, fmt.Errorf("gate history: %w", err)
	}
	if len(digests) == 0 {
		return nil, ErrRunNotFound
	}
	out := make([]models.GateDecision, 0, len(digests))
	for _, d := range digests {
		var dec models.GateDecision
		if err := r.store.Get(ctx, d, &dec); err != nil {
			return nil, fmt.Errorf("gate decision %s: %w", d, err)
		}
		out = append(out, dec)
	}
	return out, nil
}

func (r *ResultsReader) latest(ctx context.Context, runID, key string, dest any) error {
	digests, err := r.store.History(ctx, runID+"/"+key)
	if err != nil {
		return fmt.Errorf("%s history: %w", key, err)
	}
	if len(digests) == 0 {
		return ErrRunNotFound
	}
	return r.store.Get(ctx, digests[len(digests)-1], dest)
}
