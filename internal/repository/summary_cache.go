package repository

import (
	"context"
	"fmt"
	"time"

	"QuantGate/pkg/cache"
)

// SummaryKey builds the cache key for a run's aggregate summary.
func SummaryKey(runID string) string {
	return fmt.Sprintf("summary:%s", runID)
}

// FoldsKey builds the cache key for a run's fold result list.
func FoldsKey(runID string) string {
	return fmt.Sprintf("folds:%s", runID)
}

// RedisSummaryCache fronts the results API with a cache.Service
// (Redis in production, a fake in tests).
type RedisSummaryCache struct {
	c cache.Service
}

func NewRedisSummaryCache(c cache.Service) *RedisSummaryCache {
	return &RedisSummaryCache{c: c}
}

func (r *RedisSummaryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl)
}

func (r *RedisSummaryCache) Get(ctx context.Context, key string, dest any) error {
	return r.c.Get(ctx, key, dest)
}

// NoopSummaryCache satisfies SummaryCache when Redis is disabled. Reads
// always miss and fall through to the evidence store.
type NoopSummaryCache struct{}

func (NoopSummaryCache) Set(context.Context, string, any, time.Duration) error {
	return nil
}

func (NoopSummaryCache) Get(context.Context, string, any) error {
	return cache.ErrCacheMiss
}
