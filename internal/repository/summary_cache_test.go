package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
	"QuantGate/pkg/cache"
)

// fakeCache is an in-memory cache.Service for tests.
type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = b
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	b, ok := f.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	fc := newFakeCache()
	sc := NewRedisSummaryCache(fc)
	ctx := context.Background()

	in := &models.AggregateSummary{RunID: "abc123", WinRate: 0.57, ClosedTrades: 42}
	require.NoError(t, sc.Set(ctx, SummaryKey(in.RunID), in, time.Minute))

	var out models.AggregateSummary
	require.NoError(t, sc.Get(ctx, SummaryKey(in.RunID), &out))
	assert.Equal(t, in.RunID, out.RunID)
	assert.InDelta(t, in.WinRate, out.WinRate, 1e-12)
	assert.Equal(t, in.ClosedTrades, out.ClosedTrades)
}

func TestSummaryCacheMissFallsThrough(t *testing.T) {
	sc := NewRedisSummaryCache(newFakeCache())

	var out models.AggregateSummary
	err := sc.Get(context.Background(), SummaryKey("missing"), &out)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestNoopSummaryCacheAlwaysMisses(t *testing.T) {
	var nc NoopSummaryCache
	ctx := context.Background()

	require.NoError(t, nc.Set(ctx, SummaryKey("x"), &models.AggregateSummary{}, 0))
	var out models.AggregateSummary
	assert.ErrorIs(t, nc.Get(ctx, SummaryKey("x"), &out), cache.ErrCacheMiss)
}
