package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantGate/internal/domain/models"
)

func newTestStore(t *testing.T) *FileEvidenceStore {
	t.Helper()
	s, err := NewFileEvidenceStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestEvidenceAppendGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := models.FoldResult{FoldIndex: 2, ClosedTrades: 41, Wins: 23, WinRate: 0.561, Status: models.FoldPass}
	digest, err := s.Append(ctx, "run-1/fold-2", in)
	require.NoError(t, err)
	require.Len(t, digest, 64)

	var out models.FoldResult
	require.NoError(t, s.Get(ctx, digest, &out))
	assert.Equal(t, in, out)
}

func TestEvidenceContentAddressing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Append(ctx, "run-1/fold-0", models.FoldResult{FoldIndex: 0, Wins: 10})
	require.NoError(t, err)
	b, err := s.Append(ctx, "run-2/fold-0", models.FoldResult{FoldIndex: 0, Wins: 10})
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical content shares one object")

	c, err := s.Append(ctx, "run-1/fold-0", models.FoldResult{FoldIndex: 0, Wins: 11})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEvidenceHistoryIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1, err := s.Append(ctx, "run-1/aggregate", models.AggregateSummary{RunID: "run-1", WinRate: 0.55})
	require.NoError(t, err)
	d2, err := s.Append(ctx, "run-1/aggregate", models.AggregateSummary{RunID: "run-1", WinRate: 0.56})
	require.NoError(t, err)

	hist, err := s.History(ctx, "run-1/aggregate")
	require.NoError(t, err)
	assert.Equal(t, []string{d1, d2}, hist, "oldest first, nothing overwritten")

	none, err := s.History(ctx, "run-9/aggregate")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEvidenceTamperDetection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	digest, err := s.Append(ctx, "run-1/gate", models.GateDecision{RunID: "run-1", Verdict: models.VerdictPass})
	require.NoError(t, err)

	obj := filepath.Join(s.root, "objects", digest)
	require.NoError(t, os.WriteFile(obj, []byte(`{"run_id":"run-1","verdict":"fail"}`), 0o644))

	var out models.GateDecision
	err = s.Get(ctx, digest, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest verification")
}

func TestEvidenceConcurrentWritersSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, "run-1/folds", models.FoldResult{FoldIndex: i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	hist, err := s.History(ctx, "run-1/folds")
	require.NoError(t, err)
	assert.Len(t, hist, n, "every append lands on its own log line")
}

func TestEvidenceRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "../escape", models.FoldResult{})
	assert.Error(t, err)

	assert.Error(t, s.Get(ctx, "nope", &models.FoldResult{}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Append(cancelled, "run-1/fold-0", models.FoldResult{})
	assert.ErrorIs(t, err, context.Canceled)
}
