package folds

import (
	"fmt"
	"time"

	"QuantGate/internal/domain/models"
	"QuantGate/pkg/config"
)

// ScheduleError rejects a fold layout that cannot fit the series.
type ScheduleError struct {
	Detail string
}

func (e *ScheduleError) Error() string { return "fold schedule: " + e.Detail }

// LeakageError reports a partition whose label windows cross a segment
// boundary. Always fatal to the run, never retried.
type LeakageError struct {
	Fold   int
	Reason models.ReasonCode
	Detail string
}

func (e *LeakageError) Error() string {
	return fmt.Sprintf("fold %d: %s: %s", e.Fold, e.Reason, e.Detail)
}

// VerifyBoundaries re-checks a fold immediately before evaluation: the
// last training row must resolve its label before validation starts,
// and the last validation row before test starts. Schedule guarantees
// this for its own output; the assertion catches a hand-built or
// corrupted partition before it can leak.
func VerifyBoundaries(f *models.Fold, horizon int) error {
	if f.Train.Len() > 0 && f.Train.End+horizon > f.Validation.Start {
		return &LeakageError{
			Fold:   f.Index,
			Reason: models.ReasonLeakage,
			Detail: fmt.Sprintf("train end %d resolves labels past validation start %d (horizon %d)",
				f.Train.End, f.Validation.Start, horizon),
		}
	}
	if f.Validation.End+horizon > f.Test.Start {
		return &LeakageError{
			Fold:   f.Index,
			Reason: models.ReasonLeakage,
			Detail: fmt.Sprintf("validation end %d resolves labels past test start %d (horizon %d)",
				f.Validation.End, f.Test.Start, horizon),
		}
	}
	return nil
}

// Schedule partitions a time-ordered series of length n into expanding
// walk-forward folds. The train start is fixed at index 0; the train end
// advances by one validation+test stride per fold. Gaps of at least the
// label horizon separate every boundary, training rows within the
// horizon of the train/validation boundary are purged, and the previous
// fold's validation neighbourhood is embargoed out of the next training
// slice.
func Schedule(timestamps []int64, cfg *config.ExperimentConfig) ([]models.Fold, error) {
	n := len(timestamps)
	f := cfg.Folds
	horizon := cfg.Labels.Horizon

	if f.Gap < horizon {
		return nil, &ScheduleError{Detail: fmt.Sprintf("gap %d below horizon %d", f.Gap, horizon)}
	}

	stride := f.ValidationBars + f.TestBars
	need := f.InitialTrain + (f.Count-1)*stride + f.Gap + f.ValidationBars + f.Gap + f.TestBars
	if need > n {
		return nil, &ScheduleError{Detail: fmt.Sprintf("need %d bars for %d folds, have %d", need, f.Count, n)}
	}

	out := make([]models.Fold, 0, f.Count)
	var prevVal models.IndexRange
	for k := 0; k < f.Count; k++ {
		trainEnd := f.InitialTrain + k*stride
		valStart := trainEnd + f.Gap
		valEnd := valStart + f.ValidationBars
		testStart := valEnd + f.Gap
		testEnd := testStart + f.TestBars

		// purge training rows whose label horizon crosses the boundary
		purgedEnd := trainEnd - horizon
		if purgedEnd < 0 {
			purgedEnd = 0
		}

		fold := models.Fold{
			Index:      k,
			Train:      models.IndexRange{Start: 0, End: purgedEnd},
			Validation: models.IndexRange{Start: valStart, End: valEnd},
			Test:       models.IndexRange{Start: testStart, End: testEnd},
			Purged:     trainEnd - purgedEnd,
		}

		// embargo the previous fold's validation neighbourhood out of
		// this fold's (now larger) training range
		if k > 0 {
			emb := models.IndexRange{
				Start: prevVal.Start - f.Embargo,
				End:   prevVal.End + f.Embargo,
			}
			if emb.Start < 0 {
				emb.Start = 0
			}
			if emb.Start < fold.Train.End {
				if emb.End > fold.Train.End {
					emb.End = fold.Train.End
				}
				fold.Embargoed = append(fold.Embargoed, emb)
			}
		}

		stampTimes(&fold, timestamps, trainEnd, valStart, valEnd, testStart, testEnd)
		out = append(out, fold)
		prevVal = fold.Validation
	}
	return out, nil
}

func stampTimes(fold *models.Fold, ts []int64, trainEnd, valStart, valEnd, testStart, testEnd int) {
	at := func(i int) int64 {
		if i <= 0 {
			return ts[0]
		}
		if i >= len(ts) {
			return ts[len(ts)-1]
		}
		return ts[i]
	}
	fold.TrainStart = unixMs(at(0))
	fold.TrainEnd = unixMs(at(trainEnd - 1))
	fold.ValStart = unixMs(at(valStart))
	fold.ValEnd = unixMs(at(valEnd - 1))
	fold.TestStart = unixMs(at(testStart))
	fold.TestEnd = unixMs(at(testEnd - 1))
}

func unixMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// Indices expands a half-open range into explicit indices.
func Indices(r models.IndexRange) []int {
	out := make([]int, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}
