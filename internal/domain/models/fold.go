package models

import "time"

// IndexRange is a half-open [Start, End) range of bar indices.
type IndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices covered.
func (r IndexRange) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether i falls inside the range.
func (r IndexRange) Contains(i int) bool { return i >= r.Start && i < r.End }

// Fold is one expanding-window walk-forward partition. Train start is
// fixed at the beginning of the series; train end advances per fold.
// Gaps of at least the label horizon separate train->validation and
// validation->test. Purge trims training rows within the horizon of the
// train/validation boundary; Embargoed ranges are prior-fold validation
// neighbourhoods that must not re-enter training.
type Fold struct {
	Index      int          `json:"index"`
	Train      IndexRange   `json:"train"` // post-purge
	Validation IndexRange   `json:"validation"`
	Test       IndexRange   `json:"test"`
	Purged     int          `json:"purged"`
	Embargoed  []IndexRange `json:"embargoed"`

	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	ValStart   time.Time `json:"val_start"`
	ValEnd     time.Time `json:"val_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
}

// TrainIndices yields the usable training indices: the purged train
// range minus any embargoed sub-ranges.
func (f *Fold) TrainIndices() []int {
	out := make([]int, 0, f.Train.Len())
	for i := f.Train.Start; i < f.Train.End; i++ {
		embargoed := false
		for _, e := range f.Embargoed {
			if e.Contains(i) {
				embargoed = true
				break
			}
		}
		if !embargoed {
			out = append(out, i)
		}
	}
	return out
}
