package regime

import (
	"QuantGate/internal/domain/models"
)

// Regime labels.
const (
	Bull     = "bull"
	Bear     = "bear"
	Sideways = "sideways"
)

// Detector labels each bar with a macro regime from the trailing return
// over a configured window. The label at bar t reads bars [t-window..t]
// only, so regime tags obey the same point-in-time boundary as features.
type Detector struct {
	window     int
	bullReturn float64
	bearReturn float64
}

func NewDetector(window int, bullReturn, bearReturn float64) *Detector {
	return &Detector{window: window, bullReturn: bullReturn, bearReturn: bearReturn}
}

// Label returns one regime string per bar. Bars without enough history
// default to sideways.
func (d *Detector) Label(bars []models.Bar) []string {
	out := make([]string, len(bars))
	for t := range bars {
		out[t] = Sideways
		if t < d.window {
			continue
		}
		prev := bars[t-d.window].Close
		if prev <= 0 {
			continue
		}
		ret := bars[t].Close/prev - 1
		switch {
		case ret >= d.bullReturn:
			out[t] = Bull
		case ret <= d.bearReturn:
			out[t] = Bear
		}
	}
	return out
}

// Coverage tallies regime labels over a set of indices.
func Coverage(labels []string, idx []int) map[string]int {
	out := map[string]int{}
	for _, i := range idx {
		if i >= 0 && i < len(labels) {
			out[labels[i]]++
		}
	}
	return out
}
