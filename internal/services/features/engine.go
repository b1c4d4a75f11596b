package features

import (
	"fmt"
	"sort"

	"QuantGate/internal/domain/models"
	"QuantGate/pkg/config"
)

// columnFunc computes one feature column; the cell at index t must be a
// pure function of bars[0..t].
type columnFunc func(bars []models.Bar, lookback int) []models.FeatureValue

type familySpec struct {
	compute columnFunc
	// bounded families (oscillators on a known interval) bypass
	// training-fold clipping.
	bounded bool
	// volumeDerived families go missing on zero-volume bars.
	volumeDerived bool
}

var families = map[string]familySpec{
	"return":     {compute: logReturnColumn},
	"momentum":   {compute: momentumColumn},
	"volatility": {compute: volatilityColumn},
	"rsi":        {compute: rsiColumn, bounded: true},
	"volume":     {compute: volumeColumn, volumeDerived: true},
	"mfi":        {compute: mfiColumn, bounded: true, volumeDerived: true},
	"range":      {compute: rangeColumn},
}

// KnownFamily reports whether the named family is supported.
func KnownFamily(name string) bool {
	_, ok := families[name]
	return ok
}

// Bounded reports whether a feature column (by name "<family>_<lb>")
// belongs to a bounded family.
func Bounded(column string) bool {
	for name, spec := range families {
		if len(column) > len(name) && column[:len(name)] == name && column[len(name)] == '_' {
			return spec.bounded
		}
	}
	return false
}

// ColumnName builds the canonical feature column name.
func ColumnName(family string, lookback int) string {
	return fmt.Sprintf("%s_%d", family, lookback)
}

// ConfigError rejects a feature configuration before any computation.
type ConfigError struct {
	Reason models.ReasonCode
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("feature config: %s: %s", e.Reason, e.Detail)
}

// Engine computes point-in-time feature rows. It owns no state; Compute
// is a pure function of its inputs.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Columns lists the configured column names in deterministic order.
func (e *Engine) Columns(cfg *config.ExperimentConfig) []string {
	var cols []string
	for _, fam := range cfg.Features.Families {
		for _, lb := range fam.Lookbacks {
			cols = append(cols, ColumnName(fam.Family, lb))
		}
	}
	sort.Strings(cols)
	return cols
}

// Compute produces one FeatureRow per bar. Cells without sufficient
// history are missing. Malformed bar ordering rejects the input; an
// unknown family rejects the config; empty input yields empty output.
func (e *Engine) Compute(bars []models.Bar, cfg *config.ExperimentConfig) ([]models.FeatureRow, error) {
	for _, fam := range cfg.Features.Families {
		if !KnownFamily(fam.Family) {
			return nil, &ConfigError{
				Reason: models.ReasonUnknownFamily,
				Detail: fmt.Sprintf("unknown feature family %q", fam.Family),
			}
		}
	}
	if len(bars) == 0 {
		return []models.FeatureRow{}, nil
	}
	if err := models.ValidateBars(bars); err != nil {
		return nil, err
	}

	columns := make(map[string][]models.FeatureValue)
	for _, fam := range cfg.Features.Families {
		spec := families[fam.Family]
		for _, lb := range fam.Lookbacks {
			col := spec.compute(bars, lb)
			forwardFill(col, lb, cfg.Features.MaxFFillBars)
			columns[ColumnName(fam.Family, lb)] = col
		}
	}

	rows := make([]models.FeatureRow, len(bars))
	for t := range bars {
		values := make(map[string]models.FeatureValue, len(columns))
		for name, col := range columns {
			values[name] = col[t]
		}
		rows[t] = models.FeatureRow{
			Symbol:    bars[t].Symbol,
			Timestamp: bars[t].Timestamp,
			Values:    values,
		}
	}
	return rows, nil
}

// forwardFill copies the most recent valid cell into gaps of up to
// maxBars. Warmup cells (t < lookback) are never filled; there is no
// earlier valid value to carry.
func forwardFill(col []models.FeatureValue, lookback, maxBars int) {
	if maxBars <= 0 {
		return
	}
	lastValid := -1
	for t := lookback; t < len(col); t++ {
		if col[t].Valid {
			lastValid = t
			continue
		}
		if lastValid >= 0 && t-lastValid <= maxBars {
			col[t] = col[lastValid]
		}
	}
}
