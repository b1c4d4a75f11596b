package models

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV candle. Bars are immutable once loaded from a
// snapshot; everything downstream treats the slice as read-only.
type Bar struct {
	Symbol    string
	Timestamp time.Time // UTC bar close
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ValidateBars checks chronological ordering and OHLCV sanity for a
// per-symbol series. The offending index is part of the error so callers
// can point at the exact input range that was rejected.
func ValidateBars(bars []Bar) error {
	for i := range bars {
		b := &bars[i]
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return &DataIntegrityError{Index: i, Reason: ReasonNegativePrice,
				Detail: fmt.Sprintf("non-positive price at %s", b.Timestamp.Format(time.RFC3339))}
		}
		if b.Volume < 0 {
			return &DataIntegrityError{Index: i, Reason: ReasonNegativeVolume,
				Detail: fmt.Sprintf("negative volume at %s", b.Timestamp.Format(time.RFC3339))}
		}
		if b.High < b.Low || b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			return &DataIntegrityError{Index: i, Reason: ReasonOHLCSanity,
				Detail: fmt.Sprintf("OHLC sanity violation at %s", b.Timestamp.Format(time.RFC3339))}
		}
		if i > 0 && bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return &DataIntegrityError{Index: i, Reason: ReasonNonMonotonic,
				Detail: fmt.Sprintf("timestamp %s before predecessor %s",
					bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))}
		}
	}
	return nil
}

// DataIntegrityError rejects an input range instead of coercing it.
type DataIntegrityError struct {
	Index  int
	Reason ReasonCode
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s (bar %d): %s", e.Reason, e.Index, e.Detail)
}
