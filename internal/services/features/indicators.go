package features

import (
	"math"

	"QuantGate/internal/domain/models"
)

// Each column function computes one feature column over the full series.
// The cell at index t may read bars[0..t] only; nothing below touches a
// later index. Warmup cells (t < lookback) are missing, not zero.

// logReturnColumn is ln(C_t / C_{t-lookback}).
func logReturnColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	for t := lookback; t < len(bars); t++ {
		prev := bars[t-lookback].Close
		cur := bars[t].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		out[t] = models.FV(math.Log(cur / prev))
	}
	return out
}

// momentumColumn is the simple rate of change C_t/C_{t-lookback} - 1.
func momentumColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	for t := lookback; t < len(bars); t++ {
		prev := bars[t-lookback].Close
		if prev <= 0 {
			continue
		}
		out[t] = models.FV(bars[t].Close/prev - 1)
	}
	return out
}

// volatilityColumn is the sample stddev of the last `lookback` one-bar
// log returns.
func volatilityColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	if lookback < 2 {
		return out
	}
	rets := make([]float64, len(bars))
	for t := 1; t < len(bars); t++ {
		if bars[t-1].Close > 0 && bars[t].Close > 0 {
			rets[t] = math.Log(bars[t].Close / bars[t-1].Close)
		}
	}
	for t := lookback; t < len(bars); t++ {
		var sum, sum2 float64
		for i := t - lookback + 1; i <= t; i++ {
			sum += rets[i]
			sum2 += rets[i] * rets[i]
		}
		n := float64(lookback)
		mean := sum / n
		variance := (sum2 - n*mean*mean) / (n - 1)
		if variance < 0 {
			variance = 0
		}
		out[t] = models.FV(math.Sqrt(variance))
	}
	return out
}

// rsiColumn is Wilder's RSI, bounded in [0,100].
func rsiColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	if len(bars) <= lookback {
		return out
	}

	var avgGain, avgLoss float64
	for t := 1; t <= lookback; t++ {
		delta := bars[t].Close - bars[t-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(lookback)
	avgLoss /= float64(lookback)
	out[lookback] = models.FV(rsiFrom(avgGain, avgLoss))

	for t := lookback + 1; t < len(bars); t++ {
		delta := bars[t].Close - bars[t-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(lookback-1) + gain) / float64(lookback)
		avgLoss = (avgLoss*float64(lookback-1) + loss) / float64(lookback)
		out[t] = models.FV(rsiFrom(avgGain, avgLoss))
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// volumeColumn is the z-score of volume against its trailing window.
// Zero-volume bars produce a missing cell for that bar only.
func volumeColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	if lookback < 2 {
		return out
	}
	for t := lookback; t < len(bars); t++ {
		if bars[t].Volume == 0 {
			continue
		}
		var sum, sum2 float64
		for i := t - lookback + 1; i <= t; i++ {
			sum += bars[i].Volume
			sum2 += bars[i].Volume * bars[i].Volume
		}
		n := float64(lookback)
		mean := sum / n
		variance := (sum2 - n*mean*mean) / (n - 1)
		if variance <= 0 {
			continue
		}
		out[t] = models.FV((bars[t].Volume - mean) / math.Sqrt(variance))
	}
	return out
}

// mfiColumn is the money flow index, bounded in [0,100]. Zero-volume
// bars produce a missing cell for that bar only.
func mfiColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	if len(bars) <= lookback {
		return out
	}
	typical := make([]float64, len(bars))
	for t := range bars {
		typical[t] = (bars[t].High + bars[t].Low + bars[t].Close) / 3
	}
	for t := lookback; t < len(bars); t++ {
		if bars[t].Volume == 0 {
			continue
		}
		var posFlow, negFlow float64
		for i := t - lookback + 1; i <= t; i++ {
			flow := typical[i] * bars[i].Volume
			if typical[i] > typical[i-1] {
				posFlow += flow
			} else if typical[i] < typical[i-1] {
				negFlow += flow
			}
		}
		if negFlow == 0 {
			if posFlow == 0 {
				out[t] = models.FV(50)
			} else {
				out[t] = models.FV(100)
			}
			continue
		}
		ratio := posFlow / negFlow
		out[t] = models.FV(100 - 100/(1+ratio))
	}
	return out
}

// rangeColumn is the trailing mean of (high-low)/close, an ATR-style
// normalized range.
func rangeColumn(bars []models.Bar, lookback int) []models.FeatureValue {
	out := make([]models.FeatureValue, len(bars))
	for t := lookback; t < len(bars); t++ {
		var sum float64
		for i := t - lookback + 1; i <= t; i++ {
			if bars[i].Close <= 0 {
				sum = math.NaN()
				break
			}
			sum += (bars[i].High - bars[i].Low) / bars[i].Close
		}
		if math.IsNaN(sum) {
			continue
		}
		out[t] = models.FV(sum / float64(lookback))
	}
	return out
}
