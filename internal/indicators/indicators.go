package indicators

import (
	"math"

	"trading-alert-engine/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates Simple Moving Average
func CalculateSMA(klines []market.Kline, period int) float64 {
	if len(klines) < period {
		return 0
	}

	sum := 0.0
	startIdx := len(klines) - period

	for i := startIdx; i < len(klines); i++ {
		sum += klines[i].Close
	}

	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average
func CalculateEMA(klines []market.Kline, period int) float64 {
	if len(klines) < period {
		return 0
	}

	// Seed with SMA of the first period
	sma := CalculateSMA(klines[:period], period)

	multiplier := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(klines); i++ {
		ema = (klines[i].Close * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index
func CalculateRSI(klines []market.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 50.0 // Neutral RSI
	}

	gains := 0.0
	losses := 0.0

	for i := len(klines) - period; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// CalculateATR calculates Average True Range
func CalculateATR(klines []market.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 0
	}

	trSum := 0.0
	startIdx := len(klines) - period

	for i := startIdx; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)

		trSum += tr
	}

	return trSum / float64(period)
}

// ============================================================================
// ADX (Average Directional Index)
// ============================================================================

// CalculateADX calculates Average Directional Index using Wilder's +DI/-DI
func CalculateADX(klines []market.Kline, period int) float64 {
	if len(klines) < 2*period+1 {
		return 0
	}

	var dxSum float64
	count := 0

	for end := len(klines) - period; end < len(klines); end++ {
		window := klines[:end+1]

		plusDM := 0.0
		minusDM := 0.0
		trSum := 0.0

		for i := len(window) - period; i < len(window); i++ {
			upMove := window[i].High - window[i-1].High
			downMove := window[i-1].Low - window[i].Low

			if upMove > downMove && upMove > 0 {
				plusDM += upMove
			}
			if downMove > upMove && downMove > 0 {
				minusDM += downMove
			}

			tr := math.Max(
				window[i].High-window[i].Low,
				math.Max(
					math.Abs(window[i].High-window[i-1].Close),
					math.Abs(window[i].Low-window[i-1].Close),
				),
			)
			trSum += tr
		}

		if trSum == 0 {
			continue
		}

		plusDI := (plusDM / trSum) * 100
		minusDI := (minusDM / trSum) * 100

		if plusDI+minusDI == 0 {
			continue
		}

		dx := math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
		dxSum += dx
		count++
	}

	if count == 0 {
		return 0
	}

	return dxSum / float64(count)
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateAverageVolume calculates average volume over a period
func CalculateAverageVolume(klines []market.Kline, period int) float64 {
	if len(klines) < period {
		return 0
	}

	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Volume
	}

	return sum / float64(period)
}

// IsVolumeSpike checks if the latest bar's volume exceeds multiplier x average
func IsVolumeSpike(klines []market.Kline, period int, multiplier float64) bool {
	if len(klines) < period+1 {
		return false
	}

	avg := CalculateAverageVolume(klines[:len(klines)-1], period)
	if avg == 0 {
		return false
	}

	return klines[len(klines)-1].Volume > avg*multiplier
}
