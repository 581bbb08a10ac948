package structure

import (
	"math"

	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/market"
)

// SwingPoint represents a significant price level
type SwingPoint struct {
	Price       float64
	CandleIndex int
	Type        string // "high" or "low"
}

// Analyzer derives structural summaries and order-block candidates from a
// bar window
type Analyzer struct {
	swingLookback int
}

// NewAnalyzer creates an analyzer with the given swing lookback
func NewAnalyzer(swingLookback int) *Analyzer {
	if swingLookback <= 0 {
		swingLookback = 5
	}
	return &Analyzer{swingLookback: swingLookback}
}

// Analyze produces the structural summary for a bar window
func (a *Analyzer) Analyze(bars []market.Kline) *Summary {
	if len(bars) < a.swingLookback*4 {
		return &Summary{Trend: TrendUnknown, Volatility: VolatilityUnknown}
	}

	highs := a.FindSwingHighs(bars)
	lows := a.FindSwingLows(bars)

	hh := countRising(highs)
	hl := countRising(lows)
	lh := countFalling(highs)
	ll := countFalling(lows)

	summary := &Summary{
		Trend:      classifyTrend(hh, hl, lh, ll),
		Volatility: a.volatilityState(bars),
	}

	switch summary.Trend {
	case TrendBullish:
		summary.Direction = Bullish
	case TrendBearish:
		summary.Direction = Bearish
	}

	total := hh + hl + lh + ll
	if total > 0 {
		if summary.Trend == TrendBullish {
			summary.TrendStrength = float64(hh+hl) / float64(total)
		} else if summary.Trend == TrendBearish {
			summary.TrendStrength = float64(lh+ll) / float64(total)
		} else {
			summary.TrendStrength = 0.3
		}
	}

	a.detectShift(bars, highs, lows, summary)

	return summary
}

// FindSwingHighs identifies swing high points
func (a *Analyzer) FindSwingHighs(bars []market.Kline) []SwingPoint {
	var swings []SwingPoint

	for i := a.swingLookback; i < len(bars)-a.swingLookback; i++ {
		isSwing := true
		for j := i - a.swingLookback; j <= i+a.swingLookback; j++ {
			if j != i && bars[j].High >= bars[i].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{Price: bars[i].High, CandleIndex: i, Type: "high"})
		}
	}

	return swings
}

// FindSwingLows identifies swing low points
func (a *Analyzer) FindSwingLows(bars []market.Kline) []SwingPoint {
	var swings []SwingPoint

	for i := a.swingLookback; i < len(bars)-a.swingLookback; i++ {
		isSwing := true
		for j := i - a.swingLookback; j <= i+a.swingLookback; j++ {
			if j != i && bars[j].Low <= bars[i].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{Price: bars[i].Low, CandleIndex: i, Type: "low"})
		}
	}

	return swings
}

// detectShift sets the break-of-structure / change-of-character flags.
// A close beyond the last confirmed swing extreme in the trend direction is
// a break of structure; a close beyond the extreme against the prevailing
// trend is a change of character.
func (a *Analyzer) detectShift(bars []market.Kline, highs, lows []SwingPoint, summary *Summary) {
	lastClose := bars[len(bars)-1].Close

	var lastHigh, lastLow *SwingPoint
	if len(highs) > 0 {
		lastHigh = &highs[len(highs)-1]
	}
	if len(lows) > 0 {
		lastLow = &lows[len(lows)-1]
	}

	brokeHigh := lastHigh != nil && lastClose > lastHigh.Price
	brokeLow := lastLow != nil && lastClose < lastLow.Price

	switch summary.Trend {
	case TrendBullish:
		if brokeHigh {
			summary.BreakOfStructure = true
			summary.Direction = Bullish
		} else if brokeLow {
			summary.ChangeOfCharacter = true
			summary.Direction = Bearish
		}
	case TrendBearish:
		if brokeLow {
			summary.BreakOfStructure = true
			summary.Direction = Bearish
		} else if brokeHigh {
			summary.ChangeOfCharacter = true
			summary.Direction = Bullish
		}
	default:
		// No prevailing trend: any decisive break is a change of character
		if brokeHigh {
			summary.ChangeOfCharacter = true
			summary.Direction = Bullish
		} else if brokeLow {
			summary.ChangeOfCharacter = true
			summary.Direction = Bearish
		}
	}
}

// volatilityState compares recent ATR against the prior segment's ATR
func (a *Analyzer) volatilityState(bars []market.Kline) VolatilityState {
	const period = 14
	if len(bars) < period*2+2 {
		return VolatilityUnknown
	}

	recent := indicators.CalculateATR(bars, period)
	prior := indicators.CalculateATR(bars[:len(bars)-period], period)
	if prior == 0 {
		return VolatilityUnknown
	}

	ratio := recent / prior
	switch {
	case ratio > 1.15:
		return VolatilityExpanding
	case ratio < 0.85:
		return VolatilityContracting
	default:
		return VolatilityStable
	}
}

// FindCandidates scans the recent window for short-term reversal zones: an
// opposing bar followed by a displacement bar that closes beyond its
// opposite extreme. The opposing bar's range becomes the candidate zone.
func (a *Analyzer) FindCandidates(symbol string, bars []market.Kline, lookback int) []Candidate {
	if len(bars) < 3 {
		return nil
	}
	if lookback <= 0 || lookback > len(bars)-1 {
		lookback = len(bars) - 1
	}

	avgBody := 0.0
	for _, b := range bars {
		avgBody += b.Body()
	}
	avgBody /= float64(len(bars))

	var candidates []Candidate
	start := len(bars) - 1 - lookback
	if start < 0 {
		start = 0
	}

	for i := len(bars) - 2; i > start; i-- {
		anchor := bars[i]
		disp := bars[i+1]

		// Bullish: bearish anchor, displacement closes above its high
		if anchor.IsBearish() && disp.IsBullish() && disp.Close > anchor.High {
			candidates = append(candidates, Candidate{
				Symbol:    symbol,
				Direction: Bullish,
				ZoneLow:   anchor.Low,
				ZoneHigh:  anchor.High,
				Strength:  displacementStrength(disp, avgBody),
			})
		}

		// Bearish: bullish anchor, displacement closes below its low
		if anchor.IsBullish() && disp.IsBearish() && disp.Close < anchor.Low {
			candidates = append(candidates, Candidate{
				Symbol:    symbol,
				Direction: Bearish,
				ZoneLow:   anchor.Low,
				ZoneHigh:  anchor.High,
				Strength:  displacementStrength(disp, avgBody),
			})
		}
	}

	return candidates
}

func displacementStrength(disp market.Kline, avgBody float64) float64 {
	if avgBody == 0 {
		return 0.5
	}
	return math.Min(1.0, disp.Body()/(avgBody*3))
}

func classifyTrend(hh, hl, lh, ll int) Trend {
	if hh > 0 && hl > 0 && hh >= lh && hl >= ll {
		return TrendBullish
	}
	if lh > 0 && ll > 0 && lh >= hh && ll >= hl {
		return TrendBearish
	}
	// Mixed swings in both directions is chop; too few swings is a range
	if hh+hl+lh+ll >= 4 {
		return TrendChoppy
	}
	return TrendRanging
}

func countRising(swings []SwingPoint) int {
	count := 0
	for i := 1; i < len(swings); i++ {
		if swings[i].Price > swings[i-1].Price {
			count++
		}
	}
	return count
}

func countFalling(swings []SwingPoint) int {
	count := 0
	for i := 1; i < len(swings); i++ {
		if swings[i].Price < swings[i-1].Price {
			count++
		}
	}
	return count
}
