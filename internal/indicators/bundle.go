package indicators

import (
	"fmt"

	"trading-alert-engine/internal/market"
)

// Indicator names published in a bundle
const (
	RSI   = "rsi"
	ATR   = "atr"
	ADX   = "adx"
	SMA20 = "sma_20"
	SMA50 = "sma_50"
	EMA20 = "ema_20"
	EMA50 = "ema_50"
)

// TimeframeData holds the derived indicator values and raw series for one timeframe
type TimeframeData struct {
	Values  map[string]float64
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
	Bars    []market.Kline
}

// Bundle maps timeframe name to its indicator data
type Bundle map[string]*TimeframeData

// Value looks up an indicator value on a timeframe
func (b Bundle) Value(timeframe, indicator string) (float64, bool) {
	tf, ok := b[timeframe]
	if !ok {
		return 0, false
	}
	v, ok := tf.Values[indicator]
	return v, ok
}

// BundleProvider supplies per-symbol indicator bundles to the evaluators
type BundleProvider interface {
	GetBundle(symbol string) (Bundle, error)
}

// Calculator computes indicator bundles from raw bars
type Calculator struct {
	provider   market.Provider
	timeframes []string
	barCount   int
}

// NewCalculator creates a bundle calculator over the given timeframes
func NewCalculator(provider market.Provider, timeframes []string, barCount int) *Calculator {
	if barCount <= 0 {
		barCount = 200
	}
	if len(timeframes) == 0 {
		timeframes = []string{"5m", "1h", "4h"}
	}
	return &Calculator{
		provider:   provider,
		timeframes: timeframes,
		barCount:   barCount,
	}
}

// GetBundle fetches bars for every configured timeframe and derives the
// indicator values the evaluators consume
func (c *Calculator) GetBundle(symbol string) (Bundle, error) {
	bundle := make(Bundle, len(c.timeframes))

	for _, tf := range c.timeframes {
		bars, err := c.provider.GetBars(symbol, tf, c.barCount)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s %s bars: %w", symbol, tf, err)
		}
		bundle[tf] = computeTimeframe(bars)
	}

	return bundle, nil
}

func computeTimeframe(bars []market.Kline) *TimeframeData {
	data := &TimeframeData{
		Values:  make(map[string]float64),
		Opens:   make([]float64, len(bars)),
		Highs:   make([]float64, len(bars)),
		Lows:    make([]float64, len(bars)),
		Closes:  make([]float64, len(bars)),
		Volumes: make([]float64, len(bars)),
		Bars:    bars,
	}

	for i, bar := range bars {
		data.Opens[i] = bar.Open
		data.Highs[i] = bar.High
		data.Lows[i] = bar.Low
		data.Closes[i] = bar.Close
		data.Volumes[i] = bar.Volume
	}

	data.Values[RSI] = CalculateRSI(bars, 14)
	data.Values[ATR] = CalculateATR(bars, 14)
	data.Values[ADX] = CalculateADX(bars, 14)
	data.Values[SMA20] = CalculateSMA(bars, 20)
	data.Values[SMA50] = CalculateSMA(bars, 50)
	data.Values[EMA20] = CalculateEMA(bars, 20)
	data.Values[EMA50] = CalculateEMA(bars, 50)

	return data
}
