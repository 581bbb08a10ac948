package evaluator

import (
	"testing"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

// orderBlockSnapshot assembles a snapshot whose base window contains a
// validatable bullish order block around 100.5-103.5
func orderBlockSnapshot() *Snapshot {
	bars := make([]market.Kline, 30)
	for i := 0; i < 25; i++ {
		base := 100.0 + 0.1*float64(i)
		bars[i] = market.Kline{Open: base, Close: base + 0.1, High: base + 0.6, Low: base - 0.5, Volume: 1000}
	}
	bars[25] = market.Kline{Open: 103, Close: 101, High: 103.5, Low: 100.5, Volume: 1000}
	bars[26] = market.Kline{Open: 101, Close: 106, High: 106.2, Low: 98, Volume: 5000}
	bars[27] = market.Kline{Open: 106, Close: 107, High: 107.5, Low: 104, Volume: 1000}
	bars[28] = market.Kline{Open: 107, Close: 108, High: 108.5, Low: 106.5, Volume: 1000}
	bars[29] = market.Kline{Open: 108, Close: 109, High: 109.5, Low: 107.5, Volume: 1000}

	htf := make([]market.Kline, 12)
	for i := range htf {
		c := 100.0 + float64(i)
		htf[i] = market.Kline{Open: c - 0.5, Close: c, High: c + 1, Low: c - 1, Volume: 1000}
	}

	return &Snapshot{
		Symbol: "BTCUSDT",
		Quote:  &market.Quote{Symbol: "BTCUSDT", Bid: 102, Ask: 102},
		Bundle: indicators.Bundle{
			"5m": &indicators.TimeframeData{Bars: bars},
			"1h": &indicators.TimeframeData{Bars: htf},
		},
		BaseSummary: &structure.Summary{
			Trend:      structure.TrendBullish,
			Volatility: structure.VolatilityExpanding,
		},
		HTFSummary: &structure.Summary{
			Direction:        structure.Bullish,
			BreakOfStructure: true,
		},
		Candidates: []structure.Candidate{
			{Symbol: "BTCUSDT", Direction: structure.Bullish, ZoneLow: 100.5, ZoneHigh: 103.5},
		},
		Session:       session.QualityStrong,
		BaseTimeframe: "5m",
		HTFTimeframe:  "1h",
	}
}

func TestStructureAlertRoutesOrderBlockPattern(t *testing.T) {
	d := newTestDispatcher()

	a := &alert.Alert{
		ID: "ob", Symbol: "BTCUSDT", Kind: alert.KindStructure,
		Condition: alert.CondDetected,
		Parameters: map[string]interface{}{
			"pattern": "ob_bull",
		},
	}

	match := d.Evaluate(a, orderBlockSnapshot(), nil)
	if match == nil {
		t.Fatal("validatable bullish order block should match an ob_bull alert")
	}

	if match.Details["score"].(float64) < 60 {
		t.Errorf("matched score should clear the threshold, got %v", match.Details["score"])
	}
	if match.Details["direction"] != "bullish" {
		t.Errorf("expected bullish direction detail, got %v", match.Details["direction"])
	}
	if _, ok := match.Details["checks"].(map[string]float64); !ok {
		t.Error("match details should carry the per-check breakdown")
	}
}

func TestOrderBlockPatternFiltersDirection(t *testing.T) {
	d := newTestDispatcher()

	a := &alert.Alert{
		ID: "ob-bear", Symbol: "BTCUSDT", Kind: alert.KindStructure,
		Condition: alert.CondDetected,
		Parameters: map[string]interface{}{
			"pattern": "ob_bear",
		},
	}

	// The only candidate is bullish, so a bearish alert must not match
	if match := d.Evaluate(a, orderBlockSnapshot(), nil); match != nil {
		t.Error("ob_bear alert must ignore bullish candidates")
	}
}

func TestOrderBlockPatternNoCandidates(t *testing.T) {
	d := newTestDispatcher()

	a := &alert.Alert{
		ID: "ob", Symbol: "BTCUSDT", Kind: alert.KindStructure,
		Condition: alert.CondDetected,
		Parameters: map[string]interface{}{
			"pattern": "order_block",
		},
	}

	snap := orderBlockSnapshot()
	snap.Candidates = nil
	if match := d.Evaluate(a, snap, nil); match != nil {
		t.Error("no candidates means no match")
	}
}
