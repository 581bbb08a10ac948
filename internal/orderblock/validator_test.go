package orderblock

import (
	"testing"

	"trading-alert-engine/internal/logging"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

// buildBullishWindow returns a 30-bar base window containing a textbook
// bullish order block: a bearish anchor at index 25 followed by a high
// volume displacement bar with a sweep wick and a price gap behind it.
func buildBullishWindow() []market.Kline {
	bars := make([]market.Kline, 30)

	// Quiet drift with steady volume
	for i := 0; i < 25; i++ {
		base := 100.0 + 0.1*float64(i)
		bars[i] = market.Kline{
			Open:   base,
			Close:  base + 0.1,
			High:   base + 0.6,
			Low:    base - 0.5,
			Volume: 1000,
		}
	}

	// Bearish anchor bar
	bars[25] = market.Kline{Open: 103, Close: 101, High: 103.5, Low: 100.5, Volume: 1000}

	// Displacement: closes above the anchor high, 5x volume, long lower wick
	bars[26] = market.Kline{Open: 101, Close: 106, High: 106.2, Low: 98, Volume: 5000}

	// Continuation leaves a gap: bar 27 low sits above the anchor high
	bars[27] = market.Kline{Open: 106, Close: 107, High: 107.5, Low: 104, Volume: 1000}
	bars[28] = market.Kline{Open: 107, Close: 108, High: 108.5, Low: 106.5, Volume: 1000}
	bars[29] = market.Kline{Open: 108, Close: 109, High: 109.5, Low: 107.5, Volume: 1000}

	return bars
}

func buildRisingHTF(n int) []market.Kline {
	bars := make([]market.Kline, n)
	for i := range bars {
		c := 100.0 + float64(i)
		bars[i] = market.Kline{Open: c - 0.5, Close: c, High: c + 1, Low: c - 1, Volume: 1000}
	}
	return bars
}

func bullishInput() Input {
	return Input{
		Candidate: structure.Candidate{
			Symbol:    "BTCUSDT",
			Direction: structure.Bullish,
			ZoneLow:   100.5,
			ZoneHigh:  103.5,
		},
		Bars:    buildBullishWindow(),
		HTFBars: buildRisingHTF(12),
		Summary: &structure.Summary{
			Direction:        structure.Bullish,
			BreakOfStructure: true,
		},
		Context: &structure.Summary{
			Trend:      structure.TrendBullish,
			Volatility: structure.VolatilityExpanding,
		},
		Session: session.QualityStrong,
		Price:   102.0,
	}
}

func TestValidateFullScore(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	result := v.Validate(bullishInput())

	if !result.Valid {
		t.Fatalf("textbook candidate should validate, got score %.0f", result.Score)
	}
	if result.Score != 100 {
		t.Errorf("all checks passing should score 100, got %.0f", result.Score)
	}
	if len(result.Checks) != 10 {
		t.Errorf("expected 10 check results, got %d", len(result.Checks))
	}
	for _, c := range result.Checks {
		if !c.Passed {
			t.Errorf("check %s should pass: %s", c.Name, c.Detail)
		}
	}
}

func TestValidateRepeatZoneLosesFreshness(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	first := v.Validate(bullishInput())
	if !first.Valid || first.Score != 100 {
		t.Fatalf("first detection should score 100, got %.0f", first.Score)
	}

	second := v.Validate(bullishInput())
	if second.Score != 90 {
		t.Errorf("re-detection of the same zone should lose exactly the freshness points: got %.0f, want 90", second.Score)
	}
	if !second.Valid {
		t.Error("re-detection should still clear the threshold")
	}
	if second.Passed(CheckFreshness) {
		t.Error("freshness should fail on a cached zone")
	}
}

func TestValidateAnchorGateShortCircuits(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	in := bullishInput()
	// Flatten the displacement so no bar closes beyond the anchor high
	in.Bars[26] = market.Kline{Open: 101, Close: 102, High: 103, Low: 100.8, Volume: 5000}
	in.Bars[27] = market.Kline{Open: 102, Close: 102.5, High: 103, Low: 101.5, Volume: 1000}
	in.Bars[28] = market.Kline{Open: 102.5, Close: 102.8, High: 103.2, Low: 102, Volume: 1000}
	in.Bars[29] = market.Kline{Open: 102.8, Close: 103, High: 103.4, Low: 102.3, Volume: 1000}

	result := v.Validate(in)

	if result.Valid {
		t.Error("candidate without an anchor must be rejected")
	}
	if result.Score != 0 {
		t.Errorf("gate rejection must not accumulate score, got %.0f", result.Score)
	}
	if len(result.Checks) != 1 || result.Checks[0].Name != CheckAnchorBar {
		t.Errorf("gate rejection should record only the anchor check, got %d checks", len(result.Checks))
	}
	if v.Dedup().Len("BTCUSDT") != 0 {
		t.Error("rejected candidate must not enter the dedup cache")
	}
}

func TestValidateStructureShiftGate(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	in := bullishInput()
	in.Summary = &structure.Summary{Direction: structure.Bullish} // no BOS, no CHoCH

	result := v.Validate(in)

	if result.Valid {
		t.Error("candidate without a structure shift must be rejected")
	}
	if result.Score != 0 {
		t.Errorf("gate rejection must not accumulate score, got %.0f", result.Score)
	}
	if result.Passed(CheckStructureShift) {
		t.Error("structure shift check should be recorded as failed")
	}
}

func TestValidateBelowThresholdNotCached(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	in := bullishInput()
	in.Session = session.QualityWeak
	in.HTFBars = nil
	in.Context = &structure.Summary{Trend: structure.TrendChoppy}
	in.Price = 200 // far from the zone

	result := v.Validate(in)

	// shift 15 + imbalance 10 + volume 10 + sweep 10 + weak session 3 + freshness 10 = 58
	if result.Valid {
		t.Errorf("score %.0f should not clear the threshold", result.Score)
	}
	if result.Score != 58 {
		t.Errorf("expected score 58, got %.0f", result.Score)
	}
	if v.Dedup().Len("BTCUSDT") != 0 {
		t.Error("invalid candidate must not enter the dedup cache")
	}
}

func TestValidateWindowTooSmall(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	in := bullishInput()
	in.Bars = in.Bars[:10]

	result := v.Validate(in)

	if result.Valid || result.Score != 0 {
		t.Error("undersized window must be rejected with no score")
	}
	if len(result.Checks) != 1 {
		t.Errorf("expected a single diagnostic check, got %d", len(result.Checks))
	}
}

func TestValidateDetailsExposeEveryCheck(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	result := v.Validate(bullishInput())
	details := result.Details()

	for _, name := range []string{
		CheckAnchorBar, CheckStructureShift, CheckImbalance, CheckVolumeExpansion,
		CheckLiquiditySweep, CheckSessionQuality, CheckHTFAlignment,
		CheckStructuralContext, CheckFreshness, CheckConfluence,
	} {
		if _, ok := details[name]; !ok {
			t.Errorf("details missing check %s", name)
		}
	}
}

func TestSessionPointsTiers(t *testing.T) {
	v := NewValidator(DefaultConfig(), logging.Nop())

	cases := []struct {
		quality session.Quality
		want    float64
	}{
		{session.QualityStrong, 10},
		{session.QualityNormal, 5},
		{session.QualityWeak, 3},
	}
	for _, tc := range cases {
		if got := v.sessionPoints(tc.quality); got != tc.want {
			t.Errorf("session %s: got %.0f points, want %.0f", tc.quality, got, tc.want)
		}
	}
}
