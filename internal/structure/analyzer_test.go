package structure

import (
	"testing"

	"trading-alert-engine/internal/market"
)

// barsFromPath turns a price path into bars with 1-point wicks
func barsFromPath(path []float64) []market.Kline {
	bars := make([]market.Kline, len(path))
	for i, p := range path {
		open := p
		if i > 0 {
			open = path[i-1]
		}
		bars[i] = market.Kline{
			Open:   open,
			Close:  p,
			High:   p + 1,
			Low:    p - 1,
			Volume: 1000,
		}
	}
	return bars
}

// uptrendPath builds rising swings: peaks at 104, 106, 108 and troughs at
// 102, 104, 106, finishing with a close above the last peak
func uptrendPath() []float64 {
	return []float64{
		100, 101, 102, 103, 104, // rise to first peak
		103, 102, // pull back
		103, 104, 105, 106, // second peak
		105, 104, // pull back
		105, 106, 107, 108, // third peak
		107, 106, // pull back
		107, 108, 109, 110, 111, 112, // breakout
	}
}

func TestAnalyzeUptrendWithBreakOfStructure(t *testing.T) {
	a := NewAnalyzer(2)

	summary := a.Analyze(barsFromPath(uptrendPath()))

	if summary.Trend != TrendBullish {
		t.Errorf("rising swings should classify bullish, got %s", summary.Trend)
	}
	if summary.Direction != Bullish {
		t.Errorf("expected bullish direction, got %s", summary.Direction)
	}
	if !summary.BreakOfStructure {
		t.Error("close above the last swing high should flag a break of structure")
	}
	if summary.ChangeOfCharacter {
		t.Error("a with-trend break is not a change of character")
	}
	if !summary.Confirms(Bullish) {
		t.Error("bullish BOS should confirm bullish candidates")
	}
	if summary.Confirms(Bearish) {
		t.Error("bullish BOS must not confirm bearish candidates")
	}
}

func TestAnalyzeChangeOfCharacter(t *testing.T) {
	a := NewAnalyzer(2)

	// Uptrend whose tail collapses below the last swing low
	path := []float64{
		100, 101, 102, 103, 104,
		103, 102,
		103, 104, 105, 106,
		105, 104,
		105, 106, 107, 108,
		107, 106,
		104, 103, 102, 101, 100, 99, // collapse
	}
	summary := a.Analyze(barsFromPath(path))

	if !summary.ChangeOfCharacter {
		t.Error("a break against the prevailing trend should flag change of character")
	}
	if summary.BreakOfStructure {
		t.Error("an against-trend break is not a break of structure")
	}
	if summary.Direction != Bearish {
		t.Errorf("change of character should flip the direction, got %s", summary.Direction)
	}
}

func TestAnalyzeTooFewBars(t *testing.T) {
	a := NewAnalyzer(5)

	summary := a.Analyze(barsFromPath([]float64{100, 101, 102}))

	if summary.Trend != TrendUnknown {
		t.Errorf("undersized window should be unknown, got %s", summary.Trend)
	}
	if summary.Confirms(Bullish) || summary.Confirms(Bearish) {
		t.Error("an unknown summary must not confirm anything")
	}
}

func TestConfirmsNilSummary(t *testing.T) {
	var summary *Summary
	if summary.Confirms(Bullish) {
		t.Error("nil summary must not confirm")
	}
}

func TestFindSwingHighsAndLows(t *testing.T) {
	a := NewAnalyzer(2)
	bars := barsFromPath(uptrendPath())

	highs := a.FindSwingHighs(bars)
	if len(highs) != 3 {
		t.Fatalf("expected 3 swing highs, got %d", len(highs))
	}
	for i := 1; i < len(highs); i++ {
		if highs[i].Price <= highs[i-1].Price {
			t.Error("swing highs should be rising in an uptrend")
		}
	}

	lows := a.FindSwingLows(bars)
	if len(lows) != 3 {
		t.Fatalf("expected 3 swing lows, got %d", len(lows))
	}
	for i := 1; i < len(lows); i++ {
		if lows[i].Price <= lows[i-1].Price {
			t.Error("swing lows should be rising in an uptrend")
		}
	}
}

func TestFindCandidatesBullish(t *testing.T) {
	a := NewAnalyzer(2)

	bars := make([]market.Kline, 30)
	for i := 0; i < 25; i++ {
		base := 100.0 + 0.1*float64(i)
		bars[i] = market.Kline{Open: base, Close: base + 0.1, High: base + 0.6, Low: base - 0.5, Volume: 1000}
	}
	// Bearish anchor then a bullish displacement closing above its high.
	// The anchor closes above bar 24's low so the pair does not also read
	// as a bearish displacement.
	bars[25] = market.Kline{Open: 103, Close: 102, High: 103.5, Low: 100.5, Volume: 1000}
	bars[26] = market.Kline{Open: 101, Close: 106, High: 106.2, Low: 98, Volume: 5000}
	bars[27] = market.Kline{Open: 106, Close: 107, High: 107.5, Low: 104, Volume: 1000}
	bars[28] = market.Kline{Open: 107, Close: 108, High: 108.5, Low: 106.5, Volume: 1000}
	bars[29] = market.Kline{Open: 108, Close: 109, High: 109.5, Low: 107.5, Volume: 1000}

	candidates := a.FindCandidates("BTCUSDT", bars, 20)

	if len(candidates) != 1 {
		t.Fatalf("expected exactly 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Direction != Bullish {
		t.Errorf("expected bullish candidate, got %s", c.Direction)
	}
	if c.ZoneLow != 100.5 || c.ZoneHigh != 103.5 {
		t.Errorf("zone should be the anchor range, got %.1f-%.1f", c.ZoneLow, c.ZoneHigh)
	}
	if c.Strength <= 0 || c.Strength > 1 {
		t.Errorf("strength should be in (0,1], got %.2f", c.Strength)
	}
	if c.ZoneMid() != 102 {
		t.Errorf("zone mid should be 102, got %.2f", c.ZoneMid())
	}
}

func TestFindCandidatesBearish(t *testing.T) {
	a := NewAnalyzer(2)

	bars := make([]market.Kline, 30)
	for i := 0; i < 25; i++ {
		base := 110.0 - 0.1*float64(i)
		bars[i] = market.Kline{Open: base, Close: base - 0.1, High: base + 0.5, Low: base - 0.6, Volume: 1000}
	}
	// Bullish anchor then a bearish displacement closing below its low
	bars[25] = market.Kline{Open: 106, Close: 108, High: 108.5, Low: 105.5, Volume: 1000}
	bars[26] = market.Kline{Open: 108, Close: 103, High: 111, Low: 102.8, Volume: 5000}
	bars[27] = market.Kline{Open: 103, Close: 102, High: 104, Low: 101.5, Volume: 1000}
	bars[28] = market.Kline{Open: 102, Close: 101, High: 102.5, Low: 100.5, Volume: 1000}
	bars[29] = market.Kline{Open: 101, Close: 100, High: 101.5, Low: 99.5, Volume: 1000}

	candidates := a.FindCandidates("BTCUSDT", bars, 20)

	if len(candidates) != 1 {
		t.Fatalf("expected exactly 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Direction != Bearish {
		t.Errorf("expected bearish candidate, got %s", candidates[0].Direction)
	}
}

func TestFindCandidatesQuietWindow(t *testing.T) {
	a := NewAnalyzer(2)

	bars := make([]market.Kline, 30)
	for i := range bars {
		base := 100.0 + 0.05*float64(i)
		bars[i] = market.Kline{Open: base, Close: base + 0.05, High: base + 0.3, Low: base - 0.3, Volume: 1000}
	}

	if got := a.FindCandidates("BTCUSDT", bars, 20); len(got) != 0 {
		t.Errorf("quiet drift should produce no candidates, got %d", len(got))
	}
}
