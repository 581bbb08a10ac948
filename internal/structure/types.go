// Package structure analyzes swing structure on a bar window: trend
// classification, break-of-structure and change-of-character verdicts,
// volatility state, and the raw order-block candidates the pattern
// validator scores.
package structure

// Direction of a structural move or candidate
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Opposite returns the other direction
func (d Direction) Opposite() Direction {
	if d == Bullish {
		return Bearish
	}
	return Bullish
}

// Trend classifies the shape of the analyzed window
type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendChoppy   Trend = "choppy"
	TrendRanging  Trend = "ranging"
	TrendUnknown  Trend = "unknown"
)

// VolatilityState classifies how the true range is developing
type VolatilityState string

const (
	VolatilityExpanding   VolatilityState = "expanding"
	VolatilityContracting VolatilityState = "contracting"
	VolatilityStable      VolatilityState = "stable"
	VolatilityUnknown     VolatilityState = "unknown"
)

// Candidate is a raw short-term reversal zone produced by the analyzer.
// It carries no verdict; the pattern validator decides whether it is a
// tradeable order block.
type Candidate struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	ZoneLow   float64   `json:"zone_low"`
	ZoneHigh  float64   `json:"zone_high"`
	Strength  float64   `json:"strength"` // raw detector confidence, 0-1
}

// ZoneMid returns the midpoint of the candidate zone
func (c Candidate) ZoneMid() float64 {
	return (c.ZoneLow + c.ZoneHigh) / 2
}

// Summary is the higher-level structural verdict for a symbol
type Summary struct {
	Direction         Direction       `json:"direction"`
	BreakOfStructure  bool            `json:"break_of_structure"`
	ChangeOfCharacter bool            `json:"change_of_character"`
	Trend             Trend           `json:"trend"`
	Volatility        VolatilityState `json:"volatility"`
	TrendStrength     float64         `json:"trend_strength"` // 0-1
}

// Confirms reports whether the summary confirms a shift in the given direction
func (s *Summary) Confirms(d Direction) bool {
	if s == nil {
		return false
	}
	return s.Direction == d && (s.BreakOfStructure || s.ChangeOfCharacter)
}

// SummaryProvider supplies the per-symbol structural verdict consumed by
// the pattern validator
type SummaryProvider interface {
	Summary(symbol string) (*Summary, error)
}
