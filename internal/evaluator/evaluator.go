package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/orderblock"
	"trading-alert-engine/internal/structure"
)

// Order-block pattern parameter values routed to the validator pipeline
// instead of the generic structure checks
const (
	PatternOBBull     = "ob_bull"
	PatternOBBear     = "ob_bear"
	PatternOrderBlock = "order_block"
)

// Config holds evaluator policy values
type Config struct {
	// Absolute tolerance for EQUALS comparisons on raw indicator values
	EqualsTolerance float64 `json:"equals_tolerance"`
}

// DefaultConfig returns the evaluator defaults
func DefaultConfig() Config {
	return Config{EqualsTolerance: 0.1}
}

// TapeProvider aggregates the trade tape for order-flow alerts. The
// default deployment has none; order-flow alerts then never match.
type TapeProvider interface {
	// Delta returns net taker buy minus sell volume over the recent window
	Delta(symbol string) (float64, error)
}

// Func evaluates one alert against a snapshot. priorPrice is the previous
// cycle's price sample, nil on the first observation of a symbol.
type Func func(a *alert.Alert, snap *Snapshot, priorPrice *float64) *MatchContext

// Dispatcher routes alerts to the evaluator for their kind. Unknown kinds
// are ignored, never an error.
type Dispatcher struct {
	cfg       Config
	validator *orderblock.Validator
	tape      TapeProvider
	handlers  map[alert.Kind]Func
	logger    zerolog.Logger
}

// NewDispatcher builds the kind -> evaluator dispatch table
func NewDispatcher(cfg Config, validator *orderblock.Validator, tape TapeProvider, logger zerolog.Logger) *Dispatcher {
	if cfg.EqualsTolerance <= 0 {
		cfg.EqualsTolerance = DefaultConfig().EqualsTolerance
	}

	d := &Dispatcher{
		cfg:       cfg,
		validator: validator,
		tape:      tape,
		logger:    logger.With().Str("component", "Evaluator").Logger(),
	}
	d.handlers = map[alert.Kind]Func{
		alert.KindPrice:      d.evaluatePrice,
		alert.KindIndicator:  d.evaluateIndicator,
		alert.KindVolatility: d.evaluateVolatility,
		alert.KindStructure:  d.evaluateStructure,
		alert.KindOrderFlow:  d.evaluateOrderFlow,
	}
	return d
}

// Evaluate runs the alert's evaluator, returning nil when the condition
// does not hold this cycle
func (d *Dispatcher) Evaluate(a *alert.Alert, snap *Snapshot, priorPrice *float64) *MatchContext {
	handler, ok := d.handlers[a.Kind]
	if !ok {
		return nil
	}
	return handler(a, snap, priorPrice)
}

// evaluatePrice handles threshold and crossing conditions on the live price
func (d *Dispatcher) evaluatePrice(a *alert.Alert, snap *Snapshot, priorPrice *float64) *MatchContext {
	level, ok := a.ParamFloat("price_level")
	if !ok {
		return nil
	}
	price := snap.Price()
	if price == 0 {
		return nil
	}

	switch a.Condition {
	case alert.CondGreaterThan:
		if price > level {
			return d.match(a, snap, fmt.Sprintf("price %.4f above %.4f", price, level), nil)
		}
	case alert.CondLessThan:
		if price < level {
			return d.match(a, snap, fmt.Sprintf("price %.4f below %.4f", price, level), nil)
		}
	case alert.CondCrossesAbove:
		// A crossing needs a prior sample; its absence is the normal
		// first-observation state, not an error
		if priorPrice != nil && *priorPrice <= level && price > level {
			return d.match(a, snap, fmt.Sprintf("price crossed above %.4f (%.4f -> %.4f)", level, *priorPrice, price),
				map[string]interface{}{"crossed": "above", "prior_price": *priorPrice})
		}
	case alert.CondCrossesBelow:
		if priorPrice != nil && *priorPrice >= level && price < level {
			return d.match(a, snap, fmt.Sprintf("price crossed below %.4f (%.4f -> %.4f)", level, *priorPrice, price),
				map[string]interface{}{"crossed": "below", "prior_price": *priorPrice})
		}
	}
	return nil
}

// evaluateIndicator compares a bundled indicator value against a threshold
func (d *Dispatcher) evaluateIndicator(a *alert.Alert, snap *Snapshot, _ *float64) *MatchContext {
	name := strings.ToLower(a.ParamString("indicator", ""))
	if name == "" {
		return nil
	}
	return d.compareIndicator(a, snap, name)
}

// evaluateVolatility is the indicator path restricted to volatility metrics
func (d *Dispatcher) evaluateVolatility(a *alert.Alert, snap *Snapshot, _ *float64) *MatchContext {
	name := strings.ToLower(a.ParamString("indicator", indicators.ATR))
	if name != indicators.ATR && name != indicators.ADX {
		return nil
	}
	return d.compareIndicator(a, snap, name)
}

func (d *Dispatcher) compareIndicator(a *alert.Alert, snap *Snapshot, name string) *MatchContext {
	threshold, ok := a.ParamFloat("value")
	if !ok {
		return nil
	}
	timeframe := a.ParamString("timeframe", snap.BaseTimeframe)

	value, ok := snap.Bundle.Value(timeframe, name)
	if !ok {
		return nil
	}

	details := map[string]interface{}{
		"indicator": name,
		"timeframe": timeframe,
		"value":     value,
	}

	switch a.Condition {
	case alert.CondGreaterThan:
		if value > threshold {
			return d.match(a, snap, fmt.Sprintf("%s(%s) %.4f above %.4f", name, timeframe, value, threshold), details)
		}
	case alert.CondLessThan:
		if value < threshold {
			return d.match(a, snap, fmt.Sprintf("%s(%s) %.4f below %.4f", name, timeframe, value, threshold), details)
		}
	case alert.CondEquals:
		if math.Abs(value-threshold) <= d.cfg.EqualsTolerance {
			return d.match(a, snap, fmt.Sprintf("%s(%s) %.4f near %.4f", name, timeframe, value, threshold), details)
		}
	}
	return nil
}

// evaluateStructure handles both the generic three-bar sequence checks and
// the order-block pattern route
func (d *Dispatcher) evaluateStructure(a *alert.Alert, snap *Snapshot, _ *float64) *MatchContext {
	pattern := strings.ToLower(a.ParamString("pattern", ""))

	switch pattern {
	case PatternOBBull, PatternOBBear, PatternOrderBlock:
		return d.evaluateOrderBlock(a, snap, pattern)
	}

	timeframe := a.ParamString("timeframe", snap.BaseTimeframe)
	bars := snap.Bars(timeframe)
	if len(bars) < 3 {
		return nil
	}

	b1, b2, b3 := bars[len(bars)-3], bars[len(bars)-2], bars[len(bars)-1]

	switch pattern {
	case "bullish_break":
		// Three strictly ascending highs
		if b1.High < b2.High && b2.High < b3.High {
			return d.match(a, snap, fmt.Sprintf("three ascending highs on %s", timeframe),
				map[string]interface{}{"pattern": pattern, "timeframe": timeframe})
		}
	case "bearish_break":
		// Three strictly descending lows
		if b1.Low > b2.Low && b2.Low > b3.Low {
			return d.match(a, snap, fmt.Sprintf("three descending lows on %s", timeframe),
				map[string]interface{}{"pattern": pattern, "timeframe": timeframe})
		}
	}
	return nil
}

// evaluateOrderBlock runs candidates through the validation pipeline and
// matches on the first accepted one
func (d *Dispatcher) evaluateOrderBlock(a *alert.Alert, snap *Snapshot, pattern string) *MatchContext {
	bars := snap.Bars(snap.BaseTimeframe)
	if len(bars) == 0 {
		return nil
	}

	for _, candidate := range snap.Candidates {
		if pattern == PatternOBBull && candidate.Direction != structure.Bullish {
			continue
		}
		if pattern == PatternOBBear && candidate.Direction != structure.Bearish {
			continue
		}

		result := d.validator.Validate(orderblock.Input{
			Candidate: candidate,
			Bars:      bars,
			HTFBars:   snap.Bars(snap.HTFTimeframe),
			Summary:   snap.HTFSummary,
			Context:   snap.BaseSummary,
			Session:   snap.Session,
			Price:     snap.Price(),
		})
		if !result.Valid {
			continue
		}

		return d.match(a, snap,
			fmt.Sprintf("%s order block %.4f-%.4f scored %.0f",
				candidate.Direction, candidate.ZoneLow, candidate.ZoneHigh, result.Score),
			map[string]interface{}{
				"pattern":   pattern,
				"direction": string(candidate.Direction),
				"zone_low":  candidate.ZoneLow,
				"zone_high": candidate.ZoneHigh,
				"score":     result.Score,
				"checks":    result.Details(),
			})
	}
	return nil
}

// evaluateOrderFlow matches on net tape delta; without a tape aggregator
// configured it always reports no match
func (d *Dispatcher) evaluateOrderFlow(a *alert.Alert, snap *Snapshot, _ *float64) *MatchContext {
	if d.tape == nil {
		return nil
	}

	threshold, ok := a.ParamFloat("min_delta")
	if !ok {
		return nil
	}

	delta, err := d.tape.Delta(a.Symbol)
	if err != nil {
		d.logger.Debug().Str("symbol", a.Symbol).Err(err).Msg("Trade tape unavailable")
		return nil
	}

	switch a.Condition {
	case alert.CondGreaterThan:
		if delta > threshold {
			return d.match(a, snap, fmt.Sprintf("tape delta %.2f above %.2f", delta, threshold),
				map[string]interface{}{"delta": delta})
		}
	case alert.CondLessThan:
		if delta < threshold {
			return d.match(a, snap, fmt.Sprintf("tape delta %.2f below %.2f", delta, threshold),
				map[string]interface{}{"delta": delta})
		}
	}
	return nil
}

func (d *Dispatcher) match(a *alert.Alert, snap *Snapshot, message string, details map[string]interface{}) *MatchContext {
	return &MatchContext{
		AlertID: a.ID,
		Symbol:  a.Symbol,
		Message: message,
		Price:   snap.Price(),
		Details: details,
	}
}
