// Package evaluator dispatches alerts to per-kind condition checks against
// a market snapshot. Evaluators are pure: no I/O, no registry side effects.
package evaluator

import (
	"time"

	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

// Snapshot is the transient per-symbol view assembled once per cycle and
// shared across every alert on that symbol. It is never persisted.
type Snapshot struct {
	Symbol        string
	Quote         *market.Quote
	Bundle        indicators.Bundle
	BaseSummary   *structure.Summary // base-window structure, feeds context checks
	HTFSummary    *structure.Summary // higher-timeframe verdict, feeds the shift gate
	Candidates    []structure.Candidate
	Session       session.Quality
	BaseTimeframe string
	HTFTimeframe  string
	Taken         time.Time
}

// Price returns the snapshot's working price (bid/ask midpoint)
func (s *Snapshot) Price() float64 {
	if s.Quote == nil {
		return 0
	}
	return s.Quote.Mid()
}

// Bars returns the bar window for a timeframe, or nil if not bundled
func (s *Snapshot) Bars(timeframe string) []market.Kline {
	tf, ok := s.Bundle[timeframe]
	if !ok {
		return nil
	}
	return tf.Bars
}

// MatchContext describes why an alert matched; it is handed to the
// notification sink alongside the alert
type MatchContext struct {
	AlertID string                 `json:"alert_id"`
	Symbol  string                 `json:"symbol"`
	Message string                 `json:"message"`
	Price   float64                `json:"price"`
	Details map[string]interface{} `json:"details,omitempty"`
}
