// Package session classifies the current trading session by UTC clock and
// grades its liquidity quality.
package session

import "time"

// Label identifies a trading session
type Label string

const (
	Asian           Label = "asian"
	London          Label = "london"
	NewYork         Label = "new_york"
	LondonNYOverlap Label = "london_ny_overlap"
	OffHours        Label = "off_hours"
)

// Quality grades a session's liquidity
type Quality string

const (
	QualityStrong Quality = "strong"
	QualityNormal Quality = "normal"
	QualityWeak   Quality = "weak"
)

// Provider supplies the current session context for a symbol
type Provider interface {
	CurrentSession(symbol string) Label
}

// Clock-based session boundaries in UTC. Crypto trades around the clock,
// so the labels track the legacy FX sessions that still drive liquidity.
const (
	asianOpen   = 0  // 00:00 UTC
	londonOpen  = 7  // 07:00 UTC
	nyOpen      = 13 // 13:00 UTC  (overlap with London until 16:00)
	londonClose = 16
	nyClose     = 21
)

// Classifier is the default clock-based Provider
type Classifier struct {
	now func() time.Time
}

// NewClassifier creates a session classifier using the wall clock
func NewClassifier() *Classifier {
	return &Classifier{now: time.Now}
}

// NewClassifierAt creates a classifier with an injected clock, for tests
func NewClassifierAt(now func() time.Time) *Classifier {
	return &Classifier{now: now}
}

// CurrentSession returns the session label for the current UTC time.
// The symbol is accepted for interface compatibility; the clock-based
// classifier treats all symbols alike.
func (c *Classifier) CurrentSession(symbol string) Label {
	return Classify(c.now().UTC())
}

// Classify maps a UTC time to its session label
func Classify(t time.Time) Label {
	hour := t.UTC().Hour()
	switch {
	case hour >= nyOpen && hour < londonClose:
		return LondonNYOverlap
	case hour >= londonOpen && hour < nyOpen:
		return London
	case hour >= londonClose && hour < nyClose:
		return NewYork
	case hour >= asianOpen && hour < londonOpen:
		return Asian
	default:
		return OffHours
	}
}

// QualityOf grades a session label
func QualityOf(label Label) Quality {
	switch label {
	case LondonNYOverlap:
		return QualityStrong
	case OffHours, Asian:
		return QualityWeak
	default:
		return QualityNormal
	}
}
