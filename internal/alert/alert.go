// Package alert holds the persisted watch-condition model, the durable
// store implementations, and the registry that owns their lifecycle.
package alert

import (
	"fmt"
	"time"
)

// Kind classifies what a watch condition observes
type Kind string

const (
	KindPrice      Kind = "PRICE"
	KindIndicator  Kind = "INDICATOR"
	KindStructure  Kind = "STRUCTURE"
	KindOrderFlow  Kind = "ORDER_FLOW"
	KindVolatility Kind = "VOLATILITY"
)

// Condition is the comparison an evaluator applies
type Condition string

const (
	CondEquals       Condition = "EQUALS"
	CondGreaterThan  Condition = "GREATER_THAN"
	CondLessThan     Condition = "LESS_THAN"
	CondCrossesAbove Condition = "CROSSES_ABOVE"
	CondCrossesBelow Condition = "CROSSES_BELOW"
	CondDetected     Condition = "DETECTED"
)

// Alert is a persisted watch condition
type Alert struct {
	ID             string                 `json:"id"`
	Symbol         string                 `json:"symbol"`
	Kind           Kind                   `json:"kind"`
	Condition      Condition              `json:"condition"`
	Description    string                 `json:"description"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	Enabled        bool                   `json:"enabled"`
	OneTime        bool                   `json:"one_time"`
	TriggeredCount int                    `json:"triggered_count"`
	LastTriggered  *time.Time             `json:"last_triggered,omitempty"`
}

// IsExpired reports whether the alert's expiry has passed
func (a *Alert) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Clone returns a deep copy so callers can't mutate registry state
func (a *Alert) Clone() *Alert {
	cp := *a
	if a.Parameters != nil {
		cp.Parameters = make(map[string]interface{}, len(a.Parameters))
		for k, v := range a.Parameters {
			cp.Parameters[k] = v
		}
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		cp.ExpiresAt = &t
	}
	if a.LastTriggered != nil {
		t := *a.LastTriggered
		cp.LastTriggered = &t
	}
	return &cp
}

// ParamString reads a string parameter, returning the fallback when absent
func (a *Alert) ParamString(key, fallback string) string {
	if v, ok := a.Parameters[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// ParamFloat reads a numeric parameter
func (a *Alert) ParamFloat(key string) (float64, bool) {
	v, ok := a.Parameters[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ParseKind validates a stored kind value
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPrice, KindIndicator, KindStructure, KindOrderFlow, KindVolatility:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown alert kind %q", s)
	}
}

// ParseCondition validates a stored condition value
func ParseCondition(s string) (Condition, error) {
	switch Condition(s) {
	case CondEquals, CondGreaterThan, CondLessThan, CondCrossesAbove, CondCrossesBelow, CondDetected:
		return Condition(s), nil
	default:
		return "", fmt.Errorf("unknown alert condition %q", s)
	}
}
