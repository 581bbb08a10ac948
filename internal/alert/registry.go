package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry owns the alert lifecycle. Every mutating operation runs under a
// single lock and completes its durable write before returning, so a
// concurrent List can never observe a triggered one-shot alert still
// pending, and a crash after Remove returns cannot resurrect the alert.
type Registry struct {
	mu     sync.RWMutex
	store  Store
	alerts map[string]*Alert
	logger zerolog.Logger
}

// NewRegistry loads the store and returns a registry over its contents.
// Malformed persisted records have already been skipped by the store.
func NewRegistry(ctx context.Context, store Store, logger zerolog.Logger) (*Registry, error) {
	alerts, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		store:  store,
		alerts: alerts,
		logger: logger.With().Str("component", "AlertRegistry").Logger(),
	}

	r.logger.Info().Int("alerts", len(alerts)).Msg("Alert registry loaded")
	return r, nil
}

// AddParams describes a new alert
type AddParams struct {
	Symbol      string
	Kind        Kind
	Condition   Condition
	Description string
	Parameters  map[string]interface{}
	ExpiresIn   time.Duration // 0 means never
	OneTime     bool
}

// Add creates, persists, and returns a new alert
func (r *Registry) Add(ctx context.Context, p AddParams) (*Alert, error) {
	now := time.Now().UTC()

	a := &Alert{
		ID:          uuid.New().String(),
		Symbol:      p.Symbol,
		Kind:        p.Kind,
		Condition:   p.Condition,
		Description: p.Description,
		Parameters:  p.Parameters,
		CreatedAt:   now,
		Enabled:     true,
		OneTime:     p.OneTime,
	}
	if p.ExpiresIn > 0 {
		exp := now.Add(p.ExpiresIn)
		a.ExpiresAt = &exp
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts[a.ID] = a
	if err := r.store.Save(ctx, r.alerts); err != nil {
		delete(r.alerts, a.ID)
		return nil, err
	}

	r.logger.Info().
		Str("alert_id", a.ID).
		Str("symbol", a.Symbol).
		Str("kind", string(a.Kind)).
		Str("condition", string(a.Condition)).
		Bool("one_time", a.OneTime).
		Msg("Alert created")

	return a.Clone(), nil
}

// Remove deletes the alert if present and reports whether it existed.
// The durable write completes before a successful return.
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.alerts[id]
	if !exists {
		return false, nil
	}

	delete(r.alerts, id)
	if err := r.store.Save(ctx, r.alerts); err != nil {
		r.alerts[id] = a
		return false, err
	}

	r.logger.Info().Str("alert_id", id).Msg("Alert removed")
	return true, nil
}

// Get returns a copy of the alert, or ErrAlertNotFound
func (r *Registry) Get(id string) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.alerts[id]
	if !exists {
		return nil, ErrAlertNotFound
	}
	return a.Clone(), nil
}

// List returns copies of alerts, optionally restricted to a symbol. With
// enabledOnly set, disabled and expired alerts are filtered out.
func (r *Registry) List(enabledOnly bool, symbol string) []*Alert {
	now := time.Now().UTC()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Alert
	for _, a := range r.alerts {
		if symbol != "" && a.Symbol != symbol {
			continue
		}
		if enabledOnly && (!a.Enabled || a.IsExpired(now)) {
			continue
		}
		out = append(out, a.Clone())
	}
	return out
}

// Symbols returns the distinct symbols that currently have active alerts
func (r *Registry) Symbols() []string {
	now := time.Now().UTC()

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, a := range r.alerts {
		if !a.Enabled || a.IsExpired(now) {
			continue
		}
		if !seen[a.Symbol] {
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out
}

// RecordTrigger increments the trigger count and stamps last_triggered.
// One-shot alerts are removed in the same locked operation, so no caller
// can observe the alert both triggered and still pending.
func (r *Registry) RecordTrigger(ctx context.Context, id string) (*Alert, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.alerts[id]
	if !exists {
		return nil, ErrAlertNotFound
	}

	prevCount := a.TriggeredCount
	prevLast := a.LastTriggered

	a.TriggeredCount++
	a.LastTriggered = &now

	removed := false
	if a.OneTime {
		delete(r.alerts, id)
		removed = true
	}

	if err := r.store.Save(ctx, r.alerts); err != nil {
		a.TriggeredCount = prevCount
		a.LastTriggered = prevLast
		if removed {
			r.alerts[id] = a
		}
		return nil, err
	}

	r.logger.Info().
		Str("alert_id", id).
		Str("symbol", a.Symbol).
		Int("triggered_count", a.TriggeredCount).
		Bool("removed", removed).
		Msg("Alert triggered")

	return a.Clone(), nil
}

// SweepExpired removes all alerts whose expiry is strictly before now and
// returns how many were removed
func (r *Registry) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[string]*Alert)
	for id, a := range r.alerts {
		if a.IsExpired(now) {
			removed[id] = a
			delete(r.alerts, id)
		}
	}

	if len(removed) == 0 {
		return 0, nil
	}

	if err := r.store.Save(ctx, r.alerts); err != nil {
		for id, a := range removed {
			r.alerts[id] = a
		}
		return 0, err
	}

	r.logger.Info().Int("removed", len(removed)).Msg("Swept expired alerts")
	return len(removed), nil
}

// Enable marks the alert enabled and reports whether it existed
func (r *Registry) Enable(ctx context.Context, id string) (bool, error) {
	return r.setEnabled(ctx, id, true)
}

// Disable marks the alert disabled but retains it
func (r *Registry) Disable(ctx context.Context, id string) (bool, error) {
	return r.setEnabled(ctx, id, false)
}

func (r *Registry) setEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.alerts[id]
	if !exists {
		return false, nil
	}

	prev := a.Enabled
	a.Enabled = enabled
	if err := r.store.Save(ctx, r.alerts); err != nil {
		a.Enabled = prev
		return false, err
	}

	r.logger.Info().Str("alert_id", id).Bool("enabled", enabled).Msg("Alert toggled")
	return true, nil
}
