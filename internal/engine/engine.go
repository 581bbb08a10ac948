// Package engine drives the evaluation cycle: one synchronous pass over
// the enabled alerts, grouped by symbol so each symbol's market data is
// fetched once and shared across its alerts.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/evaluator"
	"trading-alert-engine/internal/events"
	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

// Config holds engine settings
type Config struct {
	Interval          time.Duration `json:"interval"`
	WorkerCount       int           `json:"worker_count"`
	BaseTimeframe     string        `json:"base_timeframe"`
	HTFTimeframe      string        `json:"htf_timeframe"`
	BarCount          int           `json:"bar_count"`
	CandidateLookback int           `json:"candidate_lookback"`
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Interval:          30 * time.Second,
		WorkerCount:       4,
		BaseTimeframe:     "5m",
		HTFTimeframe:      "1h",
		BarCount:          200,
		CandidateLookback: 30,
	}
}

// CycleResult summarizes one evaluation pass
type CycleResult struct {
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Symbols   int           `json:"symbols"`
	Evaluated int           `json:"evaluated"`
	Triggered int           `json:"triggered"`
	Swept     int           `json:"swept"`
	Errors    []string      `json:"errors,omitempty"`
}

// Engine owns the evaluation loop
type Engine struct {
	cfg        Config
	registry   *alert.Registry
	provider   market.Provider
	bundles    indicators.BundleProvider
	analyzer   *structure.Analyzer
	sessions   session.Provider
	dispatcher *evaluator.Dispatcher
	sink       Sink
	bus        *events.EventBus
	logger     zerolog.Logger

	mu          sync.Mutex
	priorPrices map[string]float64
	symbolLocks map[string]*sync.Mutex
	inOutage    map[string]bool
	lastResult  *CycleResult

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Sink receives each committed trigger
type Sink interface {
	NotifyTrigger(a *alert.Alert, match *evaluator.MatchContext) error
}

// New creates an engine
func New(
	cfg Config,
	registry *alert.Registry,
	provider market.Provider,
	bundles indicators.BundleProvider,
	analyzer *structure.Analyzer,
	sessions session.Provider,
	dispatcher *evaluator.Dispatcher,
	sink Sink,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Engine {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}
	if cfg.BaseTimeframe == "" {
		cfg.BaseTimeframe = DefaultConfig().BaseTimeframe
	}
	if cfg.HTFTimeframe == "" {
		cfg.HTFTimeframe = DefaultConfig().HTFTimeframe
	}
	if cfg.BarCount <= 0 {
		cfg.BarCount = DefaultConfig().BarCount
	}

	return &Engine{
		cfg:         cfg,
		registry:    registry,
		provider:    provider,
		bundles:     bundles,
		analyzer:    analyzer,
		sessions:    sessions,
		dispatcher:  dispatcher,
		sink:        sink,
		bus:         bus,
		logger:      logger.With().Str("component", "Engine").Logger(),
		priorPrices: make(map[string]float64),
		symbolLocks: make(map[string]*sync.Mutex),
		inOutage:    make(map[string]bool),
		stopChan:    make(chan struct{}),
	}
}

// Start begins the evaluation loop on the configured cadence
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.runLoop()
	e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{}})
	e.logger.Info().Dur("interval", e.cfg.Interval).Msg("Evaluation engine started")
}

// Stop halts the loop and waits for the in-flight cycle to finish
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	e.bus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]interface{}{}})
	e.logger.Info().Msg("Evaluation engine stopped")
}

// LastResult returns the most recent cycle summary
func (e *Engine) LastResult() *CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

func (e *Engine) runLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	// Run immediately
	e.RunCycle(context.Background())

	for {
		select {
		case <-ticker.C:
			e.RunCycle(context.Background())
		case <-e.stopChan:
			return
		}
	}
}

// RunCycle executes one synchronous evaluation pass over all symbols with
// active alerts. Symbols are evaluated concurrently by a bounded worker
// pool; a per-symbol lock keeps one symbol from overlapping across cycles.
func (e *Engine) RunCycle(ctx context.Context) *CycleResult {
	start := time.Now()
	result := &CycleResult{StartTime: start}

	swept, err := e.registry.SweepExpired(ctx)
	if err != nil {
		// Persistence failures always surface; a failed sweep does not
		// stop evaluation of the surviving alerts
		e.logger.Error().Err(err).Msg("Expired alert sweep failed")
		result.Errors = append(result.Errors, err.Error())
	}
	result.Swept = swept

	symbols := e.registry.Symbols()
	result.Symbols = len(symbols)

	symbolChan := make(chan string, len(symbols))
	var wg sync.WaitGroup
	var resultMu sync.Mutex

	for i := 0; i < e.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				evaluated, triggered, errs := e.evaluateSymbol(ctx, symbol)
				resultMu.Lock()
				result.Evaluated += evaluated
				result.Triggered += triggered
				result.Errors = append(result.Errors, errs...)
				resultMu.Unlock()
			}
		}()
	}

	for _, symbol := range symbols {
		symbolChan <- symbol
	}
	close(symbolChan)
	wg.Wait()

	result.Duration = time.Since(start)

	e.mu.Lock()
	e.lastResult = result
	e.mu.Unlock()

	e.bus.PublishCycleCompleted(result.Symbols, result.Evaluated, result.Triggered, result.Duration)
	e.logger.Debug().
		Int("symbols", result.Symbols).
		Int("evaluated", result.Evaluated).
		Int("triggered", result.Triggered).
		Dur("duration", result.Duration).
		Msg("Cycle completed")

	return result
}

// evaluateSymbol builds one snapshot and runs every active alert on the
// symbol against it
func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) (evaluated, triggered int, errs []string) {
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	snap, err := e.buildSnapshot(symbol)
	if err != nil {
		// Data unavailability is absorbed: no match this cycle, logged
		// once per outage episode to avoid flooding
		e.mu.Lock()
		firstFailure := !e.inOutage[symbol]
		e.inOutage[symbol] = true
		e.mu.Unlock()

		if firstFailure {
			e.logger.Warn().Str("symbol", symbol).Err(err).Msg("Market data unavailable, skipping symbol")
			e.bus.PublishDataUnavailable(symbol, err.Error())
		}
		return 0, 0, nil
	}

	e.mu.Lock()
	if e.inOutage[symbol] {
		delete(e.inOutage, symbol)
		e.logger.Info().Str("symbol", symbol).Msg("Market data recovered")
	}
	priorPrice, hasPrior := e.priorPrices[symbol]
	e.priorPrices[symbol] = snap.Price()
	e.mu.Unlock()

	var prior *float64
	if hasPrior {
		prior = &priorPrice
	}

	for _, a := range e.registry.List(true, symbol) {
		evaluated++

		match := e.dispatcher.Evaluate(a, snap, prior)
		if match == nil {
			continue
		}

		updated, err := e.registry.RecordTrigger(ctx, a.ID)
		if err != nil {
			e.logger.Error().Str("alert_id", a.ID).Err(err).Msg("Failed to record trigger")
			errs = append(errs, err.Error())
			continue
		}
		triggered++

		e.bus.PublishAlertTriggered(a.ID, symbol, match.Message, match.Price)
		if e.sink != nil {
			if err := e.sink.NotifyTrigger(updated, match); err != nil {
				e.logger.Warn().Str("alert_id", a.ID).Err(err).Msg("Notification delivery failed")
			}
		}
	}

	return evaluated, triggered, errs
}

// buildSnapshot assembles the per-symbol view shared by the symbol's alerts
func (e *Engine) buildSnapshot(symbol string) (*evaluator.Snapshot, error) {
	quote, err := e.provider.GetQuote(symbol)
	if err != nil {
		return nil, err
	}

	bundle, err := e.bundles.GetBundle(symbol)
	if err != nil {
		return nil, err
	}

	snap := &evaluator.Snapshot{
		Symbol:        symbol,
		Quote:         quote,
		Bundle:        bundle,
		Session:       session.QualityOf(e.sessions.CurrentSession(symbol)),
		BaseTimeframe: e.cfg.BaseTimeframe,
		HTFTimeframe:  e.cfg.HTFTimeframe,
		Taken:         time.Now(),
	}

	if tf, ok := bundle[e.cfg.BaseTimeframe]; ok && len(tf.Bars) > 0 {
		snap.BaseSummary = e.analyzer.Analyze(tf.Bars)
		snap.Candidates = e.analyzer.FindCandidates(symbol, tf.Bars, e.cfg.CandidateLookback)
	}
	if tf, ok := bundle[e.cfg.HTFTimeframe]; ok && len(tf.Bars) > 0 {
		snap.HTFSummary = e.analyzer.Analyze(tf.Bars)
	}

	return snap, nil
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.symbolLocks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.symbolLocks[symbol] = lock
	}
	return lock
}
