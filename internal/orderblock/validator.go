// Package orderblock scores short-term reversal candidates through a
// staged, weighted check pipeline. Two mandatory gates reject candidates
// that are not the phenomenon at all; the remaining checks each add
// confidence independently, giving a fully auditable linear score.
package orderblock

import (
	"fmt"

	"github.com/rs/zerolog"

	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

// Check names as they appear in ValidationResult details
const (
	CheckAnchorBar         = "anchor_bar"
	CheckStructureShift    = "structure_shift"
	CheckImbalance         = "imbalance"
	CheckVolumeExpansion   = "volume_expansion"
	CheckLiquiditySweep    = "liquidity_sweep"
	CheckSessionQuality    = "session_quality"
	CheckHTFAlignment      = "htf_alignment"
	CheckStructuralContext = "structural_context"
	CheckFreshness         = "freshness"
	CheckConfluence        = "confluence"
)

// Additive check weights. The anchor gate awards no points of its own: a
// candidate without an anchor is rejected outright rather than scored.
const (
	pointsStructureShift    = 15
	pointsImbalance         = 10
	pointsVolumeExpansion   = 10
	pointsLiquiditySweep    = 10
	pointsHTFAlignment      = 15
	pointsStructuralContext = 10
	pointsFreshness         = 10
	pointsConfluence        = 10
)

// MinBars is the smallest base window the validator accepts
const MinBars = 20

// SessionScores holds the session-quality tier points. These are policy
// values, not laws of nature; they come from config.
type SessionScores struct {
	Strong float64 `json:"strong"`
	Normal float64 `json:"normal"`
	Weak   float64 `json:"weak"`
}

// Config holds validator tuning
type Config struct {
	ScoreThreshold   float64       `json:"score_threshold"`
	VolumeLookback   int           `json:"volume_lookback"`
	VolumeExpansion  float64       `json:"volume_expansion"`
	SweepWickRatio   float64       `json:"sweep_wick_ratio"`
	HTFAlignBars     int           `json:"htf_align_bars"`
	ConfluenceATRMul float64       `json:"confluence_atr_mul"`
	ATRPeriod        int           `json:"atr_period"`
	SessionScores    SessionScores `json:"session_scores"`
	DedupCap         int           `json:"dedup_cap"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:   60,
		VolumeLookback:   20,
		VolumeExpansion:  1.2,
		SweepWickRatio:   0.5,
		HTFAlignBars:     10,
		ConfluenceATRMul: 0.5,
		ATRPeriod:        14,
		SessionScores:    SessionScores{Strong: 10, Normal: 5, Weak: 3},
		DedupCap:         DefaultDedupCap,
	}
}

// CheckResult records one check's outcome
type CheckResult struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Points float64 `json:"points"`
	Detail string  `json:"detail,omitempty"`
}

// ValidationResult is the verdict for one candidate. It is computed fresh
// on every call and never persisted; only the dedup key survives.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Score  float64       `json:"score"`
	Checks []CheckResult `json:"checks"`
}

// Details returns the per-check outcome as a name -> points map
func (r *ValidationResult) Details() map[string]float64 {
	out := make(map[string]float64, len(r.Checks))
	for _, c := range r.Checks {
		out[c.Name] = c.Points
	}
	return out
}

// Passed reports whether the named check passed
func (r *ValidationResult) Passed(name string) bool {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Passed
		}
	}
	return false
}

// Input carries everything one validation call consumes
type Input struct {
	Candidate structure.Candidate
	Bars      []market.Kline     // base timeframe, oldest first, >= MinBars
	HTFBars   []market.Kline     // optional higher-timeframe window
	Summary   *structure.Summary // higher-timeframe verdict for the shift gate
	Context   *structure.Summary // base-window structure for the context check
	Session   session.Quality
	Price     float64 // live price
}

// Validator runs the check pipeline and maintains the dedup cache
type Validator struct {
	cfg    Config
	dedup  *DedupCache
	logger zerolog.Logger
}

// NewValidator creates a validator with its own dedup cache
func NewValidator(cfg Config, logger zerolog.Logger) *Validator {
	if cfg.ScoreThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Validator{
		cfg:    cfg,
		dedup:  NewDedupCache(cfg.DedupCap),
		logger: logger.With().Str("component", "PatternValidator").Logger(),
	}
}

// Dedup exposes the cache for diagnostics and tests
func (v *Validator) Dedup() *DedupCache {
	return v.dedup
}

// Validate runs the ten checks against a candidate. The anchor and
// structure-shift checks gate: failing either rejects the candidate before
// any score exists. The remaining checks accumulate points, and the
// candidate is accepted once the total reaches the configured threshold.
// Accepted zones are remembered so re-detections fail the freshness check.
func (v *Validator) Validate(in Input) *ValidationResult {
	result := &ValidationResult{}

	if len(in.Bars) < MinBars {
		result.Checks = append(result.Checks, CheckResult{
			Name:   CheckAnchorBar,
			Detail: fmt.Sprintf("window too small: %d bars, need %d", len(in.Bars), MinBars),
		})
		return result
	}

	// Gate 1: anchor bar + displacement
	anchorIdx, ok := v.findAnchor(in.Candidate, in.Bars)
	if !ok {
		result.Checks = append(result.Checks, CheckResult{
			Name:   CheckAnchorBar,
			Detail: "no opposing bar with displacement overlaps the zone",
		})
		v.logger.Debug().Str("symbol", in.Candidate.Symbol).Msg("Candidate rejected: no anchor bar")
		return result
	}
	result.Checks = append(result.Checks, CheckResult{
		Name:   CheckAnchorBar,
		Passed: true,
		Detail: fmt.Sprintf("anchor at index %d", anchorIdx),
	})

	// Gate 2: higher-level structure shift
	if !in.Summary.Confirms(in.Candidate.Direction) {
		result.Checks = append(result.Checks, CheckResult{
			Name:   CheckStructureShift,
			Detail: "no confirmed break of structure or change of character",
		})
		v.logger.Debug().Str("symbol", in.Candidate.Symbol).Msg("Candidate rejected: no structure shift")
		return result
	}
	result.addCheck(CheckStructureShift, true, pointsStructureShift, "structure shift confirmed")

	dispIdx := anchorIdx + 1

	// Check 3: imbalance after displacement
	passed, detail := v.checkImbalance(in.Candidate.Direction, in.Bars, anchorIdx)
	result.addCheck(CheckImbalance, passed, pointsImbalance, detail)

	// Check 4: volume expansion on the displacement bar
	passed, detail = v.checkVolumeExpansion(in.Bars, dispIdx)
	result.addCheck(CheckVolumeExpansion, passed, pointsVolumeExpansion, detail)

	// Check 5: liquidity sweep wick on the displacement bar
	passed, detail = v.checkLiquiditySweep(in.Candidate.Direction, in.Bars[dispIdx])
	result.addCheck(CheckLiquiditySweep, passed, pointsLiquiditySweep, detail)

	// Check 6: session quality (continuous tier points)
	sessionPts := v.sessionPoints(in.Session)
	result.Checks = append(result.Checks, CheckResult{
		Name:   CheckSessionQuality,
		Passed: true,
		Points: sessionPts,
		Detail: string(in.Session),
	})
	result.Score += sessionPts

	// Check 7: higher-timeframe alignment
	passed, detail = v.checkHTFAlignment(in.Candidate.Direction, in.HTFBars)
	result.addCheck(CheckHTFAlignment, passed, pointsHTFAlignment, detail)

	// Check 8: structural context (not chop, not contracting volatility)
	passed, detail = v.checkStructuralContext(in.Context)
	result.addCheck(CheckStructuralContext, passed, pointsStructuralContext, detail)

	// Check 9: freshness against the dedup cache
	zoneKey := ZoneKey(in.Candidate.ZoneLow, in.Candidate.ZoneHigh)
	fresh := !v.dedup.Contains(in.Candidate.Symbol, zoneKey)
	result.addCheck(CheckFreshness, fresh, pointsFreshness, zoneKey)

	// Check 10: confluence proximity to the live price
	passed, detail = v.checkConfluence(in.Candidate, in.Bars, in.Price)
	result.addCheck(CheckConfluence, passed, pointsConfluence, detail)

	result.Valid = result.Score >= v.cfg.ScoreThreshold
	if result.Valid {
		v.dedup.Add(in.Candidate.Symbol, zoneKey)
	}

	v.logger.Debug().
		Str("symbol", in.Candidate.Symbol).
		Str("direction", string(in.Candidate.Direction)).
		Float64("score", result.Score).
		Bool("valid", result.Valid).
		Msg("Candidate scored")

	return result
}

// findAnchor scans backward for the most recent bar that opposes the
// candidate's direction, overlaps the zone, and is immediately followed by
// a bar closing beyond its opposite extreme
func (v *Validator) findAnchor(c structure.Candidate, bars []market.Kline) (int, bool) {
	for i := len(bars) - 2; i >= 0; i-- {
		anchor := bars[i]
		disp := bars[i+1]

		// Range must overlap the candidate zone
		if anchor.Low > c.ZoneHigh || anchor.High < c.ZoneLow {
			continue
		}

		if c.Direction == structure.Bullish {
			if anchor.IsBearish() && disp.Close > anchor.High {
				return i, true
			}
		} else {
			if anchor.IsBullish() && disp.Close < anchor.Low {
				return i, true
			}
		}
	}
	return 0, false
}

// checkImbalance looks for a three-bar gap within the 3 bars after the anchor
func (v *Validator) checkImbalance(dir structure.Direction, bars []market.Kline, anchorIdx int) (bool, string) {
	for mid := anchorIdx + 1; mid <= anchorIdx+3 && mid+1 < len(bars); mid++ {
		if mid-1 < 0 {
			continue
		}
		prev := bars[mid-1]
		next := bars[mid+1]

		if dir == structure.Bullish && prev.High < next.Low {
			return true, fmt.Sprintf("bullish gap %.4f-%.4f", prev.High, next.Low)
		}
		if dir == structure.Bearish && prev.Low > next.High {
			return true, fmt.Sprintf("bearish gap %.4f-%.4f", next.High, prev.Low)
		}
	}
	return false, "no price gap after displacement"
}

// checkVolumeExpansion requires the displacement bar's volume to exceed
// the configured multiple of the preceding lookback mean
func (v *Validator) checkVolumeExpansion(bars []market.Kline, dispIdx int) (bool, string) {
	lookback := v.cfg.VolumeLookback
	if dispIdx < lookback {
		return false, fmt.Sprintf("only %d bars precede displacement, need %d", dispIdx, lookback)
	}

	sum := 0.0
	for i := dispIdx - lookback; i < dispIdx; i++ {
		sum += bars[i].Volume
	}
	mean := sum / float64(lookback)
	if mean == 0 {
		return false, "zero mean volume"
	}

	ratio := bars[dispIdx].Volume / mean
	if ratio > v.cfg.VolumeExpansion {
		return true, fmt.Sprintf("%.2fx mean volume", ratio)
	}
	return false, fmt.Sprintf("%.2fx mean volume, need >%.2fx", ratio, v.cfg.VolumeExpansion)
}

// checkLiquiditySweep requires the displacement bar to carry a wick
// opposing its body longer than the configured fraction of the body,
// on the side that would run resting stops before the reversal
func (v *Validator) checkLiquiditySweep(dir structure.Direction, disp market.Kline) (bool, string) {
	body := disp.Body()
	if body == 0 {
		return false, "displacement bar has no body"
	}

	var wick float64
	if dir == structure.Bullish {
		wick = disp.LowerWick()
	} else {
		wick = disp.UpperWick()
	}

	ratio := wick / body
	if ratio > v.cfg.SweepWickRatio {
		return true, fmt.Sprintf("sweep wick %.0f%% of body", ratio*100)
	}
	return false, fmt.Sprintf("wick %.0f%% of body, need >%.0f%%", ratio*100, v.cfg.SweepWickRatio*100)
}

func (v *Validator) sessionPoints(q session.Quality) float64 {
	switch q {
	case session.QualityStrong:
		return v.cfg.SessionScores.Strong
	case session.QualityWeak:
		return v.cfg.SessionScores.Weak
	default:
		return v.cfg.SessionScores.Normal
	}
}

// checkHTFAlignment requires the net direction of the last N higher
// timeframe closes to match the candidate
func (v *Validator) checkHTFAlignment(dir structure.Direction, htfBars []market.Kline) (bool, string) {
	n := v.cfg.HTFAlignBars
	if len(htfBars) < n {
		return false, fmt.Sprintf("only %d HTF bars, need %d", len(htfBars), n)
	}

	oldest := htfBars[len(htfBars)-n].Close
	newest := htfBars[len(htfBars)-1].Close

	if dir == structure.Bullish && newest > oldest {
		return true, fmt.Sprintf("HTF closes rising %.4f -> %.4f", oldest, newest)
	}
	if dir == structure.Bearish && newest < oldest {
		return true, fmt.Sprintf("HTF closes falling %.4f -> %.4f", oldest, newest)
	}
	return false, "HTF closes do not trend with the candidate"
}

// checkStructuralContext fails only on explicit chop or contracting
// volatility; neutral and unknown states pass
func (v *Validator) checkStructuralContext(summary *structure.Summary) (bool, string) {
	if summary == nil {
		return true, "no structural context available"
	}
	if summary.Trend == structure.TrendChoppy || summary.Trend == structure.TrendRanging {
		return false, fmt.Sprintf("structure is %s", summary.Trend)
	}
	if summary.Volatility == structure.VolatilityContracting {
		return false, "volatility contracting"
	}
	return true, fmt.Sprintf("trend %s, volatility %s", summary.Trend, summary.Volatility)
}

// checkConfluence requires the zone midpoint to sit within the configured
// multiple of ATR from the live price
func (v *Validator) checkConfluence(c structure.Candidate, bars []market.Kline, price float64) (bool, string) {
	atr := indicators.CalculateATR(bars, v.cfg.ATRPeriod)
	if atr == 0 {
		return false, "ATR unavailable"
	}

	dist := c.ZoneMid() - price
	if dist < 0 {
		dist = -dist
	}

	limit := v.cfg.ConfluenceATRMul * atr
	if dist <= limit {
		return true, fmt.Sprintf("zone mid %.4f within %.4f of price", c.ZoneMid(), limit)
	}
	return false, fmt.Sprintf("zone mid %.4f is %.4f from price, limit %.4f", c.ZoneMid(), dist, limit)
}

func (r *ValidationResult) addCheck(name string, passed bool, points float64, detail string) {
	check := CheckResult{Name: name, Passed: passed, Detail: detail}
	if passed {
		check.Points = points
		r.Score += points
	}
	r.Checks = append(r.Checks, check)
}
