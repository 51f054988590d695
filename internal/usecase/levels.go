package usecase

import (
	"math"
	"sync"
	"time"
)

// LevelConfig holds the level detector tuning knobs.
type LevelConfig struct {
	// CapPercent sizes the level grid relative to the order of magnitude of
	// the price: step = 10^ceil(log10(price)) * CapPercent / 100.
	CapPercent float64
	// StepPercent sizes the trigger band relative to the step.
	StepPercent float64
	// MinPrice is the floor below which no signals are evaluated.
	MinPrice float64
	// Cooldown is the per-ticker suppression window applied after a signal
	// was successfully delivered.
	Cooldown time.Duration
}

// DefaultLevelConfig mirrors the historical tuning of the detector.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{CapPercent: 5, StepPercent: 3, MinPrice: 1, Cooldown: 30 * time.Minute}
}

type levelState struct {
	last            float64
	hasLast         bool
	suppressedUntil time.Time
}

// LevelDetector detects prices crossing into the band around a round level.
// It is edge-triggered: a signal fires when the price enters the band from
// outside on the same side, once, and not again while the price stays inside.
// State is tracked per ticker and created lazily.
type LevelDetector struct {
	cfg    LevelConfig
	mu     sync.Mutex
	states map[string]*levelState
}

func NewLevelDetector(cfg LevelConfig) *LevelDetector {
	if cfg.CapPercent <= 0 {
		cfg.CapPercent = 5
	}
	if cfg.StepPercent <= 0 {
		cfg.StepPercent = 3
	}
	return &LevelDetector{cfg: cfg, states: make(map[string]*levelState)}
}

// Observe records a price observation and reports whether it triggers a
// signal, returning the level crossed. During a cooldown the observation is
// still recorded (so edge detection stays fresh) but never evaluated.
func (d *LevelDetector) Observe(ticker string, value float64, now time.Time) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.states[ticker]
	if !ok {
		st = &levelState{}
		d.states[ticker] = st
	}

	prev, hasPrev := st.last, st.hasLast
	st.last, st.hasLast = value, true

	if now.Before(st.suppressedUntil) {
		return 0, false
	}
	if value < d.cfg.MinPrice {
		return 0, false
	}

	step := math.Pow(10, math.Ceil(math.Log10(value))) * d.cfg.CapPercent / 100
	signalDelta := step * d.cfg.StepPercent / 100
	level := step * roundHalfUp(value/step)
	dist := level - value

	if math.Abs(dist) >= signalDelta {
		return 0, false
	}
	if !hasPrev {
		return level, true
	}

	prevDist := level - prev
	// Fire only when the previous observation was outside the band on the
	// same side: entering from the wrong side or re-observing inside the
	// band must not re-trigger.
	if math.Abs(prevDist) >= signalDelta && sign(prevDist) == sign(dist) {
		return level, true
	}
	return 0, false
}

// Suppress starts the cooldown window for a ticker. Callers invoke it only
// after the signal was actually delivered.
func (d *LevelDetector) Suppress(ticker string, now time.Time) {
	d.mu.Lock()
	st, ok := d.states[ticker]
	if !ok {
		st = &levelState{}
		d.states[ticker] = st
	}
	st.suppressedUntil = now.Add(d.cfg.Cooldown)
	d.mu.Unlock()
}

// Suppressed reports whether the ticker is inside its cooldown window.
func (d *LevelDetector) Suppressed(ticker string, now time.Time) bool {
	d.mu.Lock()
	st, ok := d.states[ticker]
	d.mu.Unlock()
	return ok && now.Before(st.suppressedUntil)
}

// roundHalfUp rounds to the nearest integer with ties going toward positive
// infinity (math.Round would send ties away from zero).
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
