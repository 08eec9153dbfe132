// Package proximity turns raw proximity-sensor readings into debounced
// NEAR/FAR edges and provides the sensor backends that produce them.
//
// The gate is the cheap signal that decides when the camera and face
// detector are allowed to run: NEAR powers the pipeline up, FAR powers it
// down.
package proximity

import (
	"math"
	"sync"
	"time"
)

// DefaultMaxRange is used when the sensor does not report its maximum range.
// Most phone proximity sensors are binary with a 5cm range.
const DefaultMaxRange = 5.0

// State is the classified proximity state.
type State int

const (
	// Far means nothing is in front of the sensor. It is the initial state.
	Far State = iota
	// Near means the sensor is covered (device held close to a face).
	Near
)

// String returns "near" or "far".
func (s State) String() string {
	if s == Near {
		return "near"
	}
	return "far"
}

// Transition is an edge emitted by the gate.
type Transition struct {
	From     State
	To       State
	Raw      float64   // Reading that completed the edge
	MaxRange float64   // Effective max range used for classification
	At       time.Time // When the edge was emitted
}

// GateConfig holds gate tuning.
type GateConfig struct {
	// DefaultMaxRange applies when a reading's max range is unknown.
	DefaultMaxRange float64 `yaml:"default_max_range" json:"default_max_range"`

	// Debounce is the number of consecutive identical classifications needed
	// before an edge fires. 1 (or 0) fires on the first differing sample.
	Debounce int `yaml:"debounce" json:"debounce"`
}

// DefaultGateConfig returns the single-sample edge configuration.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		DefaultMaxRange: DefaultMaxRange,
		Debounce:        1,
	}
}

// Gate is an edge-triggered NEAR/FAR state machine.
type Gate struct {
	mu        sync.Mutex
	cfg       GateConfig
	state     State
	candidate State
	streak    int
	now       func() time.Time
}

// NewGate creates a gate in the Far state.
func NewGate(cfg GateConfig) *Gate {
	if !validRange(cfg.DefaultMaxRange) {
		cfg.DefaultMaxRange = DefaultMaxRange
	}
	if cfg.Debounce < 1 {
		cfg.Debounce = 1
	}
	return &Gate{
		cfg:   cfg,
		state: Far,
		now:   time.Now,
	}
}

// Classify maps a reading to a state without changing the gate.
func (g *Gate) Classify(raw, maxRange float64) State {
	if raw < g.effectiveRange(maxRange) {
		return Near
	}
	return Far
}

// Feed classifies a reading and returns a transition only when the
// classification changes the gate state. Repeated identical classifications
// are suppressed.
func (g *Gate) Feed(raw, maxRange float64) (Transition, bool) {
	limit := g.effectiveRange(maxRange)
	next := Far
	if raw < limit {
		next = Near
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if next == g.state {
		g.streak = 0
		return Transition{}, false
	}

	if next == g.candidate && g.streak > 0 {
		g.streak++
	} else {
		g.candidate = next
		g.streak = 1
	}

	if g.streak < g.cfg.Debounce {
		return Transition{}, false
	}

	tr := Transition{
		From:     g.state,
		To:       next,
		Raw:      raw,
		MaxRange: limit,
		At:       g.now(),
	}
	g.state = next
	g.streak = 0
	return tr, true
}

// State returns the last emitted state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset returns the gate to Far without emitting anything.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Far
	g.candidate = Far
	g.streak = 0
}

func (g *Gate) effectiveRange(maxRange float64) float64 {
	if validRange(maxRange) {
		return maxRange
	}
	return g.cfg.DefaultMaxRange
}

func validRange(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
