// Package pollution tracks the city-wide pollution pool fed by local waste
// leakage and drained by decay and recycling, and derives the global
// penalties it imposes.
package pollution

import (
	"github.com/samber/lo"

	"github.com/talgya/circular-city/internal/economy"
)

// Pool constants.
const (
	LeakFraction    = 0.10 // share of each local emission that leaks
	CleanupFraction = 0.10 // share of recycled volume removed from the pool
	DecayPerTick    = 0.1  // points per waste type per tick
	CheckInterval   = 10   // ticks between penalty re-evaluations
	MaxLevel        = 100.0

	ScoreThreshold   = 50.0
	XPThreshold      = 75.0
	WarningThreshold = 90.0
	CrisisThreshold  = 100.0
)

// Effects are the global multipliers derived from the pool.
type Effects struct {
	ScoreMultiplier float64 `json:"score_multiplier"`
	XPMultiplier    float64 `json:"xp_multiplier"`
	PriceMultiplier float64 `json:"price_multiplier"` // applied to sell prices
	Warning         bool    `json:"warning"`
	Crisis          bool    `json:"crisis"` // latched crisis state
}

// NoEffects is the neutral penalty set.
func NoEffects() Effects {
	return Effects{ScoreMultiplier: 1, XPMultiplier: 1, PriceMultiplier: 1}
}

// EffectsFor maps a mean pollution level to its penalties.
func EffectsFor(mean float64) Effects {
	e := NoEffects()
	if mean >= ScoreThreshold {
		e.ScoreMultiplier = 0.8
	}
	if mean >= XPThreshold {
		e.XPMultiplier = 0.7
		e.PriceMultiplier = 0.85
	}
	e.Warning = mean >= WarningThreshold
	e.Crisis = mean >= CrisisThreshold
	return e
}

// Pool holds a percent level per waste type.
type Pool struct {
	Levels [economy.NumWasteTypes]float64

	effects  Effects
	assessed Assessment
}

// Assessment is the outcome of the last penalty evaluation. Saves carry it
// so a restored pool neither shifts its penalties nor repeats a crisis.
type Assessment struct {
	Mean    float64 `json:"mean"`
	Tick    uint64  `json:"tick"`
	Done    bool    `json:"done"`    // at least one evaluation has run
	Latched bool    `json:"latched"` // crisis announced, not yet re-armed
}

// NewPool creates a clean pool.
func NewPool() *Pool {
	return &Pool{effects: NoEffects()}
}

// Leak pushes the leaked share of a local emission into the pool.
func (p *Pool) Leak(w economy.WasteType, emission float64) {
	p.add(w, emission*LeakFraction)
}

// Clean removes the cleanup share of a recycled volume.
func (p *Pool) Clean(w economy.WasteType, recycled float64) {
	p.add(w, -recycled*CleanupFraction)
}

// Decay applies the per-tick natural reduction to every type.
func (p *Pool) Decay() {
	for i := range p.Levels {
		p.Levels[i] = lo.Clamp(p.Levels[i]-DecayPerTick, 0, MaxLevel)
	}
}

// Set overwrites one level (restore path), clamped.
func (p *Pool) Set(w economy.WasteType, level float64) {
	p.Levels[w] = lo.Clamp(level, 0, MaxLevel)
}

func (p *Pool) add(w economy.WasteType, delta float64) {
	p.Levels[w] = lo.Clamp(p.Levels[w]+delta, 0, MaxLevel)
}

// Level returns one waste type's level.
func (p *Pool) Level(w economy.WasteType) float64 {
	return p.Levels[w]
}

// Mean is the pool total: the average level over all waste types.
func (p *Pool) Mean() float64 {
	return lo.Sum(p.Levels[:]) / float64(len(p.Levels))
}

// Effects returns the penalties as of the last check.
func (p *Pool) Effects() Effects {
	return p.effects
}

// Check re-evaluates penalties if CheckInterval ticks have passed since the
// last evaluation. It returns true exactly once each time the mean reaches
// the crisis threshold; the crisis re-arms only after the mean falls below
// it again.
func (p *Pool) Check(tick uint64) bool {
	if p.assessed.Done && tick < p.assessed.Tick+CheckInterval {
		return false
	}
	p.assessed.Done = true
	p.assessed.Tick = tick
	return p.evaluate()
}

func (p *Pool) evaluate() bool {
	mean := p.Mean()
	p.assessed.Mean = mean
	p.effects = EffectsFor(mean)
	if mean < CrisisThreshold {
		p.assessed.Latched = false
		return false
	}
	if p.assessed.Latched {
		return false
	}
	p.assessed.Latched = true
	return true
}

// Assessment returns the state of the last evaluation.
func (p *Pool) Assessment() Assessment {
	return p.assessed
}

// Resume reinstates a saved assessment and the penalties derived from it.
// It never announces a crisis.
func (p *Pool) Resume(a Assessment) {
	p.assessed = a
	if a.Done {
		p.effects = EffectsFor(a.Mean)
	} else {
		p.effects = NoEffects()
	}
}

// Snapshot is a read-only view for display.
type Snapshot struct {
	Levels  map[economy.WasteType]float64 `json:"levels"`
	Mean    float64                       `json:"mean"`
	Effects Effects                       `json:"effects"`
}

// Snapshot copies the pool state.
func (p *Pool) Snapshot() Snapshot {
	s := Snapshot{
		Levels:  make(map[economy.WasteType]float64, len(p.Levels)),
		Mean:    p.Mean(),
		Effects: p.effects,
	}
	for _, w := range economy.AllWasteTypes() {
		s.Levels[w] = p.Levels[w]
	}
	return s
}
