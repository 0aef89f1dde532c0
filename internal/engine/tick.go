// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/pollution"
)

// TickSchedule defines when periodic systems run relative to the tick counter.
const (
	MarketUpdateInterval = 20  // price fluctuation
	TaxInterval          = 20  // income taxes
	GrowthInterval       = 30  // zone development rolls
	DeclineAfter         = 60  // ticks without power or road before a zone shrinks
	TicksPerYear         = 100 // citizen aging
	ReportInterval       = 100
)

// Engine drives the simulation forward. Speed and the running flag are read
// by other goroutines, so they sit behind mu.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Base tick interval

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool

	// Callbacks, populated during setup.
	OnTick    func(tick uint64)
	OnReport  func(tick uint64) // Every ReportInterval ticks
	OnSave    func(tick uint64) // Every SaveEvery ticks, if non-zero
	SaveEvery uint64
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		speed:    1.0,
		Interval: time.Second,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 or less pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) setRunning(running bool) {
	e.mu.Lock()
	e.running = running
	e.mu.Unlock()
}

// Run advances ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.setRunning(true)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed(), "interval", e.Interval)

	for ctx.Err() == nil {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target && !sleepCtx(ctx, target-elapsed) {
			break
		}
	}

	e.setRunning(false)
	slog.Info("simulation engine stopped", "tick", e.Tick)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%ReportInterval == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
	if e.SaveEvery > 0 && e.Tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(e.Tick)
	}
}

// Simulate runs one tick in a fixed order:
//
//  1. market price update (periodic)
//  2. penalty re-evaluation (rate limited), then pollution decay
//  3. every building in grid scan order
//  4. auto-sell / auto-buy
//  5. score, level-up, aging and taxes, observers
//
// The host must pass a strictly increasing tick.
func (s *Simulation) Simulate(tick uint64) {
	s.mu.Lock()
	s.simulate(tick)
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.TickCompleted(s, tick)
	}
}

func (s *Simulation) simulate(tick uint64) {
	s.LastTick = tick

	// 1. Market.
	if tick%MarketUpdateInterval == 0 {
		s.Market.Fluctuate(s.rng)
	}

	// 2. Pollution. The check sees the pool as the previous tick left it,
	// so a saturated pool reaches the crisis threshold before decaying.
	before := s.Pool.Effects()
	if s.Pool.Check(tick) {
		s.record(tick, "pollution", "pollution crisis at mean %.1f", s.Pool.Mean())
		s.notify(NoticePollutionCrisis, "pollution has reached critical levels")
	}
	if after := s.Pool.Effects(); after.Warning && !before.Warning {
		s.notify(NoticePollutionWarning, "pollution mean above %.0f", pollution.WarningThreshold)
	}
	s.Pool.Decay()

	// 3. Buildings.
	s.Energy.BeginTick()
	s.scanBuildings(func(b *buildings.Building) {
		s.simulateBuilding(b, tick)
	})

	// 4. Market pass.
	s.autoTrade()

	// 5. Derived state and periodic citizen work.
	s.recomputeScore()
	s.checkLevelUp(tick)
	if tick%TicksPerYear == 0 {
		s.ageCitizens(tick)
	}
	if tick%TaxInterval == 0 {
		s.collectTaxes(tick)
	}
}
