// Per-building simulate step.
package engine

import (
	"fmt"

	"github.com/talgya/circular-city/internal/buildings"
)

// simulateBuilding runs one building's tick:
// power draw, road access, waste, then the kind's own behavior.
// A critical waste status only changes what the building shows.
func (s *Simulation) simulateBuilding(b *buildings.Building, tick uint64) {
	b.Power.Draw(s.Energy)

	b.Road.Update(s.roadConnected(b))

	if b.Waste != nil {
		if b.Waste.Due(tick) && b.Active() {
			s.emitLocalWaste(b)
		}
		b.Waste.Decay()
	}

	switch b.Spec.Class {
	case buildings.ClassRoad:
	case buildings.ClassZone:
		s.simulateZone(b, tick)
	case buildings.ClassFactory:
		s.simulateFactory(b, tick)
	case buildings.ClassEnergy:
		s.simulateGenerator(b)
	case buildings.ClassRecycling:
		s.autoRecycle(b, tick)
	case buildings.ClassWasteToEnergy:
		s.burnWaste(b)
	default:
		panic(fmt.Sprintf("engine: unhandled building class %s", b.Spec.Class))
	}

	b.UpdateStatus()
}

// roadConnected reports whether b is a road or touches one orthogonally.
func (s *Simulation) roadConnected(b *buildings.Building) bool {
	if b.Spec.Class == buildings.ClassRoad {
		return true
	}
	for _, t := range s.Grid.Neighbors(b.Pos) {
		if n := s.buildingAt(t.Coord); n != nil && n.Spec.Class == buildings.ClassRoad {
			return true
		}
	}
	return false
}

// emitLocalWaste adds one emission to b's waste module and leaks a share of
// it into the pollution pool. A full module still leaks.
func (s *Simulation) emitLocalWaste(b *buildings.Building) {
	w := b.Waste
	added := w.Emit(w.ProductionRate)
	s.Pool.Leak(w.Type, w.ProductionRate)
	s.Stats.LifetimeWaste += added
}

func (s *Simulation) simulateFactory(b *buildings.Building, tick uint64) {
	eff := buildings.ProductionEfficiency(b, s.Policy)
	wasteMul := buildings.WasteMultiplier(b.Level, s.Policy)

	for _, c := range buildings.Advance(b, eff, wasteMul, s.Ledger) {
		s.creditCompletion(b, c, tick)
	}

	// A stopped building does not pull new inputs.
	if eff <= 0 {
		return
	}
	n := len(b.Production.Queue)
	if buildings.StartAutomaticProduction(b, s.Ledger, s.rng) == 0 {
		return
	}
	for _, job := range b.Production.Queue[n:] {
		if r, ok := buildings.RecipeByID(job.RecipeID); ok {
			s.Stats.TotalInputs += r.TotalInputs()
			s.Stats.SecondaryInputs += r.SecondaryInputs()
		}
	}
}

func (s *Simulation) creditCompletion(b *buildings.Building, c buildings.Completion, tick uint64) {
	r := c.Recipe
	s.XP += r.XP * s.Pool.Effects().XPMultiplier

	out := r.TotalOutputs()
	s.Stats.TotalProducts += out
	if r.UsesSecondary() {
		s.Stats.SecondaryProducts += out
	}
	for _, q := range c.Waste {
		s.Stats.LifetimeWaste += q
	}
	s.record(tick, "economy", "%s #%d completed %s", b.Kind, b.ID, r.ID)
}

func (s *Simulation) simulateGenerator(b *buildings.Building) {
	g := b.Generator
	out := g.Output(b.Level, s.Policy.EnergyOutput(g.Renewable))
	s.Energy.Generate(out, g.Renewable)
}
