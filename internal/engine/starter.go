package engine

import (
	"fmt"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/world"
)

// StarterSpan is the edge of the block a starter city occupies.
const StarterSpan = 4

// StarterFabric is the raw fabric a new city starts with.
const StarterFabric = 40.0

// starterLayout is placed relative to the starter site: homes and the
// first employers along a road, with a shop and another home behind it.
var starterLayout = []struct {
	dx, dy int
	kind   buildings.Kind
}{
	{0, 0, buildings.KindResidential},
	{1, 0, buildings.KindResidential},
	{2, 0, buildings.KindCoalPlant},
	{3, 0, buildings.KindTextileFactory},
	{0, 1, buildings.KindRoad},
	{1, 1, buildings.KindRoad},
	{2, 1, buildings.KindRoad},
	{3, 1, buildings.KindRoad},
	{0, 2, buildings.KindResidential},
	{1, 2, buildings.KindCommercial},
}

// SeedStarterCity builds the starter layout at origin, paying for each
// building, and stocks the first batch of raw fabric.
func (s *Simulation) SeedStarterCity(origin world.Coord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range starterLayout {
		at := world.Coord{X: origin.X + p.dx, Y: origin.Y + p.dy}
		if _, err := s.placeBuilding(at, p.kind, true); err != nil {
			return fmt.Errorf("starter city: %w", err)
		}
	}
	s.Ledger.Add(economy.RawFabric, StarterFabric)
	s.record(s.LastTick, "building", "starter city founded at %s", origin)
	return nil
}
