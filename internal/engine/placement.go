// City-building operations: placement, bulldozing, upgrades, policy
// changes, and the level/unlock progression that gates them.
package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/world"
)

// MaxCityLevel caps city progression.
const MaxCityLevel = 10

// Non-building features gated by city level.
const (
	FeatureAutoSell  = "auto-sell"
	FeatureAutoBuy   = "auto-buy"
	FeatureWorkforce = "workforce-distribution"
)

// unlockLevels is the canonical unlock table: feature or building kind →
// city level that unlocks it.
var unlockLevels = map[string]int{
	string(buildings.KindRoad):           1,
	string(buildings.KindResidential):    1,
	string(buildings.KindCommercial):     1,
	string(buildings.KindTextileFactory): 1,
	string(buildings.KindCoalPlant):      1,

	string(buildings.KindSolarFarm): 2,
	string(buildings.KindSteelMill): 2,
	FeatureAutoSell:                 2,

	FeatureAutoBuy:                       3,
	string(buildings.KindRecyclingCenter): 3,
	string(buildings.KindWindTurbine):     3,

	string(buildings.KindElectronicsFactory): 4,
	string(buildings.KindWasteToEnergy):      4,

	string(buildings.KindPlasticFactory): 5,
	FeatureWorkforce:                     5,
}

// UnlockLevel returns the city level that unlocks feature.
func UnlockLevel(feature string) (int, bool) {
	lvl, ok := unlockLevels[feature]
	return lvl, ok
}

// Unlocked reports whether the city has reached feature's unlock level.
// Unknown features are locked.
func (s *Simulation) Unlocked(feature string) bool {
	lvl, ok := unlockLevels[feature]
	return ok && s.Level >= lvl
}

// XPForLevel is the total XP needed to reach city level n.
func XPForLevel(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 100 * float64((n-1)*(n-1))
}

// checkLevelUp raises the city level while XP allows.
func (s *Simulation) checkLevelUp(tick uint64) {
	for s.Level < MaxCityLevel && s.XP >= XPForLevel(s.Level+1) {
		s.Level++
		s.record(tick, "economy", "city reached level %d", s.Level)
		s.notify(NoticeLevelUp, "city reached level %d", s.Level)
		features := lo.Keys(unlockLevels)
		slices.Sort(features)
		for _, feature := range features {
			if unlockLevels[feature] == s.Level {
				s.notify(NoticeUnlock, "%s unlocked", feature)
			}
		}
	}
}

// PlaceBuilding creates a level-1 building of kind at (x, y) and charges
// its cost. Nothing changes on error.
func (s *Simulation) PlaceBuilding(x, y int, kind buildings.Kind) (world.BuildingID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placeBuilding(world.Coord{X: x, Y: y}, kind, true)
}

func (s *Simulation) placeBuilding(at world.Coord, kind buildings.Kind, charge bool) (world.BuildingID, error) {
	spec, err := buildings.Lookup(kind)
	if err != nil {
		return world.NoBuilding, err
	}

	t := s.Grid.Get(at)
	switch {
	case t == nil:
		return world.NoBuilding, fmt.Errorf("place %s at %s: out of bounds: %w", kind, at, ErrInvalidPlacement)
	case !t.Empty():
		return world.NoBuilding, fmt.Errorf("place %s at %s: occupied: %w", kind, at, ErrInvalidPlacement)
	case !t.Terrain.Buildable():
		return world.NoBuilding, fmt.Errorf("place %s at %s: %s: %w", kind, at, world.TerrainName(t.Terrain), ErrInvalidPlacement)
	}

	if charge {
		if !s.Unlocked(string(kind)) {
			lvl, _ := UnlockLevel(string(kind))
			return world.NoBuilding, fmt.Errorf("place %s: needs city level %d: %w", kind, lvl, ErrLocked)
		}
		if s.Money < spec.BaseCost {
			s.notify(NoticeInsufficientFunds, "%s costs %s", kind, humanize.CommafWithDigits(spec.BaseCost, 0))
			return world.NoBuilding, fmt.Errorf("place %s: %w", kind, ErrInsufficientFunds)
		}
	}

	b, err := buildings.New(kind, s.rng)
	if err != nil {
		return world.NoBuilding, err
	}
	if charge {
		s.Money -= spec.BaseCost
	}

	b.ID = s.nextBuildingID
	s.nextBuildingID++
	b.Pos = at
	t.Occupant = b.ID
	s.Buildings[b.ID] = b

	s.record(s.LastTick, "building", "%s #%d placed at %s", kind, b.ID, at)
	s.renderer.BuildingChanged(b.ID, variantOf(b))
	return b.ID, nil
}

// Bulldoze removes whatever stands at (x, y). Workers return to the labour
// pool, residents leave (jobs released first), and local waste goes with
// the building. An empty or out-of-bounds tile is a no-op.
func (s *Simulation) Bulldoze(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := world.Coord{X: x, Y: y}
	b := s.buildingAt(at)
	if b == nil {
		return
	}

	s.releaseAll(b)
	if b.Development != nil {
		for _, id := range b.Development.Residents() {
			s.removeCitizen(id)
		}
	}

	s.Grid.Get(at).Occupant = world.NoBuilding
	delete(s.Buildings, b.ID)

	s.record(s.LastTick, "building", "%s #%d bulldozed at %s", b.Kind, b.ID, at)
	s.renderer.BuildingRemoved(b.ID)
}

// Upgrade pays for and applies one level on building id.
func (s *Simulation) Upgrade(id world.BuildingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.Buildings[id]
	if b == nil {
		return fmt.Errorf("upgrade %d: %w", id, ErrBuildingNotFound)
	}
	if b.Level >= b.Spec.MaxLevel {
		return fmt.Errorf("upgrade %s #%d: %w", b.Kind, id, buildings.ErrMaxLevel)
	}
	cost := b.UpgradeCost()
	if s.Money < cost {
		s.notify(NoticeInsufficientFunds, "upgrading %s costs %s", b.Kind, humanize.CommafWithDigits(cost, 0))
		return fmt.Errorf("upgrade %s #%d: %w", b.Kind, id, ErrInsufficientFunds)
	}
	if err := b.Upgrade(); err != nil {
		return err
	}
	s.Money -= cost
	s.releaseExcess(b)

	s.record(s.LastTick, "building", "%s #%d upgraded to level %d", b.Kind, id, b.Level)
	s.renderer.BuildingChanged(b.ID, variantOf(b))
	return nil
}

// SetPolicy replaces the policy after validation. Enabling workforce
// distribution requires its unlock.
func (s *Simulation) SetPolicy(p policy.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := p.Validate(); err != nil {
		return err
	}
	if p.Workforce.Enabled && !s.Unlocked(FeatureWorkforce) {
		return fmt.Errorf("workforce distribution: %w", ErrLocked)
	}
	s.Policy = p
	return nil
}

// IsUserError reports whether err is an expected gameplay refusal rather
// than a defect.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInsufficientFunds, ErrInsufficientResources, ErrInsufficientEnergy,
		ErrInvalidPlacement, ErrLocked, ErrNotRecyclingCenter, ErrBuildingNotFound,
		buildings.ErrMaxLevel, policy.ErrInvalidPolicy,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
