// Read-only views of city state, and conversion to and from saved games.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/persistence"
	"github.com/talgya/circular-city/internal/pollution"
	"github.com/talgya/circular-city/internal/score"
	"github.com/talgya/circular-city/internal/world"
)

// CitySnapshot is the display summary of the city.
type CitySnapshot struct {
	Tick          uint64          `json:"tick"`
	Money         float64         `json:"money"`
	Energy        float64         `json:"energy"`
	EnergyCap     float64         `json:"energy_cap"`
	Generated     float64         `json:"generated"`
	Level         int             `json:"level"`
	XP            float64         `json:"xp"`
	NextLevelXP   float64         `json:"next_level_xp"`
	Score         float64         `json:"score"`
	Breakdown     score.Breakdown `json:"breakdown"`
	Population    int             `json:"population"`
	Employed      int             `json:"employed"`
	BuildingCount int             `json:"building_count"`
	PollutionMean float64         `json:"pollution_mean"`
	Stats         Stats           `json:"stats"`
}

// BuildingSnapshot is the display view of one building.
type BuildingSnapshot struct {
	ID          world.BuildingID `json:"id"`
	Kind        buildings.Kind   `json:"kind"`
	X           int              `json:"x"`
	Y           int              `json:"y"`
	Level       int              `json:"level"`
	Style       string           `json:"style"`
	Status      string           `json:"status"`
	Workers     int              `json:"workers"`
	MaxWorkers  int              `json:"max_workers"`
	Waste       float64          `json:"waste"`
	Queue       int              `json:"queue"`
	Development int              `json:"development"`
	Residents   int              `json:"residents"`
}

// Snapshot returns the city summary.
func (s *Simulation) Snapshot() CitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pop, employed := s.population()
	next := s.XP
	if s.Level < MaxCityLevel {
		next = XPForLevel(s.Level + 1)
	}
	return CitySnapshot{
		Tick:          s.LastTick,
		Money:         s.Money,
		Energy:        s.Energy.Stored,
		EnergyCap:     s.Energy.Cap,
		Generated:     s.Energy.Generated,
		Level:         s.Level,
		XP:            s.XP,
		NextLevelXP:   next,
		Score:         s.Score,
		Breakdown:     s.ScoreBreakdown,
		Population:    pop,
		Employed:      employed,
		BuildingCount: len(s.Buildings),
		PollutionMean: s.Pool.Mean(),
		Stats:         s.Stats,
	}
}

// LedgerSnapshot returns non-zero ledger amounts.
func (s *Simulation) LedgerSnapshot() map[economy.Resource]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Ledger.Snapshot()
}

// PollutionSnapshot returns the pollution pool view.
func (s *Simulation) PollutionSnapshot() pollution.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Pool.Snapshot()
}

// Prices returns current market sell prices.
func (s *Simulation) Prices() map[economy.Resource]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Market.Prices()
}

// BuildingSnapshots lists buildings in grid scan order.
func (s *Simulation) BuildingSnapshots() []BuildingSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []BuildingSnapshot
	s.scanBuildings(func(b *buildings.Building) {
		bs := BuildingSnapshot{
			ID:         b.ID,
			Kind:       b.Kind,
			X:          b.Pos.X,
			Y:          b.Pos.Y,
			Level:      b.Level,
			Style:      b.Style,
			Status:     b.Status.String(),
			Workers:    b.WorkerCount(),
			MaxWorkers: b.MaxWorkers(),
		}
		if b.Waste != nil {
			bs.Waste = b.Waste.Amount
		}
		if b.Production != nil {
			bs.Queue = len(b.Production.Queue)
		}
		if b.Development != nil {
			bs.Development = b.Development.Level
			bs.Residents = b.Development.ResidentCount()
		}
		out = append(out, bs)
	})
	return out
}

// RecentEvents returns up to n of the latest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(0, len(s.Events)-n)
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}

// recomputeScore recalculates the circular score from scratch.
func (s *Simulation) recomputeScore() {
	in := score.Inputs{
		WasteStock:          s.Ledger.Total(economy.CategoryWaste),
		LifetimeWaste:       s.Stats.LifetimeWaste,
		LifetimeRecycled:    s.Stats.LifetimeRecycled,
		SecondaryInputs:     s.Stats.SecondaryInputs,
		TotalInputs:         s.Stats.TotalInputs,
		RenewableEnergy:     s.Energy.Renewable,
		TotalEnergy:         s.Energy.Generated,
		SecondaryProducts:   s.Stats.SecondaryProducts,
		TotalProducts:       s.Stats.TotalProducts,
		HasRecyclingCenter:  s.hasRecyclingCenter(),
		PollutionMultiplier: s.Pool.Effects().ScoreMultiplier,
	}
	for _, cat := range []economy.Category{economy.CategoryRaw, economy.CategoryProduct, economy.CategoryWaste, economy.CategoryRecycled} {
		in.TotalStock += s.Ledger.Total(cat)
	}
	s.ScoreBreakdown = score.Explain(in, s.Weights)
	s.Score = s.ScoreBreakdown.Total
}

// Export captures the city as a saved game.
func (s *Simulation) Export() *persistence.SaveGame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := &persistence.SaveGame{
		Version:  persistence.SaveVersion,
		ID:       s.CityID,
		Tick:     s.LastTick,
		Seed:     s.Seed,
		GridSize: s.Grid.Size,
		Totals: persistence.Totals{
			Money:           s.Money,
			Energy:          s.Energy.Stored,
			EnergyGenerated: s.Energy.Generated,
			EnergyRenewable: s.Energy.Renewable,
			Level:           s.Level,
			XP:              s.XP,
			CircularScore:   s.Score,
		},
		Counters:  persistence.Counters(s.Stats),
		Ledger:    s.Ledger.Snapshot(),
		Pollution: s.Pool.Snapshot().Levels,
		Penalties: s.Pool.Assessment(),
		Policy:    s.Policy,
	}

	s.scanBuildings(func(b *buildings.Building) {
		rec := persistence.BuildingRecord{
			X: b.Pos.X, Y: b.Pos.Y,
			Kind:  string(b.Kind),
			Level: b.Level,
			Style: b.Style,
		}
		if b.Development != nil {
			rec.DevelopmentLevel = b.Development.Level
		}
		if b.Waste != nil {
			rec.Inventory.Waste = b.Waste.Amount
		}
		if b.Production != nil {
			for _, j := range b.Production.Queue {
				rec.Inventory.Queue = append(rec.Inventory.Queue, persistence.QueuedJob(j))
			}
		}
		g.Buildings = append(g.Buildings, rec)
	})

	for _, e := range s.Events {
		g.Events = append(g.Events, persistence.EventRecord(e))
	}
	return g
}

// Restore rebuilds a city from g on grid. Buildings are recreated through
// buildings.New, residents are re-spawned to match development, and jobs
// are left for the allocator to fill on the following ticks. Unknown kinds
// or resources abort the restore.
func Restore(g *persistence.SaveGame, opts Options) (*Simulation, error) {
	if opts.Grid == nil || opts.Grid.Size != g.GridSize {
		return nil, fmt.Errorf("restore: grid size %d does not match save %d", sizeOf(opts.Grid), g.GridSize)
	}
	if err := g.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("restore policy: %w", err)
	}
	opts.Policy = g.Policy
	opts.StartingMoney = g.Totals.Money
	opts.StartingEnergy = g.Totals.Energy
	opts.Seed = g.Seed

	s := NewSimulation(opts)
	s.CityID = g.ID
	s.LastTick = g.Tick
	s.Level = max(1, min(g.Totals.Level, MaxCityLevel))
	s.XP = g.Totals.XP

	for r, amt := range g.Ledger {
		if !r.Valid() {
			return nil, fmt.Errorf("restore ledger: %w: %d", economy.ErrUnknownResource, r)
		}
		s.Ledger.Set(r, amt)
	}
	for w, lvl := range g.Pollution {
		if int(w) >= economy.NumWasteTypes {
			return nil, fmt.Errorf("restore pollution: %w: waste type %d", economy.ErrUnknownResource, w)
		}
		s.Pool.Set(w, lvl)
	}
	s.Pool.Resume(g.Penalties)

	for _, rec := range g.Buildings {
		kind, err := buildings.ParseKind(rec.Kind)
		if err != nil {
			return nil, fmt.Errorf("restore building at (%d,%d): %w", rec.X, rec.Y, err)
		}
		id, err := s.placeBuilding(world.Coord{X: rec.X, Y: rec.Y}, kind, false)
		if err != nil {
			return nil, fmt.Errorf("restore building at (%d,%d): %w", rec.X, rec.Y, err)
		}
		b := s.Buildings[id]
		b.SetLevel(rec.Level)
		if rec.Style != "" {
			b.Style = rec.Style
		}
		if b.Waste != nil {
			b.Waste.Set(rec.Inventory.Waste)
			b.Waste.LastProductionTick = g.Tick
		}
		if b.Production != nil {
			for _, j := range rec.Inventory.Queue {
				if _, ok := buildings.RecipeByID(j.RecipeID); !ok {
					slog.Warn("dropping unknown recipe from restored queue", "building", id, "recipe", j.RecipeID)
					continue
				}
				if b.Production.Full() {
					break
				}
				b.Production.Queue = append(b.Production.Queue, buildings.Job(j))
			}
		}
		if b.Development != nil {
			b.Development.Level = min(rec.DevelopmentLevel, b.Level)
			b.Development.LastGrowthTick = g.Tick
			b.RefreshCapacity()
			if b.Spec.Houses {
				s.houseResidents(b, g.Tick)
			}
		}
	}

	s.Events = s.Events[:0]
	for _, e := range g.Events {
		s.Events = append(s.Events, Event(e))
	}

	// The score reads lifetime counters and the last tick's generation.
	s.Stats = Stats(g.Counters)
	s.Energy.Generated = g.Totals.EnergyGenerated
	s.Energy.Renewable = g.Totals.EnergyRenewable
	s.recomputeScore()
	if diff := s.Score - g.Totals.CircularScore; diff > 1e-6 || diff < -1e-6 {
		slog.Warn("restored score differs from saved", "saved", g.Totals.CircularScore, "restored", s.Score)
	}

	slog.Info("city restored", "tick", g.Tick, "buildings", len(s.Buildings), "citizens", len(s.Citizens))
	return s, nil
}

func sizeOf(g *world.Grid) int {
	if g == nil {
		return 0
	}
	return g.Size
}

// Citizen returns a copy of a citizen.
func (s *Simulation) Citizen(id agents.CitizenID) (agents.Citizen, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.Citizens[id]
	if !ok {
		return agents.Citizen{}, false
	}
	return *c, true
}
