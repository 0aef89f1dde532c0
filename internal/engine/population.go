// Population dynamics: zone growth and decline, residents, aging.
package engine

import (
	"log/slog"
	"sort"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/entropy"
)

// BaseGrowthChance is the per-roll development chance before tax and land
// value modifiers.
const BaseGrowthChance = 0.5

// simulateZone runs development, then the zone's own work: residents look
// for jobs, commercial zones earn.
func (s *Simulation) simulateZone(b *buildings.Building, tick uint64) {
	s.developZone(b, tick)

	if b.Spec.Houses {
		s.seekJobs(b)
	}
	if b.Spec.IncomePerWorker > 0 {
		s.commercialIncome(b)
	}
}

// developZone grows a serviced zone on GrowthInterval rolls and shrinks a
// zone left without power or road for DeclineAfter ticks. Development never
// exceeds the building level.
func (s *Simulation) developZone(b *buildings.Building, tick uint64) {
	d := b.Development
	serviced := b.Power.Powered && b.Road.Connected

	if !serviced {
		d.NeglectTicks++
		if d.NeglectTicks >= DeclineAfter && d.Level > 0 {
			d.NeglectTicks = 0
			s.setDevelopment(b, d.Level-1, tick)
		}
		return
	}

	d.NeglectTicks = 0
	if tick < d.LastGrowthTick+GrowthInterval {
		return
	}
	d.LastGrowthTick = tick
	if d.Level >= b.Level {
		return
	}
	if entropy.PTrue(s.rng, s.growthChance(b)) {
		s.setDevelopment(b, d.Level+1, tick)
	}
}

// growthChance combines the base chance with taxes and land value.
func (s *Simulation) growthChance(b *buildings.Building) float64 {
	land := 0.5
	if t := s.Grid.Get(b.Pos); t != nil {
		land = t.LandValue
	}
	return BaseGrowthChance * s.Policy.GrowthMultiplier() * (0.5 + land)
}

// setDevelopment moves a zone to level and brings jobs and residents in
// line with it.
func (s *Simulation) setDevelopment(b *buildings.Building, level int, tick uint64) {
	d := b.Development
	grew := level > d.Level
	d.Level = level
	b.RefreshCapacity()
	s.releaseExcess(b)

	if b.Spec.Houses {
		if grew {
			s.houseResidents(b, tick)
		} else {
			s.evictExcess(b)
		}
	}

	verb := "declined"
	if grew {
		verb = "developed"
	}
	s.record(tick, "population", "%s #%d %s to %d", b.Kind, b.ID, verb, level)
	s.renderer.BuildingChanged(b.ID, variantOf(b))
}

// houseResidents spawns unemployed adults up to the zone's capacity.
func (s *Simulation) houseResidents(b *buildings.Building, tick uint64) {
	d := b.Development
	for d.ResidentCount() < d.Capacity() {
		c := s.Spawner.SpawnResident(b.ID, tick)
		s.Citizens[c.ID] = c
		d.AddResident(c.ID)
	}
}

// evictExcess removes the newest residents above capacity. Their jobs are
// released before they leave.
func (s *Simulation) evictExcess(b *buildings.Building) {
	d := b.Development
	for d.ResidentCount() > d.Capacity() {
		ids := d.Residents()
		s.removeCitizen(ids[len(ids)-1])
	}
}

// removeCitizen releases the citizen's job and deletes it.
func (s *Simulation) removeCitizen(id agents.CitizenID) {
	c := s.Citizens[id]
	if c == nil {
		return
	}
	s.release(c)
	if home := s.Buildings[c.Residence]; home != nil && home.Development != nil {
		home.Development.RemoveResident(id)
	}
	delete(s.Citizens, id)
}

// ageCitizens advances every citizen one year in id order. Retiring workers
// leave their jobs through the allocator.
func (s *Simulation) ageCitizens(tick uint64) {
	ids := make([]agents.CitizenID, 0, len(s.Citizens))
	for id := range s.Citizens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	retired := 0
	for _, id := range ids {
		c := s.Citizens[id]
		if agents.Birthday(c) == agents.TransitionRetire {
			s.release(c)
			retired++
		}
	}
	slog.Debug("citizens aged", "tick", tick, "population", len(ids), "retired", retired)
}

// population returns total and employed citizen counts.
func (s *Simulation) population() (total, employed int) {
	for _, c := range s.Citizens {
		total++
		if c.Employed() {
			employed++
		}
	}
	return total, employed
}
