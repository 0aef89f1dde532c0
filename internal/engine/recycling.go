// Recycling: automatic per-tick passes, manual boosted batches, and
// waste-to-energy incineration.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/world"
)

// ManualRecyclingEnergy is drawn from the pool for each manual batch.
const ManualRecyclingEnergy = 5.0

const minBatch = 1e-9

// autoRecycle runs a powered center's automatic pass. An active manual
// boost raises its efficiency too.
func (s *Simulation) autoRecycle(b *buildings.Building, tick uint64) {
	if !b.Power.Powered {
		return
	}
	budget := buildings.RecyclingAutoRate(b.Level) * s.Policy.RecyclingRate()
	s.recycleBatch(b, budget, recyclingEfficiency(b, tick))
}

// recyclingEfficiency is the level efficiency plus any active boost,
// capped at 1.
func recyclingEfficiency(b *buildings.Building, tick uint64) float64 {
	eff := buildings.RecyclingEfficiency(b.Level)
	if b.Recycling.Boosted(tick) {
		eff += buildings.RecyclingBoost
	}
	return math.Min(1, eff)
}

// StartManualRecycling triggers a boosted batch at a recycling center. The
// boost lasts RecyclingBoostDuration ticks; triggering again restarts it.
func (s *Simulation) StartManualRecycling(id world.BuildingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.Buildings[id]
	if b == nil {
		return fmt.Errorf("manual recycling %d: %w", id, ErrBuildingNotFound)
	}
	if b.Kind != buildings.KindRecyclingCenter {
		return fmt.Errorf("manual recycling at %s #%d: %w", b.Kind, id, ErrNotRecyclingCenter)
	}
	if !s.Energy.Draw(ManualRecyclingEnergy) {
		s.notify(NoticeInsufficientEnergy, "manual recycling needs %.0f energy", ManualRecyclingEnergy)
		return fmt.Errorf("manual recycling %d: %w", id, ErrInsufficientEnergy)
	}

	b.Recycling.Boost(s.LastTick)
	eff := recyclingEfficiency(b, s.LastTick)
	batch := float64(buildings.ManualRecyclingPerLvl * b.Level)
	consumed := s.recycleBatch(b, batch, eff)
	s.record(s.LastTick, "economy", "manual recycling at #%d processed %.1f waste", id, consumed)
	return nil
}

// recycleBatch consumes up to budget waste, first from the ledger in waste
// type order and then from local waste modules in scan order, and credits
// consumed × eff recycled material. Consumption is limited so the output
// always fits under its cap. Returns the waste consumed.
func (s *Simulation) recycleBatch(center *buildings.Building, budget, eff float64) float64 {
	if budget <= 0 || eff <= 0 {
		return 0
	}
	var consumed float64

	for _, w := range economy.AllWasteTypes() {
		if budget <= minBatch {
			break
		}
		take := math.Min(budget, s.Ledger.Amount(w.Resource()))
		take = math.Min(take, s.Ledger.Room(w.Recycled())/eff)
		if take <= minBatch || !s.Ledger.Remove(w.Resource(), take) {
			continue
		}
		s.creditRecycled(center, w, take, eff)
		budget -= take
		consumed += take
	}

	s.scanBuildings(func(b *buildings.Building) {
		if budget <= minBatch || b.Waste == nil || b.Waste.Amount <= 0 {
			return
		}
		w := b.Waste.Type
		limit := math.Min(budget, s.Ledger.Room(w.Recycled())/eff)
		take := b.Waste.Take(limit)
		if take <= 0 {
			return
		}
		s.creditRecycled(center, w, take, eff)
		budget -= take
		consumed += take
	})
	return consumed
}

func (s *Simulation) creditRecycled(center *buildings.Building, w economy.WasteType, consumed, eff float64) {
	out := consumed * eff
	s.Ledger.Add(w.Recycled(), out)
	s.Pool.Clean(w, consumed)
	s.Stats.LifetimeRecycled += consumed
	center.Recycled += out
}

// burnWaste incinerates ledger waste for non-renewable energy.
func (s *Simulation) burnWaste(b *buildings.Building) {
	budget := buildings.WasteBurnPerLevel * float64(b.Level)
	var burned float64
	for _, w := range economy.AllWasteTypes() {
		if budget <= minBatch {
			break
		}
		take := math.Min(budget, s.Ledger.Amount(w.Resource()))
		if take <= minBatch || !s.Ledger.Remove(w.Resource(), take) {
			continue
		}
		budget -= take
		burned += take
	}
	if burned == 0 {
		return
	}
	s.Stats.WasteBurned += burned
	s.Energy.Generate(burned*buildings.EnergyPerWasteUnit, false)
}
