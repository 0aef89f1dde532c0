// Market pass: policy-gated auto-sell and auto-buy over the city ledger,
// manual sales, and citizen taxes.
package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
)

// Market and tax tunables.
const (
	SellReserve = 5.0  // product units kept back from auto-sell
	BuyTarget   = 20.0 // auto-buy restocks raw inputs up to this
	BaseWage    = 10.0 // taxable wage per employed citizen per tax period
)

// autoTrade runs the auto-sell then auto-buy pass when policy and city
// level allow.
func (s *Simulation) autoTrade() {
	if s.Policy.AutoSell() && s.Unlocked(FeatureAutoSell) {
		s.autoSell()
	}
	if s.Policy.AutoBuy() && s.Unlocked(FeatureAutoBuy) {
		s.autoBuy()
	}
}

// autoSell sells product surplus above SellReserve.
func (s *Simulation) autoSell() {
	mod := s.Pool.Effects().PriceMultiplier
	for _, r := range economy.AllResources() {
		if r.Category() != economy.CategoryProduct || !s.Market.Tradeable(r) {
			continue
		}
		surplus := s.Ledger.Amount(r) - SellReserve
		if surplus < 1 {
			continue
		}
		surplus = math.Floor(surplus)
		s.sell(r, surplus, mod)
	}
}

// autoBuy restocks the raw inputs of placed factories' open recipes.
func (s *Simulation) autoBuy() {
	for _, r := range s.rawDemand() {
		have := s.Ledger.Amount(r)
		if have >= BuyTarget {
			continue
		}
		price := s.Market.BuyPrice(r)
		if price <= 0 {
			continue
		}
		qty := math.Min(BuyTarget-have, math.Floor(s.Money/price))
		qty = math.Min(qty, math.Floor(s.Ledger.Room(r)))
		if qty < 1 {
			continue
		}
		s.Money -= qty * price
		s.Ledger.Add(r, qty)
		s.Market.RecordPurchase(r, qty)
		s.Stats.Purchases += qty * price
	}
}

// rawDemand lists raw resources used by any placed factory at its level,
// in resource order.
func (s *Simulation) rawDemand() []economy.Resource {
	var want [economy.NumResources]bool
	for _, b := range s.Buildings {
		if b.Spec.Class != buildings.ClassFactory {
			continue
		}
		for _, rec := range buildings.RecipesFor(b.Kind) {
			if !rec.Open(b.Level) {
				continue
			}
			for in := range rec.Inputs {
				if in.Category() == economy.CategoryRaw {
					want[in] = true
				}
			}
		}
	}
	var out []economy.Resource
	for _, r := range economy.AllResources() {
		if want[r] {
			out = append(out, r)
		}
	}
	return out
}

func (s *Simulation) sell(r economy.Resource, qty, mod float64) float64 {
	if !s.Ledger.Remove(r, qty) {
		return 0
	}
	revenue := qty * s.Market.SellPrice(r, mod)
	s.Money += revenue
	s.Market.RecordSale(r, qty)
	s.Stats.Sales += revenue
	return revenue
}

// Sell sells qty of r at the current price and returns the revenue.
func (s *Simulation) Sell(r economy.Resource, qty float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Market.Tradeable(r) {
		return 0, fmt.Errorf("sell %s: %w", r, economy.ErrNotTradeable)
	}
	if qty <= 0 || s.Ledger.Amount(r) < qty {
		return 0, fmt.Errorf("sell %.1f %s: %w", qty, r, ErrInsufficientResources)
	}
	return s.sell(r, qty, s.Pool.Effects().PriceMultiplier), nil
}

// commercialIncome credits a working commercial zone.
func (s *Simulation) commercialIncome(b *buildings.Building) {
	if !b.Power.Powered || !b.Road.Connected {
		return
	}
	income := float64(b.WorkerCount()) * b.Spec.IncomePerWorker
	s.Money += income
	s.Stats.Income += income
}

// collectTaxes charges every employed citizen the policy tax rate.
func (s *Simulation) collectTaxes(tick uint64) {
	employed := 0
	for _, c := range s.Citizens {
		if c.Employed() {
			employed++
		}
	}
	tax := float64(employed) * BaseWage * s.Policy.TaxRate()
	s.Money += tax
	s.Stats.TaxesCollected += tax
	slog.Debug("taxes collected", "tick", tick, "employed", employed, "amount", tax)
}
