package economy

import (
	"errors"

	"github.com/samber/lo"
)

// ErrNotTradeable is returned for resources the market does not deal in.
var ErrNotTradeable = errors.New("resource not tradeable")

// Rand is the slice of a random source the market needs.
type Rand interface {
	Float64() float64
}

// Price fluctuation bounds.
const (
	maxStep      = 0.10 // Largest single-update move, as a fraction of the current price
	floorRatio   = 0.5  // Price never drops below half the base price
	ceilingRatio = 1.5  // ...nor above one and a half times it
	buySpread    = 1.2  // Buying costs more than selling earns
)

// MarketEntry is the price state for one tradeable resource.
type MarketEntry struct {
	Resource  Resource `json:"resource"`
	Price     float64  `json:"price"`      // Current sell price in money units
	BasePrice float64  `json:"base_price"` // Anchor for floor/ceiling
	Sold      float64  `json:"sold"`       // Units sold since the last price update
	Bought    float64  `json:"bought"`     // Units bought since the last price update
}

// Market holds prices for every tradeable resource. Waste is not traded.
type Market struct {
	Entries map[Resource]*MarketEntry `json:"entries"`
}

// NewMarket creates a market at base prices.
func NewMarket() *Market {
	basePrices := map[Resource]float64{
		RawFabric:      3,
		IronOre:        4,
		Silicon:        6,
		PlasticPellets: 3,
		OrganicMatter:  2,

		Clothing:     12,
		Steel:        15,
		Electronics:  30,
		PlasticGoods: 10,
		Food:         6,

		RecycledFabric:      4,
		RecycledElectronics: 10,
		RecycledMetal:       6,
		Compost:             3,
		RecycledPlastic:     4,
	}

	entries := make(map[Resource]*MarketEntry, len(basePrices))
	for r, base := range basePrices {
		entries[r] = &MarketEntry{
			Resource:  r,
			Price:     base,
			BasePrice: base,
		}
	}
	return &Market{Entries: entries}
}

// Tradeable reports whether r has a market price.
func (m *Market) Tradeable(r Resource) bool {
	_, ok := m.Entries[r]
	return ok
}

// Fluctuate moves every price by a random step and re-applies the bounds.
// Heavy selling since the last update pushes the price down, heavy buying
// pushes it up.
func (m *Market) Fluctuate(rng Rand) {
	for _, r := range AllResources() {
		e, ok := m.Entries[r]
		if !ok {
			continue
		}
		step := (rng.Float64()*2 - 1) * maxStep
		pressure := 0.0
		if total := e.Sold + e.Bought; total > 0 {
			pressure = (e.Bought - e.Sold) / total * maxStep / 2
		}
		e.Price = e.resolve(e.Price * (1 + step + pressure))
		e.Sold = 0
		e.Bought = 0
	}
}

func (e *MarketEntry) resolve(price float64) float64 {
	return lo.Clamp(price, e.BasePrice*floorRatio, e.BasePrice*ceilingRatio)
}

// SellPrice returns what one unit of r earns, scaled by a global modifier
// (the pollution price penalty). Returns 0 for non-tradeable resources.
func (m *Market) SellPrice(r Resource, modifier float64) float64 {
	e, ok := m.Entries[r]
	if !ok {
		return 0
	}
	return e.Price * modifier
}

// BuyPrice returns what one unit of r costs.
func (m *Market) BuyPrice(r Resource) float64 {
	e, ok := m.Entries[r]
	if !ok {
		return 0
	}
	return e.Price * buySpread
}

// RecordSale notes sold volume for the next price update.
func (m *Market) RecordSale(r Resource, qty float64) {
	if e, ok := m.Entries[r]; ok {
		e.Sold += qty
	}
}

// RecordPurchase notes bought volume for the next price update.
func (m *Market) RecordPurchase(r Resource, qty float64) {
	if e, ok := m.Entries[r]; ok {
		e.Bought += qty
	}
}

// Prices returns a copy of current sell prices.
func (m *Market) Prices() map[Resource]float64 {
	out := make(map[Resource]float64, len(m.Entries))
	for r, e := range m.Entries {
		out[r] = e.Price
	}
	return out
}
