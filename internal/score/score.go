// Package score computes the circular economy score, a pure function of the
// current city state.
package score

import (
	"github.com/samber/lo"
)

// Weights are the points each component contributes at full marks.
type Weights struct {
	WasteReduction     float64 `yaml:"waste_reduction" json:"waste_reduction"`
	Recycling          float64 `yaml:"recycling" json:"recycling"`
	ResourceEfficiency float64 `yaml:"resource_efficiency" json:"resource_efficiency"`
	RenewableShare     float64 `yaml:"renewable_share" json:"renewable_share"`
	ProductLifecycle   float64 `yaml:"product_lifecycle" json:"product_lifecycle"`
}

// DefaultWeights sum to 100.
func DefaultWeights() Weights {
	return Weights{
		WasteReduction:     25,
		Recycling:          25,
		ResourceEfficiency: 20,
		RenewableShare:     15,
		ProductLifecycle:   15,
	}
}

// Penalty constants.
const (
	HighWasteThreshold  = 0.5
	HighWastePenaltyPer = 40.0 // points per unit of waste share above the threshold
	NoRecyclingPenalty  = 10.0
)

// Inputs is what the score reads from the city.
type Inputs struct {
	WasteStock float64 // waste currently held in the ledger
	TotalStock float64 // everything currently held in the ledger

	LifetimeWaste    float64 // waste produced since the city began
	LifetimeRecycled float64 // waste recycled since the city began

	SecondaryInputs float64 // recycled-material inputs consumed
	TotalInputs     float64 // all inputs consumed

	RenewableEnergy float64 // generated this tick
	TotalEnergy     float64 // generated this tick

	SecondaryProducts float64 // products from recipes with recycled inputs
	TotalProducts     float64

	HasRecyclingCenter  bool
	PollutionMultiplier float64 // 1 when pollution is below the score threshold
}

// Breakdown is a scored Inputs, for display.
type Breakdown struct {
	WasteReduction     float64 `json:"waste_reduction"`
	Recycling          float64 `json:"recycling"`
	ResourceEfficiency float64 `json:"resource_efficiency"`
	RenewableShare     float64 `json:"renewable_share"`
	ProductLifecycle   float64 `json:"product_lifecycle"`
	Penalties          float64 `json:"penalties"`
	Total              float64 `json:"total"`
}

// Calculate returns the score in [0, 100].
func Calculate(in Inputs, w Weights) float64 {
	return Explain(in, w).Total
}

// Explain scores in and returns every component.
func Explain(in Inputs, w Weights) Breakdown {
	wasteShare := ratio(in.WasteStock, in.TotalStock)

	b := Breakdown{
		WasteReduction:     1 - wasteShare,
		Recycling:          ratio(in.LifetimeRecycled, in.LifetimeWaste),
		ResourceEfficiency: ratio(in.SecondaryInputs, in.TotalInputs),
		RenewableShare:     ratio(in.RenewableEnergy, in.TotalEnergy),
		ProductLifecycle:   ratio(in.SecondaryProducts, in.TotalProducts),
	}

	if wasteShare > HighWasteThreshold {
		b.Penalties += (wasteShare - HighWasteThreshold) * HighWastePenaltyPer
	}
	if in.WasteStock > 0 && !in.HasRecyclingCenter {
		b.Penalties += NoRecyclingPenalty
	}

	raw := b.WasteReduction*w.WasteReduction +
		b.Recycling*w.Recycling +
		b.ResourceEfficiency*w.ResourceEfficiency +
		b.RenewableShare*w.RenewableShare +
		b.ProductLifecycle*w.ProductLifecycle -
		b.Penalties

	mul := in.PollutionMultiplier
	if mul <= 0 {
		mul = 1
	}
	b.Total = lo.Clamp(raw*mul, 0, 100)
	return b
}

// ratio is num/den clamped to [0, 1], 0 when den is not positive.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return lo.Clamp(num/den, 0, 1)
}
