// Package policy holds the city's tunable policies. Config is pure data:
// every subsystem reads it, none owns it.
package policy

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned by Validate for unknown options or a
// workforce split that does not sum to 100.
var ErrInvalidPolicy = errors.New("invalid policy")

// EnergyPolicy biases generation between renewable and fossil producers.
type EnergyPolicy string

const (
	EnergyFossilFirst    EnergyPolicy = "fossil-first"
	EnergyBalanced       EnergyPolicy = "balanced"
	EnergyRenewableFirst EnergyPolicy = "renewable-first"
)

// ProductionMode trades production speed against waste.
type ProductionMode string

const (
	ProductionEco      ProductionMode = "eco"
	ProductionBalanced ProductionMode = "balanced"
	ProductionMass     ProductionMode = "mass"
)

// SalesPolicy gates the automatic market pass.
type SalesPolicy string

const (
	SalesManual    SalesPolicy = "manual"
	SalesAutoSell  SalesPolicy = "auto-sell"
	SalesAutoTrade SalesPolicy = "auto-trade" // sell surplus and buy raw materials
)

// TaxPolicy sets the income tax rate on employed citizens.
type TaxPolicy string

const (
	TaxLow    TaxPolicy = "low"
	TaxNormal TaxPolicy = "normal"
	TaxHigh   TaxPolicy = "high"
)

// RecyclingPriority scales the automatic recycling rate.
type RecyclingPriority string

const (
	RecyclingLow    RecyclingPriority = "low"
	RecyclingNormal RecyclingPriority = "normal"
	RecyclingHigh   RecyclingPriority = "high"
)

// JobCategory groups employers for workforce distribution.
type JobCategory string

const (
	JobFactories  JobCategory = "factories"
	JobRecycling  JobCategory = "recycling"
	JobCommercial JobCategory = "commercial"
)

// JobCategories lists categories in the fixed fallback preference order.
func JobCategories() []JobCategory {
	return []JobCategory{JobFactories, JobRecycling, JobCommercial}
}

// WorkforceDistribution is the desired split of employed citizens, in
// percent per category.
type WorkforceDistribution struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Factories  float64 `yaml:"factories" json:"factories"`
	Recycling  float64 `yaml:"recycling" json:"recycling"`
	Commercial float64 `yaml:"commercial" json:"commercial"`
}

// Share returns the desired share of cat in [0, 1].
func (w WorkforceDistribution) Share(cat JobCategory) float64 {
	switch cat {
	case JobFactories:
		return w.Factories / 100
	case JobRecycling:
		return w.Recycling / 100
	case JobCommercial:
		return w.Commercial / 100
	}
	return 0
}

// Config is the full policy set. Versioned so saved games can evolve.
type Config struct {
	Version           int                   `yaml:"version" json:"version"`
	Energy            EnergyPolicy          `yaml:"energy" json:"energy"`
	Production        ProductionMode        `yaml:"production" json:"production"`
	Sales             SalesPolicy           `yaml:"sales" json:"sales"`
	Tax               TaxPolicy             `yaml:"tax" json:"tax"`
	RecyclingPriority RecyclingPriority     `yaml:"recycling_priority" json:"recycling_priority"`
	Workforce         WorkforceDistribution `yaml:"workforce" json:"workforce"`
}

// CurrentVersion is written into new configs.
const CurrentVersion = 1

// Default returns the starting policy of a new city.
func Default() Config {
	return Config{
		Version:           CurrentVersion,
		Energy:            EnergyBalanced,
		Production:        ProductionBalanced,
		Sales:             SalesManual,
		Tax:               TaxNormal,
		RecyclingPriority: RecyclingNormal,
		Workforce: WorkforceDistribution{
			Factories:  50,
			Recycling:  25,
			Commercial: 25,
		},
	}
}

// Validate rejects unknown options.
func (c Config) Validate() error {
	switch c.Energy {
	case EnergyFossilFirst, EnergyBalanced, EnergyRenewableFirst:
	default:
		return fmt.Errorf("%w: energy %q", ErrInvalidPolicy, c.Energy)
	}
	switch c.Production {
	case ProductionEco, ProductionBalanced, ProductionMass:
	default:
		return fmt.Errorf("%w: production %q", ErrInvalidPolicy, c.Production)
	}
	switch c.Sales {
	case SalesManual, SalesAutoSell, SalesAutoTrade:
	default:
		return fmt.Errorf("%w: sales %q", ErrInvalidPolicy, c.Sales)
	}
	switch c.Tax {
	case TaxLow, TaxNormal, TaxHigh:
	default:
		return fmt.Errorf("%w: tax %q", ErrInvalidPolicy, c.Tax)
	}
	switch c.RecyclingPriority {
	case RecyclingLow, RecyclingNormal, RecyclingHigh:
	default:
		return fmt.Errorf("%w: recycling priority %q", ErrInvalidPolicy, c.RecyclingPriority)
	}
	if c.Workforce.Enabled {
		w := c.Workforce
		if w.Factories < 0 || w.Recycling < 0 || w.Commercial < 0 {
			return fmt.Errorf("%w: negative workforce share", ErrInvalidPolicy)
		}
		if sum := w.Factories + w.Recycling + w.Commercial; sum < 99.999 || sum > 100.001 {
			return fmt.Errorf("%w: workforce shares sum to %.1f, want 100", ErrInvalidPolicy, sum)
		}
	}
	return nil
}

// ProductionSpeed returns the production-mode speed multiplier (0.85..1.2).
func (c Config) ProductionSpeed() float64 {
	switch c.Production {
	case ProductionEco:
		return 0.85
	case ProductionMass:
		return 1.2
	}
	return 1.0
}

// ProductionWaste returns the production-mode waste multiplier.
func (c Config) ProductionWaste() float64 {
	switch c.Production {
	case ProductionEco:
		return 0.7
	case ProductionMass:
		return 1.4
	}
	return 1.0
}

// EnergyOutput returns the generation multiplier for a producer.
func (c Config) EnergyOutput(renewable bool) float64 {
	switch c.Energy {
	case EnergyFossilFirst:
		if renewable {
			return 0.9
		}
		return 1.2
	case EnergyRenewableFirst:
		if renewable {
			return 1.2
		}
		return 0.8
	}
	return 1.0
}

// TaxRate returns the income tax fraction.
func (c Config) TaxRate() float64 {
	switch c.Tax {
	case TaxLow:
		return 0.05
	case TaxHigh:
		return 0.20
	}
	return 0.10
}

// GrowthMultiplier returns how taxes affect residential growth.
func (c Config) GrowthMultiplier() float64 {
	switch c.Tax {
	case TaxLow:
		return 1.2
	case TaxHigh:
		return 0.7
	}
	return 1.0
}

// RecyclingRate returns the auto-recycling rate multiplier.
func (c Config) RecyclingRate() float64 {
	switch c.RecyclingPriority {
	case RecyclingLow:
		return 0.5
	case RecyclingHigh:
		return 1.5
	}
	return 1.0
}

// AutoSell reports whether the market pass sells surplus.
func (c Config) AutoSell() bool {
	return c.Sales == SalesAutoSell || c.Sales == SalesAutoTrade
}

// AutoBuy reports whether the market pass restocks raw materials.
func (c Config) AutoBuy() bool {
	return c.Sales == SalesAutoTrade
}
