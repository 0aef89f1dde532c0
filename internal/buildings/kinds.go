package buildings

import (
	"errors"
	"fmt"

	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/policy"
)

// ErrUnknownBuildingKind means a kind string has no row in the kind table.
// It indicates a data mismatch (bad save, bad config) and must not be
// swallowed.
var ErrUnknownBuildingKind = errors.New("unknown building kind")

// Kind is the data-table key of a building variant.
type Kind string

const (
	KindRoad               Kind = "road"
	KindResidential        Kind = "residential"
	KindCommercial         Kind = "commercial"
	KindTextileFactory     Kind = "textile-factory"
	KindSteelMill          Kind = "steel-mill"
	KindElectronicsFactory Kind = "electronics-factory"
	KindPlasticFactory     Kind = "plastic-factory"
	KindCoalPlant          Kind = "coal-plant"
	KindSolarFarm          Kind = "solar-farm"
	KindWindTurbine        Kind = "wind-turbine"
	KindRecyclingCenter    Kind = "recycling-center"
	KindWasteToEnergy      Kind = "waste-to-energy"
)

// Class selects which capability modules a kind carries and which
// behavior the engine runs for it. Engine code switches on Class
// exhaustively.
type Class uint8

const (
	ClassRoad Class = iota
	ClassZone
	ClassFactory
	ClassEnergy
	ClassRecycling
	ClassWasteToEnergy
)

var classNames = [...]string{"road", "zone", "factory", "energy", "recycling", "waste-to-energy"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// WasteSpec describes a kind's local waste emission.
type WasteSpec struct {
	Type     economy.WasteType
	Rate     float64 // units per emission
	Interval uint64  // ticks between emissions
}

// Spec is one row of the kind table.
type Spec struct {
	Kind          Kind
	Class         Class
	JobCategory   policy.JobCategory // empty when the kind offers no jobs
	MaxLevel      int
	PowerRequired float64
	Waste         *WasteSpec
	BaseCost      float64

	// Factories and recycling plants.
	RequiredWorkers int

	// Energy producers.
	EnergyPerLevel float64
	Renewable      bool

	// Zones.
	Houses          bool    // residential zones house citizens
	IncomePerWorker float64 // commercial zones earn money per worker per tick
}

// OffersJobs reports whether citizens can work here.
func (s *Spec) OffersJobs() bool {
	return s.JobCategory != ""
}

// Tunables shared across kinds.
const (
	WasteCapacity       = 100.0
	WasteDecayPerTick   = 0.1
	WasteCriticalLevel  = 95.0
	BaseWorkersPerLevel = 2 // zone jobs = BaseWorkersPerLevel ^ developmentLevel
	ResidentsPerLevel   = 4 // residential capacity per development level
	QueueCapacity       = 5

	RecyclingBoost         = 0.25 // flat efficiency bonus for manual recycling
	RecyclingBoostDuration = 30   // ticks
	ManualRecyclingPerLvl  = 5    // per-click cap = level × this
	WasteBurnPerLevel      = 3.0  // waste-to-energy burn cap per tick
	EnergyPerWasteUnit     = 4.0
)

var kindTable = map[Kind]*Spec{
	KindRoad: {
		Kind: KindRoad, Class: ClassRoad, MaxLevel: 1, BaseCost: 10,
	},
	KindResidential: {
		Kind: KindResidential, Class: ClassZone, MaxLevel: 3, PowerRequired: 2, BaseCost: 100,
		Waste:  &WasteSpec{Type: economy.WasteOrganic, Rate: 2, Interval: 20},
		Houses: true,
	},
	KindCommercial: {
		Kind: KindCommercial, Class: ClassZone, JobCategory: policy.JobCommercial,
		MaxLevel: 3, PowerRequired: 3, BaseCost: 150,
		Waste:           &WasteSpec{Type: economy.WastePlastic, Rate: 2, Interval: 20},
		IncomePerWorker: 0.5,
	},
	KindTextileFactory: {
		Kind: KindTextileFactory, Class: ClassFactory, JobCategory: policy.JobFactories,
		MaxLevel: 5, PowerRequired: 5, BaseCost: 500, RequiredWorkers: 4,
		Waste: &WasteSpec{Type: economy.WasteTextile, Rate: 3, Interval: 10},
	},
	KindSteelMill: {
		Kind: KindSteelMill, Class: ClassFactory, JobCategory: policy.JobFactories,
		MaxLevel: 5, PowerRequired: 8, BaseCost: 800, RequiredWorkers: 5,
		Waste: &WasteSpec{Type: economy.WasteScrapMetal, Rate: 4, Interval: 10},
	},
	KindElectronicsFactory: {
		Kind: KindElectronicsFactory, Class: ClassFactory, JobCategory: policy.JobFactories,
		MaxLevel: 5, PowerRequired: 10, BaseCost: 1200, RequiredWorkers: 6,
		Waste: &WasteSpec{Type: economy.WasteElectronic, Rate: 3, Interval: 10},
	},
	KindPlasticFactory: {
		Kind: KindPlasticFactory, Class: ClassFactory, JobCategory: policy.JobFactories,
		MaxLevel: 5, PowerRequired: 6, BaseCost: 700, RequiredWorkers: 4,
		Waste: &WasteSpec{Type: economy.WastePlastic, Rate: 4, Interval: 10},
	},
	KindCoalPlant: {
		Kind: KindCoalPlant, Class: ClassEnergy, MaxLevel: 3, BaseCost: 400,
		EnergyPerLevel: 20,
	},
	KindSolarFarm: {
		Kind: KindSolarFarm, Class: ClassEnergy, MaxLevel: 3, BaseCost: 600,
		EnergyPerLevel: 8, Renewable: true,
	},
	KindWindTurbine: {
		Kind: KindWindTurbine, Class: ClassEnergy, MaxLevel: 3, BaseCost: 700,
		EnergyPerLevel: 12, Renewable: true,
	},
	KindRecyclingCenter: {
		Kind: KindRecyclingCenter, Class: ClassRecycling, JobCategory: policy.JobRecycling,
		MaxLevel: 3, PowerRequired: 5, BaseCost: 1000, RequiredWorkers: 2,
	},
	KindWasteToEnergy: {
		Kind: KindWasteToEnergy, Class: ClassWasteToEnergy, JobCategory: policy.JobRecycling,
		MaxLevel: 3, BaseCost: 1200, RequiredWorkers: 2,
	},
}

// kindOrder is the stable listing order of the table.
var kindOrder = []Kind{
	KindRoad, KindResidential, KindCommercial,
	KindTextileFactory, KindSteelMill, KindElectronicsFactory, KindPlasticFactory,
	KindCoalPlant, KindSolarFarm, KindWindTurbine,
	KindRecyclingCenter, KindWasteToEnergy,
}

// Kinds returns every known kind in table order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Lookup returns the table row for kind.
func Lookup(kind Kind) (*Spec, error) {
	s, ok := kindTable[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuildingKind, string(kind))
	}
	return s, nil
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, err := Lookup(k); err != nil {
		return "", err
	}
	return k, nil
}

// Recycling center parameters by level (1-based).
var (
	recyclingAutoRate   = [...]float64{2, 3, 4}
	recyclingEfficiency = [...]float64{0.5, 0.65, 0.8}
)

// RecyclingAutoRate returns the units of waste an auto-recycling pass may
// consume per tick at level.
func RecyclingAutoRate(level int) float64 {
	return recyclingAutoRate[levelIndex(level, len(recyclingAutoRate))]
}

// RecyclingEfficiency returns the waste→recycled conversion ratio at level.
func RecyclingEfficiency(level int) float64 {
	return recyclingEfficiency[levelIndex(level, len(recyclingEfficiency))]
}

func levelIndex(level, n int) int {
	switch {
	case level < 1:
		return 0
	case level > n:
		return n - 1
	}
	return level - 1
}
