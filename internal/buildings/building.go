// Package buildings holds the building model: a data-driven kind table,
// the capability modules each kind carries, and the recipe-driven
// production queue.
package buildings

import (
	"errors"
	"fmt"

	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/world"
)

// ErrMaxLevel is returned when upgrading a building already at its kind's
// maximum level.
var ErrMaxLevel = errors.New("building at max level")

// Status is what a building shows. WasteCritical overrides every other
// status for display but does not stop power or road evaluation.
type Status uint8

const (
	StatusOK Status = iota
	StatusIdle
	StatusNoPower
	StatusNoRoad
	StatusWasteCritical
)

var statusNames = [...]string{"ok", "idle", "no-power", "no-road", "waste-critical"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Styles are cosmetic variants chosen at placement.
var Styles = []string{"a", "b", "c"}

// Building is a placed entity. Optional modules are non-nil exactly when
// the kind's Class calls for them:
//
//	Waste        kinds with a WasteSpec
//	Jobs         kinds with a JobCategory
//	Development  ClassZone
//	Production   ClassFactory
//	Recycling    ClassRecycling
//	Generator    ClassEnergy
type Building struct {
	ID    world.BuildingID
	Kind  Kind
	Spec  *Spec
	Pos   world.Coord
	Level int
	Style string

	// RequiredWorkers starts from the kind table; kept per building so
	// efficiency can be evaluated for arbitrary staffing targets.
	RequiredWorkers int

	Status Status
	Power  PowerModule
	Road   RoadAccess

	Waste       *WasteModule
	Jobs        *JobsModule
	Development *Development
	Production  *ProductionState
	Recycling   *RecyclingModule
	Generator   *Generator

	// Running totals for reports.
	Produced float64
	Recycled float64
}

// New builds a level-1 building of kind. This is the only constructor used
// both at placement time and when restoring a save.
func New(kind Kind, rng entropy.Source) (*Building, error) {
	spec, err := Lookup(kind)
	if err != nil {
		return nil, err
	}

	b := &Building{
		Kind:            kind,
		Spec:            spec,
		Level:           1,
		Style:           Styles[0],
		RequiredWorkers: spec.RequiredWorkers,
		Power:           PowerModule{Required: spec.PowerRequired},
	}
	if rng != nil {
		b.Style = Styles[entropy.Pick(rng, len(Styles))]
	}

	if spec.Waste != nil {
		b.Waste = newWasteModule(spec.Waste)
	}
	if spec.OffersJobs() {
		b.Jobs = newJobsModule(0)
	}

	switch spec.Class {
	case ClassRoad:
	case ClassZone:
		b.Development = newDevelopment()
	case ClassFactory:
		b.Production = &ProductionState{Capacity: QueueCapacity}
	case ClassEnergy:
		b.Generator = &Generator{PerLevel: spec.EnergyPerLevel, Renewable: spec.Renewable}
	case ClassRecycling:
		b.Recycling = &RecyclingModule{}
	case ClassWasteToEnergy:
	default:
		return nil, fmt.Errorf("%w: class %s", ErrUnknownBuildingKind, spec.Class)
	}

	b.RefreshCapacity()
	return b, nil
}

// MaxWorkers derives the job capacity from kind and current state.
func (b *Building) MaxWorkers() int {
	if b.Jobs == nil {
		return 0
	}
	if b.Development != nil {
		if b.Development.Level < 1 {
			return 0
		}
		n := 1
		for i := 0; i < b.Development.Level; i++ {
			n *= BaseWorkersPerLevel
		}
		return n
	}
	return b.RequiredWorkers * 2
}

// RefreshCapacity re-derives Jobs.MaxWorkers. Callers that shrink capacity
// must then ask the job allocator to release the excess.
func (b *Building) RefreshCapacity() {
	if b.Jobs != nil {
		b.Jobs.MaxWorkers = b.MaxWorkers()
	}
}

// WorkerCount returns the current number of workers.
func (b *Building) WorkerCount() int {
	if b.Jobs == nil {
		return 0
	}
	return b.Jobs.Count()
}

// UpgradeCost is the money needed to go from the current level to the next.
func (b *Building) UpgradeCost() float64 {
	return b.Spec.BaseCost * float64(b.Level)
}

// Upgrade raises the level by one. Payment is the caller's job.
func (b *Building) Upgrade() error {
	if b.Level >= b.Spec.MaxLevel {
		return fmt.Errorf("%s at level %d: %w", b.Kind, b.Level, ErrMaxLevel)
	}
	b.Level++
	b.RefreshCapacity()
	return nil
}

// SetLevel restores a saved level, clamped to the kind's range.
func (b *Building) SetLevel(level int) {
	b.Level = max(1, min(level, b.Spec.MaxLevel))
	b.RefreshCapacity()
}

// Active reports whether the building is doing its kind's work, which
// drives local waste emission.
func (b *Building) Active() bool {
	switch b.Spec.Class {
	case ClassFactory:
		return len(b.Production.Queue) > 0
	case ClassZone:
		return b.Development.Level >= 1
	}
	return false
}

// UpdateStatus derives the displayed status after power and road are known.
func (b *Building) UpdateStatus() {
	switch {
	case b.Waste != nil && b.Waste.Critical():
		b.Status = StatusWasteCritical
	case !b.Power.Powered:
		b.Status = StatusNoPower
	case b.Spec.Class != ClassRoad && !b.Road.Connected:
		b.Status = StatusNoRoad
	case b.Spec.Class == ClassFactory && len(b.Production.Queue) == 0:
		b.Status = StatusIdle
	default:
		b.Status = StatusOK
	}
}

// WastePenalty is the local waste production multiplier, 1 without a module.
func (b *Building) WastePenalty() float64 {
	if b.Waste == nil {
		return 1
	}
	return b.Waste.Penalty()
}
