// Simulation is the world context: it owns every piece of city state and
// is passed by reference into every per-building step.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/pollution"
	"github.com/talgya/circular-city/internal/score"
	"github.com/talgya/circular-city/internal/world"
)

// Errors reported by the simulation's exposed operations.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrInsufficientEnergy    = errors.New("insufficient energy")
	ErrInvalidPlacement      = errors.New("invalid placement")
	ErrLocked                = errors.New("feature locked")
	ErrNotRecyclingCenter    = errors.New("not a recycling center")
	ErrBuildingNotFound      = errors.New("building not found")
	ErrBrokenWorkerLink      = errors.New("broken worker link")
)

// Options configure a new simulation.
type Options struct {
	Seed           uint64 // world generation seed, kept for saves
	Grid           *world.Grid
	RNG            entropy.Source
	Policy         policy.Config
	Weights        score.Weights
	Caps           map[economy.Resource]float64
	StartingMoney  float64
	StartingEnergy float64
	Renderer       Renderer
	Notifier       Notifier
}

// Stats are lifetime counters feeding the score and reports.
type Stats struct {
	LifetimeWaste     float64 `json:"lifetime_waste"`
	LifetimeRecycled  float64 `json:"lifetime_recycled"`
	SecondaryInputs   float64 `json:"secondary_inputs"`
	TotalInputs       float64 `json:"total_inputs"`
	SecondaryProducts float64 `json:"secondary_products"`
	TotalProducts     float64 `json:"total_products"`
	WasteBurned       float64 `json:"waste_burned"`
	Income            float64 `json:"income"`
	TaxesCollected    float64 `json:"taxes_collected"`
	Sales             float64 `json:"sales"`
	Purchases         float64 `json:"purchases"`
}

// Event is a notable occurrence in the city.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "building", "population", "economy", "pollution"
}

const maxEvents = 1000

// Simulation holds the complete city state and wires systems together.
// Exposed operations take mu; everything they call assumes it is held.
type Simulation struct {
	mu sync.RWMutex

	CityID   uuid.UUID
	Seed     uint64
	Grid     *world.Grid
	Ledger   *economy.Ledger
	Market   *economy.Market
	Energy   *buildings.EnergyPool
	Pool     *pollution.Pool
	Policy   policy.Config
	Weights  score.Weights
	Spawner  *agents.Spawner
	LastTick uint64

	Money          float64
	Level          int
	XP             float64
	Score          float64
	ScoreBreakdown score.Breakdown

	// Arenas keyed by stable ids.
	Buildings      map[world.BuildingID]*buildings.Building
	Citizens       map[agents.CitizenID]*agents.Citizen
	nextBuildingID world.BuildingID

	Stats  Stats
	Events []Event

	rng       entropy.Source
	renderer  Renderer
	notifier  Notifier
	observers []TickObserver
}

// NewSimulation creates an empty city on opts.Grid.
func NewSimulation(opts Options) *Simulation {
	if opts.RNG == nil {
		opts.RNG = entropy.New(0)
	}
	if opts.Renderer == nil {
		opts.Renderer = nopRenderer{}
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Caps == nil {
		opts.Caps = economy.DefaultCaps()
	}
	if opts.Weights == (score.Weights{}) {
		opts.Weights = score.DefaultWeights()
	}
	if opts.Policy.Version == 0 {
		opts.Policy = policy.Default()
	}

	return &Simulation{
		CityID:         uuid.New(),
		Seed:           opts.Seed,
		Grid:           opts.Grid,
		Ledger:         economy.NewLedger(opts.Caps),
		Market:         economy.NewMarket(),
		Energy:         buildings.NewEnergyPool(opts.StartingEnergy),
		Pool:           pollution.NewPool(),
		Policy:         opts.Policy,
		Weights:        opts.Weights,
		Spawner:        agents.NewSpawner(opts.RNG),
		Money:          opts.StartingMoney,
		Level:          1,
		Buildings:      make(map[world.BuildingID]*buildings.Building),
		Citizens:       make(map[agents.CitizenID]*agents.Citizen),
		nextBuildingID: 1,
		rng:            opts.RNG,
		renderer:       opts.Renderer,
		notifier:       opts.Notifier,
	}
}

// AddObserver registers o to run after every tick.
func (s *Simulation) AddObserver(o TickObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// buildingAt returns the building occupying c, if any.
func (s *Simulation) buildingAt(c world.Coord) *buildings.Building {
	t := s.Grid.Get(c)
	if t == nil || t.Empty() {
		return nil
	}
	return s.Buildings[t.Occupant]
}

// scanBuildings visits buildings in grid scan order (y outer, x inner).
// Iteration order never depends on creation order.
func (s *Simulation) scanBuildings(fn func(b *buildings.Building)) {
	s.Grid.Scan(func(t *world.Tile) {
		if t.Empty() {
			return
		}
		if b := s.Buildings[t.Occupant]; b != nil {
			fn(b)
		}
	})
}

func (s *Simulation) record(tick uint64, category, format string, args ...any) {
	s.Events = append(s.Events, Event{
		Tick:        tick,
		Description: fmt.Sprintf(format, args...),
		Category:    category,
	})
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

func (s *Simulation) notify(kind NoticeKind, format string, args ...any) {
	s.notifier.Notify(Notice{Kind: kind, Message: fmt.Sprintf(format, args...), Tick: s.LastTick})
}

// hasRecyclingCenter reports whether any recycling center is placed.
func (s *Simulation) hasRecyclingCenter() bool {
	for _, b := range s.Buildings {
		if b.Kind == buildings.KindRecyclingCenter {
			return true
		}
	}
	return false
}

// Report logs a periodic summary in the daily-report style.
func (s *Simulation) Report(tick uint64) {
	snap := s.Snapshot()
	slog.Info("city report",
		"tick", tick,
		"money", humanize.CommafWithDigits(snap.Money, 0),
		"level", snap.Level,
		"xp", fmt.Sprintf("%.0f", snap.XP),
		"score", fmt.Sprintf("%.1f", snap.Score),
		"population", snap.Population,
		"employed", snap.Employed,
		"buildings", snap.BuildingCount,
		"energy", fmt.Sprintf("%.0f", snap.Energy),
		"pollution", fmt.Sprintf("%.1f", snap.PollutionMean),
	)
}
