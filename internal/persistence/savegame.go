package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/pollution"
)

// ErrNoSave is returned by Load when the sink holds no game.
var ErrNoSave = errors.New("no saved game")

// SaveVersion is written into every save.
const SaveVersion = 1

// Sink stores and retrieves a whole game.
type Sink interface {
	Save(ctx context.Context, g *SaveGame) error
	Load(ctx context.Context) (*SaveGame, error)
}

// Totals are the city-wide scalars. EnergyGenerated and EnergyRenewable are
// the last tick's generation, which the renewable share of the score reads.
type Totals struct {
	Money           float64 `json:"money"`
	Energy          float64 `json:"energy"`
	EnergyGenerated float64 `json:"energy_generated"`
	EnergyRenewable float64 `json:"energy_renewable"`
	Level           int     `json:"level"`
	XP              float64 `json:"xp"`
	CircularScore   float64 `json:"circular_score"`
}

// Counters are the city's lifetime totals. The score's recycling, resource
// efficiency and lifecycle components are ratios of these.
type Counters struct {
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

// QueuedJob is one production job in a building's inventory.
type QueuedJob struct {
	RecipeID  string  `json:"recipe_id"`
	Progress  float64 `json:"progress"`
	TotalTime float64 `json:"total_time"`
}

// Inventory is per-building state kept across saves.
type Inventory struct {
	Queue []QueuedJob `json:"queue,omitempty"`
	Waste float64     `json:"waste,omitempty"`
}

// BuildingRecord is one placed building. Jobs and residents are not stored;
// they are re-derived on load.
type BuildingRecord struct {
	X                int       `json:"x" db:"x"`
	Y                int       `json:"y" db:"y"`
	Kind             string    `json:"kind" db:"kind"`
	Level            int       `json:"level" db:"level"`
	Style            string    `json:"style,omitempty" db:"style"`
	DevelopmentLevel int       `json:"development_level,omitempty" db:"development_level"`
	Inventory        Inventory `json:"inventory" db:"-"`
}

// EventRecord is a logged city event.
type EventRecord struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
}

// SaveGame is everything needed to rebuild a city.
type SaveGame struct {
	Version   int                           `json:"version"`
	ID        uuid.UUID                     `json:"id"`
	Tick      uint64                        `json:"tick"`
	Seed      uint64                        `json:"seed"`
	GridSize  int                           `json:"grid_size"`
	Totals    Totals                        `json:"totals"`
	Counters  Counters                      `json:"counters"`
	Ledger    map[economy.Resource]float64  `json:"ledger"`
	Pollution map[economy.WasteType]float64 `json:"pollution"`
	Penalties pollution.Assessment          `json:"penalties"`
	Policy    policy.Config                 `json:"policy"`
	Buildings []BuildingRecord              `json:"buildings"`
	Events    []EventRecord                 `json:"events,omitempty"`
}
