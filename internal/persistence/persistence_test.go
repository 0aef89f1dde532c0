package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/persistence"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/pollution"
)

func sampleGame() *persistence.SaveGame {
	pol := policy.Default()
	pol.Sales = policy.SalesAutoSell
	return &persistence.SaveGame{
		Version:  persistence.SaveVersion,
		ID:       uuid.New(),
		Tick:     420,
		Seed:     7,
		GridSize: 16,
		Totals: persistence.Totals{
			Money: 1234.5, Energy: 88, EnergyGenerated: 40, EnergyRenewable: 16,
			Level: 3, XP: 450, CircularScore: 61.25,
		},
		Counters: persistence.Counters{
			LifetimeWaste: 210, LifetimeRecycled: 150.5,
			SecondaryInputs: 30, TotalInputs: 120,
			SecondaryProducts: 9, TotalProducts: 44,
			Sales: 812.25,
		},
		Ledger: map[economy.Resource]float64{
			economy.RawFabric:     12,
			economy.TextileWaste:  3.5,
			economy.RecycledMetal: 1,
		},
		Pollution: map[economy.WasteType]float64{
			economy.WasteTextile: 4.2,
			economy.WastePlastic: 0.3,
		},
		Penalties: pollution.Assessment{Mean: 100, Tick: 410, Done: true, Latched: true},
		Policy:    pol,
		Buildings: []persistence.BuildingRecord{
			{X: 1, Y: 0, Kind: "road", Level: 1, Style: "a"},
			{X: 2, Y: 1, Kind: "textile-factory", Level: 2, Style: "c", Inventory: persistence.Inventory{
				Queue: []persistence.QueuedJob{{RecipeID: "textile-basic", Progress: 1.4, TotalTime: 3}},
				Waste: 17,
			}},
			{X: 0, Y: 1, Kind: "residential", Level: 2, Style: "b", DevelopmentLevel: 2},
		},
		Events: []persistence.EventRecord{
			{Tick: 10, Description: "road #1 placed", Category: "building"},
			{Tick: 400, Description: "city reached level 3", Category: "economy"},
		},
	}
}

func assertSameGame(t *testing.T, want, got *persistence.SaveGame) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Tick, got.Tick)
	assert.Equal(t, want.Seed, got.Seed)
	assert.Equal(t, want.GridSize, got.GridSize)
	assert.Equal(t, want.Totals, got.Totals)
	assert.Equal(t, want.Counters, got.Counters)
	assert.Equal(t, want.Penalties, got.Penalties)
	assert.Equal(t, want.Ledger, got.Ledger)
	assert.Equal(t, want.Pollution, got.Pollution)
	assert.Equal(t, want.Policy, got.Policy)
	assert.ElementsMatch(t, want.Buildings, got.Buildings)
}

func TestDBSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "city.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Load(ctx)
	assert.True(t, errors.Is(err, persistence.ErrNoSave))

	g := sampleGame()
	require.NoError(t, db.Save(ctx, g))

	got, err := db.Load(ctx)
	require.NoError(t, err)
	assertSameGame(t, g, got)
	assert.Len(t, got.Events, 2)

	// Saving again replaces state and does not duplicate events.
	g.Totals.Money = 10
	g.Buildings = g.Buildings[:1]
	g.Events = append(g.Events, persistence.EventRecord{Tick: 430, Description: "x", Category: "economy"})
	require.NoError(t, db.Save(ctx, g))

	got, err = db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Totals.Money)
	assert.Len(t, got.Buildings, 1)
	assert.Len(t, got.Events, 3)

	v, err := db.GetMeta(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	snap := &persistence.SnapshotFile{Path: filepath.Join(t.TempDir(), "exports", "city.json.zst")}

	_, err := snap.Load(ctx)
	assert.True(t, errors.Is(err, persistence.ErrNoSave))

	g := sampleGame()
	require.NoError(t, snap.Save(ctx, g))

	got, err := snap.Load(ctx)
	require.NoError(t, err)
	assertSameGame(t, g, got)
	assert.Equal(t, g.Events, got.Events)
}

func TestSnapshotRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := &persistence.SnapshotFile{Path: filepath.Join(t.TempDir(), "city.json.zst")}
	assert.Error(t, snap.Save(ctx, sampleGame()))
}
