package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/pollution"
	"github.com/talgya/circular-city/internal/world"
)

type recordingNotifier struct {
	notices []Notice
}

func (r *recordingNotifier) Notify(n Notice) { r.notices = append(r.notices, n) }

func (r *recordingNotifier) count(kind NoticeKind) int {
	n := 0
	for _, x := range r.notices {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

type recordingRenderer struct {
	changed map[world.BuildingID]VariantKey
	removed []world.BuildingID
}

func (r *recordingRenderer) BuildingChanged(id world.BuildingID, key VariantKey) {
	if r.changed == nil {
		r.changed = map[world.BuildingID]VariantKey{}
	}
	r.changed[id] = key
}

func (r *recordingRenderer) BuildingRemoved(id world.BuildingID) {
	r.removed = append(r.removed, id)
}

type fixture struct {
	sim      *Simulation
	notifier *recordingNotifier
	renderer *recordingRenderer
}

func newFixture(t *testing.T, size int, money, energy float64) *fixture {
	t.Helper()
	f := &fixture{notifier: &recordingNotifier{}, renderer: &recordingRenderer{}}
	f.sim = NewSimulation(Options{
		Grid:           world.NewGrid(size),
		RNG:            entropy.New(42),
		StartingMoney:  money,
		StartingEnergy: energy,
		Notifier:       f.notifier,
		Renderer:       f.renderer,
	})
	return f
}

func (f *fixture) place(t *testing.T, x, y int, kind buildings.Kind) *buildings.Building {
	t.Helper()
	id, err := f.sim.PlaceBuilding(x, y, kind)
	require.NoError(t, err, "place %s at (%d,%d)", kind, x, y)
	return f.sim.Buildings[id]
}

func (f *fixture) run(t *testing.T, from, to uint64) {
	t.Helper()
	for tick := from; tick <= to; tick++ {
		f.sim.Simulate(tick)
		require.NoError(t, f.sim.CheckInvariants(), "tick %d", tick)
	}
}

func TestAutoRecyclingConvertsLedgerWaste(t *testing.T) {
	f := newFixture(t, 4, 10_000, 100)
	f.sim.Level = 3
	center := f.place(t, 0, 0, buildings.KindRecyclingCenter)
	f.sim.Ledger.Add(economy.EWaste, 10)

	f.sim.Simulate(1)

	assert.True(t, center.Power.Powered)
	assert.InDelta(t, 8.0, f.sim.Ledger.Amount(economy.EWaste), 1e-9)
	assert.InDelta(t, 1.0, f.sim.Ledger.Amount(economy.RecycledElectronics), 1e-9)
	assert.InDelta(t, 2.0, f.sim.Stats.LifetimeRecycled, 1e-9)
}

func TestRecyclingPullsLocalWasteAfterLedger(t *testing.T) {
	f := newFixture(t, 4, 10_000, 100)
	f.sim.Level = 3
	f.place(t, 0, 0, buildings.KindRecyclingCenter)
	factory := f.place(t, 1, 0, buildings.KindTextileFactory)
	factory.Waste.Set(10)
	f.sim.Ledger.Add(economy.TextileWaste, 0.5)

	f.sim.Simulate(1)

	assert.Zero(t, f.sim.Ledger.Amount(economy.TextileWaste))
	// 0.5 from the ledger, 1.5 from the factory, then the factory's own decay.
	assert.InDelta(t, 10-1.5-buildings.WasteDecayPerTick, factory.Waste.Amount, 1e-9)
	assert.InDelta(t, 1.0, f.sim.Ledger.Amount(economy.RecycledFabric), 1e-9)
}

func TestRecyclingOutputRespectsCap(t *testing.T) {
	f := newFixture(t, 4, 10_000, 100)
	f.sim.Level = 3
	f.place(t, 0, 0, buildings.KindRecyclingCenter)
	f.sim.Ledger.Add(economy.EWaste, 10)
	f.sim.Ledger.Add(economy.RecycledElectronics, f.sim.Ledger.Cap(economy.RecycledElectronics)-0.25)

	f.sim.Simulate(1)

	assert.InDelta(t, f.sim.Ledger.Cap(economy.RecycledElectronics), f.sim.Ledger.Amount(economy.RecycledElectronics), 1e-9)
	assert.InDelta(t, 9.5, f.sim.Ledger.Amount(economy.EWaste), 1e-9, "only what fits is consumed")
}

func TestWasteToEnergyBurnsLedgerWaste(t *testing.T) {
	f := newFixture(t, 4, 10_000, 0)
	f.sim.Level = 4
	f.place(t, 0, 0, buildings.KindWasteToEnergy)
	f.sim.Ledger.Add(economy.TextileWaste, 5)
	f.sim.Ledger.Add(economy.EWaste, 2)

	f.sim.Simulate(1)

	// Level 1 burns at most 3 units, taken in waste-type order.
	assert.InDelta(t, 2.0, f.sim.Ledger.Amount(economy.TextileWaste), 1e-9)
	assert.InDelta(t, 2.0, f.sim.Ledger.Amount(economy.EWaste), 1e-9)
	assert.InDelta(t, 3.0, f.sim.Stats.WasteBurned, 1e-9)
	assert.InDelta(t, 3*buildings.EnergyPerWasteUnit, f.sim.Energy.Generated, 1e-9)
	assert.Zero(t, f.sim.Energy.RenewableShare())
}

func TestManualRecycling(t *testing.T) {
	f := newFixture(t, 4, 10_000, 0)
	f.sim.Level = 3
	center := f.place(t, 0, 0, buildings.KindRecyclingCenter)
	road := f.place(t, 1, 0, buildings.KindRoad)

	err := f.sim.StartManualRecycling(road.ID)
	assert.True(t, errors.Is(err, ErrNotRecyclingCenter))
	err = f.sim.StartManualRecycling(999)
	assert.True(t, errors.Is(err, ErrBuildingNotFound))

	f.sim.Ledger.Add(economy.TextileWaste, 10)
	err = f.sim.StartManualRecycling(center.ID)
	assert.True(t, errors.Is(err, ErrInsufficientEnergy))
	assert.Equal(t, 1, f.notifier.count(NoticeInsufficientEnergy))
	assert.Equal(t, 10.0, f.sim.Ledger.Amount(economy.TextileWaste))

	f.sim.Energy.Generate(50, false)
	require.NoError(t, f.sim.StartManualRecycling(center.ID))
	// Level 1 batch of 5 at 0.5 + 0.25 boost.
	assert.InDelta(t, 5.0, f.sim.Ledger.Amount(economy.TextileWaste), 1e-9)
	assert.InDelta(t, 3.75, f.sim.Ledger.Amount(economy.RecycledFabric), 1e-9)
	assert.True(t, center.Recycling.Boosted(f.sim.LastTick))

	// Re-triggering resets the timer instead of stacking.
	f.sim.LastTick = 10
	require.NoError(t, f.sim.StartManualRecycling(center.ID))
	assert.Equal(t, uint64(10+buildings.RecyclingBoostDuration), center.Recycling.BoostUntil)
}

func TestEnergyIsFirstComeFirstServedInScanOrder(t *testing.T) {
	f := newFixture(t, 4, 10_000, 0)
	factory := f.place(t, 0, 0, buildings.KindTextileFactory)
	f.place(t, 1, 0, buildings.KindCoalPlant)

	f.sim.Simulate(1)
	assert.False(t, factory.Power.Powered, "scanned before the plant, pool was empty")
	assert.Equal(t, buildings.StatusNoPower, factory.Status)
	assert.InDelta(t, 20.0, f.sim.Energy.Stored, 1e-9)

	f.sim.Simulate(2)
	assert.True(t, factory.Power.Powered)
	assert.InDelta(t, 35.0, f.sim.Energy.Stored, 1e-9)
}

func TestRenewableShareFeedsScore(t *testing.T) {
	f := newFixture(t, 4, 10_000, 0)
	f.sim.Level = 2
	f.place(t, 0, 0, buildings.KindCoalPlant)
	f.place(t, 1, 0, buildings.KindSolarFarm)

	f.sim.Simulate(1)
	assert.InDelta(t, 8.0/28.0, f.sim.ScoreBreakdown.RenewableShare, 1e-9)
	assert.GreaterOrEqual(t, f.sim.Score, 0.0)
	assert.LessOrEqual(t, f.sim.Score, 100.0)
}

// buildTown lays out a small serviced town: a road along y=1 with homes,
// power, and employers on both sides.
func buildTown(t *testing.T, f *fixture) map[string]*buildings.Building {
	t.Helper()
	f.sim.Level = 5
	for x := 0; x < 8; x++ {
		f.place(t, x, 1, buildings.KindRoad)
	}
	town := map[string]*buildings.Building{
		"home1":     f.place(t, 0, 0, buildings.KindResidential),
		"home2":     f.place(t, 1, 0, buildings.KindResidential),
		"home3":     f.place(t, 0, 2, buildings.KindResidential),
		"coal":      f.place(t, 2, 0, buildings.KindCoalPlant),
		"coal2":     f.place(t, 2, 2, buildings.KindCoalPlant),
		"textile":   f.place(t, 3, 0, buildings.KindTextileFactory),
		"shop":      f.place(t, 4, 0, buildings.KindCommercial),
		"recycling": f.place(t, 5, 0, buildings.KindRecyclingCenter),
		"plastic":   f.place(t, 3, 2, buildings.KindPlasticFactory),
	}
	for _, name := range []string{"home1", "home2", "home3", "shop"} {
		require.NoError(t, f.sim.Upgrade(town[name].ID))
		require.NoError(t, f.sim.Upgrade(town[name].ID))
	}
	f.sim.Ledger.Add(economy.RawFabric, 400)
	f.sim.Ledger.Add(economy.PlasticPellets, 400)
	return town
}

func TestWorkerBijectionHoldsThroughoutRun(t *testing.T) {
	f := newFixture(t, 8, 1_000_000, 100)
	town := buildTown(t, f)

	f.run(t, 1, 400)

	snap := f.sim.Snapshot()
	assert.Positive(t, snap.Population)
	assert.Positive(t, snap.Employed)
	assert.Positive(t, town["textile"].WorkerCount())
	assert.Positive(t, f.sim.Ledger.Amount(economy.Clothing)+f.sim.Stats.Sales)

	// Losing a workplace sends its workers back to the labour pool.
	workers := town["textile"].Jobs.Workers()
	require.NotEmpty(t, workers)
	f.sim.Bulldoze(3, 0)
	require.NoError(t, f.sim.CheckInvariants())
	for _, id := range workers {
		c, ok := f.sim.Citizen(id)
		require.True(t, ok)
		assert.NotEqual(t, agents.StateEmployed, c.State)
		assert.Equal(t, world.NoBuilding, c.Workplace)
	}

	// Losing a home removes its residents, releasing their jobs first.
	residents := town["home1"].Development.Residents()
	f.sim.Bulldoze(0, 0)
	require.NoError(t, f.sim.CheckInvariants())
	for _, id := range residents {
		_, ok := f.sim.Citizen(id)
		assert.False(t, ok)
	}

	f.run(t, 401, 600)
}

func TestNeglectedZonesDeclineAndShedPeople(t *testing.T) {
	f := newFixture(t, 8, 1_000_000, 100)
	town := buildTown(t, f)
	f.run(t, 1, 400)

	homes := []*buildings.Building{town["home1"], town["home2"], town["home3"]}
	before := map[world.BuildingID]int{}
	for _, b := range append(homes, town["shop"]) {
		before[b.ID] = b.Development.Level
	}
	pop, employed := f.sim.population()
	require.Positive(t, pop)
	require.Positive(t, employed)

	// Cut every road.
	for x := 0; x < 8; x++ {
		f.sim.Bulldoze(x, 1)
	}

	f.run(t, 401, 400+DeclineAfter)
	for _, b := range append(homes, town["shop"]) {
		assert.LessOrEqual(t, b.Development.Level, max(0, before[b.ID]-1), "%s #%d", b.Kind, b.ID)
		assert.LessOrEqual(t, b.WorkerCount(), b.MaxWorkers())
		if b.Spec.Houses {
			assert.LessOrEqual(t, b.Development.ResidentCount(), b.Development.Capacity())
		}
	}

	f.run(t, 401+DeclineAfter, 400+4*DeclineAfter)
	for _, b := range append(homes, town["shop"]) {
		assert.Zero(t, b.Development.Level, "%s #%d", b.Kind, b.ID)
		assert.Zero(t, b.WorkerCount())
	}
	for _, b := range homes {
		assert.Zero(t, b.Development.ResidentCount())
	}
	pop, employed = f.sim.population()
	assert.Zero(t, pop)
	assert.Zero(t, employed)
	assert.Empty(t, f.sim.Citizens)
	assert.Zero(t, town["textile"].WorkerCount())
	assert.Zero(t, town["recycling"].WorkerCount())
}

func TestScheduledEmissionLeaksTenPercent(t *testing.T) {
	f := newFixture(t, 4, 10_000, 0)
	busy := f.place(t, 0, 0, buildings.KindTextileFactory)
	idle := f.place(t, 2, 0, buildings.KindTextileFactory)
	// Unstaffed, so the job never advances but keeps the factory active.
	busy.Production.Queue = append(busy.Production.Queue, buildings.Job{RecipeID: "textile-basic", TotalTime: 1000})

	interval := busy.Waste.ProductionInterval
	f.run(t, 1, interval-1)
	assert.Zero(t, f.sim.Pool.Level(economy.WasteTextile))
	assert.Zero(t, busy.Waste.Amount)

	f.run(t, interval, interval)
	rate := busy.Waste.ProductionRate
	assert.InDelta(t, rate*pollution.LeakFraction, f.sim.Pool.Level(economy.WasteTextile), 1e-9)
	assert.InDelta(t, rate-buildings.WasteDecayPerTick, busy.Waste.Amount, 1e-9)
	assert.InDelta(t, rate, f.sim.Stats.LifetimeWaste, 1e-9)
	assert.Zero(t, idle.Waste.Amount, "an idle factory emits nothing")
	assert.Len(t, busy.Production.Queue, 1)
}

func TestEmployedCitizenNeverHops(t *testing.T) {
	f := newFixture(t, 8, 1_000_000, 100)
	buildTown(t, f)
	f.run(t, 1, 200)

	for id, c := range f.sim.Citizens {
		if !c.Employed() {
			continue
		}
		before := c.Workplace
		got, ok := f.sim.FindJob(id)
		assert.True(t, ok)
		assert.Equal(t, before, got)
	}
}

func TestBrokenLinkPanics(t *testing.T) {
	f := newFixture(t, 4, 10_000, 0)
	home := f.place(t, 0, 0, buildings.KindResidential)
	factory := f.place(t, 1, 0, buildings.KindTextileFactory)

	c := f.sim.Spawner.SpawnResident(home.ID, 0)
	f.sim.Citizens[c.ID] = c
	home.Development.AddResident(c.ID)

	// Claimed workplace without membership.
	c.Workplace = factory.ID
	c.State = agents.StateEmployed
	assert.Panics(t, func() { f.sim.FindJob(c.ID) })
	assert.True(t, errors.Is(f.sim.CheckInvariants(), ErrBrokenWorkerLink))
}

func TestJobPreferenceOrder(t *testing.T) {
	setup := func(t *testing.T) (*fixture, *agents.Citizen, map[string]*buildings.Building) {
		f := newFixture(t, 8, 1_000_000, 0)
		f.sim.Level = 5
		home := f.place(t, 0, 0, buildings.KindResidential)
		bs := map[string]*buildings.Building{
			"shop":      f.place(t, 1, 0, buildings.KindCommercial),
			"recycling": f.place(t, 2, 0, buildings.KindRecyclingCenter),
			"factory":   f.place(t, 6, 0, buildings.KindTextileFactory),
		}
		bs["shop"].Development.Level = 1
		bs["shop"].RefreshCapacity()

		c := f.sim.Spawner.SpawnResident(home.ID, 0)
		f.sim.Citizens[c.ID] = c
		home.Development.AddResident(c.ID)
		return f, c, bs
	}

	t.Run("fixed order prefers factories", func(t *testing.T) {
		f, c, bs := setup(t)
		got, ok := f.sim.FindJob(c.ID)
		require.True(t, ok)
		assert.Equal(t, bs["factory"].ID, got)
		assert.Equal(t, agents.StateEmployed, c.State)
		assert.True(t, bs["factory"].Jobs.Has(c.ID))
	})

	t.Run("workforce policy fills the largest deficit", func(t *testing.T) {
		f, c, bs := setup(t)
		p := policy.Default()
		p.Workforce = policy.WorkforceDistribution{Enabled: true, Factories: 20, Recycling: 30, Commercial: 50}
		require.NoError(t, f.sim.SetPolicy(p))

		got, ok := f.sim.FindJob(c.ID)
		require.True(t, ok)
		assert.Equal(t, bs["shop"].ID, got)
	})

	t.Run("out of range is not a candidate", func(t *testing.T) {
		f, c, _ := setup(t)
		f.sim.Bulldoze(1, 0)
		f.sim.Bulldoze(2, 0)
		f.sim.Bulldoze(6, 0)
		f.place(t, 7, 7, buildings.KindTextileFactory)

		_, ok := f.sim.FindJob(c.ID)
		assert.False(t, ok)
		assert.Equal(t, agents.StateUnemployed, c.State)
	})
}

func TestBulldozeEmptyTileIsNoOp(t *testing.T) {
	f := newFixture(t, 4, 10_000, 50)
	f.place(t, 0, 0, buildings.KindRoad)
	money := f.sim.Money
	ledger := f.sim.Ledger.Snapshot()
	events := len(f.sim.Events)

	f.sim.Bulldoze(3, 3)
	f.sim.Bulldoze(3, 3)
	f.sim.Bulldoze(-1, 99)

	assert.Equal(t, money, f.sim.Money)
	assert.Equal(t, ledger, f.sim.Ledger.Snapshot())
	assert.Len(t, f.sim.Buildings, 1)
	assert.Len(t, f.sim.Events, events)
	assert.Empty(t, f.renderer.removed)

	f.sim.Bulldoze(0, 0)
	f.sim.Bulldoze(0, 0)
	assert.Empty(t, f.sim.Buildings)
	assert.Len(t, f.renderer.removed, 1)
}

func TestPlacementErrors(t *testing.T) {
	f := newFixture(t, 4, 300, 0)
	f.sim.Grid.Get(world.Coord{X: 3, Y: 3}).Terrain = world.TerrainWater

	road := f.place(t, 0, 0, buildings.KindRoad)
	assert.Equal(t, 290.0, f.sim.Money)
	assert.Contains(t, f.renderer.changed, road.ID)

	cases := []struct {
		name string
		x, y int
		kind buildings.Kind
		want error
	}{
		{"occupied", 0, 0, buildings.KindResidential, ErrInvalidPlacement},
		{"out of bounds", 4, 0, buildings.KindRoad, ErrInvalidPlacement},
		{"water", 3, 3, buildings.KindRoad, ErrInvalidPlacement},
		{"locked", 1, 1, buildings.KindSteelMill, ErrLocked},
		{"funds", 1, 1, buildings.KindTextileFactory, ErrInsufficientFunds},
		{"unknown kind", 1, 1, buildings.Kind("castle"), buildings.ErrUnknownBuildingKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.sim.PlaceBuilding(tc.x, tc.y, tc.kind)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, 290.0, f.sim.Money)
			assert.Len(t, f.sim.Buildings, 1)
		})
	}
	assert.Equal(t, 1, f.notifier.count(NoticeInsufficientFunds))
	assert.True(t, IsUserError(ErrLocked))
	assert.False(t, IsUserError(ErrBrokenWorkerLink))
}

func TestUpgrade(t *testing.T) {
	f := newFixture(t, 4, 700, 0)
	road := f.place(t, 0, 0, buildings.KindRoad)
	factory := f.place(t, 1, 0, buildings.KindTextileFactory)

	assert.True(t, errors.Is(f.sim.Upgrade(road.ID), buildings.ErrMaxLevel))
	assert.True(t, errors.Is(f.sim.Upgrade(999), ErrBuildingNotFound))
	assert.True(t, errors.Is(f.sim.Upgrade(factory.ID), ErrInsufficientFunds))
	assert.Equal(t, 1, factory.Level)

	f.sim.Money = 500
	require.NoError(t, f.sim.Upgrade(factory.ID))
	assert.Equal(t, 2, factory.Level)
	assert.Zero(t, f.sim.Money)
	assert.Equal(t, VariantKey{Kind: buildings.KindTextileFactory, Level: 2, Style: factory.Style}, f.renderer.changed[factory.ID])
}

func TestLevelUpAndUnlocks(t *testing.T) {
	f := newFixture(t, 4, 0, 0)
	assert.False(t, f.sim.Unlocked(string(buildings.KindSolarFarm)))
	assert.False(t, f.sim.Unlocked("nonsense"))

	f.sim.XP = XPForLevel(3)
	f.sim.Simulate(1)
	assert.Equal(t, 3, f.sim.Level)
	assert.True(t, f.sim.Unlocked(FeatureAutoBuy))
	assert.True(t, f.sim.Unlocked(string(buildings.KindRecyclingCenter)))
	assert.False(t, f.sim.Unlocked(FeatureWorkforce))
	assert.Equal(t, 2, f.notifier.count(NoticeLevelUp))

	p := policy.Default()
	p.Workforce.Enabled = true
	assert.True(t, errors.Is(f.sim.SetPolicy(p), ErrLocked))

	assert.Equal(t, 0.0, XPForLevel(1))
	assert.Equal(t, 100.0, XPForLevel(2))
	assert.Equal(t, 8100.0, XPForLevel(10))
}

func TestPollutionCrisisNotifiesOnce(t *testing.T) {
	f := newFixture(t, 4, 0, 0)
	saturate := func(level float64) {
		for _, w := range economy.AllWasteTypes() {
			f.sim.Pool.Set(w, level)
		}
	}

	for tick := uint64(1); tick <= 25; tick++ {
		saturate(100)
		f.sim.Simulate(tick)
	}
	assert.Equal(t, 1, f.notifier.count(NoticePollutionCrisis))
	assert.Equal(t, 1, f.notifier.count(NoticePollutionWarning))
	assert.Equal(t, 0.7, f.sim.Pool.Effects().XPMultiplier)

	// Dropping below the threshold re-arms the crisis.
	saturate(0)
	f.sim.Simulate(31)
	assert.False(t, f.sim.Pool.Effects().Crisis)
	saturate(100)
	f.sim.Simulate(41)
	assert.Equal(t, 2, f.notifier.count(NoticePollutionCrisis))
}

func TestAutoSellAndBuy(t *testing.T) {
	f := newFixture(t, 4, 1000, 0)
	f.sim.Level = 3
	f.place(t, 0, 0, buildings.KindTextileFactory)
	money := f.sim.Money

	f.sim.Ledger.Add(economy.Clothing, 25.5)
	p := policy.Default()
	p.Sales = policy.SalesAutoTrade
	require.NoError(t, f.sim.SetPolicy(p))

	f.sim.Simulate(1)
	assert.InDelta(t, 5.5, f.sim.Ledger.Amount(economy.Clothing), 1e-9)
	assert.InDelta(t, BuyTarget, f.sim.Ledger.Amount(economy.RawFabric), 1e-9)
	assert.Zero(t, f.sim.Ledger.Amount(economy.IronOre), "no steel mill placed")
	assert.Positive(t, f.sim.Stats.Sales)
	assert.Positive(t, f.sim.Stats.Purchases)
	assert.InDelta(t, money+f.sim.Stats.Sales-f.sim.Stats.Purchases, f.sim.Money, 1e-6)

	_, err := f.sim.Sell(economy.TextileWaste, 1)
	assert.True(t, errors.Is(err, economy.ErrNotTradeable))
	_, err = f.sim.Sell(economy.Steel, 1)
	assert.True(t, errors.Is(err, ErrInsufficientResources))
}

func TestExportRestoreRoundTrip(t *testing.T) {
	f := newFixture(t, 8, 1_000_000, 100)
	buildTown(t, f)
	f.run(t, 1, 150)

	g := f.sim.Export()
	assert.Equal(t, uint64(150), g.Tick)
	assert.Len(t, g.Buildings, len(f.sim.Buildings))

	restored, err := Restore(g, Options{Grid: world.NewGrid(8), RNG: entropy.New(1)})
	require.NoError(t, err)
	require.NoError(t, restored.CheckInvariants())

	assert.Equal(t, f.sim.CityID, restored.CityID)
	assert.Equal(t, f.sim.Ledger.Snapshot(), restored.Ledger.Snapshot())
	assert.Equal(t, f.sim.Level, restored.Level)
	assert.Len(t, restored.Buildings, len(f.sim.Buildings))

	// The score is recomputed from restored state and must not move.
	assert.Equal(t, f.sim.Stats, restored.Stats)
	assert.Equal(t, f.sim.Pool.Assessment(), restored.Pool.Assessment())
	assert.Positive(t, restored.ScoreBreakdown.Recycling)
	assert.Equal(t, f.sim.ScoreBreakdown, restored.ScoreBreakdown)
	assert.InDelta(t, f.sim.Score, restored.Score, 1e-9)

	for _, b := range restored.Buildings {
		if b.Spec.Houses {
			assert.Equal(t, b.Development.Capacity(), b.Development.ResidentCount())
		}
		assert.Zero(t, b.WorkerCount(), "jobs are re-derived by the allocator")
	}

	for tick := uint64(151); tick <= 200; tick++ {
		restored.Simulate(tick)
	}
	require.NoError(t, restored.CheckInvariants())

	g.Buildings = append(g.Buildings, g.Buildings[0])
	g.Buildings[len(g.Buildings)-1].Kind = "castle"
	_, err = Restore(g, Options{Grid: world.NewGrid(8)})
	assert.True(t, errors.Is(err, buildings.ErrUnknownBuildingKind))
}

func TestRestoredCrisisDoesNotRepeat(t *testing.T) {
	f := newFixture(t, 4, 0, 0)
	saturate := func(pool interface {
		Set(economy.WasteType, float64)
	}) {
		for _, w := range economy.AllWasteTypes() {
			pool.Set(w, 100)
		}
	}
	saturate(f.sim.Pool)
	f.sim.Simulate(1)
	require.Equal(t, 1, f.notifier.count(NoticePollutionCrisis))

	notifier := &recordingNotifier{}
	restored, err := Restore(f.sim.Export(), Options{Grid: world.NewGrid(4), Notifier: notifier})
	require.NoError(t, err)
	assert.True(t, restored.Pool.Effects().Crisis)

	for tick := uint64(2); tick <= 25; tick++ {
		saturate(restored.Pool)
		restored.Simulate(tick)
	}
	assert.Zero(t, notifier.count(NoticePollutionCrisis))
	assert.Zero(t, notifier.count(NoticePollutionWarning))
}

func TestRestoreClampsCityLevel(t *testing.T) {
	f := newFixture(t, 4, 0, 0)
	g := f.sim.Export()
	g.Totals.Level = MaxCityLevel + 5
	restored, err := Restore(g, Options{Grid: world.NewGrid(4)})
	require.NoError(t, err)
	assert.Equal(t, MaxCityLevel, restored.Level)

	g.Totals.Level = 0
	restored, err = Restore(g, Options{Grid: world.NewGrid(4)})
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Level)
}

func TestResolveVariantFallsBack(t *testing.T) {
	key := VariantKey{Kind: buildings.KindSolarFarm, Level: 3, Style: "c"}
	has := func(k VariantKey) bool { return k.Level == 1 }
	assert.Equal(t, BaseVariant(buildings.KindSolarFarm), ResolveVariant(key, has))

	key.Level = 1
	assert.Equal(t, key, ResolveVariant(key, has))
}

func TestAgingRetiresWorkersThroughAllocator(t *testing.T) {
	f := newFixture(t, 8, 1_000_000, 100)
	buildTown(t, f)
	f.run(t, 1, 99)

	var worker *agents.Citizen
	for _, c := range f.sim.Citizens {
		if c.Employed() {
			worker = c
			break
		}
	}
	require.NotNil(t, worker)
	worker.Age = agents.RetirementAge - 1
	workplace := f.sim.Buildings[worker.Workplace]

	f.sim.Simulate(100)
	require.NoError(t, f.sim.CheckInvariants())
	assert.Equal(t, agents.StateRetired, worker.State)
	assert.False(t, workplace.Jobs.Has(worker.ID))
}

func TestSeedStarterCity(t *testing.T) {
	f := newFixture(t, 8, 5_000, 100)
	origin, ok := world.FindStarterSite(f.sim.Grid, StarterSpan)
	require.True(t, ok)
	require.NoError(t, f.sim.SeedStarterCity(origin))

	assert.Len(t, f.sim.Buildings, len(starterLayout))
	assert.Equal(t, 5_000.0-1_390, f.sim.Money)
	assert.Equal(t, StarterFabric, f.sim.Ledger.Amount(economy.RawFabric))

	f.run(t, 1, 120)
	assert.Positive(t, f.sim.Snapshot().BuildingCount)

	poor := newFixture(t, 8, 100, 0)
	err := poor.sim.SeedStarterCity(world.Coord{})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
}
