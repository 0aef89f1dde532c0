package buildings_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/entropy"
)

func TestNewCarriesModulesPerClass(t *testing.T) {
	for _, kind := range buildings.Kinds() {
		b, err := buildings.New(kind, entropy.New(1))
		require.NoError(t, err, kind)
		spec := b.Spec

		assert.Equal(t, 1, b.Level)
		assert.Contains(t, buildings.Styles, b.Style)
		assert.Equal(t, spec.Waste != nil, b.Waste != nil, kind)
		assert.Equal(t, spec.OffersJobs(), b.Jobs != nil, kind)
		assert.Equal(t, spec.Class == buildings.ClassZone, b.Development != nil, kind)
		assert.Equal(t, spec.Class == buildings.ClassFactory, b.Production != nil, kind)
		assert.Equal(t, spec.Class == buildings.ClassEnergy, b.Generator != nil, kind)
		assert.Equal(t, spec.Class == buildings.ClassRecycling, b.Recycling != nil, kind)
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := buildings.New("castle", nil)
	assert.True(t, errors.Is(err, buildings.ErrUnknownBuildingKind))
	_, err = buildings.ParseKind("castle")
	assert.True(t, errors.Is(err, buildings.ErrUnknownBuildingKind))
}

func TestUpgradeStopsAtMaxLevel(t *testing.T) {
	b, err := buildings.New(buildings.KindSolarFarm, nil)
	require.NoError(t, err)
	assert.Equal(t, 600.0, b.UpgradeCost())
	require.NoError(t, b.Upgrade())
	assert.Equal(t, 1200.0, b.UpgradeCost())
	require.NoError(t, b.Upgrade())
	err = b.Upgrade()
	assert.True(t, errors.Is(err, buildings.ErrMaxLevel))
	assert.Equal(t, 3, b.Level)

	b.SetLevel(9)
	assert.Equal(t, 3, b.Level)
}

func TestZoneJobsFollowDevelopment(t *testing.T) {
	b, err := buildings.New(buildings.KindCommercial, nil)
	require.NoError(t, err)
	assert.Zero(t, b.Jobs.MaxWorkers)

	b.Development.Level = 2
	b.RefreshCapacity()
	assert.Equal(t, 4, b.Jobs.MaxWorkers)

	f, err := buildings.New(buildings.KindElectronicsFactory, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, f.Jobs.MaxWorkers)
}

func TestJobsMembershipIsIdempotent(t *testing.T) {
	b, err := buildings.New(buildings.KindRecyclingCenter, nil)
	require.NoError(t, err)
	jobs := b.Jobs
	assert.Equal(t, 4, jobs.MaxWorkers)

	assert.True(t, jobs.Hire(1))
	assert.False(t, jobs.Hire(1))
	assert.Equal(t, 1, jobs.Count())
	for id := agents.CitizenID(2); id <= 4; id++ {
		assert.True(t, jobs.Hire(id))
	}
	assert.False(t, jobs.Hire(5), "full")
	assert.Equal(t, []agents.CitizenID{1, 2, 3, 4}, jobs.Workers())

	assert.True(t, jobs.Fire(2))
	assert.False(t, jobs.Fire(2))

	jobs.MaxWorkers = 1
	assert.Equal(t, 2, jobs.Excess())
}

func TestWastePenaltyBoundaries(t *testing.T) {
	cases := []struct {
		amount float64
		want   float64
	}{
		{0, 1},
		{79.999, 1},
		{80, 0.8},
		{94.999, 0.8},
		{95, 0.5},
		{99.999, 0.5},
		{100, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, buildings.WastePenalty(tc.amount), "amount %v", tc.amount)
	}
}

func TestWasteModuleClamps(t *testing.T) {
	b, err := buildings.New(buildings.KindSteelMill, nil)
	require.NoError(t, err)
	w := b.Waste

	assert.Equal(t, 100.0, w.Emit(250))
	assert.Equal(t, 100.0, w.Amount)
	assert.Zero(t, w.Emit(1))
	assert.True(t, w.Critical())
	assert.Equal(t, 0.0, b.WastePenalty())

	assert.Equal(t, 100.0, w.Take(500))
	assert.Zero(t, w.Amount)
	w.Decay()
	assert.Zero(t, w.Amount)

	w.Set(-3)
	assert.Zero(t, w.Amount)
}

func TestWasteEmitsOncePerInterval(t *testing.T) {
	b, err := buildings.New(buildings.KindTextileFactory, nil)
	require.NoError(t, err)
	w := b.Waste

	fired := 0
	for tick := uint64(1); tick <= 35; tick++ {
		if w.Due(tick) {
			fired++
		}
	}
	assert.Equal(t, 3, fired)
	assert.False(t, w.Due(30), "same tick does not fire twice")
}

func TestStatusWasteOverridesPower(t *testing.T) {
	b, err := buildings.New(buildings.KindTextileFactory, nil)
	require.NoError(t, err)
	b.Power.Powered = false
	b.UpdateStatus()
	assert.Equal(t, buildings.StatusNoPower, b.Status)

	b.Waste.Set(96)
	b.UpdateStatus()
	assert.Equal(t, buildings.StatusWasteCritical, b.Status)
}

func TestRecyclingParameters(t *testing.T) {
	assert.Equal(t, 2.0, buildings.RecyclingAutoRate(1))
	assert.Equal(t, 4.0, buildings.RecyclingAutoRate(3))
	assert.Equal(t, 0.5, buildings.RecyclingEfficiency(1))
	assert.Equal(t, 0.8, buildings.RecyclingEfficiency(7))

	m := &buildings.RecyclingModule{}
	m.Boost(10)
	assert.True(t, m.Boosted(39))
	assert.False(t, m.Boosted(40))
	m.Boost(20)
	assert.Equal(t, uint64(50), m.BoostUntil, "re-triggering resets the timer")
}

func TestEnergyPool(t *testing.T) {
	pool := buildings.NewEnergyPool(10)
	power := buildings.PowerModule{Required: 8}
	assert.True(t, power.Draw(pool))
	assert.False(t, power.Draw(pool))
	assert.False(t, power.Powered)

	pool.BeginTick()
	pool.Generate(600, true)
	pool.Generate(200, false)
	assert.Equal(t, buildings.EnergyStorageCap, pool.Stored)
	assert.InDelta(t, 0.75, pool.RenewableShare(), 1e-9)

	free := buildings.PowerModule{}
	assert.True(t, free.Draw(buildings.NewEnergyPool(0)))
}
