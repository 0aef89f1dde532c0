package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/engine"
	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/metrics"
	"github.com/talgya/circular-city/internal/world"
)

func newSim(t *testing.T) *engine.Simulation {
	t.Helper()
	s := engine.NewSimulation(engine.Options{
		Grid:          world.NewGrid(8),
		RNG:           entropy.New(3),
		StartingMoney: 10_000,
	})
	_, err := s.PlaceBuilding(0, 0, buildings.KindCoalPlant)
	require.NoError(t, err)
	return s
}

func TestTickObserverUpdatesGauges(t *testing.T) {
	m := metrics.New()
	s := newSim(t)
	s.AddObserver(m)
	s.Ledger.Add(economy.Steel, 12)

	s.Simulate(1)
	s.Simulate(2)

	const want = `
# HELP citysim_energy_generated Energy generated during the last tick.
# TYPE citysim_energy_generated gauge
citysim_energy_generated 20
# HELP citysim_money City treasury.
# TYPE citysim_money gauge
citysim_money 9600
# HELP citysim_tick Last completed tick.
# TYPE citysim_tick gauge
citysim_tick 2
# HELP citysim_ticks_total Ticks simulated by this process.
# TYPE citysim_ticks_total counter
citysim_ticks_total 2
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want),
		"citysim_energy_generated", "citysim_money", "citysim_tick", "citysim_ticks_total")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "citysim_ledger_amount")
	require.NoError(t, err)
	assert.Equal(t, economy.NumResources, n)

	n, err = testutil.GatherAndCount(m.Registry(), "citysim_pollution_level")
	require.NoError(t, err)
	assert.Equal(t, economy.NumWasteTypes, n)
}

func TestObserveSave(t *testing.T) {
	m := metrics.New()
	m.ObserveSave(20*time.Millisecond, nil)
	m.ObserveSave(time.Second, errors.New("disk full"))
	m.ObserveSave(5*time.Millisecond, nil)

	const want = `
# HELP citysim_saves_total Save attempts by outcome.
# TYPE citysim_saves_total counter
citysim_saves_total{result="error"} 1
citysim_saves_total{result="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "citysim_saves_total"))
}

func TestHandlerServesExposition(t *testing.T) {
	m := metrics.New()
	s := newSim(t)
	m.TickCompleted(s, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `citysim_ledger_amount{category="product",resource="steel"} 0`)
	assert.Contains(t, string(body), "citysim_buildings 1")
}
