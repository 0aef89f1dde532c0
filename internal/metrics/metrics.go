// Package metrics exposes city state as Prometheus gauges, refreshed after
// every tick.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/engine"
)

const namespace = "citysim"

// Metrics owns a private registry so tests and embedders never collide with
// the global one.
type Metrics struct {
	reg *prometheus.Registry

	ticks          prometheus.Counter
	tick           prometheus.Gauge
	money          prometheus.Gauge
	level          prometheus.Gauge
	score          prometheus.Gauge
	energyStored   prometheus.Gauge
	energyGen      prometheus.Gauge
	renewableShare prometheus.Gauge
	population     prometheus.Gauge
	employed       prometheus.Gauge
	buildings      prometheus.Gauge
	pollutionMean  prometheus.Gauge
	pollution      *prometheus.GaugeVec
	ledger         *prometheus.GaugeVec
	saves          *prometheus.CounterVec
	saveSeconds    prometheus.Histogram
}

// New creates and registers every collector.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total", Help: "Ticks simulated by this process.",
		}),
		tick:           gauge("tick", "Last completed tick."),
		money:          gauge("money", "City treasury."),
		level:          gauge("city_level", "City progression level."),
		score:          gauge("circular_score", "Circular score in [0, 100]."),
		energyStored:   gauge("energy_stored", "Energy held in the city pool."),
		energyGen:      gauge("energy_generated", "Energy generated during the last tick."),
		renewableShare: gauge("energy_renewable_share", "Renewable share of last tick's generation."),
		population:     gauge("population", "Citizens living in the city."),
		employed:       gauge("employed", "Citizens holding a job."),
		buildings:      gauge("buildings", "Placed buildings."),
		pollutionMean:  gauge("pollution_mean", "Mean pollution level across waste types."),
		pollution: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pollution_level", Help: "Pollution level per waste type.",
		}, []string{"waste"}),
		ledger: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ledger_amount", Help: "Ledger stock per resource.",
		}, []string{"resource", "category"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "saves_total", Help: "Save attempts by outcome.",
		}, []string{"result"}),
		saveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "save_duration_seconds", Help: "Time spent writing a save.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	m.reg.MustRegister(
		m.ticks, m.tick, m.money, m.level, m.score,
		m.energyStored, m.energyGen, m.renewableShare,
		m.population, m.employed, m.buildings,
		m.pollutionMean, m.pollution, m.ledger,
		m.saves, m.saveSeconds,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// TickCompleted implements engine.TickObserver.
func (m *Metrics) TickCompleted(s *engine.Simulation, tick uint64) {
	snap := s.Snapshot()
	m.ticks.Inc()
	m.tick.Set(float64(tick))
	m.money.Set(snap.Money)
	m.level.Set(float64(snap.Level))
	m.score.Set(snap.Score)
	m.energyStored.Set(snap.Energy)
	m.energyGen.Set(snap.Generated)
	m.renewableShare.Set(snap.Breakdown.RenewableShare)
	m.population.Set(float64(snap.Population))
	m.employed.Set(float64(snap.Employed))
	m.buildings.Set(float64(snap.BuildingCount))

	p := s.PollutionSnapshot()
	m.pollutionMean.Set(p.Mean)
	for w, lvl := range p.Levels {
		m.pollution.WithLabelValues(w.String()).Set(lvl)
	}

	amounts := s.LedgerSnapshot()
	for _, r := range economy.AllResources() {
		m.ledger.WithLabelValues(r.String(), r.Category().String()).Set(amounts[r])
	}
}

// ObserveSave records one save attempt.
func (m *Metrics) ObserveSave(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
	m.saveSeconds.Observe(d.Seconds())
}
