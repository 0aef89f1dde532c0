// Command citysim runs the circular city economic simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/circular-city/internal/api"
	"github.com/talgya/circular-city/internal/config"
	"github.com/talgya/circular-city/internal/engine"
	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/metrics"
	"github.com/talgya/circular-city/internal/persistence"
	"github.com/talgya/circular-city/internal/world"
)

func main() {
	configPath := flag.String("config", envOrDefault("CITYSIM_CONFIG", ""), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("circular city starting",
		"seed", cfg.Seed,
		"grid", cfg.GridSize,
		"terrain", cfg.Terrain,
		"tick", cfg.TickInterval(),
	)

	if err := run(cfg); err != nil {
		slog.Error("citysim stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	sinks := []persistence.Sink{db}
	if cfg.SnapshotPath != "" {
		sinks = append(sinks, &persistence.SnapshotFile{Path: cfg.SnapshotPath})
	}

	// ── City map (always regenerated, deterministic from seed) ────────
	grid := generateGrid(cfg)
	for t, c := range world.TerrainCounts(grid) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	caps, err := cfg.ResourceCaps()
	if err != nil {
		return err
	}
	opts := engine.Options{
		Seed:           cfg.Seed,
		Grid:           grid,
		RNG:            entropy.New(cfg.Seed),
		Policy:         cfg.Policy,
		Weights:        cfg.Weights,
		Caps:           caps,
		StartingMoney:  cfg.StartingMoney,
		StartingEnergy: cfg.StartingEnergy,
	}

	// ── Load or found the city ────────────────────────────────────────
	sim, err := loadOrFound(ctx, db, opts)
	if err != nil {
		return err
	}

	m := metrics.New()
	sim.AddObserver(m)

	save := func(reason string) {
		g := sim.Export()
		for _, sink := range sinks {
			start := time.Now()
			// Saves run to completion even while shutting down.
			err := sink.Save(context.WithoutCancel(ctx), g)
			m.ObserveSave(time.Since(start), err)
			if err != nil {
				slog.Error("save failed", "reason", reason, "sink", fmt.Sprintf("%T", sink), "error", err)
			}
		}
		slog.Info("city saved", "reason", reason, "tick", g.Tick, "money", humanize.CommafWithDigits(g.Totals.Money, 0))
	}
	if sim.CurrentTick() == 0 {
		save("founded")
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = sim.CurrentTick()
	eng.SetSpeed(cfg.Speed)
	eng.Interval = cfg.TickInterval()
	eng.SaveEvery = cfg.SaveEvery
	eng.OnTick = sim.Simulate
	eng.OnReport = sim.Report
	eng.OnSave = func(tick uint64) { save("periodic") }

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := api.NewServer(sim, eng, m, cfg.Port, 10)
	apiServer.Start()

	fmt.Printf("\nCircular city is running: %d buildings, level %d.\n", len(sim.BuildingSnapshots()), sim.Snapshot().Level)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	if eng.Tick > 0 {
		fmt.Printf("Resuming from tick %d\n", eng.Tick)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API shutdown", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	save("shutdown")
	fmt.Println("Simulation stopped. City saved.")
	return nil
}

func generateGrid(cfg config.Config) *world.Grid {
	gen := world.DefaultGenConfig()
	if cfg.Terrain == config.TerrainFlat {
		gen = world.FlatConfig(cfg.GridSize)
	}
	gen.Size = cfg.GridSize
	gen.Seed = int64(cfg.Seed)
	return world.Generate(gen)
}

// loadOrFound restores the saved city or founds a new one on the best
// starter site.
func loadOrFound(ctx context.Context, db *persistence.DB, opts engine.Options) (*engine.Simulation, error) {
	g, err := db.Load(ctx)
	switch {
	case err == nil:
		slog.Info("found saved city, loading...", "tick", g.Tick, "buildings", len(g.Buildings))
		sim, err := engine.Restore(g, opts)
		if err != nil {
			return nil, fmt.Errorf("restore city: %w", err)
		}
		return sim, nil
	case !errors.Is(err, persistence.ErrNoSave):
		return nil, fmt.Errorf("load city: %w", err)
	}

	slog.Info("no saved city found, founding a new one...")
	sim := engine.NewSimulation(opts)
	site, ok := world.FindStarterSite(opts.Grid, engine.StarterSpan)
	if !ok {
		return nil, errors.New("no buildable starter site on this map")
	}
	if err := sim.SeedStarterCity(site); err != nil {
		return nil, err
	}
	slog.Info("city founded", "site", site, "money", humanize.CommafWithDigits(sim.Snapshot().Money, 0))
	return sim, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
