// Package persistence stores saved cities: a SQLite database for the host
// process and a compressed snapshot file for exports.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/circular-city/internal/economy"
)

// DB wraps a SQLite connection for city persistence.
type DB struct {
	conn *sqlx.DB
}

var _ Sink = (*DB)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buildings (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		kind TEXT NOT NULL,
		level INTEGER NOT NULL,
		style TEXT NOT NULL,
		development_level INTEGER NOT NULL,
		waste REAL NOT NULL,
		queue_json TEXT NOT NULL,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS ledger (
		resource TEXT PRIMARY KEY,
		amount REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pollution (
		waste_type TEXT PRIMARY KEY,
		level REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type buildingRow struct {
	X                int     `db:"x"`
	Y                int     `db:"y"`
	Kind             string  `db:"kind"`
	Level            int     `db:"level"`
	Style            string  `db:"style"`
	DevelopmentLevel int     `db:"development_level"`
	Waste            float64 `db:"waste"`
	QueueJSON        string  `db:"queue_json"`
}

// Save writes g as the current game (full replace). Events newer than the
// last saved event are appended.
func (db *DB) Save(ctx context.Context, g *SaveGame) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveBuildings(ctx, tx, g.Buildings); err != nil {
		return fmt.Errorf("save buildings: %w", err)
	}
	if err := saveLedger(ctx, tx, g.Ledger); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := savePollution(ctx, tx, g.Pollution); err != nil {
		return fmt.Errorf("save pollution: %w", err)
	}
	if err := saveEvents(ctx, tx, g.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := saveMeta(ctx, tx, g); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("city saved", "tick", g.Tick, "buildings", len(g.Buildings))
	return nil
}

func saveBuildings(ctx context.Context, tx *sqlx.Tx, recs []BuildingRecord) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM buildings"); err != nil {
		return err
	}
	for _, b := range recs {
		queue, err := json.Marshal(b.Inventory.Queue)
		if err != nil {
			return err
		}
		row := buildingRow{
			X: b.X, Y: b.Y, Kind: b.Kind, Level: b.Level, Style: b.Style,
			DevelopmentLevel: b.DevelopmentLevel,
			Waste:            b.Inventory.Waste,
			QueueJSON:        string(queue),
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO buildings
			(x, y, kind, level, style, development_level, waste, queue_json)
			VALUES (:x, :y, :kind, :level, :style, :development_level, :waste, :queue_json)`, row)
		if err != nil {
			return fmt.Errorf("insert building at (%d,%d): %w", b.X, b.Y, err)
		}
	}
	return nil
}

func saveLedger(ctx context.Context, tx *sqlx.Tx, ledger map[economy.Resource]float64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger"); err != nil {
		return err
	}
	for r, amt := range ledger {
		if _, err := tx.ExecContext(ctx, "INSERT INTO ledger (resource, amount) VALUES (?, ?)", r.String(), amt); err != nil {
			return err
		}
	}
	return nil
}

func savePollution(ctx context.Context, tx *sqlx.Tx, levels map[economy.WasteType]float64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM pollution"); err != nil {
		return err
	}
	for w, lvl := range levels {
		if _, err := tx.ExecContext(ctx, "INSERT INTO pollution (waste_type, level) VALUES (?, ?)", w.String(), lvl); err != nil {
			return err
		}
	}
	return nil
}

func saveEvents(ctx context.Context, tx *sqlx.Tx, events []EventRecord) error {
	var through uint64
	var v string
	err := tx.GetContext(ctx, &v, "SELECT value FROM world_meta WHERE key = 'events_through'")
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		through, _ = strconv.ParseUint(v, 10, 64)
	}

	last := through
	for _, e := range events {
		if e.Tick <= through {
			continue
		}
		_, err := tx.NamedExecContext(ctx,
			"INSERT INTO events (tick, description, category) VALUES (:tick, :description, :category)", e)
		if err != nil {
			return err
		}
		last = max(last, e.Tick)
	}
	return putMeta(ctx, tx, "events_through", strconv.FormatUint(last, 10))
}

func saveMeta(ctx context.Context, tx *sqlx.Tx, g *SaveGame) error {
	policyJSON, err := json.Marshal(g.Policy)
	if err != nil {
		return err
	}
	countersJSON, err := json.Marshal(g.Counters)
	if err != nil {
		return err
	}
	penaltiesJSON, err := json.Marshal(g.Penalties)
	if err != nil {
		return err
	}
	meta := map[string]string{
		"id":             g.ID.String(),
		"version":        strconv.Itoa(g.Version),
		"tick":           strconv.FormatUint(g.Tick, 10),
		"seed":           strconv.FormatUint(g.Seed, 10),
		"grid_size":      strconv.Itoa(g.GridSize),
		"money":            strconv.FormatFloat(g.Totals.Money, 'g', -1, 64),
		"energy":           strconv.FormatFloat(g.Totals.Energy, 'g', -1, 64),
		"energy_generated": strconv.FormatFloat(g.Totals.EnergyGenerated, 'g', -1, 64),
		"energy_renewable": strconv.FormatFloat(g.Totals.EnergyRenewable, 'g', -1, 64),
		"level":            strconv.Itoa(g.Totals.Level),
		"xp":               strconv.FormatFloat(g.Totals.XP, 'g', -1, 64),
		"circular_score":   strconv.FormatFloat(g.Totals.CircularScore, 'g', -1, 64),
		"policy":           string(policyJSON),
		"counters":         string(countersJSON),
		"penalties":        string(penaltiesJSON),
	}
	for k, v := range meta {
		if err := putMeta(ctx, tx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func putMeta(ctx context.Context, tx *sqlx.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// Load reads the current game. It returns ErrNoSave for a fresh database.
func (db *DB) Load(ctx context.Context) (*SaveGame, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT key, value FROM world_meta"); err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}
	if _, ok := meta["tick"]; !ok {
		return nil, ErrNoSave
	}

	g := &SaveGame{
		Ledger:    make(map[economy.Resource]float64),
		Pollution: make(map[economy.WasteType]float64),
	}
	var err error
	p := metaParser{meta: meta}
	g.ID = p.asUUID("id")
	g.Version = p.asInt("version")
	g.Tick = p.asUint("tick")
	g.Seed = p.asUint("seed")
	g.GridSize = p.asInt("grid_size")
	g.Totals = Totals{
		Money:           p.asFloat("money"),
		Energy:          p.asFloat("energy"),
		EnergyGenerated: p.optFloat("energy_generated"),
		EnergyRenewable: p.optFloat("energy_renewable"),
		Level:           p.asInt("level"),
		XP:              p.asFloat("xp"),
		CircularScore:   p.asFloat("circular_score"),
	}
	if p.err != nil {
		return nil, fmt.Errorf("load meta: %w", p.err)
	}
	if err = json.Unmarshal([]byte(meta["policy"]), &g.Policy); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if raw, ok := meta["counters"]; ok {
		if err = json.Unmarshal([]byte(raw), &g.Counters); err != nil {
			return nil, fmt.Errorf("load counters: %w", err)
		}
	}
	if raw, ok := meta["penalties"]; ok {
		if err = json.Unmarshal([]byte(raw), &g.Penalties); err != nil {
			return nil, fmt.Errorf("load penalties: %w", err)
		}
	}

	if g.Buildings, err = db.loadBuildings(ctx); err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}
	if err = db.loadLedger(ctx, g.Ledger); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if err = db.loadPollution(ctx, g.Pollution); err != nil {
		return nil, fmt.Errorf("load pollution: %w", err)
	}
	if g.Events, err = db.RecentEvents(ctx, 200); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return g, nil
}

func (db *DB) loadBuildings(ctx context.Context) ([]BuildingRecord, error) {
	var rows []buildingRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM buildings ORDER BY y, x"); err != nil {
		return nil, err
	}
	out := make([]BuildingRecord, 0, len(rows))
	for _, r := range rows {
		rec := BuildingRecord{
			X: r.X, Y: r.Y, Kind: r.Kind, Level: r.Level, Style: r.Style,
			DevelopmentLevel: r.DevelopmentLevel,
			Inventory:        Inventory{Waste: r.Waste},
		}
		if err := json.Unmarshal([]byte(r.QueueJSON), &rec.Inventory.Queue); err != nil {
			return nil, fmt.Errorf("building at (%d,%d): %w", r.X, r.Y, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (db *DB) loadLedger(ctx context.Context, into map[economy.Resource]float64) error {
	var rows []struct {
		Resource string  `db:"resource"`
		Amount   float64 `db:"amount"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT resource, amount FROM ledger"); err != nil {
		return err
	}
	for _, r := range rows {
		res, err := economy.ParseResource(r.Resource)
		if err != nil {
			return err
		}
		into[res] = r.Amount
	}
	return nil
}

func (db *DB) loadPollution(ctx context.Context, into map[economy.WasteType]float64) error {
	var rows []struct {
		WasteType string  `db:"waste_type"`
		Level     float64 `db:"level"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT waste_type, level FROM pollution"); err != nil {
		return err
	}
	for _, r := range rows {
		var w economy.WasteType
		if err := w.UnmarshalText([]byte(r.WasteType)); err != nil {
			return err
		}
		into[w] = r.Level
	}
	return nil
}

// RecentEvents returns the most recent n events, oldest first.
func (db *DB) RecentEvents(ctx context.Context, n int) ([]EventRecord, error) {
	var events []EventRecord
	err := db.conn.SelectContext(ctx, &events,
		"SELECT tick, description, category FROM (SELECT * FROM events ORDER BY id DESC LIMIT ?) ORDER BY id ASC", n)
	return events, err
}

// metaParser decodes world_meta values, keeping the first error.
type metaParser struct {
	meta map[string]string
	err  error
}

func (p *metaParser) keep(key string, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (p *metaParser) asInt(key string) int {
	v, err := strconv.Atoi(p.meta[key])
	p.keep(key, err)
	return v
}

func (p *metaParser) asUint(key string) uint64 {
	v, err := strconv.ParseUint(p.meta[key], 10, 64)
	p.keep(key, err)
	return v
}

func (p *metaParser) asFloat(key string) float64 {
	v, err := strconv.ParseFloat(p.meta[key], 64)
	p.keep(key, err)
	return v
}

// optFloat is asFloat for keys that older saves may lack.
func (p *metaParser) optFloat(key string) float64 {
	if _, ok := p.meta[key]; !ok {
		return 0
	}
	return p.asFloat(key)
}

func (p *metaParser) asUUID(key string) uuid.UUID {
	v, err := uuid.Parse(p.meta[key])
	p.keep(key, err)
	return v
}
