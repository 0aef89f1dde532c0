// Package config loads the citysim configuration: YAML on top of defaults,
// checked against an embedded JSON schema, then environment overrides.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/score"
)

//go:embed config.schema.json
var schemaJSON string

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Terrain modes.
const (
	TerrainGenerated = "generated"
	TerrainFlat      = "flat"
)

// Config is the full runtime configuration of a city process.
type Config struct {
	Seed     uint64 `yaml:"seed"`
	GridSize int    `yaml:"grid_size"`
	Terrain  string `yaml:"terrain"`

	TickMillis int     `yaml:"tick_ms"`
	Speed      float64 `yaml:"speed"`
	SaveEvery  uint64  `yaml:"save_every"` // ticks between saves, 0 = only on exit

	StartingMoney  float64 `yaml:"starting_money"`
	StartingEnergy float64 `yaml:"starting_energy"`

	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"` // optional zstd snapshot written beside the DB
	Port         int    `yaml:"port"`
	LogLevel     string `yaml:"log_level"`

	// Caps overrides ledger caps by resource name; 0 means unbounded.
	Caps    map[string]float64 `yaml:"caps"`
	Weights score.Weights      `yaml:"weights"`
	Policy  policy.Config      `yaml:"policy"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Seed:           42,
		GridSize:       16,
		Terrain:        TerrainGenerated,
		TickMillis:     1000,
		Speed:          1,
		SaveEvery:      100,
		StartingMoney:  5000,
		StartingEnergy: 100,
		DBPath:         "data/citysim.db",
		Port:           8080,
		LogLevel:       "info",
		Weights:        score.DefaultWeights(),
		Policy:         policy.Default(),
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("config.schema.json")
	})
	return schema, schemaErr
}

// Load reads path (when non-empty), applies environment overrides, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if cfg, err = Parse(raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over the defaults after checking it against the schema.
func Parse(raw []byte) (Config, error) {
	cfg := Default()

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return cfg, fmt.Errorf("config yaml: %w", err)
	}
	if doc != nil {
		if err := validateSchema(doc); err != nil {
			return cfg, err
		}
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config yaml: %w", err)
	}
	return cfg, nil
}

// validateSchema checks a decoded YAML document. The document goes through
// JSON first so numbers reach the validator in JSON form.
func validateSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overrides fields from CITYSIM_* variables.
func (c *Config) ApplyEnv() error {
	c.DBPath = envOrDefault("CITYSIM_DB", c.DBPath)
	c.SnapshotPath = envOrDefault("CITYSIM_SNAPSHOT", c.SnapshotPath)
	c.LogLevel = envOrDefault("CITYSIM_LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("CITYSIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: CITYSIM_PORT %q", ErrInvalidConfig, v)
		}
		c.Port = port
	}
	if v := os.Getenv("CITYSIM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: CITYSIM_SEED %q", ErrInvalidConfig, v)
		}
		c.Seed = seed
	}
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	if c.GridSize < 8 {
		return fmt.Errorf("%w: grid_size %d below 8", ErrInvalidConfig, c.GridSize)
	}
	if c.Terrain != TerrainGenerated && c.Terrain != TerrainFlat {
		return fmt.Errorf("%w: terrain %q", ErrInvalidConfig, c.Terrain)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if _, err := c.ResourceCaps(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResourceCaps returns the default caps with the configured overrides.
func (c Config) ResourceCaps() (map[economy.Resource]float64, error) {
	caps := economy.DefaultCaps()
	for name, v := range c.Caps {
		r, err := economy.ParseResource(name)
		if err != nil {
			return nil, err
		}
		caps[r] = v
	}
	return caps, nil
}

// TickInterval is the real-time duration of one tick at speed 1.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Addr is the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
