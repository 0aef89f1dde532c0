// City terrain generation using layered simplex noise.
// Generates elevation and moisture fields, then derives terrain and land value.
package world

import (
	"math/rand"

	"github.com/samber/lo"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Size       int     // Grid edge length (tiles)
	Seed       int64   // Random seed (0 = random)
	WaterLevel float64 // Elevation below which tiles become water (0.0-1.0)
	HillLevel  float64 // Elevation above which tiles become hills (0.0-1.0)
}

// DefaultGenConfig returns the standard 16×16 city.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Size:       16,
		Seed:       0,
		WaterLevel: 0.22,
		HillLevel:  0.78,
	}
}

// FlatConfig returns a grid with no water or hills, used by tests and
// sandbox cities.
func FlatConfig(size int) GenConfig {
	return GenConfig{
		Size:       size,
		Seed:       1,
		WaterLevel: -1,
		HillLevel:  2,
	}
}

// Generate creates a grid with terrain and land value.
func Generate(cfg GenConfig) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Independent noise layers.
	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)

	g := NewGrid(cfg.Size)
	for _, t := range g.Tiles {
		x := float64(t.Coord.X)
		y := float64(t.Coord.Y)

		elev := octaveNoise(elevNoise, x, y, 3, 0.12, 0.5)
		moist := octaveNoise(moistNoise, x, y, 2, 0.10, 0.5)

		t.Terrain = deriveTerrain(elev, moist, cfg)
		// Land value: moderate elevation and greenery are desirable.
		t.LandValue = lo.Clamp(0.3+moist*0.4+(0.5-absf(elev-0.5))*0.4, 0, 1)
	}

	// Post-pass: tiles next to water are more valuable.
	for _, t := range g.Tiles {
		if !t.Terrain.Buildable() {
			continue
		}
		for _, n := range g.Neighbors(t.Coord) {
			if n.Terrain == TerrainWater {
				t.LandValue = lo.Clamp(t.LandValue+0.1, 0, 1)
				break
			}
		}
	}
	return g
}

// deriveTerrain determines terrain type from the noise fields.
func deriveTerrain(elev, moist float64, cfg GenConfig) Terrain {
	if elev < cfg.WaterLevel {
		return TerrainWater
	}
	if elev > cfg.HillLevel {
		return TerrainHills
	}
	if moist > 0.6 {
		return TerrainForest
	}
	return TerrainGrass
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(g *Grid) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range g.Tiles {
		counts[t.Terrain]++
	}
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainGrass:
		return "Grass"
	case TerrainForest:
		return "Forest"
	case TerrainHills:
		return "Hills"
	case TerrainWater:
		return "Water"
	default:
		return "Unknown"
	}
}
