// Package world provides the city grid, terrain, and spatial helpers.
// The city is an N×N grid of square tiles addressed by (x, y).
package world

import "fmt"

// Coord is a tile position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Terrain types for grid tiles.
type Terrain uint8

const (
	TerrainGrass  Terrain = iota // Buildable, average land value
	TerrainForest                // Buildable, high land value for housing
	TerrainHills                 // Buildable, low land value
	TerrainWater                 // Not buildable
)

// Buildable reports whether a building may be placed on the terrain.
func (t Terrain) Buildable() bool {
	return t != TerrainWater
}

// Tile is a single grid cell. It owns at most one building.
type Tile struct {
	Coord   Coord   `json:"coord"`
	Terrain Terrain `json:"terrain"`

	// LandValue in [0, 1] scales residential growth.
	LandValue float64 `json:"land_value"`

	// Occupant is the id of the building on this tile, 0 when empty.
	Occupant BuildingID `json:"occupant,omitempty"`
}

// Empty reports whether the tile holds no building.
func (t *Tile) Empty() bool {
	return t.Occupant == NoBuilding
}

// Grid holds the complete tile state of the city.
type Grid struct {
	Size  int     `json:"size"`
	Tiles []*Tile `json:"-"` // Row-major: index = y*Size + x
}

// NewGrid creates a size×size grid of grass tiles.
func NewGrid(size int) *Grid {
	g := &Grid{
		Size:  size,
		Tiles: make([]*Tile, size*size),
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g.Tiles[y*size+x] = &Tile{
				Coord:     Coord{X: x, Y: y},
				Terrain:   TerrainGrass,
				LandValue: 0.5,
			}
		}
	}
	return g
}

// InBounds returns true if the coordinate lies on the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Size && c.Y < g.Size
}

// Get returns the tile at c, or nil if out of bounds.
func (g *Grid) Get(c Coord) *Tile {
	if !g.InBounds(c) {
		return nil
	}
	return g.Tiles[c.Y*g.Size+c.X]
}

// Scan calls fn for every tile in grid scan order (row by row, left to
// right). This is the only iteration order the simulation uses, so results
// never depend on insertion order.
func (g *Grid) Scan(fn func(t *Tile)) {
	for _, t := range g.Tiles {
		fn(t)
	}
}

// NeighborDirections are the four orthogonal offsets.
var NeighborDirections = [4]Coord{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// Neighbors returns the orthogonal neighbours of c that lie on the grid.
func (g *Grid) Neighbors(c Coord) []*Tile {
	out := make([]*Tile, 0, 4)
	for _, d := range NeighborDirections {
		if t := g.Get(Coord{X: c.X + d.X, Y: c.Y + d.Y}); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Distance returns the Manhattan distance between two coordinates.
func Distance(a, b Coord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// TileCount returns the total number of tiles.
func (g *Grid) TileCount() int {
	return len(g.Tiles)
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(size=%d, tiles=%d)", g.Size, g.TileCount())
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
