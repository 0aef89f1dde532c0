// Starter site selection: finds the best open area for a new city's first
// buildings.
package world

import "sort"

// FindStarterSite returns the top-left corner of the span×span block of
// buildable tiles with the highest total land value. ok is false when no
// fully buildable block exists.
func FindStarterSite(g *Grid, span int) (Coord, bool) {
	type scored struct {
		coord Coord
		score float64
	}
	var candidates []scored

	for y := 0; y+span <= g.Size; y++ {
		for x := 0; x+span <= g.Size; x++ {
			score, buildable := blockScore(g, Coord{X: x, Y: y}, span)
			if buildable {
				candidates = append(candidates, scored{Coord{X: x, Y: y}, score})
			}
		}
	}
	if len(candidates) == 0 {
		return Coord{}, false
	}

	// Highest score first; ties resolve to scan order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates[0].coord, true
}

func blockScore(g *Grid, origin Coord, span int) (float64, bool) {
	total := 0.0
	for dy := 0; dy < span; dy++ {
		for dx := 0; dx < span; dx++ {
			t := g.Get(Coord{X: origin.X + dx, Y: origin.Y + dy})
			if t == nil || !t.Terrain.Buildable() || !t.Empty() {
				return 0, false
			}
			total += t.LandValue
		}
	}
	return total, true
}
