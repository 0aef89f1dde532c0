package buildings

import (
	"sort"

	"github.com/talgya/circular-city/internal/economy"
)

// Recipe is a static production rule. RequiredLevel gates on the building's
// own level, never on the city level.
type Recipe struct {
	ID            string
	Kind          Kind
	Inputs        map[economy.Resource]float64
	Outputs       map[economy.Resource]float64
	Waste         map[economy.WasteType]float64
	Duration      float64 // ticks at efficiency 1.0
	RequiredLevel int
	XP            float64
}

// TotalInputs is the summed quantity of all inputs.
func (r *Recipe) TotalInputs() float64 {
	var n float64
	for _, q := range r.Inputs {
		n += q
	}
	return n
}

// SecondaryInputs is the summed quantity of recycled-category inputs.
func (r *Recipe) SecondaryInputs() float64 {
	var n float64
	for in, q := range r.Inputs {
		if in.Category() == economy.CategoryRecycled {
			n += q
		}
	}
	return n
}

// UsesSecondary reports whether any input is a recycled material.
func (r *Recipe) UsesSecondary() bool {
	return r.SecondaryInputs() > 0
}

// TotalOutputs is the summed quantity of all outputs.
func (r *Recipe) TotalOutputs() float64 {
	var n float64
	for _, q := range r.Outputs {
		n += q
	}
	return n
}

// Open reports whether a building at level may run the recipe.
func (r *Recipe) Open(level int) bool {
	return r.RequiredLevel <= level
}

type res = economy.Resource

var recipeTable = []*Recipe{
	// Textiles
	{ID: "textile-basic", Kind: KindTextileFactory,
		Inputs: map[res]float64{economy.RawFabric: 2}, Outputs: map[res]float64{economy.Clothing: 1},
		Waste: map[economy.WasteType]float64{economy.WasteTextile: 1}, Duration: 3, RequiredLevel: 1, XP: 5},
	{ID: "textile-recycled", Kind: KindTextileFactory,
		Inputs: map[res]float64{economy.RecycledFabric: 2}, Outputs: map[res]float64{economy.Clothing: 1},
		Waste: map[economy.WasteType]float64{economy.WasteTextile: 0.5}, Duration: 4, RequiredLevel: 2, XP: 7},
	{ID: "textile-premium", Kind: KindTextileFactory,
		Inputs: map[res]float64{economy.RawFabric: 3, economy.RecycledFabric: 1}, Outputs: map[res]float64{economy.Clothing: 3},
		Waste: map[economy.WasteType]float64{economy.WasteTextile: 1}, Duration: 6, RequiredLevel: 3, XP: 12},
	{ID: "textile-circular", Kind: KindTextileFactory,
		Inputs: map[res]float64{economy.RecycledFabric: 4}, Outputs: map[res]float64{economy.Clothing: 3},
		Waste: map[economy.WasteType]float64{economy.WasteTextile: 0.5}, Duration: 6, RequiredLevel: 4, XP: 16},

	// Steel
	{ID: "steel-basic", Kind: KindSteelMill,
		Inputs: map[res]float64{economy.IronOre: 3}, Outputs: map[res]float64{economy.Steel: 1},
		Waste: map[economy.WasteType]float64{economy.WasteScrapMetal: 1}, Duration: 4, RequiredLevel: 1, XP: 6},
	{ID: "steel-recycled", Kind: KindSteelMill,
		Inputs: map[res]float64{economy.RecycledMetal: 3}, Outputs: map[res]float64{economy.Steel: 1},
		Waste: map[economy.WasteType]float64{economy.WasteScrapMetal: 0.5}, Duration: 5, RequiredLevel: 2, XP: 8},
	{ID: "steel-premium", Kind: KindSteelMill,
		Inputs: map[res]float64{economy.IronOre: 3, economy.RecycledMetal: 2}, Outputs: map[res]float64{economy.Steel: 3},
		Waste: map[economy.WasteType]float64{economy.WasteScrapMetal: 1}, Duration: 7, RequiredLevel: 3, XP: 15},
	{ID: "steel-circular", Kind: KindSteelMill,
		Inputs: map[res]float64{economy.RecycledMetal: 5}, Outputs: map[res]float64{economy.Steel: 3},
		Waste: map[economy.WasteType]float64{economy.WasteScrapMetal: 0.5}, Duration: 7, RequiredLevel: 4, XP: 20},

	// Electronics
	{ID: "electronics-basic", Kind: KindElectronicsFactory,
		Inputs: map[res]float64{economy.Silicon: 2, economy.Steel: 1}, Outputs: map[res]float64{economy.Electronics: 1},
		Waste: map[economy.WasteType]float64{economy.WasteElectronic: 1}, Duration: 5, RequiredLevel: 1, XP: 10},
	{ID: "electronics-recycled", Kind: KindElectronicsFactory,
		Inputs: map[res]float64{economy.RecycledElectronics: 2, economy.Silicon: 1}, Outputs: map[res]float64{economy.Electronics: 1},
		Waste: map[economy.WasteType]float64{economy.WasteElectronic: 0.5}, Duration: 6, RequiredLevel: 2, XP: 12},
	{ID: "electronics-premium", Kind: KindElectronicsFactory,
		Inputs: map[res]float64{economy.Silicon: 3, economy.RecycledElectronics: 2, economy.Steel: 1}, Outputs: map[res]float64{economy.Electronics: 3},
		Waste: map[economy.WasteType]float64{economy.WasteElectronic: 1}, Duration: 8, RequiredLevel: 3, XP: 25},
	{ID: "electronics-circular", Kind: KindElectronicsFactory,
		Inputs: map[res]float64{economy.RecycledElectronics: 4, economy.RecycledMetal: 1}, Outputs: map[res]float64{economy.Electronics: 3},
		Waste: map[economy.WasteType]float64{economy.WasteElectronic: 0.5}, Duration: 8, RequiredLevel: 4, XP: 30},

	// Plastics
	{ID: "plastic-basic", Kind: KindPlasticFactory,
		Inputs: map[res]float64{economy.PlasticPellets: 2}, Outputs: map[res]float64{economy.PlasticGoods: 1},
		Waste: map[economy.WasteType]float64{economy.WastePlastic: 1}, Duration: 3, RequiredLevel: 1, XP: 4},
	{ID: "plastic-recycled", Kind: KindPlasticFactory,
		Inputs: map[res]float64{economy.RecycledPlastic: 2}, Outputs: map[res]float64{economy.PlasticGoods: 1},
		Waste: map[economy.WasteType]float64{economy.WastePlastic: 0.5}, Duration: 4, RequiredLevel: 2, XP: 6},
	{ID: "plastic-premium", Kind: KindPlasticFactory,
		Inputs: map[res]float64{economy.PlasticPellets: 3, economy.RecycledPlastic: 1}, Outputs: map[res]float64{economy.PlasticGoods: 3},
		Waste: map[economy.WasteType]float64{economy.WastePlastic: 1}, Duration: 6, RequiredLevel: 3, XP: 12},
	{ID: "plastic-circular", Kind: KindPlasticFactory,
		Inputs: map[res]float64{economy.RecycledPlastic: 4}, Outputs: map[res]float64{economy.PlasticGoods: 3},
		Waste: map[economy.WasteType]float64{economy.WastePlastic: 0.5}, Duration: 6, RequiredLevel: 4, XP: 16},
}

var (
	recipesByID   = map[string]*Recipe{}
	recipesByKind = map[Kind][]*Recipe{}
)

func init() {
	for _, r := range recipeTable {
		recipesByID[r.ID] = r
		recipesByKind[r.Kind] = append(recipesByKind[r.Kind], r)
	}
	// Highest RequiredLevel first; refill scans in this order.
	for _, list := range recipesByKind {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].RequiredLevel > list[j].RequiredLevel
		})
	}
}

// RecipeByID looks up a recipe.
func RecipeByID(id string) (*Recipe, bool) {
	r, ok := recipesByID[id]
	return r, ok
}

// RecipesFor returns the recipes a kind can run, hardest first.
func RecipesFor(kind Kind) []*Recipe {
	return recipesByKind[kind]
}

// AllRecipes returns the full table in declaration order.
func AllRecipes() []*Recipe {
	return recipeTable
}
