// Package economy provides the resource ledger, market prices, and trade.
// The resource universe is closed: every name is known at compile time.
package economy

import (
	"errors"
	"fmt"
)

// ErrUnknownResource marks a resource name or id outside the closed universe.
// It indicates a data-table mismatch and is never a normal game condition.
var ErrUnknownResource = errors.New("unknown resource")

// Resource enumerates every quantity the ledger can hold.
type Resource uint8

const (
	// Raw materials.
	RawFabric Resource = iota
	IronOre
	Silicon
	PlasticPellets
	OrganicMatter

	// Products.
	Clothing
	Steel
	Electronics
	PlasticGoods
	Food

	// Waste.
	TextileWaste
	EWaste
	ScrapMetal
	OrganicWaste
	PlasticWaste

	// Recycled materials.
	RecycledFabric
	RecycledElectronics
	RecycledMetal
	Compost
	RecycledPlastic
)

// NumResources is the size of the resource universe.
const NumResources = 20

// Category groups resources for caps, market rules, and scoring.
type Category uint8

const (
	CategoryRaw Category = iota
	CategoryProduct
	CategoryWaste
	CategoryRecycled
)

var categoryNames = [...]string{"raw", "product", "waste", "recycled"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

var resourceNames = [NumResources]string{
	RawFabric:           "raw-fabric",
	IronOre:             "iron-ore",
	Silicon:             "silicon",
	PlasticPellets:      "plastic-pellets",
	OrganicMatter:       "organic-matter",
	Clothing:            "clothing",
	Steel:               "steel",
	Electronics:         "electronics",
	PlasticGoods:        "plastic-goods",
	Food:                "food",
	TextileWaste:        "textile-waste",
	EWaste:              "e-waste",
	ScrapMetal:          "scrap-metal",
	OrganicWaste:        "organic-waste",
	PlasticWaste:        "plastic-waste",
	RecycledFabric:      "recycled-fabric",
	RecycledElectronics: "recycled-electronics",
	RecycledMetal:       "recycled-metal",
	Compost:             "compost",
	RecycledPlastic:     "recycled-plastic",
}

var resourceIndex = func() map[string]Resource {
	idx := make(map[string]Resource, NumResources)
	for i, name := range resourceNames {
		idx[name] = Resource(i)
	}
	return idx
}()

// AllResources lists the universe in declaration order.
func AllResources() []Resource {
	out := make([]Resource, NumResources)
	for i := range out {
		out[i] = Resource(i)
	}
	return out
}

// Valid reports whether r is inside the universe.
func (r Resource) Valid() bool {
	return int(r) < NumResources
}

// String returns the ledger name, e.g. "raw-fabric".
func (r Resource) String() string {
	if !r.Valid() {
		return fmt.Sprintf("resource(%d)", uint8(r))
	}
	return resourceNames[r]
}

// Category returns the resource's category. Resources are declared in
// blocks of five per category.
func (r Resource) Category() Category {
	mustValid(r)
	return Category(uint8(r) / 5)
}

// MarshalText encodes the resource by name so maps keyed by Resource
// serialize as readable JSON/YAML objects.
func (r Resource) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownResource, uint8(r))
	}
	return []byte(resourceNames[r]), nil
}

// UnmarshalText decodes a resource name.
func (r *Resource) UnmarshalText(text []byte) error {
	parsed, err := ParseResource(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseResource resolves a ledger name to its Resource.
func ParseResource(name string) (Resource, error) {
	r, ok := resourceIndex[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return r, nil
}

// MustResource is ParseResource for static tables; it panics on unknown names.
func MustResource(name string) Resource {
	r, err := ParseResource(name)
	if err != nil {
		panic(err)
	}
	return r
}

// WasteType is the closed enum of local waste kinds.
type WasteType uint8

const (
	WasteTextile WasteType = iota
	WasteElectronic
	WasteScrapMetal
	WasteOrganic
	WastePlastic
)

// NumWasteTypes is the number of waste kinds.
const NumWasteTypes = 5

var wasteTypeNames = [NumWasteTypes]string{"textile", "e-waste", "scrap-metal", "organic", "plastic"}

// AllWasteTypes lists waste types in their fixed processing order.
func AllWasteTypes() []WasteType {
	return []WasteType{WasteTextile, WasteElectronic, WasteScrapMetal, WasteOrganic, WastePlastic}
}

func (w WasteType) String() string {
	if int(w) >= NumWasteTypes {
		return fmt.Sprintf("waste(%d)", uint8(w))
	}
	return wasteTypeNames[w]
}

// MarshalText encodes the waste type by name.
func (w WasteType) MarshalText() ([]byte, error) {
	if int(w) >= NumWasteTypes {
		return nil, fmt.Errorf("%w: waste type %d", ErrUnknownResource, uint8(w))
	}
	return []byte(wasteTypeNames[w]), nil
}

// UnmarshalText decodes a waste type name.
func (w *WasteType) UnmarshalText(text []byte) error {
	for i, name := range wasteTypeNames {
		if name == string(text) {
			*w = WasteType(i)
			return nil
		}
	}
	return fmt.Errorf("%w: waste type %q", ErrUnknownResource, string(text))
}

// Resource returns the ledger resource that stores this waste type.
func (w WasteType) Resource() Resource {
	return TextileWaste + Resource(w)
}

// Recycled returns the material produced by recycling this waste type.
func (w WasteType) Recycled() Resource {
	return RecycledFabric + Resource(w)
}

func mustValid(r Resource) {
	if !r.Valid() {
		panic(fmt.Errorf("%w: %d", ErrUnknownResource, uint8(r)))
	}
}
