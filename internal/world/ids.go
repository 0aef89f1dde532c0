package world

// BuildingID identifies a building placed on the grid. Zero means "none".
type BuildingID uint64

// NoBuilding is the zero BuildingID.
const NoBuilding BuildingID = 0
