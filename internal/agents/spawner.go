// Citizen spawning: residential growth creates working-age adults.
package agents

import (
	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/world"
)

// Spawner creates citizens with unique ids.
type Spawner struct {
	rng    entropy.Source
	nextID CitizenID
}

// NewSpawner creates a spawner drawing ages from rng.
func NewSpawner(rng entropy.Source) *Spawner {
	return &Spawner{
		rng:    rng,
		nextID: 1,
	}
}

// SetNextID sets the next citizen id to be issued (used when restoring).
func (s *Spawner) SetNextID(id CitizenID) {
	s.nextID = id
}

// NextID returns the id the next spawned citizen will receive.
func (s *Spawner) NextID() CitizenID {
	return s.nextID
}

// SpawnResident creates an unemployed adult living in residence.
// Ages are uniform over 18-59 so nobody retires on arrival.
func (s *Spawner) SpawnResident(residence world.BuildingID, tick uint64) *Citizen {
	id := s.nextID
	s.nextID++

	age := uint16(WorkingAge + s.rng.Intn(RetirementAge-WorkingAge-5))
	return &Citizen{
		ID:        id,
		Age:       age,
		State:     StateUnemployed,
		Residence: residence,
		BornTick:  tick,
	}
}
