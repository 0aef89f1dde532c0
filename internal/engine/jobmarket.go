// Job market allocator. assign and release are the only writers of the
// citizen ↔ workplace link; both sides change together or not at all.
package engine

import (
	"fmt"
	"sort"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/policy"
	"github.com/talgya/circular-city/internal/world"
)

// JobSearchRadius bounds the Manhattan distance from home to work.
const JobSearchRadius = 8

type jobCandidate struct {
	b        *buildings.Building
	category policy.JobCategory
	distance int
	order    int // grid scan position
	score    float64
}

// FindJob returns the citizen's workplace, assigning one if the citizen is
// seeking work and an open position exists within reach. A citizen who
// already works is never moved. No candidate is a normal outcome.
func (s *Simulation) FindJob(id agents.CitizenID) (world.BuildingID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findJob(id)
}

func (s *Simulation) findJob(id agents.CitizenID) (world.BuildingID, bool) {
	c := s.Citizens[id]
	if c == nil {
		return world.NoBuilding, false
	}
	if c.Workplace != world.NoBuilding {
		s.mustLinked(c)
		return c.Workplace, true
	}
	if !c.SeekingWork() {
		return world.NoBuilding, false
	}

	home := s.Buildings[c.Residence]
	if home == nil {
		return world.NoBuilding, false
	}

	cands := s.jobCandidates(c, home.Pos)
	if len(cands) == 0 {
		return world.NoBuilding, false
	}
	s.rankCandidates(cands)

	best := cands[0].b
	s.assign(c, best)
	return best.ID, true
}

func (s *Simulation) jobCandidates(c *agents.Citizen, home world.Coord) []jobCandidate {
	var cands []jobCandidate
	order := 0
	s.scanBuildings(func(b *buildings.Building) {
		order++
		if b.Jobs == nil || !b.Jobs.Open() || b.Jobs.Has(c.ID) {
			return
		}
		d := world.Distance(home, b.Pos)
		if d > JobSearchRadius {
			return
		}
		cands = append(cands, jobCandidate{
			b:        b,
			category: b.Spec.JobCategory,
			distance: d,
			order:    order,
		})
	})
	return cands
}

// rankCandidates sorts best-first. With an active workforce distribution
// the category furthest below its desired share wins; otherwise categories
// follow the fixed preference order. Ties go to the nearest building, then
// to scan order.
func (s *Simulation) rankCandidates(cands []jobCandidate) {
	if s.workforcePolicyActive() {
		shares := s.employmentShares()
		for i := range cands {
			cat := cands[i].category
			cands[i].score = s.Policy.Workforce.Share(cat) - shares[cat]
		}
	} else {
		prefs := policy.JobCategories()
		for i := range cands {
			for rank, cat := range prefs {
				if cands[i].category == cat {
					cands[i].score = -float64(rank)
				}
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.order < b.order
	})
}

func (s *Simulation) workforcePolicyActive() bool {
	return s.Policy.Workforce.Enabled && s.Unlocked(FeatureWorkforce)
}

// employmentShares returns the current share of employed citizens per
// category.
func (s *Simulation) employmentShares() map[policy.JobCategory]float64 {
	counts := make(map[policy.JobCategory]int)
	total := 0
	for _, b := range s.Buildings {
		if b.Jobs == nil {
			continue
		}
		n := b.Jobs.Count()
		counts[b.Spec.JobCategory] += n
		total += n
	}
	shares := make(map[policy.JobCategory]float64, len(counts))
	if total == 0 {
		return shares
	}
	for cat, n := range counts {
		shares[cat] = float64(n) / float64(total)
	}
	return shares
}

// assign links c to b on both sides.
func (s *Simulation) assign(c *agents.Citizen, b *buildings.Building) {
	if c.Workplace != world.NoBuilding {
		panic(fmt.Errorf("%w: citizen %d already works at %d", ErrBrokenWorkerLink, c.ID, c.Workplace))
	}
	if !b.Jobs.Hire(c.ID) {
		panic(fmt.Errorf("%w: building %d rejected citizen %d", ErrBrokenWorkerLink, b.ID, c.ID))
	}
	c.Workplace = b.ID
	c.State = agents.StateEmployed
}

// release unlinks c from its workplace on both sides and returns it to the
// state its age implies.
func (s *Simulation) release(c *agents.Citizen) {
	if c.Workplace == world.NoBuilding {
		return
	}
	s.mustLinked(c)
	s.Buildings[c.Workplace].Jobs.Fire(c.ID)
	c.Workplace = world.NoBuilding
	c.State = agents.StateForAge(c.Age)
}

// releaseExcess frees workers beyond b's capacity, newest ids first.
func (s *Simulation) releaseExcess(b *buildings.Building) {
	if b.Jobs == nil {
		return
	}
	for b.Jobs.Excess() > 0 {
		ids := b.Jobs.Workers()
		s.release(s.mustCitizen(ids[len(ids)-1]))
	}
}

// releaseAll frees every worker of b.
func (s *Simulation) releaseAll(b *buildings.Building) {
	if b.Jobs == nil {
		return
	}
	for _, id := range b.Jobs.Workers() {
		s.release(s.mustCitizen(id))
	}
}

// seekJobs offers jobs to every resident of b who is looking for work.
func (s *Simulation) seekJobs(b *buildings.Building) {
	for _, id := range b.Development.Residents() {
		if c := s.Citizens[id]; c != nil && c.SeekingWork() {
			s.findJob(id)
		}
	}
}

func (s *Simulation) mustLinked(c *agents.Citizen) {
	b := s.Buildings[c.Workplace]
	if b == nil || b.Jobs == nil || !b.Jobs.Has(c.ID) || c.State != agents.StateEmployed {
		panic(fmt.Errorf("%w: citizen %d → building %d", ErrBrokenWorkerLink, c.ID, c.Workplace))
	}
}

func (s *Simulation) mustCitizen(id agents.CitizenID) *agents.Citizen {
	c := s.Citizens[id]
	if c == nil {
		panic(fmt.Errorf("%w: building lists unknown citizen %d", ErrBrokenWorkerLink, id))
	}
	return c
}

// CheckInvariants verifies the worker bijection: a citizen's workplace is
// B iff the citizen is in B's worker set, and membership is unique.
func (s *Simulation) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[agents.CitizenID]world.BuildingID)
	for _, b := range s.Buildings {
		if b.Jobs == nil {
			continue
		}
		if b.Jobs.Count() > b.Jobs.MaxWorkers {
			return fmt.Errorf("%w: building %d has %d workers, max %d", ErrBrokenWorkerLink, b.ID, b.Jobs.Count(), b.Jobs.MaxWorkers)
		}
		for _, id := range b.Jobs.Workers() {
			if other, dup := members[id]; dup {
				return fmt.Errorf("%w: citizen %d works at %d and %d", ErrBrokenWorkerLink, id, other, b.ID)
			}
			members[id] = b.ID
			c := s.Citizens[id]
			if c == nil || c.Workplace != b.ID {
				return fmt.Errorf("%w: building %d lists citizen %d", ErrBrokenWorkerLink, b.ID, id)
			}
		}
	}
	for _, c := range s.Citizens {
		employed := c.State == agents.StateEmployed
		if employed != (c.Workplace != world.NoBuilding) {
			return fmt.Errorf("%w: citizen %d state %s workplace %d", ErrBrokenWorkerLink, c.ID, c.State, c.Workplace)
		}
		if employed && members[c.ID] != c.Workplace {
			return fmt.Errorf("%w: citizen %d not in workers of %d", ErrBrokenWorkerLink, c.ID, c.Workplace)
		}
	}
	return nil
}
