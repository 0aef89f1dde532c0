// Package agents provides the citizen data model and lifecycle rules.
package agents

import (
	"github.com/talgya/circular-city/internal/world"
)

// CitizenID is a unique identifier for a citizen.
type CitizenID uint64

// State is a citizen's place in the labour lifecycle.
type State uint8

const (
	StateIdle       State = iota // Young child
	StateSchool                  // School age
	StateUnemployed              // Working age, no job
	StateEmployed                // Working age, member of a workplace
	StateRetired                 // Past working age
)

// Age thresholds in sim-years.
const (
	SchoolAge     = 6
	WorkingAge    = 18
	RetirementAge = 65
)

var stateNames = [...]string{"idle", "school", "unemployed", "employed", "retired"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Citizen is a resident of the city.
//
// Workplace is non-zero iff State == StateEmployed, and then the citizen's
// id is in that building's worker set. Only the job market allocator
// writes Workplace.
type Citizen struct {
	ID        CitizenID        `json:"id"`
	Age       uint16           `json:"age"`
	State     State            `json:"state"`
	Residence world.BuildingID `json:"residence"`
	Workplace world.BuildingID `json:"workplace,omitempty"`
	BornTick  uint64           `json:"born_tick"`
}

// Employed reports whether the citizen holds a job.
func (c *Citizen) Employed() bool {
	return c.State == StateEmployed
}

// SeekingWork reports whether the citizen should be offered jobs.
func (c *Citizen) SeekingWork() bool {
	return c.State == StateUnemployed
}

// StateForAge returns the lifecycle state a citizen of the given age would
// have if unemployed. Working-age citizens map to StateUnemployed.
func StateForAge(age uint16) State {
	switch {
	case age < SchoolAge:
		return StateIdle
	case age < WorkingAge:
		return StateSchool
	case age >= RetirementAge:
		return StateRetired
	default:
		return StateUnemployed
	}
}

// Transition describes what aging one year means for a citizen.
type Transition uint8

const (
	TransitionNone       Transition = iota
	TransitionEnterSchool           // idle → school
	TransitionJoinLabour            // school → unemployed
	TransitionRetire                // unemployed/employed → retired (job must be released first)
)

// Birthday ages c by one year and returns the resulting transition. It
// never touches Workplace: a retiring employed citizen keeps its job link
// until the allocator releases it, and only then moves to StateRetired.
func Birthday(c *Citizen) Transition {
	c.Age++
	next := StateForAge(c.Age)
	switch {
	case c.State == StateIdle && next == StateSchool:
		c.State = StateSchool
		return TransitionEnterSchool
	case c.State == StateSchool && next == StateUnemployed:
		c.State = StateUnemployed
		return TransitionJoinLabour
	case (c.State == StateUnemployed || c.State == StateEmployed) && next == StateRetired:
		if c.State == StateUnemployed {
			c.State = StateRetired
		}
		return TransitionRetire
	}
	return TransitionNone
}
