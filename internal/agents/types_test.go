package agents_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/entropy"
)

func TestStateForAge(t *testing.T) {
	cases := []struct {
		age  uint16
		want agents.State
	}{
		{0, agents.StateIdle},
		{5, agents.StateIdle},
		{6, agents.StateSchool},
		{17, agents.StateSchool},
		{18, agents.StateUnemployed},
		{64, agents.StateUnemployed},
		{65, agents.StateRetired},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, agents.StateForAge(tc.age), "age %d", tc.age)
	}
}

func TestBirthdayTransitions(t *testing.T) {
	c := &agents.Citizen{Age: 5, State: agents.StateIdle}
	assert.Equal(t, agents.TransitionEnterSchool, agents.Birthday(c))
	assert.Equal(t, agents.StateSchool, c.State)

	c = &agents.Citizen{Age: 17, State: agents.StateSchool}
	assert.Equal(t, agents.TransitionJoinLabour, agents.Birthday(c))
	assert.True(t, c.SeekingWork())

	c = &agents.Citizen{Age: 64, State: agents.StateUnemployed}
	assert.Equal(t, agents.TransitionRetire, agents.Birthday(c))
	assert.Equal(t, agents.StateRetired, c.State)

	// Employed citizens keep their state until the job is released.
	c = &agents.Citizen{Age: 64, State: agents.StateEmployed, Workplace: 3}
	assert.Equal(t, agents.TransitionRetire, agents.Birthday(c))
	assert.Equal(t, agents.StateEmployed, c.State)
	assert.EqualValues(t, 3, c.Workplace)

	c = &agents.Citizen{Age: 30, State: agents.StateEmployed, Workplace: 3}
	assert.Equal(t, agents.TransitionNone, agents.Birthday(c))
}

func TestSpawnerIssuesUniqueAdults(t *testing.T) {
	s := agents.NewSpawner(entropy.New(5))
	seen := map[agents.CitizenID]bool{}
	for i := 0; i < 200; i++ {
		c := s.SpawnResident(9, 10)
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
		assert.GreaterOrEqual(t, c.Age, uint16(agents.WorkingAge))
		assert.Less(t, c.Age, uint16(agents.RetirementAge))
		assert.Equal(t, agents.StateUnemployed, c.State)
		assert.EqualValues(t, 9, c.Residence)
	}
	assert.EqualValues(t, 201, s.NextID())
}
