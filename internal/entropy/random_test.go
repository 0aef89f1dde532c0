package entropy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/circular-city/internal/entropy"
)

func TestEngineIsReproducible(t *testing.T) {
	a := entropy.New(99)
	b := entropy.New(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.Equal(t, uint64(99), a.Seed())
}

func TestZeroSeedIsReplaced(t *testing.T) {
	e := entropy.New(0)
	assert.NotZero(t, e.Seed())
}

func TestPickAndFixed(t *testing.T) {
	f := &entropy.Fixed{Floats: []float64{0.0, 0.99, 0.5}}
	assert.Equal(t, 0, entropy.Pick(f, 3))
	assert.Equal(t, 2, entropy.Pick(f, 3))
	assert.Equal(t, 1, entropy.Pick(f, 3))
	assert.Equal(t, 1, entropy.Pick(f, 3), "script repeats its last value")
	assert.Equal(t, -1, entropy.Pick(f, 0))
	assert.True(t, entropy.PTrue(&entropy.Fixed{Floats: []float64{0.1}}, 0.5))
}
